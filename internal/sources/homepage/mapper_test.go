package homepage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

func TestMapperMapServices(t *testing.T) {
	config := ServicesConfig{
		{
			"Infrastructure": []map[string]ServiceProps{
				{
					"AdGuard Home": {
						Icon:        "adguard-home.svg",
						Href:        "https://adguard.domain.ext",
						Description: "Network-wide ads blocking",
					},
				},
				{
					"Traefik": {
						Icon:        "traefik.svg",
						Href:        "https://traefik.domain.ext",
						Description: "Cloud Native Application Proxy",
					},
				},
			},
		},
	}

	services, err := NewMapper(nil).MapServices(config)
	if err != nil {
		t.Fatalf("MapServices() error = %v", err)
	}

	if len(services) != 2 {
		t.Fatalf("MapServices() returned %v services, want 2", len(services))
	}

	got := services[0]
	if got.URL != "https://adguard.domain.ext" || got.Title != "AdGuard Home" {
		t.Errorf("first service = %+v", got)
	}
	if got.FolderPath.String() != "Homepage/Infrastructure" {
		t.Errorf("FolderPath = %q, want Homepage/Infrastructure", got.FolderPath.String())
	}
}

func TestMapperMapServicesEmptyConfig(t *testing.T) {
	services, err := NewMapper(nil).MapServices(ServicesConfig{})

	if err == nil {
		t.Error("MapServices() with empty config should return error")
	}
	if services != nil {
		t.Errorf("MapServices() with empty config should return nil services, got %v", len(services))
	}
}

func TestMapperMapServicesInvalidURL(t *testing.T) {
	config := ServicesConfig{
		{
			"Test": []map[string]ServiceProps{
				{"Relative": {Href: "not-a-valid-url"}},
				{"Templated": {Href: ""}},
				{"Ftp": {Href: "ftp://files.example.com"}},
			},
		},
	}

	services, err := NewMapper(nil).MapServices(config)

	if err == nil {
		t.Error("MapServices() should return error when no valid services found")
	}
	if services != nil {
		t.Errorf("MapServices() should return nil when no valid services, got %v services", len(services))
	}
}

func TestMapperCustomFolder(t *testing.T) {
	config := ServicesConfig{
		{"Group1": []map[string]ServiceProps{{"Service1": {Href: "https://service1.example.com"}}}},
		{"Group2": []map[string]ServiceProps{{"Service2": {Href: "https://service2.example.com"}}}},
	}

	mapper := NewMapper(domain.FolderPath{"Bookmarks bar", "Homepage"})
	services, err := mapper.MapServices(config)
	if err != nil {
		t.Fatalf("MapServices() error = %v", err)
	}

	want := []string{"Bookmarks bar/Homepage/Group1", "Bookmarks bar/Homepage/Group2"}
	for i, svc := range services {
		if svc.FolderPath.String() != want[i] {
			t.Errorf("services[%d].FolderPath = %q, want %q", i, svc.FolderPath.String(), want[i])
		}
	}
}

func TestMapperMapBookmarks(t *testing.T) {
	config := BookmarksConfig{
		{
			"Developer": []map[string][]BookmarkEntry{
				{"Github": {{Abbr: "GH", Href: "https://github.com"}}},
				{"": {{Abbr: "GL", Href: "https://gitlab.com"}}},
				{"Empty": {}},
				{"Broken": {{Abbr: "BR", Href: "nope"}}},
			},
		},
	}

	bookmarks, err := NewMapper(nil).MapBookmarks(config)
	if err != nil {
		t.Fatalf("MapBookmarks() error = %v", err)
	}
	if len(bookmarks) != 2 {
		t.Fatalf("MapBookmarks() returned %d bookmarks, want 2", len(bookmarks))
	}

	titles := map[string]string{}
	for _, b := range bookmarks {
		titles[b.URL] = b.Title
		if b.FolderPath.String() != "Homepage/Developer" {
			t.Errorf("FolderPath = %q", b.FolderPath.String())
		}
	}
	if titles["https://github.com"] != "Github" {
		t.Errorf("github title = %q", titles["https://github.com"])
	}
	if titles["https://gitlab.com"] != "GL" {
		t.Errorf("gitlab title = %q, want abbr fallback", titles["https://gitlab.com"])
	}
}

func TestSourceLoad(t *testing.T) {
	dir := t.TempDir()
	bookmarksPath := filepath.Join(dir, "bookmarks.yaml")
	servicesPath := filepath.Join(dir, "services.yaml")

	bookmarksYAML := `---
- Developer:
    - Github:
        - abbr: GH
          href: https://github.com/
`
	servicesYAML := `---
- Media:
    - Jellyfin:
        href: https://jellyfin.domain.ext
    - Github mirror:
        href: https://github.com/
`
	if err := os.WriteFile(bookmarksPath, []byte(bookmarksYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(servicesPath, []byte(servicesYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewSource(bookmarksPath, servicesPath)
	if !src.Enabled() || len(src.Files()) != 2 {
		t.Fatalf("source files = %v", src.Files())
	}

	records, err := src.Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Load() returned %d records, want 2 (duplicate URL dropped)", len(records))
	}
	if records[0].Title != "Github" || records[1].Title != "Jellyfin" {
		t.Errorf("records = %+v", records)
	}
}

func TestSourceLoadPartialFailure(t *testing.T) {
	dir := t.TempDir()
	servicesPath := filepath.Join(dir, "services.yaml")
	servicesYAML := `---
- Media:
    - Jellyfin:
        href: https://jellyfin.domain.ext
`
	if err := os.WriteFile(servicesPath, []byte(servicesYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	records, err := NewSource(filepath.Join(dir, "missing.yaml"), servicesPath).Load(nil)
	if err == nil {
		t.Error("Load() should report the missing bookmarks file")
	}
	if len(records) != 1 {
		t.Errorf("Load() returned %d records, want 1", len(records))
	}
}

func TestSourceDisabled(t *testing.T) {
	if NewSource("", "").Enabled() {
		t.Error("source without files should be disabled")
	}
}
