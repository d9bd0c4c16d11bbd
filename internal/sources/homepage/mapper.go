package homepage

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

// FolderTitle is the folder that receives imported Homepage entries.
const FolderTitle = "Homepage"

// Mapper converts Homepage configs to bookmark records. Every record lands in
// Folder/<group>, where Folder defaults to ["Homepage"].
type Mapper struct {
	Folder domain.FolderPath
}

// NewMapper creates a mapper that files entries under folder.
func NewMapper(folder domain.FolderPath) *Mapper {
	if folder.IsEmpty() {
		folder = domain.FolderPath{FolderTitle}
	}
	return &Mapper{Folder: folder}
}

// MapServices converts services.yaml entries. Services without an absolute
// http(s) href are skipped.
func (m *Mapper) MapServices(config ServicesConfig) ([]domain.Bookmark, error) {
	var out []domain.Bookmark

	for _, groupMap := range config {
		for _, group := range sortedKeys(groupMap) {
			for _, serviceMap := range groupMap[group] {
				for _, name := range sortedKeys(serviceMap) {
					href, ok := validHref(serviceMap[name].Href)
					if !ok {
						continue
					}
					out = append(out, domain.Bookmark{
						URL:        href,
						Title:      name,
						FolderPath: m.Folder.Child(group),
					})
				}
			}
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no valid services found in homepage config")
	}
	return out, nil
}

// MapBookmarks converts bookmarks.yaml entries. The entry name is the title;
// the abbreviation is used when the name is blank.
func (m *Mapper) MapBookmarks(config BookmarksConfig) ([]domain.Bookmark, error) {
	var out []domain.Bookmark

	for _, category := range config {
		for _, group := range sortedKeys(category) {
			for _, bookmarkMap := range category[group] {
				for _, name := range sortedKeys(bookmarkMap) {
					entries := bookmarkMap[name]
					// Each bookmark has a list with a single entry
					if len(entries) == 0 {
						continue
					}
					entry := entries[0]
					href, ok := validHref(entry.Href)
					if !ok {
						continue
					}
					title := strings.TrimSpace(name)
					if title == "" {
						title = entry.Abbr
					}
					out = append(out, domain.Bookmark{
						URL:        href,
						Title:      title,
						FolderPath: m.Folder.Child(group),
					})
				}
			}
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no valid bookmarks found in config")
	}
	return out, nil
}

// validHref accepts absolute http and https URLs with a host.
func validHref(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return raw, true
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
