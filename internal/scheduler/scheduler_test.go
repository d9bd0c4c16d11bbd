package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/backup"
	"github.com/MrSnakeDoc/marksync/internal/client"
	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/sources/homepage"
	"github.com/MrSnakeDoc/marksync/internal/store/memory"
	"github.com/MrSnakeDoc/marksync/internal/syncer"
	"github.com/MrSnakeDoc/marksync/internal/tree"
)

type fakeSyncer struct {
	autoCalls atomic.Int32
	syncCalls atomic.Int32
	autoErr   error
}

func (f *fakeSyncer) AutoSync(ctx context.Context) (bool, error) {
	f.autoCalls.Add(1)
	return f.autoErr == nil, f.autoErr
}

func (f *fakeSyncer) PerformSync(ctx context.Context) (*client.SyncResponse, error) {
	f.syncCalls.Add(1)
	return &client.SyncResponse{}, nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestAutoSyncer_RunsOnStartTickAndTrigger(t *testing.T) {
	engine := &fakeSyncer{autoErr: syncer.ErrNotAuthenticated}
	trigger := make(chan struct{}, 1)
	a := NewAutoSyncer(engine, logger.NewNop(), 20*time.Millisecond, trigger)

	a.Start(context.Background())
	if got := engine.autoCalls.Load(); got != 1 {
		t.Fatalf("AutoSync calls after Start = %d, want 1", got)
	}

	waitFor(t, func() bool { return engine.autoCalls.Load() >= 3 })

	trigger <- struct{}{}
	waitFor(t, func() bool { return engine.syncCalls.Load() == 1 })

	a.Stop()
	calls := engine.autoCalls.Load()
	time.Sleep(60 * time.Millisecond)
	if engine.autoCalls.Load() != calls {
		t.Error("AutoSync called after Stop")
	}
}

func TestAutoSyncer_StopsWithContext(t *testing.T) {
	engine := &fakeSyncer{autoErr: errors.New("boom")}
	ctx, cancel := context.WithCancel(context.Background())
	a := NewAutoSyncer(engine, logger.NewNop(), time.Hour, nil)

	a.Start(ctx)
	cancel()

	select {
	case <-a.done:
	case <-time.After(time.Second):
		t.Fatal("auto syncer did not exit on context cancel")
	}
}

const servicesYAML = `---
- Media:
    - Jellyfin:
        href: https://jellyfin.domain.ext
    - Sonarr:
        href: https://sonarr.domain.ext
`

func TestHomepageImporter_Import(t *testing.T) {
	dir := t.TempDir()
	servicesPath := filepath.Join(dir, "services.yaml")
	if err := os.WriteFile(servicesPath, []byte(servicesYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	s := memory.New()
	hi := NewHomepageImporter(homepage.NewSource("", servicesPath), s, nil, logger.NewNop(), time.Hour, false, nil)
	ctx := context.Background()

	report, err := hi.Import(ctx)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if report.Created != 2 {
		t.Errorf("Created = %d, want 2", report.Created)
	}

	report, err = hi.Import(ctx)
	if err != nil {
		t.Fatalf("second Import() error = %v", err)
	}
	if report.Created != 0 {
		t.Errorf("second import Created = %d, want 0", report.Created)
	}

	root, _ := s.GetTree(ctx)
	records := tree.Flatten(root)
	if len(records) != 2 {
		t.Fatalf("local records = %d, want 2", len(records))
	}
	if got := records[0].FolderPath.String(); got != "Bookmarks bar/Homepage/Media" {
		t.Errorf("FolderPath = %q", got)
	}

	homepageFolders := 0
	for _, f := range tree.Folders(root) {
		if f.Title == homepage.FolderTitle {
			homepageFolders++
		}
	}
	if homepageFolders != 1 {
		t.Errorf("Homepage folders = %d, want 1", homepageFolders)
	}
}

func TestHomepageImporter_NotConfigured(t *testing.T) {
	hi := NewHomepageImporter(homepage.NewSource("", ""), memory.New(), nil, logger.NewNop(), time.Hour, false, nil)
	if _, err := hi.Import(context.Background()); err == nil {
		t.Error("Import() without files should fail")
	}
}

func TestHomepageImporter_WatchesFiles(t *testing.T) {
	dir := t.TempDir()
	servicesPath := filepath.Join(dir, "services.yaml")
	if err := os.WriteFile(servicesPath, []byte(servicesYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	s := memory.New()
	hi := NewHomepageImporter(homepage.NewSource("", servicesPath), s, nil, logger.NewNop(), time.Hour, true, nil)
	if err := hi.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer hi.Stop()

	updated := servicesYAML + `    - Radarr:
        href: https://radarr.domain.ext
`
	if err := os.WriteFile(servicesPath, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		root, _ := s.GetTree(context.Background())
		_, ok := domain.URLSet(tree.Flatten(root))["https://radarr.domain.ext"]
		return ok
	})
}

func TestBackupRotation(t *testing.T) {
	ctx := context.Background()
	repo := backup.NewMemoryRepository()
	mgr := backup.NewManager(memory.New(), repo, logger.NewNop())

	now := time.Now()
	put := func(id string, age time.Duration, auto bool) {
		b := backup.Backup{ID: id, Name: id, CreatedAt: now.Add(-age), Auto: auto, Tree: &domain.Node{ID: domain.RootID}}
		if err := repo.Put(ctx, b, 0); err != nil {
			t.Fatal(err)
		}
	}
	put("old-auto", 35*24*time.Hour, true)
	put("recent-auto", 10*24*time.Hour, true)
	put("old-manual", 35*24*time.Hour, false)

	br := NewBackupRotation(mgr, logger.NewNop(), 24*time.Hour, 30*24*time.Hour)
	br.now = func() time.Time { return now }

	if err := br.Rotate(ctx); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	list, err := mgr.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// new automatic backup + recent-auto + old-manual
	if len(list) != 3 {
		t.Fatalf("Expected 3 backups after rotation, got %d", len(list))
	}
	if !list[0].Auto {
		t.Error("rotation did not create an automatic backup")
	}
	for _, b := range list {
		if b.ID == "old-auto" {
			t.Error("old automatic backup was not pruned")
		}
	}
}
