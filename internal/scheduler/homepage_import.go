package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/merge"
	"github.com/MrSnakeDoc/marksync/internal/sources/homepage"
	"github.com/MrSnakeDoc/marksync/internal/tree"
)

const (
	// DefaultImportInterval is the periodic homepage import interval
	DefaultImportInterval = 10 * time.Minute
	// watchDebounce coalesces the burst of events an editor save produces
	watchDebounce = 500 * time.Millisecond
)

// HomepageImporter copies Homepage bookmarks and services into the local tree,
// under <default container>/Homepage/<group>. URLs already present locally are
// left alone.
type HomepageImporter struct {
	source        *homepage.Source
	store         merge.TreeStore
	resolver      *merge.Resolver
	logger        logger.Logger
	interval      time.Duration
	watch         bool
	stopCh        chan struct{}
	manualTrigger chan struct{}
	done          chan struct{}
}

// NewHomepageImporter creates a new homepage importer. With watch set, the
// configured files are also watched for changes. resolver must be the one the
// sync engine merges through; nil gives the importer its own.
func NewHomepageImporter(
	source *homepage.Source,
	store merge.TreeStore,
	resolver *merge.Resolver,
	log logger.Logger,
	interval time.Duration,
	watch bool,
	manualTrigger chan struct{},
) *HomepageImporter {
	if interval <= 0 {
		interval = DefaultImportInterval
	}
	if resolver == nil {
		resolver = merge.NewResolver(store, log)
	}
	return &HomepageImporter{
		source:        source,
		store:         store,
		resolver:      resolver,
		logger:        log,
		interval:      interval,
		watch:         watch,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
		done:          make(chan struct{}),
	}
}

// Start imports once, then keeps importing in the background.
func (hi *HomepageImporter) Start(ctx context.Context) error {
	if _, err := hi.Import(ctx); err != nil {
		hi.logger.Warn("initial homepage import failed", logger.Error(err))
	}

	var events <-chan fsnotify.Event
	var watcher *fsnotify.Watcher
	if hi.watch {
		w, err := hi.newWatcher()
		if err != nil {
			return err
		}
		watcher, events = w, w.Events
	}

	ticker := time.NewTicker(hi.interval)
	go func() {
		defer close(hi.done)
		defer ticker.Stop()
		if watcher != nil {
			defer func() { _ = watcher.Close() }()
		}

		var debounce <-chan time.Time
		for {
			select {
			case <-ticker.C:
				hi.run(ctx)
			case <-hi.manualTrigger:
				hi.logger.Info("manual homepage import triggered")
				hi.run(ctx)
			case ev, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				if hi.relevant(ev) {
					debounce = time.After(watchDebounce)
				}
			case <-debounce:
				debounce = nil
				hi.logger.Info("homepage files changed, importing")
				hi.run(ctx)
			case <-hi.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the importer
func (hi *HomepageImporter) Stop() {
	close(hi.stopCh)
	<-hi.done
}

func (hi *HomepageImporter) run(ctx context.Context) {
	if _, err := hi.Import(ctx); err != nil {
		hi.logger.Error("failed to import homepage", logger.Error(err))
	}
}

// Import maps the Homepage files and merges the records missing locally.
func (hi *HomepageImporter) Import(ctx context.Context) (merge.Report, error) {
	if !hi.source.Enabled() {
		return merge.Report{}, fmt.Errorf("no homepage file configured")
	}

	root, err := hi.store.GetTree(ctx)
	if err != nil {
		return merge.Report{}, fmt.Errorf("failed to read local tree: %w", err)
	}

	records, loadErr := hi.source.Load(importFolder(root))
	if loadErr != nil {
		if len(records) == 0 {
			return merge.Report{}, fmt.Errorf("failed to load homepage: %w", loadErr)
		}
		hi.logger.Warn("homepage partially loaded", logger.Error(loadErr))
	}

	report, err := hi.resolver.MergeCloudOnly(ctx, records, tree.Flatten(root))
	if err != nil {
		return report, err
	}

	hi.logger.Info("homepage imported",
		logger.Int("records", len(records)),
		logger.Int("created", report.Created),
		logger.Int("failed", len(report.Failed)))
	return report, nil
}

// importFolder is <default container title>/Homepage.
func importFolder(root *domain.Node) domain.FolderPath {
	container := tree.Find(root, domain.DefaultContainerID)
	if container == nil || container.Title == "" {
		return domain.FolderPath{homepage.FolderTitle}
	}
	return domain.FolderPath{container.Title, homepage.FolderTitle}
}

// newWatcher watches the directories of the configured files, since editors
// often replace a file instead of writing it in place.
func (hi *HomepageImporter) newWatcher() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	dirs := map[string]struct{}{}
	for _, f := range hi.source.Files() {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return w, nil
}

func (hi *HomepageImporter) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	for _, f := range hi.source.Files() {
		if filepath.Clean(ev.Name) == filepath.Clean(f) {
			return true
		}
	}
	return false
}
