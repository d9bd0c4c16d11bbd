// Package merge materializes cloud-only bookmarks into the local tree.
package merge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/store"
	"github.com/MrSnakeDoc/marksync/internal/tree"
)

// TreeStore is the part of store.Store the resolver needs.
type TreeStore interface {
	GetTree(ctx context.Context) (*domain.Node, error)
	Create(ctx context.Context, p store.CreateParams) (*domain.Node, error)
}

// ItemError is a failure to materialize a single cloud-only bookmark.
// It never aborts a merge.
type ItemError struct {
	Bookmark domain.Bookmark
	Err      error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("merge %s: %v", e.Bookmark.URL, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// Report summarizes one merge pass.
type Report struct {
	CloudOnly      int          // candidates after filtering
	Created        int          // bookmarks created
	FoldersCreated int          // folders created on the way
	Skipped        int          // cloud-only URLs withheld by WithSkip
	SkippedURLs    []string     // the withheld URLs, in canonical order
	Failed         []*ItemError // per-item failures, in processing order
}

// Option customizes one MergeCloudOnly call.
type Option func(*mergeOptions)

type mergeOptions struct {
	skip map[string]struct{}
}

// WithSkip withholds the given URLs from materialization.
func WithSkip(urls map[string]struct{}) Option {
	return func(o *mergeOptions) { o.skip = urls }
}

// Resolver creates missing folders and bookmarks through a TreeStore.
// Merge passes on one Resolver run one at a time; every writer that resolves
// folder paths on a store must share the same Resolver.
type Resolver struct {
	mu     sync.Mutex
	store  TreeStore
	logger logger.Logger
}

func NewResolver(s TreeStore, log logger.Logger) *Resolver {
	return &Resolver{store: s, logger: log}
}

// CloudOnly returns the canonical records whose URL is absent from local,
// in canonical order. Records without a URL are dropped, and a URL repeated
// within canonical is kept once.
func CloudOnly(canonical, local []domain.Bookmark) []domain.Bookmark {
	localURLs := domain.URLSet(local)
	fresh := lo.Filter(canonical, func(b domain.Bookmark, _ int) bool {
		if !b.HasURL() {
			return false
		}
		_, present := localURLs[b.URL]
		return !present
	})
	return lo.UniqBy(fresh, func(b domain.Bookmark) string { return b.URL })
}

// EnsureFolderPath returns the id of the folder at path, creating every
// missing segment under its parent. fm is updated in place so later calls in
// the same pass see the new folders. An empty path resolves to the default
// container.
func (r *Resolver) EnsureFolderPath(ctx context.Context, path domain.FolderPath, fm tree.FolderMap) (string, int, error) {
	if path.IsEmpty() {
		return domain.DefaultContainerID, 0, nil
	}
	if id, ok := fm.Lookup(path); ok {
		return id, 0, nil
	}

	created := 0
	parentID := domain.DefaultContainerID
	for _, prefix := range path.Prefixes() {
		if id, ok := fm.Lookup(prefix); ok {
			parentID = id
			continue
		}
		title := prefix[len(prefix)-1]
		folder, err := r.store.Create(ctx, store.CreateParams{ParentID: parentID, Title: title})
		if err != nil {
			return "", created, fmt.Errorf("create folder %q: %w", prefix.String(), err)
		}
		fm.Set(prefix, folder.ID)
		parentID = folder.ID
		created++
		r.logger.Debug("created folder",
			logger.String("path", prefix.String()),
			logger.String("folder_id", folder.ID))
	}
	return parentID, created, nil
}

// MergeCloudOnly creates every canonical bookmark missing from local.
//
// Passes are serialized on the Resolver and items are processed one at a
// time, so a folder is never created twice. URLs that appeared in the live
// tree since local was read are not created again.
// A failing item is logged, recorded in the report and skipped. The returned
// error is non-nil only when the local tree cannot be read or ctx ends; the
// report then covers the items processed so far.
func (r *Resolver) MergeCloudOnly(ctx context.Context, canonical, local []domain.Bookmark, opts ...Option) (Report, error) {
	var o mergeOptions
	for _, opt := range opts {
		opt(&o)
	}

	candidates := CloudOnly(canonical, local)
	report := Report{CloudOnly: len(candidates)}
	if len(candidates) == 0 {
		return report, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	root, err := r.store.GetTree(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to read local tree: %w", err)
	}
	fm := tree.BuildFolderMap(root)
	live := domain.URLSet(tree.Flatten(root))

	for _, b := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, skip := o.skip[b.URL]; skip {
			report.Skipped++
			report.SkippedURLs = append(report.SkippedURLs, b.URL)
			continue
		}
		if _, present := live[b.URL]; present {
			continue
		}

		parentID, folders, err := r.EnsureFolderPath(ctx, b.FolderPath, fm)
		report.FoldersCreated += folders
		if err == nil {
			_, err = r.store.Create(ctx, store.CreateParams{ParentID: parentID, Title: b.Title, URL: b.URL})
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return report, err
			}
			itemErr := &ItemError{Bookmark: b, Err: err}
			report.Failed = append(report.Failed, itemErr)
			r.logger.Warn("failed to merge bookmark",
				logger.String("url", b.URL),
				logger.String("folder_path", b.FolderPath.String()),
				logger.Error(err))
			continue
		}
		live[b.URL] = struct{}{}
		report.Created++
	}

	r.logger.Info("merged cloud bookmarks",
		logger.Int("cloud_only", report.CloudOnly),
		logger.Int("created", report.Created),
		logger.Int("folders_created", report.FoldersCreated),
		logger.Int("skipped", report.Skipped),
		logger.Int("failed", len(report.Failed)))

	return report, nil
}
