package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/store"
	"github.com/MrSnakeDoc/marksync/internal/tree"
)

const (
	untitledBookmark = "Untitled"
	untitledFolder   = "Untitled folder"
)

// Manager creates, restores and moves backups in and out of a Repository.
type Manager struct {
	store  store.Store
	repo   Repository
	logger logger.Logger
	max    int
	now    func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithMax caps the number of stored backups.
func WithMax(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.max = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(s store.Store, repo Repository, log logger.Logger, opts ...Option) *Manager {
	m := &Manager{store: s, repo: repo, logger: log, max: DefaultMax, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create snapshots the local tree. An empty name gets a timestamped one.
func (m *Manager) Create(ctx context.Context, name string, auto bool) (Backup, error) {
	root, err := m.store.GetTree(ctx)
	if err != nil {
		return Backup{}, fmt.Errorf("failed to read local tree: %w", err)
	}

	now := m.now().UTC()
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Backup " + now.Format("2006-01-02 15:04:05")
	}

	b := Backup{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		Count:     tree.Count(root),
		Auto:      auto,
		Tree:      root,
	}
	if err := m.repo.Put(ctx, b, m.max); err != nil {
		return Backup{}, fmt.Errorf("failed to save backup: %w", err)
	}

	m.logger.Info("backup created",
		logger.String("id", b.ID),
		logger.String("name", b.Name),
		logger.Int("bookmarks", b.Count),
		logger.Bool("auto", auto))
	return b, nil
}

// List returns backup summaries, newest first.
func (m *Manager) List(ctx context.Context) ([]Backup, error) {
	backups, err := m.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Backup, len(backups))
	for i, b := range backups {
		out[i] = b.Summary()
	}
	return out, nil
}

func (m *Manager) Get(ctx context.Context, id string) (Backup, error) {
	return m.repo.Get(ctx, id)
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.repo.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Info("backup deleted", logger.String("id", id))
	return nil
}

// Restore recreates the backup's content on top of the live tree. Children
// of each snapshot container go under the live container with the same id,
// or the default container when there is none. Nodes that fail are logged
// and skipped. The result is the number of top-level items restored.
func (m *Manager) Restore(ctx context.Context, id string) (int, error) {
	b, err := m.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if b.Tree == nil {
		return 0, fmt.Errorf("%w: backup %s has no tree", ErrInvalid, id)
	}

	live, err := m.store.GetTree(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read local tree: %w", err)
	}

	restored := 0
	for _, container := range b.Tree.Children {
		target := domain.DefaultContainerID
		if tree.Find(live, container.ID) != nil && domain.IsContainer(container.ID) {
			target = container.ID
		}
		for _, child := range container.Children {
			if err := ctx.Err(); err != nil {
				return restored, err
			}
			m.restoreNode(ctx, child, target)
			restored++
		}
	}

	m.logger.Info("backup restored",
		logger.String("id", b.ID),
		logger.String("name", b.Name),
		logger.Int("items", restored))
	return restored, nil
}

func (m *Manager) restoreNode(ctx context.Context, n *domain.Node, parentID string) {
	if n.URL != "" {
		title := n.Title
		if title == "" {
			title = untitledBookmark
		}
		if _, err := m.store.Create(ctx, store.CreateParams{ParentID: parentID, Title: title, URL: n.URL}); err != nil {
			m.logger.Warn("failed to restore bookmark", logger.String("url", n.URL), logger.Error(err))
		}
		return
	}

	title := n.Title
	if title == "" {
		title = untitledFolder
	}
	folder, err := m.store.Create(ctx, store.CreateParams{ParentID: parentID, Title: title})
	if err != nil {
		m.logger.Warn("failed to restore folder", logger.String("title", title), logger.Error(err))
		return
	}
	for _, child := range n.Children {
		m.restoreNode(ctx, child, folder.ID)
	}
}

// Export writes one backup as indented JSON.
func (m *Manager) Export(ctx context.Context, id string, w io.Writer) error {
	b, err := m.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	return writeJSON(w, b)
}

// ExportAll writes every backup as a JSON array.
func (m *Manager) ExportAll(ctx context.Context, w io.Writer) error {
	backups, err := m.repo.List(ctx)
	if err != nil {
		return err
	}
	if backups == nil {
		backups = []Backup{}
	}
	return writeJSON(w, backups)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Import reads a single backup or an array of backups. Entries whose id is
// already stored are skipped; entries without an id get one. Invalid entries
// fail the import only when the input is a single backup.
func (m *Manager) Import(ctx context.Context, r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read backup: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty input", ErrInvalid)
	}

	var incoming []Backup
	single := data[0] != '['
	if single {
		var b Backup
		if err := json.Unmarshal(data, &b); err != nil {
			return 0, errors.Join(ErrInvalid, err)
		}
		if err := b.validate(); err != nil {
			return 0, err
		}
		incoming = []Backup{b}
	} else if err := json.Unmarshal(data, &incoming); err != nil {
		return 0, errors.Join(ErrInvalid, err)
	}

	existing, err := m.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	known := make(map[string]struct{}, len(existing))
	for _, b := range existing {
		known[b.ID] = struct{}{}
	}

	imported := 0
	for _, b := range incoming {
		if err := b.validate(); err != nil {
			m.logger.Warn("skipping invalid backup", logger.String("name", b.Name), logger.Error(err))
			continue
		}
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		if _, dup := known[b.ID]; dup {
			continue
		}
		if b.Count == 0 {
			b.Count = tree.Count(b.Tree)
		}
		if err := m.repo.Put(ctx, b, m.max); err != nil {
			return imported, fmt.Errorf("failed to save backup: %w", err)
		}
		known[b.ID] = struct{}{}
		imported++
	}

	m.logger.Info("backups imported", logger.Int("count", imported), logger.Int("received", len(incoming)))
	return imported, nil
}

// Prune deletes automatic backups created before cutoff.
func (m *Manager) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	backups, err := m.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, b := range backups {
		if !b.Auto || !b.CreatedAt.Before(cutoff) {
			continue
		}
		if err := m.repo.Delete(ctx, b.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
