// Package memory is an in-process bookmark tree store.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/store"
	"github.com/MrSnakeDoc/marksync/internal/tree"
)

// Store keeps the whole tree in memory behind a RWMutex.
type Store struct {
	mu     sync.RWMutex
	root   *domain.Node
	nodes  map[string]*domain.Node // ID -> Node (points into root)
	nextID int
	now    func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the clock used for DateAdded.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a store holding only the root and its fixed containers.
func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.reset(domain.NewRootTree(s.now().UnixMilli()))
	return s
}

// NewFromTree returns a store seeded with a copy of root.
// Missing fixed containers are added back.
func NewFromTree(root *domain.Node, opts ...Option) (*Store, error) {
	if root == nil || root.ID != domain.RootID {
		return nil, fmt.Errorf("tree root must have id %q", domain.RootID)
	}
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	seeded := tree.Clone(root)
	defaults := domain.NewRootTree(s.now().UnixMilli())
	for _, container := range defaults.Children {
		if tree.Find(seeded, container.ID) == nil {
			seeded.Children = append(seeded.Children, container)
		}
	}
	s.reset(seeded)
	return s, nil
}

func (s *Store) reset(root *domain.Node) {
	s.root = root
	s.nodes = make(map[string]*domain.Node, 128)
	s.nextID = 100

	var index func(n *domain.Node, parentID string)
	index = func(n *domain.Node, parentID string) {
		n.ParentID = parentID
		s.nodes[n.ID] = n
		if v, err := strconv.Atoi(n.ID); err == nil && v >= s.nextID {
			s.nextID = v + 1
		}
		for _, child := range n.Children {
			index(child, n.ID)
		}
	}
	index(root, "")
}

// GetTree returns a deep copy of the tree.
func (s *Store) GetTree(ctx context.Context) (*domain.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tree.Clone(s.root), nil
}

// Create adds a bookmark, or a folder when p.URL is empty, at the end of the parent.
func (s *Store) Create(ctx context.Context, p store.CreateParams) (*domain.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, err := s.folderLocked(p.ParentID)
	if err != nil {
		return nil, err
	}
	if p.ParentID == domain.RootID {
		return nil, fmt.Errorf("create under root: %w", store.ErrImmutable)
	}

	n := &domain.Node{
		ID:        strconv.Itoa(s.nextID),
		ParentID:  parent.ID,
		Title:     p.Title,
		URL:       p.URL,
		DateAdded: s.now().UnixMilli(),
	}
	s.nextID++
	parent.Children = append(parent.Children, n)
	s.nodes[n.ID] = n
	return tree.Clone(n), nil
}

// Update renames a node.
func (s *Store) Update(ctx context.Context, id string, p store.UpdateParams) (*domain.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("update %s: %w", id, store.ErrNotFound)
	}
	if domain.IsContainer(id) {
		return nil, fmt.Errorf("update %s: %w", id, store.ErrImmutable)
	}
	if p.Title != nil {
		n.Title = *p.Title
	}
	return tree.Clone(n), nil
}

// Move reparents a node, appending it to the new parent's children.
func (s *Store) Move(ctx context.Context, id, parentID string) (*domain.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("move %s: %w", id, store.ErrNotFound)
	}
	if domain.IsContainer(id) || parentID == domain.RootID {
		return nil, fmt.Errorf("move %s: %w", id, store.ErrImmutable)
	}
	parent, err := s.folderLocked(parentID)
	if err != nil {
		return nil, err
	}
	if tree.Find(n, parentID) != nil {
		return nil, fmt.Errorf("move %s into %s: %w", id, parentID, store.ErrInvalidMove)
	}

	s.detachLocked(n)
	n.ParentID = parent.ID
	parent.Children = append(parent.Children, n)
	return tree.Clone(n), nil
}

// Remove deletes a node and its subtree.
func (s *Store) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("remove %s: %w", id, store.ErrNotFound)
	}
	if domain.IsContainer(id) {
		return fmt.Errorf("remove %s: %w", id, store.ErrImmutable)
	}

	s.detachLocked(n)
	var forget func(n *domain.Node)
	forget = func(n *domain.Node) {
		delete(s.nodes, n.ID)
		for _, child := range n.Children {
			forget(child)
		}
	}
	forget(n)
	return nil
}

// Len returns the number of bookmark nodes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tree.Count(s.root)
}

func (s *Store) folderLocked(id string) (*domain.Node, error) {
	parent, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("parent %s: %w", id, store.ErrNotFound)
	}
	if !parent.IsFolder() {
		return nil, fmt.Errorf("parent %s: %w", id, store.ErrNotFolder)
	}
	return parent, nil
}

func (s *Store) detachLocked(n *domain.Node) {
	parent, ok := s.nodes[n.ParentID]
	if !ok {
		return
	}
	parent.Children = slices.DeleteFunc(parent.Children, func(c *domain.Node) bool {
		return c.ID == n.ID
	})
}

var _ store.Store = (*Store)(nil)
