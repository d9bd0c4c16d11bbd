// Package file persists the in-memory tree store to a JSON file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/store"
	"github.com/MrSnakeDoc/marksync/internal/store/memory"
	"github.com/MrSnakeDoc/marksync/internal/utils"
)

// Store is a memory.Store whose tree is rewritten to disk after every mutation.
type Store struct {
	*memory.Store
	path   string
	logger logger.Logger
	mu     sync.Mutex // serializes snapshot writes
}

// Open loads the tree at path, or starts an empty tree when the file does not exist.
func Open(path string, log logger.Logger) (*Store, error) {
	mem, err := load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{Store: mem, path: path, logger: log}
	if err := s.persist(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func load(path string) (*memory.Store, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return memory.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tree file: %w", err)
	}

	var root domain.Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse tree file %s: %w", path, err)
	}
	return memory.NewFromTree(&root)
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

func (s *Store) Create(ctx context.Context, p store.CreateParams) (*domain.Node, error) {
	n, err := s.Store.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	return n, s.persist(ctx)
}

func (s *Store) Update(ctx context.Context, id string, p store.UpdateParams) (*domain.Node, error) {
	n, err := s.Store.Update(ctx, id, p)
	if err != nil {
		return nil, err
	}
	return n, s.persist(ctx)
}

func (s *Store) Move(ctx context.Context, id, parentID string) (*domain.Node, error) {
	n, err := s.Store.Move(ctx, id, parentID)
	if err != nil {
		return nil, err
	}
	return n, s.persist(ctx)
}

func (s *Store) Remove(ctx context.Context, id string) error {
	if err := s.Store.Remove(ctx, id); err != nil {
		return err
	}
	return s.persist(ctx)
}

// persist writes the current tree to a temp file and renames it over the target.
func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := s.Store.GetTree(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tree: %w", err)
	}
	if err := utils.WriteAtomic(s.path, data, 0o600); err != nil {
		s.logger.Error("failed to persist bookmark tree",
			logger.String("path", s.path),
			logger.Error(err))
		return err
	}
	return nil
}

var _ store.Store = (*Store)(nil)
