// Package backup keeps named snapshots of the local bookmark tree and
// restores them on demand.
package backup

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

// DefaultMax is the number of backups kept when no limit is configured.
const DefaultMax = 20

var (
	ErrNotFound = errors.New("backup not found")
	ErrInvalid  = errors.New("invalid backup")
)

// Backup is one snapshot of the local tree.
type Backup struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"createdAt"`
	Count     int          `json:"count"`
	Auto      bool         `json:"auto,omitempty"`
	Tree      *domain.Node `json:"tree,omitempty"`
}

// Summary returns b without its tree.
func (b Backup) Summary() Backup {
	b.Tree = nil
	return b
}

func (b Backup) validate() error {
	switch {
	case b.Name == "":
		return errors.Join(ErrInvalid, errors.New("missing name"))
	case b.CreatedAt.IsZero():
		return errors.Join(ErrInvalid, errors.New("missing createdAt"))
	case b.Tree == nil:
		return errors.Join(ErrInvalid, errors.New("missing tree"))
	}
	return nil
}

// Repository stores backups newest first.
type Repository interface {
	// Put inserts b at the head and drops the oldest entries beyond max.
	Put(ctx context.Context, b Backup, max int) error
	List(ctx context.Context) ([]Backup, error)
	Get(ctx context.Context, id string) (Backup, error)
	Delete(ctx context.Context, id string) error
}

// MemoryRepository is a process-local Repository.
type MemoryRepository struct {
	mu      sync.RWMutex
	backups []Backup
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Put(ctx context.Context, b Backup, max int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backups = slices.Insert(r.backups, 0, b)
	if max > 0 && len(r.backups) > max {
		r.backups = r.backups[:max]
	}
	return nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]Backup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.backups), nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (Backup, error) {
	if err := ctx.Err(); err != nil {
		return Backup{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.backups {
		if b.ID == id {
			return b, nil
		}
	}
	return Backup{}, ErrNotFound
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.backups, func(b Backup) bool { return b.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	r.backups = slices.Delete(r.backups, i, i+1)
	return nil
}
