package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/MrSnakeDoc/marksync/internal/utils"
)

// FileRepository is a MemoryRepository saved to a JSON file after every change.
type FileRepository struct {
	mem  *MemoryRepository
	path string
	mu   sync.Mutex // serializes mutation and write
}

// OpenFileRepository loads the backups at path, or starts empty when the
// file does not exist.
func OpenFileRepository(path string) (*FileRepository, error) {
	mem := NewMemoryRepository()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read backup file: %w", err)
	default:
		if err := json.Unmarshal(data, &mem.backups); err != nil {
			return nil, fmt.Errorf("failed to parse backup file %s: %w", path, err)
		}
	}
	return &FileRepository{mem: mem, path: path}, nil
}

func (r *FileRepository) Put(ctx context.Context, b Backup, max int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.mem.Put(ctx, b, max); err != nil {
		return err
	}
	return r.persistLocked()
}

func (r *FileRepository) List(ctx context.Context) ([]Backup, error) {
	return r.mem.List(ctx)
}

func (r *FileRepository) Get(ctx context.Context, id string) (Backup, error) {
	return r.mem.Get(ctx, id)
}

func (r *FileRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.mem.Delete(ctx, id); err != nil {
		return err
	}
	return r.persistLocked()
}

func (r *FileRepository) persistLocked() error {
	backups, err := r.mem.List(context.Background())
	if err != nil {
		return err
	}
	if backups == nil {
		backups = []Backup{}
	}
	data, err := json.Marshal(backups)
	if err != nil {
		return fmt.Errorf("failed to marshal backups: %w", err)
	}
	return utils.WriteAtomic(r.path, data, 0o600)
}

var (
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*FileRepository)(nil)
)
