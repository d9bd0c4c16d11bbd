package state

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/utils"
)

// fileState is the on-disk layout of the state file.
type fileState struct {
	SyncConfig *domain.SyncConfig `toml:"sync_config,omitempty"`
	Baseline   []string           `toml:"baseline,omitempty"`
}

// FileBackend stores state in a TOML file. The file holds a token, so it is
// written with 0600 permissions.
type FileBackend struct {
	mu   sync.Mutex
	path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the state file location.
func (b *FileBackend) Path() string { return b.path }

func (b *FileBackend) LoadConfig(ctx context.Context) (domain.SyncConfig, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.SyncConfig{}, false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	st, err := b.readLocked()
	if err != nil {
		return domain.SyncConfig{}, false, err
	}
	if st.SyncConfig == nil {
		return domain.SyncConfig{}, false, nil
	}
	return *st.SyncConfig, true, nil
}

func (b *FileBackend) SaveConfig(ctx context.Context, cfg domain.SyncConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	st, err := b.readLocked()
	if err != nil {
		return err
	}
	st.SyncConfig = &cfg
	return b.writeLocked(st)
}

func (b *FileBackend) LoadBaseline(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	st, err := b.readLocked()
	if err != nil {
		return nil, err
	}
	return st.Baseline, nil
}

func (b *FileBackend) SaveBaseline(ctx context.Context, urls []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	st, err := b.readLocked()
	if err != nil {
		return err
	}
	st.Baseline = urls
	return b.writeLocked(st)
}

func (b *FileBackend) readLocked() (fileState, error) {
	f, err := os.Open(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return fileState{}, nil
	}
	if err != nil {
		return fileState{}, fmt.Errorf("failed to open state file: %w", err)
	}
	defer utils.Close(f)

	st, err := decodeState(f)
	if err != nil {
		return fileState{}, fmt.Errorf("reading state from %s: %w", b.path, err)
	}
	return st, nil
}

func (b *FileBackend) writeLocked(st fileState) error {
	var buf bytes.Buffer
	if err := encodeState(&buf, st); err != nil {
		return fmt.Errorf("writing state to %s: %w", b.path, err)
	}
	return utils.WriteAtomic(b.path, buf.Bytes(), 0o600)
}

func decodeState(r io.Reader) (fileState, error) {
	var st fileState
	if _, err := toml.NewDecoder(r).Decode(&st); err != nil {
		return fileState{}, fmt.Errorf("failed to decode TOML: %w", err)
	}
	return st, nil
}

func encodeState(w io.Writer, st fileState) error {
	if err := toml.NewEncoder(w).Encode(st); err != nil {
		return fmt.Errorf("failed to encode TOML: %w", err)
	}
	return nil
}

var _ Backend = (*FileBackend)(nil)
