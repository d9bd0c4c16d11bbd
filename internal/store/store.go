// Package store defines the local bookmark store contract used by sync,
// merge and backup. Implementations live in the sub-packages.
package store

import (
	"context"
	"errors"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

var (
	// ErrNotFound is returned when a node id does not exist.
	ErrNotFound = errors.New("node not found")
	// ErrNotFolder is returned when a bookmark is used as a parent.
	ErrNotFolder = errors.New("parent is not a folder")
	// ErrImmutable is returned when the root or a fixed container would be changed.
	ErrImmutable = errors.New("node cannot be modified")
	// ErrInvalidMove is returned when a folder would be moved into its own subtree.
	ErrInvalidMove = errors.New("cannot move a folder into itself")
)

// CreateParams describes a new node. An empty URL creates a folder.
type CreateParams struct {
	ParentID string
	Title    string
	URL      string
}

// UpdateParams lists the fields to change; nil fields are left untouched.
type UpdateParams struct {
	Title *string
}

// Store is a local bookmark tree.
type Store interface {
	// GetTree returns a snapshot of the whole tree rooted at domain.RootID.
	// Callers may keep and modify the snapshot.
	GetTree(ctx context.Context) (*domain.Node, error)
	Create(ctx context.Context, p CreateParams) (*domain.Node, error)
	Update(ctx context.Context, id string, p UpdateParams) (*domain.Node, error)
	Move(ctx context.Context, id, parentID string) (*domain.Node, error)
	// Remove deletes the node and, for folders, everything beneath it.
	Remove(ctx context.Context, id string) error
}
