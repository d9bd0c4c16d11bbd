package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/store"
	"github.com/MrSnakeDoc/marksync/internal/tree"
)

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tree.json")

	s, err := Open(path, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestMutationsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tree.json")

	s, err := Open(path, logger.NewNop())
	require.NoError(t, err)

	folder, err := s.Create(ctx, store.CreateParams{ParentID: domain.BookmarksBarID, Title: "Tech"})
	require.NoError(t, err)
	_, err = s.Create(ctx, store.CreateParams{ParentID: folder.ID, Title: "Go", URL: "https://go.dev"})
	require.NoError(t, err)
	tmp, err := s.Create(ctx, store.CreateParams{ParentID: domain.OtherBookmarksID, Title: "tmp", URL: "https://tmp.example"})
	require.NoError(t, err)
	require.NoError(t, s.Remove(ctx, tmp.ID))

	reopened, err := Open(path, logger.NewNop())
	require.NoError(t, err)

	root, err := reopened.GetTree(ctx)
	require.NoError(t, err)
	flat := tree.Flatten(root)
	require.Len(t, flat, 1)
	assert.Equal(t, "https://go.dev", flat[0].URL)
	assert.Equal(t, "Bookmarks bar/Tech", flat[0].FolderPath.String())

	next, err := reopened.Create(ctx, store.CreateParams{ParentID: folder.ID, Title: "Rust", URL: "https://rust-lang.org"})
	require.NoError(t, err)
	assert.NotEqual(t, folder.ID, next.ID)
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Open(path, logger.NewNop())
	assert.Error(t, err)
}

func TestFailedMutationDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tree.json")

	s, err := Open(path, logger.NewNop())
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = s.Create(ctx, store.CreateParams{ParentID: "404", Title: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
