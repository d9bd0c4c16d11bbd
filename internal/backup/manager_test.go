package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/store"
	"github.com/MrSnakeDoc/marksync/internal/store/memory"
	"github.com/MrSnakeDoc/marksync/internal/tree"
)

func seed(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	work, err := s.Create(ctx, store.CreateParams{ParentID: domain.BookmarksBarID, Title: "Work"})
	require.NoError(t, err)
	_, err = s.Create(ctx, store.CreateParams{ParentID: work.ID, Title: "Docs", URL: "https://docs.example.com"})
	require.NoError(t, err)
	_, err = s.Create(ctx, store.CreateParams{ParentID: domain.BookmarksBarID, Title: "A", URL: "https://a.com"})
	require.NoError(t, err)
	_, err = s.Create(ctx, store.CreateParams{ParentID: domain.OtherBookmarksID, Title: "", URL: "https://other.com"})
	require.NoError(t, err)
}

func newManager(t *testing.T, opts ...Option) (*Manager, *memory.Store) {
	s := memory.New()
	return NewManager(s, NewMemoryRepository(), logger.NewNop(), opts...), s
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m, s := newManager(t, WithClock(func() time.Time { return now }))
	seed(t, s)

	b, err := m.Create(ctx, "", false)
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, "Backup 2024-03-01 12:00:00", b.Name)
	assert.Equal(t, 3, b.Count)
	assert.Equal(t, now, b.CreatedAt)

	second, err := m.Create(ctx, " nightly ", true)
	require.NoError(t, err)
	assert.Equal(t, "nightly", second.Name)

	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	assert.Nil(t, list[0].Tree)

	full, err := m.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.NotNil(t, full.Tree)
}

func TestCreate_Cap(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t, WithMax(3))

	var ids []string
	for i := 0; i < 5; i++ {
		b, err := m.Create(ctx, "", false)
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}

	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[4], list[0].ID)
	assert.Equal(t, ids[2], list[2].ID)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	b, err := m.Create(ctx, "x", false)
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, b.ID))
	assert.ErrorIs(t, m.Delete(ctx, b.ID), ErrNotFound)
	_, err = m.Get(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	src := memory.New()
	seed(t, src)
	repo := NewMemoryRepository()
	b, err := NewManager(src, repo, logger.NewNop()).Create(ctx, "snap", false)
	require.NoError(t, err)

	dst := memory.New()
	restored, err := NewManager(dst, repo, logger.NewNop()).Restore(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, restored)

	root, err := dst.GetTree(ctx)
	require.NoError(t, err)
	got := tree.Flatten(root)
	require.Len(t, got, 3)

	byURL := map[string]domain.Bookmark{}
	for _, bm := range got {
		byURL[bm.URL] = bm
	}
	assert.Equal(t, "Bookmarks bar/Work", byURL["https://docs.example.com"].FolderPath.String())
	assert.Equal(t, "Other bookmarks", byURL["https://other.com"].FolderPath.String())
	assert.Equal(t, "Untitled", byURL["https://other.com"].Title)
}

func TestRestore_UnknownContainerFallsBack(t *testing.T) {
	ctx := context.Background()
	m, s := newManager(t)
	snapshot := &domain.Node{ID: domain.RootID, Children: []*domain.Node{
		{ID: "3", Title: "Mobile bookmarks", Children: []*domain.Node{
			{ID: "9", Title: "M", URL: "https://m.com"},
		}},
	}}
	require.NoError(t, m.repo.Put(ctx, Backup{ID: "b1", Name: "n", CreatedAt: time.Now(), Tree: snapshot}, 0))

	restored, err := m.Restore(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, restored)

	root, _ := s.GetTree(ctx)
	got := tree.Flatten(root)
	require.Len(t, got, 1)
	assert.Equal(t, "Bookmarks bar", got[0].FolderPath.String())
}

func TestRestore_NotFound(t *testing.T) {
	m, _ := newManager(t)
	_, err := m.Restore(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	m, s := newManager(t)
	seed(t, s)
	b, err := m.Create(ctx, "snap", false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Export(ctx, b.ID, &buf))

	var decoded Backup
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, b.ID, decoded.ID)

	other, _ := newManager(t)
	n, err := other.Import(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = other.Import(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Zero(t, n, "duplicate id is skipped")

	list, _ := other.List(ctx)
	assert.Len(t, list, 1)
}

func TestImport_Array(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	input := `[
		{"name": "one", "createdAt": "2024-01-01T00:00:00Z", "tree": {"id": "0", "children": [{"id": "1", "children": [{"id": "5", "url": "https://x.com"}]}]}},
		{"name": "", "createdAt": "2024-01-02T00:00:00Z", "tree": {"id": "0"}},
		{"id": "fixed", "name": "two", "createdAt": "2024-01-03T00:00:00Z", "tree": {"id": "0"}}
	]`
	n, err := m.Import(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, _ := m.List(ctx)
	require.Len(t, list, 2)
	assert.Equal(t, "fixed", list[0].ID)
	assert.NotEmpty(t, list[1].ID)
	assert.Equal(t, 1, list[1].Count)
}

func TestImport_InvalidSingle(t *testing.T) {
	m, _ := newManager(t)

	_, err := m.Import(context.Background(), strings.NewReader(`{"name": "no tree", "createdAt": "2024-01-01T00:00:00Z"}`))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = m.Import(context.Background(), strings.NewReader(`{not json`))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = m.Import(context.Background(), strings.NewReader(""))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	m, _ := newManager(t)
	put := func(id string, age time.Duration, auto bool) {
		require.NoError(t, m.repo.Put(ctx, Backup{ID: id, Name: id, CreatedAt: now.Add(-age), Auto: auto, Tree: &domain.Node{ID: "0"}}, 0))
	}
	put("old-auto", 40*24*time.Hour, true)
	put("old-manual", 40*24*time.Hour, false)
	put("new-auto", time.Hour, true)

	deleted, err := m.Prune(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	list, _ := m.List(ctx)
	var ids []string
	for _, b := range list {
		ids = append(ids, b.ID)
	}
	assert.ElementsMatch(t, []string{"old-manual", "new-auto"}, ids)
}
