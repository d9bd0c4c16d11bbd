package syncer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marksync/internal/client"
	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/state"
	"github.com/MrSnakeDoc/marksync/internal/store"
	"github.com/MrSnakeDoc/marksync/internal/store/memory"
	"github.com/MrSnakeDoc/marksync/internal/tree"
)

// fakeServer mimics the sync API. The canonical list is the union of the
// stored list and every upload.
type fakeServer struct {
	*httptest.Server

	mu        sync.Mutex
	canonical []domain.Bookmark
	uploads   [][]domain.Bookmark
	status    int
	detail    string

	syncCalls   atomic.Int32
	statusCalls atomic.Int32
	authCalls   atomic.Int32

	entered chan struct{}
	release chan struct{}
}

func newFakeServer(t *testing.T) *fakeServer {
	f := &fakeServer{status: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sync", f.handleSync)
	mux.HandleFunc("GET /api/status", f.handleStatus)
	mux.HandleFunc("POST /api/login", f.handleAuth)
	mux.HandleFunc("POST /api/register", f.handleAuth)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeServer) fail(status int, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.detail = status, detail
}

func (f *fakeServer) writeError(w http.ResponseWriter) bool {
	f.mu.Lock()
	status, detail := f.status, f.detail
	f.mu.Unlock()
	if status == http.StatusOK {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
	return true
}

func (f *fakeServer) handleSync(w http.ResponseWriter, r *http.Request) {
	f.syncCalls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-r.Context().Done():
			return
		}
	}
	if f.writeError(w) {
		return
	}

	var req client.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.uploads = append(f.uploads, req.Bookmarks)
	seen := domain.URLSet(f.canonical)
	added := 0
	for _, b := range req.Bookmarks {
		if _, ok := seen[b.URL]; !ok {
			f.canonical = append(f.canonical, b)
			seen[b.URL] = struct{}{}
			added++
		}
	}
	resp := client.SyncResponse{
		Bookmarks:  append([]domain.Bookmark(nil), f.canonical...),
		LastSyncAt: "2024-05-01T10:00:00",
		Added:      added,
		Updated:    1,
		Deleted:    2,
	}
	f.mu.Unlock()

	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	f.statusCalls.Add(1)
	if f.writeError(w) {
		return
	}
	f.mu.Lock()
	count := len(f.canonical)
	f.mu.Unlock()
	_ = json.NewEncoder(w).Encode(client.StatusResponse{
		LastSyncAt:    "2024-04-01T00:00:00",
		BookmarkCount: count,
		SyncCount:     7,
	})
}

func (f *fakeServer) handleAuth(w http.ResponseWriter, r *http.Request) {
	f.authCalls.Add(1)
	if f.writeError(w) {
		return
	}
	var creds client.Credentials
	_ = json.NewDecoder(r.Body).Decode(&creds)
	_ = json.NewEncoder(w).Encode(client.AuthResponse{Token: "tok-" + creds.Email, Email: creds.Email})
}

type fixture struct {
	server *fakeServer
	store  *memory.Store
	state  *state.Manager
	engine *Engine
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	srv := newFakeServer(t)
	s := memory.New()
	m := state.NewManager(state.NewMemoryBackend(), srv.URL)
	return &fixture{
		server: srv,
		store:  s,
		state:  m,
		engine: New(s, m, logger.NewNop(), opts),
	}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	require.NoError(t, f.state.Save(context.Background(), domain.SyncConfig{
		ServerURL: f.server.URL,
		Token:     "tok",
		Email:     "me@example.com",
		AutoSync:  true,
	}))
}

func (f *fixture) addBookmark(t *testing.T, path domain.FolderPath, title, url string) {
	t.Helper()
	ctx := context.Background()
	parent := domain.BookmarksBarID
	for _, seg := range path {
		n, err := f.store.Create(ctx, store.CreateParams{ParentID: parent, Title: seg})
		require.NoError(t, err)
		parent = n.ID
	}
	_, err := f.store.Create(ctx, store.CreateParams{ParentID: parent, Title: title, URL: url})
	require.NoError(t, err)
}

func (f *fixture) local(t *testing.T) []domain.Bookmark {
	t.Helper()
	root, err := f.store.GetTree(context.Background())
	require.NoError(t, err)
	return tree.Flatten(root)
}

func findURL(bookmarks []domain.Bookmark, url string) (domain.Bookmark, bool) {
	for _, b := range bookmarks {
		if b.URL == url {
			return b, true
		}
	}
	return domain.Bookmark{}, false
}

func TestPerformSync_NotLoggedIn(t *testing.T) {
	f := newFixture(t, Options{})
	f.addBookmark(t, nil, "A", "https://a.com")

	_, err := f.engine.PerformSync(context.Background())

	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, f.server.syncCalls.Load(), "no request without a token")
	assert.Len(t, f.local(t), 1)
}

func TestPerformSync_MergesCloudOnlyBookmarks(t *testing.T) {
	f := newFixture(t, Options{})
	f.login(t)
	f.addBookmark(t, domain.FolderPath{"Work"}, "A", "https://a.com")
	f.server.canonical = []domain.Bookmark{
		{URL: "https://b.com", Title: "B", FolderPath: domain.FolderPath{"Bookmarks bar", "Work", "Docs"}},
	}

	resp, err := f.engine.PerformSync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Added)
	assert.Equal(t, 1, resp.Updated)
	assert.Equal(t, 2, resp.Deleted)
	require.Len(t, f.server.uploads, 1)
	assert.Equal(t, "https://a.com", f.server.uploads[0][0].URL)
	assert.Equal(t, domain.FolderPath{"Bookmarks bar", "Work"}, f.server.uploads[0][0].FolderPath)

	local := f.local(t)
	assert.Len(t, local, 2)
	b, ok := findURL(local, "https://b.com")
	require.True(t, ok)
	assert.Equal(t, domain.FolderPath{"Bookmarks bar", "Work", "Docs"}, b.FolderPath)

	folders := tree.Folders(mustTree(t, f.store))
	work := 0
	for _, fl := range folders {
		if fl.Path.String() == "Bookmarks bar/Work" {
			work++
		}
	}
	assert.Equal(t, 1, work, "existing folder is reused")

	cfg, err := f.state.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T10:00:00", cfg.LastSyncAt)
	assert.Equal(t, Idle, f.engine.Phase())

	outcome, ok := f.engine.LastOutcome()
	require.True(t, ok)
	assert.Empty(t, outcome.Err)
	assert.Equal(t, 1, outcome.Created)
}

func TestPerformSync_SecondSyncIsNoop(t *testing.T) {
	f := newFixture(t, Options{})
	f.login(t)
	f.addBookmark(t, nil, "A", "https://a.com")
	f.server.canonical = []domain.Bookmark{{URL: "https://b.com", Title: "B"}}

	_, err := f.engine.PerformSync(context.Background())
	require.NoError(t, err)
	_, err = f.engine.PerformSync(context.Background())
	require.NoError(t, err)

	local := f.local(t)
	assert.Len(t, local, 2)
	outcome, _ := f.engine.LastOutcome()
	assert.Zero(t, outcome.Created)
}

func TestPerformSync_SessionExpired(t *testing.T) {
	f := newFixture(t, Options{})
	f.login(t)
	f.server.fail(http.StatusUnauthorized, "Invalid token")

	_, err := f.engine.PerformSync(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)

	cfg, err := f.state.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.state.Defaults(), cfg)

	st, err := f.engine.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.LoggedIn)
	assert.Zero(t, f.server.statusCalls.Load())
}

func TestPerformSync_ServerError(t *testing.T) {
	f := newFixture(t, Options{})
	f.login(t)
	f.server.fail(http.StatusInternalServerError, "database unavailable")

	_, err := f.engine.PerformSync(context.Background())

	var failed *SyncFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "database unavailable", failed.Reason)

	cfg, _ := f.state.Load(context.Background())
	assert.True(t, cfg.LoggedIn(), "only a 401 clears the session")
	assert.Empty(t, cfg.LastSyncAt)
}

func TestPerformSync_NetworkError(t *testing.T) {
	f := newFixture(t, Options{})
	f.login(t)
	f.server.Close()

	_, err := f.engine.PerformSync(context.Background())

	var failed *SyncFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "network error", failed.Reason)
}

func TestPerformSync_CancelLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, Options{})
	f.login(t)
	f.server.entered = make(chan struct{}, 1)
	f.server.release = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.engine.PerformSync(ctx)
		done <- err
	}()

	<-f.server.entered
	cancel()

	select {
	case err := <-done:
		var failed *SyncFailedError
		assert.ErrorAs(t, err, &failed)
	case <-time.After(5 * time.Second):
		t.Fatal("sync did not return after cancel")
	}

	cfg, _ := f.state.Load(context.Background())
	assert.Empty(t, cfg.LastSyncAt)
	assert.True(t, cfg.LoggedIn())
	assert.Eventually(t, func() bool { return f.engine.Phase() == Idle }, time.Second, 10*time.Millisecond)
}

func TestPerformSync_ConcurrentCallsShareOneSync(t *testing.T) {
	f := newFixture(t, Options{})
	f.login(t)
	f.server.canonical = []domain.Bookmark{{URL: "https://b.com", Title: "B"}}
	f.server.entered = make(chan struct{}, 4)
	f.server.release = make(chan struct{})

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	run := func() {
		defer wg.Done()
		_, err := f.engine.PerformSync(context.Background())
		errs <- err
	}

	wg.Add(1)
	go run()
	<-f.server.entered
	assert.Eventually(t, func() bool { return f.engine.Phase() == AwaitingResponse }, time.Second, 5*time.Millisecond)

	wg.Add(1)
	go run()
	time.Sleep(50 * time.Millisecond)
	close(f.server.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.server.syncCalls.Load())
	local := f.local(t)
	assert.Len(t, local, 1, "merge ran once")
}

func TestPerformSync_PreserveLocalDeletes(t *testing.T) {
	for _, preserve := range []bool{true, false} {
		t.Run(map[bool]string{true: "preserve", false: "resurrect"}[preserve], func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, Options{PreserveLocalDeletes: preserve})
			f.login(t)
			f.addBookmark(t, nil, "A", "https://a.com")
			f.addBookmark(t, nil, "B", "https://b.com")

			_, err := f.engine.PerformSync(ctx)
			require.NoError(t, err)

			root := mustTree(t, f.store)
			var bID string
			for _, c := range root.Children[0].Children {
				if c.URL == "https://b.com" {
					bID = c.ID
				}
			}
			require.NotEmpty(t, bID)
			require.NoError(t, f.store.Remove(ctx, bID))

			for i := 0; i < 3; i++ {
				_, err = f.engine.PerformSync(ctx)
				require.NoError(t, err)

				_, found := findURL(f.local(t), "https://b.com")
				assert.Equal(t, !preserve, found, "sync %d after delete", i+1)
			}
			if preserve {
				baseline, err := f.state.Baseline(ctx)
				require.NoError(t, err)
				assert.Contains(t, baseline, "https://b.com")
			}
		})
	}
}

func TestAutoSync_Cooldown(t *testing.T) {
	now := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, Options{Now: func() time.Time { return now }})
	ctx := context.Background()

	ran, err := f.engine.AutoSync(ctx)
	require.NoError(t, err)
	assert.False(t, ran, "logged out")

	f.login(t)
	_, err = f.state.Update(ctx, func(cfg *domain.SyncConfig) error {
		cfg.LastSyncAt = now.Add(-time.Hour).Format("2006-01-02T15:04:05")
		return nil
	})
	require.NoError(t, err)

	ran, err = f.engine.AutoSync(ctx)
	require.NoError(t, err)
	assert.False(t, ran, "within cooldown")
	assert.Zero(t, f.server.syncCalls.Load())

	_, err = f.state.Update(ctx, func(cfg *domain.SyncConfig) error {
		cfg.LastSyncAt = now.Add(-21 * time.Hour).Format("2006-01-02T15:04:05")
		return nil
	})
	require.NoError(t, err)

	ran, err = f.engine.AutoSync(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, int32(1), f.server.syncCalls.Load())

	_, err = f.engine.SetAutoSync(ctx, false)
	require.NoError(t, err)
	_, err = f.state.Update(ctx, func(cfg *domain.SyncConfig) error {
		cfg.LastSyncAt = ""
		return nil
	})
	require.NoError(t, err)
	ran, err = f.engine.AutoSync(ctx)
	require.NoError(t, err)
	assert.False(t, ran, "disabled")
}

func TestLogin_StoresNormalizedSession(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.state.SetBaseline(ctx, []string{"https://old.com"}))

	cfg, err := f.engine.Login(ctx, " "+f.server.URL+"/api/ ", "me@example.com", "pw")
	require.NoError(t, err)

	assert.Equal(t, f.server.URL, cfg.ServerURL)
	assert.Equal(t, "tok-me@example.com", cfg.Token)
	assert.Equal(t, "me@example.com", cfg.Email)
	assert.True(t, cfg.AutoSync)
	assert.Empty(t, cfg.LastSyncAt)

	stored, err := f.state.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, stored)

	baseline, err := f.state.Baseline(ctx)
	require.NoError(t, err)
	assert.Empty(t, baseline)
}

func TestLogin_Rejected(t *testing.T) {
	f := newFixture(t, Options{})
	f.server.fail(http.StatusUnauthorized, "Invalid credentials")

	_, err := f.engine.Login(context.Background(), "", "me@example.com", "wrong")

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid credentials", apiErr.Error())
	cfg, _ := f.state.Load(context.Background())
	assert.False(t, cfg.LoggedIn())
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.engine.Register(ctx, "", "me@example.com", "12345")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.engine.Register(ctx, "", "  ", "123456")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, f.server.authCalls.Load())

	cfg, err := f.engine.Register(ctx, "", "new@example.com", "123456")
	require.NoError(t, err)
	assert.True(t, cfg.LoggedIn())
}

func TestLogout(t *testing.T) {
	f := newFixture(t, Options{})
	f.login(t)

	require.NoError(t, f.engine.Logout(context.Background()))

	cfg, _ := f.state.Load(context.Background())
	assert.Equal(t, f.state.Defaults(), cfg)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("logged in", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.login(t)
		f.addBookmark(t, nil, "A", "https://a.com")
		f.server.canonical = []domain.Bookmark{{URL: "https://a.com"}, {URL: "https://b.com"}}

		st, err := f.engine.Status(ctx)
		require.NoError(t, err)
		assert.True(t, st.LoggedIn)
		assert.Equal(t, "me@example.com", st.Email)
		assert.Equal(t, 2, st.BookmarkCount)
		assert.Equal(t, 7, st.SyncCount)
		assert.Equal(t, 1, st.LocalCount)
		assert.Equal(t, "2024-04-01T00:00:00", st.LastSyncAt)
		assert.Equal(t, "idle", st.State)
	})

	t.Run("server error", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.login(t)
		f.server.fail(http.StatusServiceUnavailable, "")

		st, err := f.engine.Status(ctx)
		require.NoError(t, err)
		assert.True(t, st.LoggedIn)
		assert.Equal(t, "HTTP 503", st.Error)
	})

	t.Run("token rejected", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.login(t)
		f.server.fail(http.StatusUnauthorized, "expired")

		st, err := f.engine.Status(ctx)
		require.NoError(t, err)
		assert.False(t, st.LoggedIn)
		cfg, _ := f.state.Load(ctx)
		assert.False(t, cfg.LoggedIn())
	})
}

func mustTree(t *testing.T, s store.Store) *domain.Node {
	t.Helper()
	root, err := s.GetTree(context.Background())
	require.NoError(t, err)
	return root
}
