package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceko/resource-status-service/internal/core/domain"
)

var fixedNow = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func room(id int64, name string, status domain.RoomStatus) domain.Resource {
	return domain.Resource{
		ID:          id,
		Name:        name,
		Type:        "Classroom",
		Details:     domain.RoomDetails{Wing: "South", Floor: 5, Room: "06", Status: status},
		LastUpdated: fixedNow,
	}
}

type fakeSyncer struct {
	mu      sync.Mutex
	result  domain.ReconcileResult
	err     error
	callsAt []int64
}

func (f *fakeSyncer) Sync(ctx context.Context, clientVersion int64) (domain.ReconcileResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsAt = append(f.callsAt, clientVersion)
	return f.result, f.err
}

func (f *fakeSyncer) set(res domain.ReconcileResult, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.result, f.err = res, err
}

func (f *fakeSyncer) calls() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.callsAt...)
}

func newCache(remote Syncer) (*Cache, *MemoryBlobStore) {
	store := NewMemoryBlobStore()
	c := NewCache(store, remote, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.now = func() time.Time { return fixedNow }
	return c, store
}

func TestCache_SyncSwapsWholeSnapshot(t *testing.T) {
	remote := &fakeSyncer{}
	remote.set(domain.ReconcileResult{
		Action:  domain.ReconcileServerWins,
		Data:    []domain.Resource{room(1, "S506", domain.RoomAvailable), room(2, "N312", domain.RoomOccupied)},
		Version: 4,
	}, nil)
	c, store := newCache(remote)

	var seen []int64
	unsubscribe := c.Subscribe(func(s domain.AppState) { seen = append(seen, s.Version) })
	defer unsubscribe()

	action, err := c.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ReconcileServerWins, action)

	state, ok := c.Snapshot()
	require.True(t, ok)
	assert.Equal(t, int64(4), state.Version)
	assert.Len(t, state.Resources, 2)
	assert.False(t, c.Stale())
	assert.Equal(t, []int64{4}, seen)

	raw, err := store.Get(context.Background(), StateKey)
	require.NoError(t, err)
	var persisted domain.AppState
	require.NoError(t, json.Unmarshal(raw, &persisted))
	assert.Equal(t, int64(4), persisted.Version)
	assert.Equal(t, "N312", persisted.Resources[1].Name)
}

func TestCache_FailedSyncKeepsSnapshot(t *testing.T) {
	remote := &fakeSyncer{}
	remote.set(domain.ReconcileResult{
		Action:  domain.ReconcileServerWins,
		Data:    []domain.Resource{room(1, "S506", domain.RoomAvailable)},
		Version: 2,
	}, nil)
	c, _ := newCache(remote)
	ctx := context.Background()
	_, err := c.Sync(ctx)
	require.NoError(t, err)

	notified := 0
	c.Subscribe(func(domain.AppState) { notified++ })

	remote.set(domain.ReconcileResult{}, errors.New("connection refused"))
	_, err = c.Sync(ctx)
	require.Error(t, err)
	_, err = c.Sync(ctx)
	require.Error(t, err)

	state, ok := c.Snapshot()
	require.True(t, ok)
	assert.Equal(t, int64(2), state.Version)
	assert.Equal(t, "S506", state.Resources[0].Name)
	assert.True(t, c.Stale())
	assert.Equal(t, 1, notified, "only the transition to stale notifies")

	remote.set(domain.ReconcileResult{Action: domain.ReconcileNoChanges, Data: state.Resources, Version: 2}, nil)
	action, err := c.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ReconcileNoChanges, action)
	assert.False(t, c.Stale())
	assert.Equal(t, 2, notified)
	assert.Equal(t, []int64{0, 2, 2, 2}, remote.calls())
}

func TestCache_ConflictTakesServerCopy(t *testing.T) {
	c, store := newCache(&fakeSyncer{
		result: domain.ReconcileResult{
			Action:  domain.ReconcileConflict,
			Data:    []domain.Resource{room(1, "S506", domain.RoomOccupied)},
			Version: 3,
		},
	})
	ctx := context.Background()
	ahead, _ := json.Marshal(domain.AppState{Resources: []domain.Resource{}, Version: 9})
	require.NoError(t, store.Put(ctx, StateKey, ahead))
	require.NoError(t, c.Load(ctx))
	assert.Equal(t, int64(9), c.Version())

	action, err := c.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ReconcileConflict, action)
	assert.Equal(t, int64(3), c.Version())
}

func TestCache_LoadIgnoresCorruptBlob(t *testing.T) {
	c, store := newCache(&fakeSyncer{})
	ctx := context.Background()

	require.NoError(t, c.Load(ctx))
	_, ok := c.Snapshot()
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, StateKey, []byte("{not json")))
	require.NoError(t, c.Load(ctx))
	_, ok = c.Snapshot()
	assert.False(t, ok)
	assert.Equal(t, int64(0), c.Version())
}

func TestCache_SessionExpiresAfterADay(t *testing.T) {
	c, store := newCache(&fakeSyncer{})
	ctx := context.Background()

	_, ok := c.Session(ctx)
	assert.False(t, ok)

	require.NoError(t, c.SaveSession(ctx, domain.AuthResult{AccessToken: "a", SessionID: "s-1"}))
	s, ok := c.Session(ctx)
	require.True(t, ok)
	assert.Equal(t, "s-1", s.SessionID)
	assert.True(t, s.LoginTime.Equal(fixedNow))

	c.now = func() time.Time { return fixedNow.Add(25 * time.Hour) }
	_, ok = c.Session(ctx)
	assert.False(t, ok)
	_, err := store.Get(ctx, SessionKey)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCache_Reset(t *testing.T) {
	c, store := newCache(&fakeSyncer{result: domain.ReconcileResult{
		Action:  domain.ReconcileServerWins,
		Data:    []domain.Resource{room(1, "S506", domain.RoomAvailable)},
		Version: 1,
	}})
	ctx := context.Background()
	_, err := c.Sync(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SaveSession(ctx, domain.AuthResult{SessionID: "s-1"}))

	var last *domain.AppState
	c.Subscribe(func(s domain.AppState) { last = &s })

	require.NoError(t, c.Reset(ctx))
	_, ok := c.Snapshot()
	assert.False(t, ok)
	_, ok = c.Session(ctx)
	assert.False(t, ok)
	_, err = store.Get(ctx, StateKey)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NotNil(t, last)
	assert.Equal(t, int64(0), last.Version)
}

func TestCache_Unsubscribe(t *testing.T) {
	c, _ := newCache(&fakeSyncer{result: domain.ReconcileResult{
		Action: domain.ReconcileServerWins, Data: []domain.Resource{}, Version: 1,
	}})
	calls := 0
	unsubscribe := c.Subscribe(func(domain.AppState) { calls++ })
	unsubscribe()
	unsubscribe()

	_, err := c.Sync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestCache_PollStopsWithContext(t *testing.T) {
	remote := &fakeSyncer{result: domain.ReconcileResult{
		Action: domain.ReconcileNoChanges, Data: []domain.Resource{}, Version: 0,
	}}
	c, _ := newCache(remote)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Poll(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(remote.calls()) >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poll did not stop")
	}
}

func TestFileBlobStore(t *testing.T) {
	store, err := NewFileBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Get(ctx, StateKey)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.Put(ctx, StateKey, []byte(`{"version":1}`)))
	require.NoError(t, store.Put(ctx, StateKey, []byte(`{"version":2}`)))
	got, err := store.Get(ctx, StateKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":2}`, string(got))

	require.NoError(t, store.Delete(ctx, StateKey))
	require.NoError(t, store.Delete(ctx, StateKey))
	_, err = store.Get(ctx, StateKey)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHTTPClient(t *testing.T) {
	gotAuth := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /resources/sync", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ClientVersion int64 `json:"clientVersion"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		action := domain.ReconcileServerWins
		if req.ClientVersion == 7 {
			action = domain.ReconcileNoChanges
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.ReconcileResult{
			Action:  action,
			Data:    []domain.Resource{room(1, "S506", domain.RoomAvailable)},
			Version: 7,
		})
	})
	mux.HandleFunc("PATCH /resources/{name}/status", func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"forbidden","reason":"Students can only update room status"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", srv.Client())
	ctx := context.Background()

	res, err := c.Sync(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.ReconcileServerWins, res.Action)
	assert.Equal(t, int64(7), res.Version)
	require.Len(t, res.Data, 1)
	assert.Equal(t, domain.StatusAvailable, res.Data[0].Status())

	res, err = c.Sync(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.ReconcileNoChanges, res.Action)

	_, err = c.UpdateStatus(ctx, "tok", "Stall 1 - Mama's Kitchen", domain.StatusClosed)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "Students can only update room status", apiErr.Reason)
	assert.Equal(t, "Bearer tok", <-gotAuth)
}

func TestHTTPClient_ServerDownFeedsStaleCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := newCache(NewHTTPClient(srv.URL, srv.Client()))
	_, err := c.Sync(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.True(t, c.Stale())
	_, ok := c.Snapshot()
	assert.False(t, ok)
}
