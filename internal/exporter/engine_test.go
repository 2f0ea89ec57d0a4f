package exporter

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Jackstonebreaker/mangapark-image-fix/internal/follows"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves a scripted follow list: per-page replies consumed in
// order, the last one repeating once exhausted.
type fakeSource struct {
	mu       sync.Mutex
	owner    string
	ownerErr error
	replies  map[int][]pageReply
	calls    map[int]int
	gate     chan struct{}
}

type pageReply struct {
	page *follows.Page
	err  error
}

func newFakeSource(owner string) *fakeSource {
	return &fakeSource{
		owner:   owner,
		replies: map[int][]pageReply{},
		calls:   map[int]int{},
	}
}

func (f *fakeSource) ResolveOwner(ctx context.Context) (string, error) {
	return f.owner, f.ownerErr
}

func (f *fakeSource) FetchPage(ctx context.Context, owner string, page int) (*follows.Page, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[page]++

	rs := f.replies[page]
	if len(rs) == 0 {
		return nil, &StatusError{Status: 404}
	}

	r := rs[0]
	if len(rs) > 1 {
		f.replies[page] = rs[1:]
	}

	return r.page, r.err
}

func (f *fakeSource) set(page int, rs ...pageReply) {
	f.mu.Lock()
	f.replies[page] = rs
	f.mu.Unlock()
}

func (f *fakeSource) callCount(page int) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[page]
}

func okPage(page, pages int, items ...follows.FollowItem) pageReply {
	return pageReply{page: &follows.Page{Page: page, Pages: pages, Total: pages * 2, Items: items}}
}

func item(id, title string) follows.FollowItem {
	return follows.FollowItem{
		Title:      title,
		SourceURL:  "https://mangapark.net/title/" + id,
		StableID:   id,
		CapturedAt: "2026-08-31T00:00:00Z",
	}
}

func testEngine(t *testing.T, site PageSource, opts Options) (*Engine, *store.Store) {
	t.Helper()

	st, err := store.Open(t.TempDir(), "")
	require.NoError(t, err)

	if opts.PageDelay == 0 {
		opts.PageDelay = time.Millisecond
	}
	if opts.Origin == "" {
		opts.Origin = "https://mangapark.net"
	}

	return New(st, site, nil, opts), st
}

func TestEngine_FullRun(t *testing.T) {
	src := newFakeSource("42")
	src.set(1, okPage(1, 3, item("a", "Alpha"), item("b", "Beta")))
	src.set(2, okPage(2, 3, item("c", "Gamma"), item("d", "Delta")))
	// page 3 repeats two identities already seen on page 1
	src.set(3, okPage(3, 3, item("a", "Alpha"), item("b", "Beta")))

	eng, st := testEngine(t, src, Options{SnapshotEvery: 2})

	require.NoError(t, eng.Run(context.Background(), NewToken()))

	state := eng.State()
	assert.Equal(t, follows.StatusDone, state.Status)
	assert.Equal(t, 3, state.Page)
	assert.Equal(t, 4, state.Collected, "duplicates collapse by identity")
	assert.Empty(t, state.Error)
	assert.Nil(t, state.LastError)

	var payload follows.ExportPayload
	ok, err := st.Get(store.KeyExportPayload, &payload)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, payload.Meta.TotalItems)
	assert.Equal(t, "42", payload.Meta.OwnerID)
	require.Len(t, payload.Items, 4)
	assert.Equal(t, "a", payload.Items[0].StableID, "insertion order preserved")
	assert.Equal(t, "d", payload.Items[3].StableID)

	var snap follows.PartialSnapshot
	ok, err = st.Get(store.KeyExportPartial, &snap)
	require.NoError(t, err)
	assert.False(t, ok, "partial snapshot removed after completion")

	var persisted follows.ExportState
	ok, err = st.Get(store.KeyExportState, &persisted)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, follows.StatusDone, persisted.Status)
}

func TestEngine_EmptyFollowList(t *testing.T) {
	src := newFakeSource("42")
	src.set(1, pageReply{page: &follows.Page{Page: 1, Pages: 0, Total: 0}})

	eng, st := testEngine(t, src, Options{})

	require.NoError(t, eng.Run(context.Background(), NewToken()))

	state := eng.State()
	assert.Equal(t, follows.StatusDone, state.Status)
	assert.Equal(t, 0, state.Collected)
	assert.Equal(t, 1, src.callCount(1), "zero reported pages ends the run after one fetch")

	var payload follows.ExportPayload
	ok, err := st.Get(store.KeyExportPayload, &payload)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, payload.Meta.TotalItems)
	assert.Empty(t, payload.Items)
}

func TestEngine_PauseOnRepeatedServerError(t *testing.T) {
	src := newFakeSource("42")
	src.set(1, okPage(1, 3, item("a", "Alpha"), item("b", "Beta")))
	src.set(2, pageReply{err: &StatusError{Status: 503}})

	eng, st := testEngine(t, src, Options{FastRetries: 1, SnapshotEvery: 10})

	require.NoError(t, eng.Run(context.Background(), NewToken()))

	state := eng.State()
	assert.Equal(t, follows.StatusPaused, state.Status)
	assert.Equal(t, "HTTP_503", state.Error)
	assert.Equal(t, 1, state.Page, "progress stops at the last good page")
	require.NotNil(t, state.LastError)
	assert.True(t, state.LastError.Retryable)
	assert.GreaterOrEqual(t, state.LastError.RetryAfter, int64(5000))
	assert.Less(t, state.LastError.RetryAfter, int64(15000))
	assert.NotEmpty(t, state.LastError.RetryAt)

	assert.Equal(t, 2, src.callCount(2), "one fast retry before pausing")

	var snap follows.PartialSnapshot
	ok, err := st.Get(store.KeyExportPartial, &snap)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, follows.StatusPaused, snap.Meta.Status)
	assert.Equal(t, 1, snap.Meta.Page)
	assert.Len(t, snap.Items, 2)
}

func TestEngine_ResumeAfterPauseCompletesWithoutDuplicates(t *testing.T) {
	src := newFakeSource("42")
	src.set(1, okPage(1, 3, item("a", "Alpha"), item("b", "Beta")))
	src.set(2, pageReply{err: &StatusError{Status: 503}})

	eng, st := testEngine(t, src, Options{FastRetries: 1, SnapshotEvery: 10})
	require.NoError(t, eng.Run(context.Background(), NewToken()))
	require.Equal(t, follows.StatusPaused, eng.State().Status)

	// server recovered; page 2 overlaps page 1 to exercise resume dedupe
	src.set(2, okPage(2, 3, item("b", "Beta"), item("c", "Gamma")))
	src.set(3, okPage(3, 3, item("d", "Delta"), item("e", "Epsilon")))

	require.NoError(t, eng.Resume(context.Background(), NewToken()))

	state := eng.State()
	assert.Equal(t, follows.StatusDone, state.Status)
	assert.Equal(t, 5, state.Collected)
	assert.Equal(t, 1, src.callCount(1), "already-snapshotted pages are not refetched")

	var payload follows.ExportPayload
	ok, err := st.Get(store.KeyExportPayload, &payload)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, payload.Items, 5)

	seen := map[string]bool{}
	for _, it := range payload.Items {
		assert.False(t, seen[it.Identity()], "duplicate %s", it.Identity())
		seen[it.Identity()] = true
	}
}

func TestEngine_FastRetryRecovers(t *testing.T) {
	src := newFakeSource("42")
	src.set(1,
		pageReply{err: &StatusError{Status: 429}},
		okPage(1, 1, item("a", "Alpha")),
	)

	eng, _ := testEngine(t, src, Options{FastRetries: 2})

	require.NoError(t, eng.Run(context.Background(), NewToken()))
	assert.Equal(t, follows.StatusDone, eng.State().Status)
	assert.Equal(t, 2, src.callCount(1))
}

func TestEngine_FatalStatusStopsRun(t *testing.T) {
	src := newFakeSource("42")
	src.set(1, okPage(1, 2, item("a", "Alpha")))
	src.set(2, pageReply{err: &StatusError{Status: 404}})

	eng, st := testEngine(t, src, Options{SnapshotEvery: 10})

	require.NoError(t, eng.Run(context.Background(), NewToken()))

	state := eng.State()
	assert.Equal(t, follows.StatusError, state.Status)
	assert.Equal(t, "HTTP_404", state.Error)
	require.NotNil(t, state.LastError)
	assert.False(t, state.LastError.Retryable)
	assert.Equal(t, 1, src.callCount(2), "fatal statuses never retry")

	var snap follows.PartialSnapshot
	ok, err := st.Get(store.KeyExportPartial, &snap)
	require.NoError(t, err)
	require.True(t, ok, "snapshot survives a fatal stop")
	assert.Len(t, snap.Items, 1)
}

func TestEngine_BadShapePauses(t *testing.T) {
	src := newFakeSource("42")
	src.set(1, pageReply{err: fmt.Errorf("follows page 1: %w", ErrBadShape)})

	eng, _ := testEngine(t, src, Options{})

	require.NoError(t, eng.Run(context.Background(), NewToken()))

	state := eng.State()
	assert.Equal(t, follows.StatusPaused, state.Status)
	assert.Equal(t, follows.CodeBadResponse, state.Error)
}

func TestEngine_NotLoggedIn(t *testing.T) {
	src := newFakeSource("")
	src.ownerErr = fmt.Errorf("no logged-in user")

	eng, _ := testEngine(t, src, Options{})

	require.NoError(t, eng.Run(context.Background(), NewToken()))

	state := eng.State()
	assert.Equal(t, follows.StatusError, state.Status)
	assert.Equal(t, follows.CodeNotLoggedIn, state.Error)
}

func TestEngine_CancelMidRun(t *testing.T) {
	src := newFakeSource("42")
	src.set(1, okPage(1, 3, item("a", "Alpha"), item("b", "Beta")))
	src.set(2, okPage(2, 3, item("c", "Gamma")))

	tok := NewToken()
	eng, st := testEngine(t, src, Options{
		SnapshotEvery: 10,
		OnProgress: func(s follows.ExportState) {
			if s.Status == follows.StatusRunning && s.Page == 1 {
				tok.Cancel()
			}
		},
	})

	require.NoError(t, eng.Run(context.Background(), tok))

	state := eng.State()
	assert.Equal(t, follows.StatusIdle, state.Status, "cancel returns to idle")
	assert.Equal(t, follows.CodeCancelled, state.Error)
	assert.Equal(t, 2, state.Collected)

	var snap follows.PartialSnapshot
	ok, err := st.Get(store.KeyExportPartial, &snap)
	require.NoError(t, err)
	require.True(t, ok, "cancel keeps the snapshot")
	assert.Len(t, snap.Items, 2)
}

func TestEngine_PayloadWriteFailurePauses(t *testing.T) {
	src := newFakeSource("42")
	src.set(1, okPage(1, 1, item("a", "Alpha")))

	dir := t.TempDir()
	st, err := store.Open(dir, "")
	require.NoError(t, err)

	eng := New(st, src, nil, Options{Origin: "https://mangapark.net", PageDelay: time.Millisecond})

	// make every store write fail: replace the store dir with a plain file
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("x"), 0644))

	require.NoError(t, eng.Run(context.Background(), NewToken()))

	state := eng.State()
	assert.Equal(t, follows.StatusPaused, state.Status)
	assert.Equal(t, follows.CodeStoreWrite, state.Error, "a disk problem is not a network problem")
	require.NotNil(t, state.LastError)
	assert.True(t, state.LastError.Retryable)
	assert.Equal(t, 1, state.Collected, "fetched items stay in memory state")
}

func TestEngine_ResumeWithoutSnapshot(t *testing.T) {
	src := newFakeSource("42")
	eng, st := testEngine(t, src, Options{})

	err := eng.Resume(context.Background(), NewToken())
	require.ErrorIs(t, err, ErrNoSnapshot)

	var persisted follows.ExportState
	ok, gerr := st.Get(store.KeyExportState, &persisted)
	require.NoError(t, gerr)
	require.True(t, ok)
	assert.Equal(t, follows.StatusError, persisted.Status)
	assert.Equal(t, follows.CodeNoSnapshot, persisted.Error)
}

func TestEngine_SecondRunRejectedWhileRunning(t *testing.T) {
	src := newFakeSource("42")
	src.gate = make(chan struct{})
	src.set(1, okPage(1, 1, item("a", "Alpha")))

	eng, _ := testEngine(t, src, Options{})

	tok := NewToken()
	done := make(chan error, 1)
	go func() { done <- eng.Run(context.Background(), tok) }()

	// wait for the run to reach the blocked fetch
	require.Eventually(t, func() bool {
		return eng.State().Status == follows.StatusRunning
	}, 2*time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, eng.Run(context.Background(), NewToken()), ErrRunning)

	close(src.gate)
	require.NoError(t, <-done)
	assert.Equal(t, follows.StatusDone, eng.State().Status)
}

func TestLoadState_DefaultsToIdle(t *testing.T) {
	st, err := store.Open(t.TempDir(), "")
	require.NoError(t, err)

	assert.Equal(t, follows.StatusIdle, LoadState(st).Status)
}
