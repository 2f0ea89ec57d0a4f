// Package exporter drives the resumable follow-list export: a paginated
// fetch loop with failure classification, partial snapshots and cooperative
// cancellation. All run-level failures are captured into the persisted
// state; Run returns an error only for misuse (already running) or an
// unusable resume snapshot.
package exporter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Jackstonebreaker/mangapark-image-fix/internal/follows"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/store"
)

var (
	ErrRunning    = errors.New("export already running")
	ErrNoSnapshot = errors.New("no valid partial snapshot to resume from")
)

// PageSource is the site-facing side of the engine: identity discovery and
// one-page fetches.
type PageSource interface {
	ResolveOwner(ctx context.Context) (string, error)
	FetchPage(ctx context.Context, owner string, page int) (*follows.Page, error)
}

type Options struct {
	Origin         string
	PageDelay      time.Duration
	RequestTimeout time.Duration
	SnapshotEvery  int
	FastRetries    int
	OnProgress     func(follows.ExportState)
}

type Engine struct {
	store *store.Store
	site  PageSource
	opts  Options
	log   interface{ Debugf(string, ...any) }

	mu      sync.Mutex
	running bool
	state   follows.ExportState
}

func New(st *store.Store, site PageSource, log interface{ Debugf(string, ...any) }, opts Options) *Engine {
	if opts.PageDelay == 0 {
		opts.PageDelay = time.Second
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 20 * time.Second
	}
	if opts.SnapshotEvery == 0 {
		opts.SnapshotEvery = 5
	}
	if opts.FastRetries == 0 {
		opts.FastRetries = 2
	}
	if log == nil {
		log = noopLog{}
	}

	return &Engine{store: st, site: site, opts: opts, log: log}
}

type noopLog struct{}

func (noopLog) Debugf(string, ...any) {}

// Run starts or resumes the export. The resume point comes from the most
// recent valid partial snapshot; absent one, the run starts at page 1.
func (e *Engine) Run(ctx context.Context, tok *Token) error {
	if !e.begin() {
		return ErrRunning
	}
	defer e.end()

	return e.run(ctx, tok, e.loadSnapshot())
}

// Resume is Run with a hard requirement on a valid snapshot.
func (e *Engine) Resume(ctx context.Context, tok *Token) error {
	if !e.begin() {
		return ErrRunning
	}
	defer e.end()

	snap := e.loadSnapshot()
	if !snap.Valid() {
		now := time.Now()
		e.commit(follows.ExportState{
			Status:    follows.StatusError,
			Error:     follows.CodeNoSnapshot,
			LastError: &follows.LastError{Code: follows.CodeNoSnapshot, Timestamp: follows.Timestamp(now)},
			UpdatedAt: follows.Timestamp(now),
		})

		return ErrNoSnapshot
	}

	return e.run(ctx, tok, snap)
}

// State returns the engine's view of the last committed state.
func (e *Engine) State() follows.ExportState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// LoadState reads the persisted export state, for surfaces that only
// observe. The store is the source of truth; this never consults a live
// engine.
func LoadState(st *store.Store) follows.ExportState {
	var s follows.ExportState
	if ok, err := st.Get(store.KeyExportState, &s); err != nil || !ok {
		return follows.ExportState{Status: follows.StatusIdle}
	}

	return s
}

func (e *Engine) begin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return false
	}
	e.running = true

	return true
}

func (e *Engine) end() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

func (e *Engine) run(ctx context.Context, tok *Token, snap *follows.PartialSnapshot) error {
	now := time.Now()
	dedupe := follows.NewDedupeMap()

	st := follows.ExportState{
		Status:         follows.StatusRunning,
		StartedAt:      follows.Timestamp(now),
		UpdatedAt:      follows.Timestamp(now),
		LastProgressAt: follows.Timestamp(now),
	}

	owner := ""
	if snap.Valid() {
		dedupe.Hydrate(snap.Items)
		st.Page = snap.Meta.Page
		st.Pages = snap.Meta.Pages
		st.Total = snap.Meta.Total
		st.Collected = dedupe.Len()
		owner = snap.Meta.OwnerID
		e.log.Debugf("resuming export at page %d with %d items\n", st.Page+1, st.Collected)
	}

	if owner == "" {
		o, err := e.site.ResolveOwner(ctx)
		if err != nil || o == "" {
			e.log.Debugf("identity discovery failed: %v\n", err)
			st.Status = follows.StatusError
			st.Error = follows.CodeNotLoggedIn
			st.LastError = &follows.LastError{Code: follows.CodeNotLoggedIn, Timestamp: follows.Timestamp(time.Now())}
			e.commit(st)

			return nil
		}
		owner = o
	}

	e.commit(st)

	sinceSnapshot := 0
	for {
		if tok.Cancelled() || ctx.Err() != nil {
			return e.finishCancelled(st, dedupe, owner)
		}

		page := st.Page + 1
		res, err := e.fetchPage(ctx, tok, owner, page)
		if err != nil {
			f := ClassifyFailure(err)
			if tok.Cancelled() || f.Code == follows.CodeCancelled {
				return e.finishCancelled(st, dedupe, owner)
			}
			if f.Retryable {
				return e.pause(st, dedupe, owner, f)
			}

			return e.fail(st, dedupe, owner, f)
		}

		for _, it := range res.Items {
			dedupe.Add(it)
		}

		progressAt := time.Now()
		st.Page = page
		if res.Pages > 0 {
			st.Pages = res.Pages
		}
		if res.Total > 0 {
			st.Total = res.Total
		}
		st.Collected = dedupe.Len()
		st.Error = ""
		st.LastError = nil
		st.UpdatedAt = follows.Timestamp(progressAt)
		st.LastProgressAt = follows.Timestamp(progressAt)
		e.commit(st)

		sinceSnapshot++
		if sinceSnapshot >= e.opts.SnapshotEvery {
			e.saveSnapshot(st, dedupe, owner, follows.StatusRunning, nil)
			sinceSnapshot = 0
		}

		// a reported page count of zero means there is nothing more to fetch
		if res.Pages <= 0 || st.Page >= st.Pages {
			return e.finish(st, dedupe, owner)
		}

		sleep(ctx, tok, e.opts.PageDelay)
	}
}

// fetchPage issues one page request under the per-request timeout, with the
// fast retry layer for 429/5xx. The token aborts the in-flight request.
func (e *Engine) fetchPage(ctx context.Context, tok *Token, owner string, page int) (*follows.Page, error) {
	for attempt := 0; ; attempt++ {
		rctx, cancel := context.WithTimeout(ctx, e.opts.RequestTimeout)

		watch := make(chan struct{})
		go func() {
			select {
			case <-tok.Done():
				cancel()
			case <-watch:
			}
		}()

		res, err := e.site.FetchPage(rctx, owner, page)
		close(watch)
		cancel()

		if err == nil {
			return res, nil
		}
		if tok.Cancelled() {
			return nil, context.Canceled
		}
		if attempt >= e.opts.FastRetries || !fastRetryable(err) {
			return nil, err
		}

		e.log.Debugf("page %d attempt %d failed (%v), retrying\n", page, attempt+1, err)
		if !sleep(ctx, tok, fastBackoff(attempt)) {
			return nil, context.Canceled
		}
	}
}

func (e *Engine) finish(st follows.ExportState, dedupe *follows.DedupeMap, owner string) error {
	items := dedupe.Items()
	payload := follows.ExportPayload{
		Meta: follows.PayloadMeta{
			CapturedAt:   follows.Timestamp(time.Now()),
			SourceOrigin: e.opts.Origin,
			OwnerID:      owner,
			TotalItems:   len(items),
		},
		Items: items,
	}

	if err := e.store.Set(store.KeyExportPayload, &payload); err != nil {
		// keep the snapshot so nothing is lost
		e.log.Debugf("writing payload failed: %v\n", err)
		return e.pause(st, dedupe, owner, &Failure{Code: follows.CodeStoreWrite, Retryable: true})
	}
	_ = e.store.Delete(store.KeyExportPartial)

	st.Status = follows.StatusDone
	st.Error = ""
	st.LastError = nil
	st.UpdatedAt = follows.Timestamp(time.Now())
	e.commit(st)

	return nil
}

func (e *Engine) pause(st follows.ExportState, dedupe *follows.DedupeMap, owner string, f *Failure) error {
	backoff := PauseBackoff()
	now := time.Now()

	le := &follows.LastError{
		Code:       f.Code,
		Retryable:  true,
		Timestamp:  follows.Timestamp(now),
		RetryAfter: backoff.Milliseconds(),
		RetryAt:    follows.Timestamp(now.Add(backoff)),
		Attempts:   e.opts.FastRetries + 1,
	}

	st.Status = follows.StatusPaused
	st.Error = f.Code
	st.LastError = le
	st.UpdatedAt = follows.Timestamp(now)

	e.saveSnapshot(st, dedupe, owner, follows.StatusPaused, le)
	e.commit(st)

	return nil
}

func (e *Engine) fail(st follows.ExportState, dedupe *follows.DedupeMap, owner string, f *Failure) error {
	now := time.Now()
	le := &follows.LastError{Code: f.Code, Retryable: false, Timestamp: follows.Timestamp(now)}

	st.Status = follows.StatusError
	st.Error = f.Code
	st.LastError = le
	st.UpdatedAt = follows.Timestamp(now)

	e.saveSnapshot(st, dedupe, owner, follows.StatusError, le)
	e.commit(st)

	return nil
}

func (e *Engine) finishCancelled(st follows.ExportState, dedupe *follows.DedupeMap, owner string) error {
	now := time.Now()

	st.Status = follows.StatusIdle
	st.Error = follows.CodeCancelled
	st.LastError = &follows.LastError{Code: follows.CodeCancelled, Timestamp: follows.Timestamp(now)}
	st.UpdatedAt = follows.Timestamp(now)

	e.saveSnapshot(st, dedupe, owner, follows.StatusIdle, st.LastError)
	e.commit(st)

	return nil
}

func (e *Engine) loadSnapshot() *follows.PartialSnapshot {
	var snap follows.PartialSnapshot
	if ok, err := e.store.Get(store.KeyExportPartial, &snap); err != nil || !ok {
		return nil
	}

	return &snap
}

// saveSnapshot persists the partial snapshot. An empty item set is never
// written: it could only clobber a better snapshot from a previous run.
func (e *Engine) saveSnapshot(st follows.ExportState, dedupe *follows.DedupeMap, owner string, status follows.Status, le *follows.LastError) {
	if dedupe.Len() == 0 {
		return
	}

	snap := follows.PartialSnapshot{
		Meta: follows.SnapshotMeta{
			Status:       status,
			Page:         st.Page,
			Pages:        st.Pages,
			Total:        st.Total,
			OwnerID:      owner,
			SourceOrigin: e.opts.Origin,
			LastError:    le,
			UpdatedAt:    follows.Timestamp(time.Now()),
		},
		Items: dedupe.Items(),
	}

	if err := e.store.Set(store.KeyExportPartial, &snap); err != nil {
		e.log.Debugf("snapshot write failed: %v\n", err)
	}
}

func (e *Engine) commit(st follows.ExportState) {
	e.mu.Lock()
	e.state = st
	e.mu.Unlock()

	if err := e.store.Set(store.KeyExportState, &st); err != nil {
		e.log.Debugf("state write failed: %v\n", err)
	}

	if e.opts.OnProgress != nil {
		e.opts.OnProgress(st)
	}
}

func sleep(ctx context.Context, tok *Token, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-tok.Done():
		return false
	case <-ctx.Done():
		return false
	}
}
