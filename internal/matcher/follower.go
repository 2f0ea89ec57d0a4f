package matcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Jackstonebreaker/mangapark-image-fix/internal/exporter"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/follows"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/mangadex"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/store"
)

var ErrNoMatches = errors.New("no match results to follow")

// FollowSink issues one authenticated follow action.
type FollowSink interface {
	Follow(ctx context.Context, mangaID string) error
}

type FollowerOptions struct {
	Threshold    float64
	ItemDelay    time.Duration
	RetryCeiling int
	OnProgress   func(follows.FollowState)
}

// Follower is the opt-in auto-follow driver: it consumes match results at
// or above the threshold (or explicitly accepted ones) and follows each on
// the catalog, resumably.
type Follower struct {
	store *store.Store
	sink  FollowSink
	opts  FollowerOptions
	log   interface{ Debugf(string, ...any) }

	mu      sync.Mutex
	running bool
}

func NewFollower(st *store.Store, sink FollowSink, log interface{ Debugf(string, ...any) }, opts FollowerOptions) *Follower {
	if opts.Threshold == 0 {
		opts.Threshold = 0.72
	}
	if opts.ItemDelay == 0 {
		opts.ItemDelay = 1500 * time.Millisecond
	}
	if opts.RetryCeiling == 0 {
		opts.RetryCeiling = 3
	}
	if log == nil {
		log = noopLog{}
	}

	return &Follower{store: st, sink: sink, opts: opts, log: log}
}

func LoadFollowState(st *store.Store) follows.FollowState {
	var s follows.FollowState
	if ok, err := st.Get(store.KeyFollowState, &s); err != nil || !ok {
		return follows.FollowState{Status: follows.StatusIdle}
	}

	return s
}

func (f *Follower) Run(ctx context.Context, tok *exporter.Token) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return ErrRunning
	}
	f.running = true
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
	}()

	results := LoadResults(f.store)
	if len(results) == 0 {
		return ErrNoMatches
	}

	st := follows.FollowState{Status: follows.StatusRunning, Total: len(results)}
	for _, r := range results {
		if r.Followed {
			st.Followed++
		}
	}
	f.commit(st)

	for i := range results {
		r := &results[i]
		if !f.eligible(r) {
			st.Index = i + 1
			continue
		}

		if tok.Cancelled() || ctx.Err() != nil {
			return f.pause(st, results, i, "")
		}

		if err := f.followOne(ctx, tok, r.BestCandidate.ID); err != nil {
			if tok.Cancelled() {
				return f.pause(st, results, i, "")
			}

			return f.pause(st, results, i, err.Error())
		}

		r.Followed = true
		st.Index = i + 1
		st.Followed++
		st.UpdatedAt = follows.Timestamp(time.Now())
		f.persist(st, results)

		sleep(ctx, tok, f.opts.ItemDelay)
	}

	st.Status = follows.StatusDone
	st.Error = ""
	st.UpdatedAt = follows.Timestamp(time.Now())
	f.persist(st, results)

	return nil
}

func (f *Follower) eligible(r *follows.MatchResult) bool {
	if !r.Processed || r.Removed || r.Followed || r.BestCandidate == nil {
		return false
	}

	return r.Accepted || r.Score >= f.opts.Threshold
}

func (f *Follower) followOne(ctx context.Context, tok *exporter.Token, mangaID string) error {
	var lastErr error

	for attempt := 0; attempt <= f.opts.RetryCeiling; attempt++ {
		err := f.sink.Follow(ctx, mangaID)
		if err == nil {
			return nil
		}
		lastErr = err

		var rl *mangadex.RateLimitError
		if !errors.As(err, &rl) {
			return err
		}

		wait := clamp(rl.RetryAfter, retryAfterMin, retryAfterMax)
		f.log.Debugf("follow rate limited, waiting %s\n", wait)
		if !sleep(ctx, tok, wait) {
			return context.Canceled
		}
	}

	return lastErr
}

func (f *Follower) pause(st follows.FollowState, results []follows.MatchResult, index int, msg string) error {
	st.Status = follows.StatusPaused
	st.Index = index
	st.Error = msg
	st.UpdatedAt = follows.Timestamp(time.Now())
	f.persist(st, results)

	return nil
}

func (f *Follower) persist(st follows.FollowState, results []follows.MatchResult) {
	if err := f.store.Set(store.KeyMatchResults, results); err != nil {
		f.log.Debugf("match results write failed: %v\n", err)
	}

	f.commit(st)
}

func (f *Follower) commit(st follows.FollowState) {
	if err := f.store.Set(store.KeyFollowState, &st); err != nil {
		f.log.Debugf("follow state write failed: %v\n", err)
	}

	if f.opts.OnProgress != nil {
		f.opts.OnProgress(st)
	}
}
