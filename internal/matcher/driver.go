// Package matcher walks the exported follow list, queries the catalog for
// each title and scores the candidates, persisting results with the same
// resumable-snapshot discipline as the export engine, but over a
// fixed-length item list.
package matcher

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Jackstonebreaker/mangapark-image-fix/internal/exporter"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/follows"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/mangadex"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/similarity"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/store"
)

var (
	ErrRunning  = errors.New("match already running")
	ErrNoExport = errors.New("no completed export to match against")
)

// Catalog is the search side of the matcher.
type Catalog interface {
	Search(ctx context.Context, title string) ([]similarity.Candidate, error)
}

type Options struct {
	Threshold    float64
	ItemDelay    time.Duration
	TopN         int
	RetryCeiling int
	OnProgress   func(follows.MatchState)
}

type Driver struct {
	store   *store.Store
	catalog Catalog
	opts    Options
	log     interface{ Debugf(string, ...any) }

	mu      sync.Mutex
	running bool
	state   follows.MatchState
}

const (
	retryAfterMin = time.Second
	retryAfterMax = time.Minute
)

func NewDriver(st *store.Store, catalog Catalog, log interface{ Debugf(string, ...any) }, opts Options) *Driver {
	if opts.Threshold == 0 {
		opts.Threshold = 0.72
	}
	if opts.ItemDelay == 0 {
		opts.ItemDelay = 500 * time.Millisecond
	}
	if opts.TopN == 0 {
		opts.TopN = 5
	}
	if opts.RetryCeiling == 0 {
		opts.RetryCeiling = 3
	}
	if log == nil {
		log = noopLog{}
	}

	return &Driver{store: st, catalog: catalog, opts: opts, log: log}
}

type noopLog struct{}

func (noopLog) Debugf(string, ...any) {}

func (d *Driver) State() follows.MatchState {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state
}

func LoadState(st *store.Store) follows.MatchState {
	var s follows.MatchState
	if ok, err := st.Get(store.KeyMatchState, &s); err != nil || !ok {
		return follows.MatchState{Status: follows.StatusIdle}
	}

	return s
}

func LoadResults(st *store.Store) []follows.MatchResult {
	var rs []follows.MatchResult
	if ok, err := st.Get(store.KeyMatchResults, &rs); err != nil || !ok {
		return nil
	}

	return rs
}

// Run processes every unprocessed item. Already-processed entries are never
// re-queried; resume scans forward from the first unprocessed index.
func (d *Driver) Run(ctx context.Context, tok *exporter.Token) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrRunning
	}
	d.running = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	var payload follows.ExportPayload
	if ok, err := d.store.Get(store.KeyExportPayload, &payload); err != nil || !ok {
		return ErrNoExport
	}

	items := payload.Items
	results := LoadResults(d.store)
	if len(results) < len(items) {
		results = append(results, make([]follows.MatchResult, len(items)-len(results))...)
	}
	results = results[:len(items)]

	// carry the review cursor; a resumed match must not reset migrate's place
	st := follows.MatchState{
		Status:    follows.StatusRunning,
		Total:     len(items),
		Matched:   countMatched(results, d.opts.Threshold),
		OpenIndex: LoadState(d.store).OpenIndex,
		UpdatedAt: follows.Timestamp(time.Now()),
	}
	d.commit(st)

	for i, item := range items {
		if results[i].Processed {
			st.Index = i + 1
			continue
		}

		if tok.Cancelled() || ctx.Err() != nil {
			return d.pause(st, results, i, "")
		}

		cands, err := d.search(ctx, tok, item.Title)
		if err != nil {
			if tok.Cancelled() {
				return d.pause(st, results, i, "")
			}

			return d.pause(st, results, i, err.Error())
		}

		results[i] = d.score(item, cands)
		if results[i].BestCandidate != nil && results[i].Score >= d.opts.Threshold {
			st.Matched++
		}

		st.Index = i + 1
		st.UpdatedAt = follows.Timestamp(time.Now())
		d.persist(st, results)

		if st.Index < len(items) {
			sleep(ctx, tok, d.opts.ItemDelay)
		}
	}

	st.Status = follows.StatusDone
	st.Error = ""
	st.UpdatedAt = follows.Timestamp(time.Now())
	d.persist(st, results)

	return nil
}

// search retries the same title through rate limiting, honoring the
// server's retry hint clamped to [1s, 60s], up to the retry ceiling.
func (d *Driver) search(ctx context.Context, tok *exporter.Token, title string) ([]similarity.Candidate, error) {
	var lastErr error

	for attempt := 0; attempt <= d.opts.RetryCeiling; attempt++ {
		cands, err := d.catalog.Search(ctx, title)
		if err == nil {
			return cands, nil
		}
		lastErr = err

		var rl *mangadex.RateLimitError
		if !errors.As(err, &rl) {
			return nil, err
		}

		wait := clamp(rl.RetryAfter, retryAfterMin, retryAfterMax)
		d.log.Debugf("search rate limited, waiting %s (attempt %d)\n", wait, attempt+1)
		if !sleep(ctx, tok, wait) {
			return nil, context.Canceled
		}
	}

	return nil, lastErr
}

// score computes the per-candidate maximum over primary and alternate
// titles, keeps the top N and takes the first as best. Stable sort keeps
// first-seen order for ties.
func (d *Driver) score(item follows.FollowItem, cands []similarity.Candidate) follows.MatchResult {
	scored := make([]follows.MatchCandidate, 0, len(cands))
	for _, c := range cands {
		s := similarity.Similarity(item.Title, c.Title)
		for _, alt := range c.AltTitles {
			if v := similarity.Similarity(item.Title, alt); v > s {
				s = v
			}
		}

		scored = append(scored, follows.MatchCandidate{ID: c.ID, Title: c.Title, Score: s})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > d.opts.TopN {
		scored = scored[:d.opts.TopN]
	}

	res := follows.MatchResult{
		Processed:   true,
		SourceTitle: item.Title,
		SourceURL:   item.SourceURL,
		Candidates:  scored,
	}

	if len(scored) > 0 {
		res.BestCandidate = &follows.MatchCandidate{ID: scored[0].ID, Title: scored[0].Title, Score: scored[0].Score}
		res.Score = scored[0].Score
	}

	return res
}

func (d *Driver) pause(st follows.MatchState, results []follows.MatchResult, index int, msg string) error {
	st.Status = follows.StatusPaused
	st.Index = index
	st.Error = msg
	st.UpdatedAt = follows.Timestamp(time.Now())
	d.persist(st, results)

	return nil
}

func (d *Driver) persist(st follows.MatchState, results []follows.MatchResult) {
	if err := d.store.Set(store.KeyMatchResults, results); err != nil {
		d.log.Debugf("match results write failed: %v\n", err)
	}

	d.commit(st)
}

func (d *Driver) commit(st follows.MatchState) {
	d.mu.Lock()
	d.state = st
	d.mu.Unlock()

	if err := d.store.Set(store.KeyMatchState, &st); err != nil {
		d.log.Debugf("match state write failed: %v\n", err)
	}

	if d.opts.OnProgress != nil {
		d.opts.OnProgress(st)
	}
}

func countMatched(results []follows.MatchResult, threshold float64) int {
	n := 0
	for _, r := range results {
		if r.Processed && r.BestCandidate != nil && r.Score >= threshold {
			n++
		}
	}

	return n
}

func clamp(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}

	return d
}

func sleep(ctx context.Context, tok *exporter.Token, d time.Duration) bool {
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
