package exporter

import (
	"math/rand"
	"time"
)

const (
	pauseBackoffMin = 5 * time.Second
	pauseBackoffMax = 15 * time.Second

	fastBackoffBase = 250 * time.Millisecond
	fastBackoffCap  = 4 * time.Second
)

// PauseBackoff picks the randomized wait before a paused run may resume,
// uniform over [5s, 15s).
func PauseBackoff() time.Duration {
	return pauseBackoffMin + time.Duration(rand.Int63n(int64(pauseBackoffMax-pauseBackoffMin)))
}

// fastBackoff is the in-request retry schedule: 250ms doubling per attempt,
// capped at 4s.
func fastBackoff(attempt int) time.Duration {
	d := fastBackoffBase << attempt
	if d > fastBackoffCap {
		d = fastBackoffCap
	}

	return d
}
