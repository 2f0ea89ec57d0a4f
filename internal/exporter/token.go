package exporter

import "sync"

// Token is an explicit cancellation handle passed into Run and polled at
// suspension points. Cancel may be called from any goroutine, any number of
// times.
type Token struct {
	once sync.Once
	ch   chan struct{}
}

func NewToken() *Token {
	return &Token{ch: make(chan struct{})}
}

func (t *Token) Cancel() {
	if t == nil {
		return
	}

	t.once.Do(func() { close(t.ch) })
}

func (t *Token) Cancelled() bool {
	if t == nil {
		return false
	}

	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed on cancellation. Safe on a nil token; the
// returned channel then never closes.
func (t *Token) Done() <-chan struct{} {
	if t == nil {
		return nil
	}

	return t.ch
}
