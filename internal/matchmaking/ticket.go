package matchmaking

import (
	"context"
	"sync"

	"github.com/gokatarajesh/trivia-duel/internal/room"
)

// Ticket tracks one matchmaking attempt. It finishes exactly once: matched, timed out,
// cancelled or failed. Finishing closes the room subscription and stops the timer.
type Ticket struct {
	done    chan struct{}
	hosting chan struct{}
	once    sync.Once
	cancel  context.CancelFunc

	mu       sync.Mutex
	pending  *Result
	result   Result
	err      error
	sub      room.Subscription
	finished bool
}

func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Hosting is closed once the player owns a waiting room and is waiting for a guest.
func (t *Ticket) Hosting() <-chan struct{} {
	return t.hosting
}

// Result is valid once Done is closed.
func (t *Ticket) Result() (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

// Pending returns the room the player is waiting in, if hosting.
func (t *Ticket) Pending() (Result, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		return Result{}, false
	}
	return *t.pending, true
}

func (t *Ticket) Cancel() {
	t.finish(Result{}, ErrCancelled)
}

func (t *Ticket) setPending(r Result) {
	t.mu.Lock()
	first := t.pending == nil
	t.pending = &r
	t.mu.Unlock()
	if first && r.PlayerNumber == 1 {
		close(t.hosting)
	}
}

func (t *Ticket) attach(sub room.Subscription) {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		_ = sub.Close()
		return
	}
	t.sub = sub
	t.mu.Unlock()
}

func (t *Ticket) finish(res Result, err error) {
	t.once.Do(func() {
		t.mu.Lock()
		t.result, t.err = res, err
		t.finished = true
		sub := t.sub
		t.sub = nil
		t.mu.Unlock()

		if sub != nil {
			_ = sub.Close()
		}
		t.cancel()
		close(t.done)
	})
}
