package room

import (
	"context"
	"sync"
)

// Mailbox delivers values to fn in push order on its own goroutine, so producers
// never block on slow or re-entrant consumers.
type Mailbox[T any] struct {
	fn     func(T)
	mu     sync.Mutex
	items  []T
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
	onStop func()
}

func NewMailbox[T any](fn func(T)) *Mailbox[T] {
	m := &Mailbox[T]{
		fn:     fn,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

// Push enqueues v. Pushes after Close are dropped.
func (m *Mailbox[T]) Push(v T) {
	select {
	case <-m.done:
		return
	default:
	}
	m.mu.Lock()
	m.items = append(m.items, v)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// CloseOn closes the mailbox when ctx ends.
func (m *Mailbox[T]) CloseOn(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			_ = m.Close()
		case <-m.done:
		}
	}()
}

// OnClose registers a hook run once when the mailbox closes.
func (m *Mailbox[T]) OnClose(fn func()) {
	m.mu.Lock()
	m.onStop = fn
	m.mu.Unlock()
}

func (m *Mailbox[T]) Close() error {
	m.once.Do(func() {
		close(m.done)
		m.mu.Lock()
		stop := m.onStop
		m.items = nil
		m.mu.Unlock()
		if stop != nil {
			stop()
		}
	})
	return nil
}

func (m *Mailbox[T]) Done() <-chan struct{} {
	return m.done
}

func (m *Mailbox[T]) run() {
	for {
		select {
		case <-m.done:
			return
		case <-m.notify:
		}
		for {
			m.mu.Lock()
			if len(m.items) == 0 {
				m.mu.Unlock()
				break
			}
			v := m.items[0]
			m.items = m.items[1:]
			m.mu.Unlock()

			select {
			case <-m.done:
				return
			default:
			}
			m.fn(v)
		}
	}
}
