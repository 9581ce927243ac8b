// Package fetchguard keeps concurrent question loads from stampeding the upstream.
package fetchguard

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Mode distinguishes the two load paths that share the guard.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeMulti  Mode = "multi"
)

// DefaultReleaseGrace delays release so a duplicate trigger fired right after a load
// completes still sees the lock.
const DefaultReleaseGrace = 100 * time.Millisecond

const anyCategory = "any"

// ErrFetchInProgress is returned when a load with a different signature holds the guard.
var ErrFetchInProgress = errors.New("question fetch already in progress")

// Lock is the signature of the load currently holding the guard.
type Lock struct {
	Category string
	Mode     Mode
	Since    time.Time
}

// Guard is a process-wide, non-queueing mutual exclusion over question loads.
type Guard struct {
	mu      sync.Mutex
	held    *Lock
	holders int
	grace   time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

func New(grace time.Duration, logger zerolog.Logger) *Guard {
	if grace < 0 {
		grace = 0
	}
	return &Guard{
		grace:  grace,
		now:    time.Now,
		logger: logger.With().Str("component", "fetch_guard").Logger(),
	}
}

func normalize(category string) string {
	if category == "" {
		return anyCategory
	}
	return category
}

// Acquire takes the guard. A caller with the identical (category, mode) re-enters;
// any other signature gets ErrFetchInProgress.
func (g *Guard) Acquire(category string, mode Mode) error {
	category = normalize(category)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.held != nil {
		if g.held.Category == category && g.held.Mode == mode {
			g.holders++
			return nil
		}
		g.logger.Debug().
			Str("held_category", g.held.Category).Str("held_mode", string(g.held.Mode)).
			Str("category", category).Str("mode", string(mode)).
			Msg("fetch blocked")
		return ErrFetchInProgress
	}
	g.held = &Lock{Category: category, Mode: mode, Since: g.now()}
	g.holders = 1
	return nil
}

// Blocks reports whether Acquire with this signature would fail right now.
func (g *Guard) Blocks(category string, mode Mode) bool {
	category = normalize(category)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held != nil && (g.held.Category != category || g.held.Mode != mode)
}

// Release drops one hold after the grace delay.
func (g *Guard) Release() {
	if g.grace == 0 {
		g.ReleaseNow()
		return
	}
	time.AfterFunc(g.grace, g.ReleaseNow)
}

// ReleaseNow drops one hold immediately. The lock clears when the last holder leaves.
func (g *Guard) ReleaseNow() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held == nil {
		return
	}
	g.holders--
	if g.holders <= 0 {
		g.held = nil
		g.holders = 0
	}
}

func (g *Guard) Held() (Lock, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held == nil {
		return Lock{}, false
	}
	return *g.held, true
}
