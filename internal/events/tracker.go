package events

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gokatarajesh/trivia-duel/internal/room"
)

// OpponentTracker keeps the opponent's answers as they arrive from history and realtime.
// Events are deduplicated by id and merged by question index, never by arrival order.
type OpponentTracker struct {
	mu       sync.Mutex
	selfID   string
	opponent string
	seen     map[uuid.UUID]struct{}
	byIndex  map[int]room.Event
	pending  []room.Event
}

func NewOpponentTracker(selfID string) *OpponentTracker {
	return &OpponentTracker{
		selfID:  selfID,
		seen:    make(map[uuid.UUID]struct{}),
		byIndex: make(map[int]room.Event),
	}
}

// SetRoom resolves the opponent from the latest room state. Events that arrived before the
// opponent was known are replayed once it is.
func (t *OpponentTracker) SetRoom(r room.Room) {
	t.mu.Lock()
	defer t.mu.Unlock()

	opp := r.OpponentOf(t.selfID)
	if opp == "" || opp == t.opponent {
		return
	}
	t.opponent = opp
	pending := t.pending
	t.pending = nil
	for _, ev := range pending {
		t.addLocked(ev)
	}
}

func (t *OpponentTracker) Opponent() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opponent
}

// Observe offers one event. It reports whether the opponent view changed.
func (t *OpponentTracker) Observe(ev room.Event) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addLocked(ev)
}

// Seed offers a history batch.
func (t *OpponentTracker) Seed(evs []room.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ev := range evs {
		t.addLocked(ev)
	}
}

func (t *OpponentTracker) addLocked(ev room.Event) bool {
	if ev.PlayerID == t.selfID {
		return false
	}
	if t.opponent == "" {
		t.pending = append(t.pending, ev)
		return false
	}
	if ev.PlayerID != t.opponent {
		return false
	}
	if _, dup := t.seen[ev.ID]; dup {
		return false
	}
	t.seen[ev.ID] = struct{}{}
	if _, ok := t.byIndex[ev.QuestionIndex]; ok {
		return false
	}
	t.byIndex[ev.QuestionIndex] = ev
	return true
}

// LatestIndex is the highest question index the opponent answered, or -1.
func (t *OpponentTracker) LatestIndex() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	latest := -1
	for idx := range t.byIndex {
		if idx > latest {
			latest = idx
		}
	}
	return latest
}

// Events returns the opponent's answers ordered by question index.
func (t *OpponentTracker) Events() []room.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]room.Event, 0, len(t.byIndex))
	for _, ev := range t.byIndex {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionIndex < out[j].QuestionIndex })
	return out
}
