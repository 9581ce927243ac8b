package room

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBackend keeps rooms and events in process with the same conditional-update
// and notification semantics as the Postgres backend.
type MemoryBackend struct {
	mu        sync.RWMutex
	rooms     map[uuid.UUID]*Room
	order     []uuid.UUID
	events    map[uuid.UUID][]Event
	roomSubs  map[uuid.UUID]map[*Mailbox[Room]]struct{}
	eventSubs map[uuid.UUID]map[*Mailbox[Event]]struct{}
	last      time.Time
	now       func() time.Time
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		rooms:     make(map[uuid.UUID]*Room),
		events:    make(map[uuid.UUID][]Event),
		roomSubs:  make(map[uuid.UUID]map[*Mailbox[Room]]struct{}),
		eventSubs: make(map[uuid.UUID]map[*Mailbox[Event]]struct{}),
		now:       time.Now,
	}
}

// tick returns a strictly increasing timestamp. Caller holds mu.
func (m *MemoryBackend) tick() time.Time {
	t := m.now().UTC()
	if !t.After(m.last) {
		t = m.last.Add(time.Microsecond)
	}
	m.last = t
	return t
}

func (m *MemoryBackend) CreateRoom(ctx context.Context, in NewRoom) (*Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.tick()
	r := &Room{
		ID:              uuid.New(),
		Status:          StatusWaiting,
		Category:        in.Category,
		Questions:       in.Questions,
		Player1ID:       in.HostID,
		Player1Username: in.HostUsername,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}
	m.rooms[r.ID] = r
	m.order = append(m.order, r.ID)
	out := *r
	return &out, nil
}

func (m *MemoryBackend) FindWaiting(ctx context.Context, category, excludePlayer string) (*Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range m.order {
		r := m.rooms[id]
		if r.Status != StatusWaiting || r.Player2ID != "" || r.Category != category {
			continue
		}
		if excludePlayer != "" && r.Player1ID == excludePlayer {
			continue
		}
		out := *r
		return &out, nil
	}
	return nil, nil
}

func (m *MemoryBackend) ClaimGuestSlot(ctx context.Context, roomID uuid.UUID, playerID, username string) (*Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	r, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	if r.Status != StatusWaiting || r.Player2ID != "" {
		m.mu.Unlock()
		return nil, ErrSlotTaken
	}
	r.Player2ID = playerID
	r.Player2Username = username
	r.Status = StatusActive
	r.UpdatedAt = m.tick()
	out := *r
	subs := m.roomSubscribers(roomID)
	m.mu.Unlock()

	for _, s := range subs {
		s.Push(out)
	}
	return &out, nil
}

func (m *MemoryBackend) GetRoom(ctx context.Context, roomID uuid.UUID) (*Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *r
	return &out, nil
}

func (m *MemoryBackend) CompleteRoom(ctx context.Context, c Completion) (*Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	r, ok := m.rooms[c.RoomID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	if r.Status != StatusActive {
		m.mu.Unlock()
		return nil, ErrStatusConflict
	}
	r.Player1Score = c.Player1Score
	r.Player2Score = c.Player2Score
	r.WinnerID = c.WinnerID
	r.Status = StatusCompleted
	r.UpdatedAt = m.tick()
	out := *r
	subs := m.roomSubscribers(c.RoomID)
	m.mu.Unlock()

	for _, s := range subs {
		s.Push(out)
	}
	return &out, nil
}

func (m *MemoryBackend) WatchRoom(ctx context.Context, roomID uuid.UUID, fn func(Room)) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mb := NewMailbox(fn)

	m.mu.Lock()
	if m.roomSubs[roomID] == nil {
		m.roomSubs[roomID] = make(map[*Mailbox[Room]]struct{})
	}
	m.roomSubs[roomID][mb] = struct{}{}
	m.mu.Unlock()

	mb.OnClose(func() {
		m.mu.Lock()
		delete(m.roomSubs[roomID], mb)
		m.mu.Unlock()
	})
	mb.CloseOn(ctx)
	return mb, nil
}

func (m *MemoryBackend) AppendEvent(ctx context.Context, in NewEvent) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}

	m.mu.Lock()
	r, ok := m.rooms[in.RoomID]
	if !ok {
		m.mu.Unlock()
		return Event{}, ErrNotFound
	}
	if r.Status == StatusCompleted {
		m.mu.Unlock()
		return Event{}, ErrStatusConflict
	}
	ev := Event{
		ID:            uuid.New(),
		RoomID:        in.RoomID,
		PlayerID:      in.PlayerID,
		QuestionIndex: in.QuestionIndex,
		IsCorrect:     in.IsCorrect,
		AnswerTimeMs:  in.AnswerTime.Round(time.Millisecond).Milliseconds(),
		Timestamp:     m.tick(),
	}
	m.events[in.RoomID] = append(m.events[in.RoomID], ev)
	subs := make([]*Mailbox[Event], 0, len(m.eventSubs[in.RoomID]))
	for s := range m.eventSubs[in.RoomID] {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	for _, s := range subs {
		s.Push(ev)
	}
	return ev, nil
}

func (m *MemoryBackend) ListEvents(ctx context.Context, roomID uuid.UUID) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]Event(nil), m.events[roomID]...), nil
}

func (m *MemoryBackend) WatchEvents(ctx context.Context, roomID uuid.UUID, fn func(Event)) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mb := NewMailbox(fn)

	m.mu.Lock()
	if m.eventSubs[roomID] == nil {
		m.eventSubs[roomID] = make(map[*Mailbox[Event]]struct{})
	}
	m.eventSubs[roomID][mb] = struct{}{}
	m.mu.Unlock()

	mb.OnClose(func() {
		m.mu.Lock()
		delete(m.eventSubs[roomID], mb)
		m.mu.Unlock()
	})
	mb.CloseOn(ctx)
	return mb, nil
}

// roomSubscribers snapshots the room watchers. Caller holds mu.
func (m *MemoryBackend) roomSubscribers(roomID uuid.UUID) []*Mailbox[Room] {
	subs := make([]*Mailbox[Room], 0, len(m.roomSubs[roomID]))
	for s := range m.roomSubs[roomID] {
		subs = append(subs, s)
	}
	return subs
}
