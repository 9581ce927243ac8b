package match

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-duel/internal/events"
	"github.com/gokatarajesh/trivia-duel/internal/match/scoring"
	"github.com/gokatarajesh/trivia-duel/internal/room"
)

// ErrRoomHasNoQuestions is returned when a room was created without a question set.
var ErrRoomHasNoQuestions = errors.New("room has no questions")

const defaultOpponentGrace = 2 * time.Minute

// eventRecorder persists each answer as a room event.
type eventRecorder struct {
	stream   *events.Stream
	roomID   uuid.UUID
	playerID string
}

func (r eventRecorder) Record(ctx context.Context, a scoring.Answer, correct bool) error {
	_, err := r.stream.Append(ctx, r.roomID, r.playerID, a.QuestionIndex, correct, a.Elapsed)
	return err
}

// MultiplayerDeps are the shared collaborators of every multiplayer session.
type MultiplayerDeps struct {
	Rooms      room.Repository
	Feed       room.RoomFeed
	Stream     *events.Stream
	Aggregator *Aggregator
	Claims     CompletionGuard
}

// MultiplayerOptions identifies the session and tunes it.
type MultiplayerOptions struct {
	RoomID   uuid.UUID
	PlayerID string
	// Category is what this player asked for; the room's own category always wins.
	Category string

	// OpponentGrace is how long after this player finished results are finalized
	// without waiting for the opponent.
	OpponentGrace time.Duration

	Engine EngineOptions

	// OnUpdate receives a fresh snapshot on local, opponent and room changes.
	OnUpdate func(MultiSnapshot)
}

// MultiSnapshot extends the engine view with room and opponent state.
type MultiSnapshot struct {
	Snapshot
	RoomID              string      `json:"room_id"`
	RoomStatus          room.Status `json:"room_status"`
	PlayerNumber        int         `json:"player_number"`
	OpponentLatestIndex int         `json:"opponent_latest_index"`
	OpponentAnswering   bool        `json:"opponent_answering"`
}

// Multiplayer plays a room's fixed question set and keeps the opponent view current.
type Multiplayer struct {
	*Engine

	deps     MultiplayerDeps
	roomID   uuid.UUID
	playerID string
	category string
	grace    time.Duration
	tracker  *events.OpponentTracker
	logger   zerolog.Logger
	onUpdate func(MultiSnapshot)
	now      func() time.Time

	mu        sync.Mutex
	current   room.Room
	roomSub   room.Subscription
	eventSub  room.Subscription
	endedAt   time.Time
	result    *MultiplayerResult
	closeOnce sync.Once
}

func NewMultiplayer(deps MultiplayerDeps, opts MultiplayerOptions) *Multiplayer {
	logger := opts.Engine.Logger.With().
		Str("component", "multiplayer").
		Str("room_id", opts.RoomID.String()).
		Str("player_id", opts.PlayerID).
		Logger()
	if opts.OpponentGrace <= 0 {
		opts.OpponentGrace = defaultOpponentGrace
	}
	now := opts.Engine.Now
	if now == nil {
		now = time.Now
	}

	m := &Multiplayer{
		deps:     deps,
		roomID:   opts.RoomID,
		playerID: opts.PlayerID,
		category: opts.Category,
		grace:    opts.OpponentGrace,
		tracker:  events.NewOpponentTracker(opts.PlayerID),
		logger:   logger,
		onUpdate: opts.OnUpdate,
		now:      now,
	}
	engineOpts := opts.Engine
	engineOpts.Logger = logger
	engineOpts.Recorder = eventRecorder{stream: deps.Stream, roomID: opts.RoomID, playerID: opts.PlayerID}
	engineOpts.OnChange = func(Snapshot) { m.publish() }
	m.Engine = NewEngine(engineOpts)
	return m
}

// Start loads the room, subscribes to room and event changes, seeds the opponent view from
// history and presents the first question. Guests never fetch questions.
func (m *Multiplayer) Start(ctx context.Context) error {
	m.Engine.MarkLoading()

	r, err := m.deps.Rooms.GetRoom(ctx, m.roomID)
	if err != nil {
		return fmt.Errorf("load room: %w", err)
	}
	if r.SlotOf(m.playerID) == 0 {
		return ErrNotParticipant
	}
	if len(r.Questions) == 0 {
		return ErrRoomHasNoQuestions
	}
	if m.category != "" && r.Category != m.category {
		m.logger.Warn().Str("requested", m.category).Str("room_category", r.Category).Msg("room category differs from requested category")
	}
	m.setRoom(*r)

	roomSub, err := m.deps.Feed.WatchRoom(ctx, m.roomID, m.onRoom)
	if err != nil {
		return fmt.Errorf("watch room: %w", err)
	}
	eventSub, err := m.deps.Stream.SubscribeToInserts(ctx, m.roomID, m.onEvent)
	if err != nil {
		_ = roomSub.Close()
		return err
	}
	m.mu.Lock()
	m.roomSub, m.eventSub = roomSub, eventSub
	m.mu.Unlock()

	history, err := m.deps.Stream.LoadHistory(ctx, m.roomID)
	if err != nil {
		m.Close()
		return err
	}
	m.tracker.Seed(history)

	// Re-read in case the guest joined between the first read and the subscription.
	if latest, err := m.deps.Rooms.GetRoom(ctx, m.roomID); err == nil {
		m.setRoom(*latest)
	}

	m.Engine.Begin(r.Questions)
	m.logger.Info().Int("questions", len(r.Questions)).Int("slot", r.SlotOf(m.playerID)).Msg("multiplayer game started")
	return nil
}

func (m *Multiplayer) onRoom(r room.Room) {
	m.setRoom(r)
	m.publish()
}

func (m *Multiplayer) onEvent(ev room.Event) {
	if m.tracker.Observe(ev) {
		m.publish()
	}
}

func (m *Multiplayer) setRoom(r room.Room) {
	m.mu.Lock()
	if statusRank(r.Status) < statusRank(m.current.Status) {
		m.mu.Unlock()
		return
	}
	m.current = r
	m.mu.Unlock()
	m.tracker.SetRoom(r)
}

func statusRank(s room.Status) int {
	switch s {
	case room.StatusWaiting:
		return 1
	case room.StatusActive:
		return 2
	case room.StatusCompleted:
		return 3
	default:
		return 0
	}
}

// Room returns the latest room state seen by this session.
func (m *Multiplayer) Room() room.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// IsComplete is true when the room completed or every question has a local answer.
func (m *Multiplayer) IsComplete() bool {
	m.mu.Lock()
	completed := m.current.Status == room.StatusCompleted
	m.mu.Unlock()
	return completed || m.Engine.Complete()
}

// OpponentEvents returns the opponent's answers ordered by question index.
func (m *Multiplayer) OpponentEvents() []room.Event {
	return m.tracker.Events()
}

func (m *Multiplayer) State() MultiSnapshot {
	snap := m.Engine.Snapshot()
	m.mu.Lock()
	r := m.current
	m.mu.Unlock()

	latest := m.tracker.LatestIndex()
	if r.Status == room.StatusCompleted {
		snap.Complete = true
	}
	return MultiSnapshot{
		Snapshot:            snap,
		RoomID:              m.roomID.String(),
		RoomStatus:          r.Status,
		PlayerNumber:        r.SlotOf(m.playerID),
		OpponentLatestIndex: latest,
		OpponentAnswering:   latest >= 0 && latest == snap.Index,
	}
}

func (m *Multiplayer) publish() {
	if m.onUpdate != nil {
		m.onUpdate(m.State())
	}
}

// CalculateResults ends the local game and reduces the room's event log. The session that wins
// the completion claim persists the result, and only once both players finished or the opponent
// grace elapsed; otherwise the returned result is provisional.
func (m *Multiplayer) CalculateResults(ctx context.Context) (MultiplayerResult, error) {
	m.mu.Lock()
	if m.result != nil {
		res := *m.result
		m.mu.Unlock()
		return res, nil
	}
	m.mu.Unlock()

	if !m.Engine.Ended() {
		m.Engine.End(ctx)
	}
	m.mu.Lock()
	if m.endedAt.IsZero() {
		m.endedAt = m.now()
	}
	endedAt := m.endedAt
	m.mu.Unlock()

	res, r, err := m.deps.Aggregator.Calculate(ctx, m.roomID, m.playerID)
	if err != nil {
		return MultiplayerResult{}, err
	}
	m.setRoom(*r)
	if res.Final {
		return m.remember(res), nil
	}

	total := len(r.Questions)
	opponentDone := res.Opponent.Tally.Answered >= total
	if !opponentDone && m.now().Sub(endedAt) < m.grace {
		return res, nil
	}

	release, err := m.deps.Claims.Claim(ctx, m.roomID)
	if errors.Is(err, ErrAlreadyClaimed) {
		m.logger.Debug().Msg("opponent is finalizing the room")
		return res, nil
	}
	if err != nil {
		return MultiplayerResult{}, err
	}

	completed, err := m.deps.Aggregator.Persist(ctx, res)
	if errors.Is(err, room.ErrStatusConflict) {
		// Completed elsewhere between our read and write; the stored row wins.
		return m.CalculateResultsFromRoom(ctx)
	}
	if err != nil {
		if rerr := release(); rerr != nil {
			m.logger.Warn().Err(rerr).Msg("release completion claim")
		}
		return MultiplayerResult{}, err
	}
	m.setRoom(*completed)
	res.Final = true
	m.publish()
	return m.remember(res), nil
}

// CalculateResultsFromRoom recomputes the result without trying to persist anything.
func (m *Multiplayer) CalculateResultsFromRoom(ctx context.Context) (MultiplayerResult, error) {
	res, r, err := m.deps.Aggregator.Calculate(ctx, m.roomID, m.playerID)
	if err != nil {
		return MultiplayerResult{}, err
	}
	m.setRoom(*r)
	if res.Final {
		return m.remember(res), nil
	}
	return res, nil
}

func (m *Multiplayer) remember(res MultiplayerResult) MultiplayerResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.result == nil {
		m.result = &res
	}
	return *m.result
}

// Close releases both subscriptions and the countdown. Safe to call more than once.
func (m *Multiplayer) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		roomSub, eventSub := m.roomSub, m.eventSub
		m.mu.Unlock()
		if roomSub != nil {
			_ = roomSub.Close()
		}
		if eventSub != nil {
			_ = eventSub.Close()
		}
		m.Engine.stopCountdownSafe()
	})
}
