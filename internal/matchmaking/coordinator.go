// Package matchmaking pairs two players in a room: join the oldest waiting room for the category,
// or host a new one with a freshly fetched question set.
package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-duel/internal/fetchguard"
	"github.com/gokatarajesh/trivia-duel/internal/metrics"
	"github.com/gokatarajesh/trivia-duel/internal/question"
	"github.com/gokatarajesh/trivia-duel/internal/room"
)

var (
	// ErrDisabled is returned when multiplayer is switched off.
	ErrDisabled = errors.New("multiplayer is disabled")
	// ErrMatchmakingTimeout means no opponent joined in time.
	ErrMatchmakingTimeout = errors.New("matchmaking timed out")
	// ErrCancelled is the result of Ticket.Cancel.
	ErrCancelled = errors.New("matchmaking cancelled")
)

// Player is the identity taking part in matchmaking.
type Player struct {
	ID       string
	Username string
}

// Result describes the room a player ended up in.
type Result struct {
	RoomID       uuid.UUID   `json:"room_id"`
	PlayerID     string      `json:"player_id"`
	PlayerNumber int         `json:"player_number"`
	Status       room.Status `json:"status"`
	Room         room.Room   `json:"-"`
}

func resultFor(r room.Room, playerID string) Result {
	return Result{
		RoomID:       r.ID,
		PlayerID:     playerID,
		PlayerNumber: r.SlotOf(playerID),
		Status:       r.Status,
		Room:         r,
	}
}

// QuestionSource is the host-side view of the question service.
type QuestionSource interface {
	FetchBatch(ctx context.Context, amount int, category string) ([]question.Question, error)
	Bank() *question.Bank
}

type Options struct {
	Enabled       bool
	QuestionCount int
	Timeout       time.Duration
	RetryInterval time.Duration
}

func (o *Options) defaults() {
	if o.QuestionCount <= 0 {
		o.QuestionCount = 10
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 500 * time.Millisecond
	}
}

// Coordinator implements find-or-create matchmaking over a room store.
type Coordinator struct {
	rooms     room.Repository
	feed      room.RoomFeed
	questions QuestionSource
	guard     *fetchguard.Guard
	metrics   *metrics.Collector
	opts      Options
	logger    zerolog.Logger
}

func NewCoordinator(rooms room.Repository, feed room.RoomFeed, questions QuestionSource, guard *fetchguard.Guard, m *metrics.Collector, opts Options, logger zerolog.Logger) *Coordinator {
	opts.defaults()
	return &Coordinator{
		rooms:     rooms,
		feed:      feed,
		questions: questions,
		guard:     guard,
		metrics:   m,
		opts:      opts,
		logger:    logger.With().Str("component", "matchmaking").Logger(),
	}
}

// FindOrCreateRoom joins the oldest waiting room for category or hosts a new one.
// Losing the guest-slot race falls through to hosting.
func (c *Coordinator) FindOrCreateRoom(ctx context.Context, p Player, category string) (Result, error) {
	if !c.opts.Enabled {
		return Result{}, ErrDisabled
	}
	log := c.logger.With().Str("player_id", p.ID).Str("category", category).Logger()

	waiting, err := c.rooms.FindWaiting(ctx, category, p.ID)
	if err != nil {
		return Result{}, fmt.Errorf("find waiting room: %w", err)
	}
	if waiting != nil {
		joined, err := c.rooms.ClaimGuestSlot(ctx, waiting.ID, p.ID, p.Username)
		switch {
		case err == nil:
			if joined.Category != category {
				log.Warn().Str("room_category", joined.Category).Msg("joined room with a different category")
			}
			log.Info().Str("room_id", joined.ID.String()).Msg("joined waiting room")
			c.metrics.Matchmaking("joined")
			return resultFor(*joined, p.ID), nil
		case errors.Is(err, room.ErrSlotTaken):
			log.Debug().Str("room_id", waiting.ID.String()).Msg("guest slot taken, hosting instead")
		default:
			return Result{}, fmt.Errorf("join room: %w", err)
		}
	}

	return c.host(ctx, p, category, log)
}

func (c *Coordinator) host(ctx context.Context, p Player, category string, log zerolog.Logger) (Result, error) {
	if err := c.guard.Acquire(category, fetchguard.ModeMulti); err != nil {
		return Result{}, fmt.Errorf("host room: %w", err)
	}
	defer c.guard.Release()

	started := time.Now()
	questions, source := c.hostQuestions(ctx, category, log)
	c.metrics.QuestionLoad(string(fetchguard.ModeMulti), source, time.Since(started).Seconds())
	if len(questions) == 0 {
		return Result{}, question.ErrNoQuestions
	}

	created, err := c.rooms.CreateRoom(ctx, room.NewRoom{
		Category:     category,
		Questions:    questions,
		HostID:       p.ID,
		HostUsername: p.Username,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create room: %w", err)
	}
	log.Info().Str("room_id", created.ID.String()).Int("questions", len(questions)).Str("source", source).Msg("hosting room")
	c.metrics.Matchmaking("hosted")
	return resultFor(*created, p.ID), nil
}

// hostQuestions never fails: upstream errors fall back to the bank.
func (c *Coordinator) hostQuestions(ctx context.Context, category string, log zerolog.Logger) ([]question.Question, string) {
	n := c.opts.QuestionCount
	fetched, err := c.questions.FetchBatch(ctx, n, category)
	if err == nil {
		if filtered := question.FilterByCategory(fetched, category); len(filtered) > 0 {
			fetched = filtered
		}
		if len(fetched) > n {
			fetched = fetched[:n]
		}
		return fetched, question.SourceUpstream
	}
	log.Warn().Err(err).Msg("host fetch failed, using bundled questions")
	return c.questions.Bank().Pick(category, n), question.SourceFallback
}

// SubscribeToRoom reports every room change to onUpdate and calls onMatch once, on the first
// state that has a guest. The room is re-read after subscribing so a join that raced the
// subscription is still seen.
func (c *Coordinator) SubscribeToRoom(ctx context.Context, roomID uuid.UUID, playerID string, onUpdate func(room.Room), onMatch func(Result)) (room.Subscription, error) {
	var (
		mu      sync.Mutex
		matched bool
	)
	handle := func(r room.Room) {
		mu.Lock()
		defer mu.Unlock()
		if onUpdate != nil {
			onUpdate(r)
		}
		if matched || r.Status == room.StatusWaiting || r.Player2ID == "" {
			return
		}
		matched = true
		if onMatch != nil {
			onMatch(resultFor(r, playerID))
		}
	}

	sub, err := c.feed.WatchRoom(ctx, roomID, handle)
	if err != nil {
		return nil, fmt.Errorf("watch room: %w", err)
	}
	current, err := c.rooms.GetRoom(ctx, roomID)
	if err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("load room: %w", err)
	}
	if current.Status != room.StatusWaiting {
		handle(*current)
	}
	return sub, nil
}

// Matchmake runs find-or-create in the background and, for a host, waits for a guest.
func (c *Coordinator) Matchmake(ctx context.Context, p Player, category string) *Ticket {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	t := &Ticket{done: make(chan struct{}), hosting: make(chan struct{}), cancel: cancel}

	go func() {
		<-ctx.Done()
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			c.metrics.Matchmaking("timeout")
			c.logger.Info().Str("player_id", p.ID).Msg("matchmaking timed out")
			t.finish(Result{}, ErrMatchmakingTimeout)
		default:
			t.finish(Result{}, ctx.Err())
		}
	}()
	go c.run(ctx, t, p, category)
	return t
}

func (c *Coordinator) run(ctx context.Context, t *Ticket, p Player, category string) {
	for {
		res, err := c.FindOrCreateRoom(ctx, p, category)
		if errors.Is(err, fetchguard.ErrFetchInProgress) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.opts.RetryInterval):
				continue
			}
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.metrics.Matchmaking("error")
			t.finish(Result{}, err)
			return
		}

		t.setPending(res)
		if res.PlayerNumber == 2 {
			c.metrics.Matchmaking("matched")
			t.finish(res, nil)
			return
		}

		sub, err := c.SubscribeToRoom(ctx, res.RoomID, p.ID, nil, func(m Result) {
			c.metrics.Matchmaking("matched")
			t.finish(m, nil)
		})
		if err != nil {
			t.finish(Result{}, err)
			return
		}
		t.attach(sub)
		return
	}
}
