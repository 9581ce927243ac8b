package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-duel/internal/match/scoring"
	"github.com/gokatarajesh/trivia-duel/internal/room"
)

// ErrNotParticipant is returned when results are requested by someone outside the room.
var ErrNotParticipant = errors.New("player is not in this room")

// PlayerResult is one side of a finished room.
type PlayerResult struct {
	PlayerID string        `json:"player_id"`
	Username string        `json:"username"`
	Slot     int           `json:"slot"`
	Tally    scoring.Tally `json:"tally"`
	Answers  []room.Event  `json:"answers"`
}

// MultiplayerResult is the symmetric outcome computed from the full event log.
type MultiplayerResult struct {
	RoomID   uuid.UUID       `json:"room_id"`
	Self     PlayerResult    `json:"self"`
	Opponent PlayerResult    `json:"opponent"`
	Outcome  scoring.Outcome `json:"outcome"`
	WinnerID string          `json:"winner_id,omitempty"`

	// Final is false while the opponent is still playing and nothing was persisted.
	Final bool `json:"final"`
}

// Completion maps the result onto the room's player slots.
func (r MultiplayerResult) Completion() room.Completion {
	c := room.Completion{RoomID: r.RoomID, WinnerID: r.WinnerID}
	if r.Self.Slot == 1 {
		c.Player1Score, c.Player2Score = r.Self.Tally.Score, r.Opponent.Tally.Score
	} else {
		c.Player1Score, c.Player2Score = r.Opponent.Tally.Score, r.Self.Tally.Score
	}
	return c
}

// Aggregator reduces a room's event log into final scores and a winner.
type Aggregator struct {
	rooms  room.Repository
	log    room.EventLog
	scorer *scoring.Engine
	logger zerolog.Logger
}

func NewAggregator(rooms room.Repository, log room.EventLog, scorer *scoring.Engine, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		rooms:  rooms,
		log:    log,
		scorer: scorer,
		logger: logger.With().Str("component", "aggregator").Logger(),
	}
}

// Calculate loads the room and its events and tallies both players. It never writes.
func (a *Aggregator) Calculate(ctx context.Context, roomID uuid.UUID, selfID string) (MultiplayerResult, *room.Room, error) {
	r, err := a.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return MultiplayerResult{}, nil, fmt.Errorf("load room: %w", err)
	}
	slot := r.SlotOf(selfID)
	if slot == 0 {
		return MultiplayerResult{}, nil, ErrNotParticipant
	}
	evs, err := a.log.ListEvents(ctx, roomID)
	if err != nil {
		return MultiplayerResult{}, nil, fmt.Errorf("load events: %w", err)
	}

	opponentID := r.OpponentOf(selfID)
	var mine, theirs []room.Event
	for _, ev := range evs {
		switch {
		case ev.PlayerID == selfID:
			mine = append(mine, ev)
		case opponentID != "" && ev.PlayerID == opponentID:
			theirs = append(theirs, ev)
		}
	}

	res := MultiplayerResult{
		RoomID: roomID,
		Self: PlayerResult{
			PlayerID: selfID,
			Slot:     slot,
			Tally:    a.scorer.TallyEvents(r.Questions, mine),
			Answers:  mine,
		},
		Opponent: PlayerResult{
			PlayerID: opponentID,
			Slot:     3 - slot,
			Tally:    a.scorer.TallyEvents(r.Questions, theirs),
			Answers:  theirs,
		},
		Final: r.Status == room.StatusCompleted,
	}
	if slot == 1 {
		res.Self.Username, res.Opponent.Username = r.Player1Username, r.Player2Username
	} else {
		res.Self.Username, res.Opponent.Username = r.Player2Username, r.Player1Username
	}

	res.Outcome = scoring.Decide(res.Self.Tally, res.Opponent.Tally)
	switch res.Outcome {
	case scoring.OutcomeWin:
		res.WinnerID = selfID
	case scoring.OutcomeLoss:
		res.WinnerID = opponentID
	}
	return res, r, nil
}

// Persist performs the single terminal write. Callers guarantee it runs once per room.
func (a *Aggregator) Persist(ctx context.Context, res MultiplayerResult) (*room.Room, error) {
	r, err := a.rooms.CompleteRoom(ctx, res.Completion())
	if err != nil {
		return nil, fmt.Errorf("complete room: %w", err)
	}
	a.logger.Info().
		Str("room_id", res.RoomID.String()).
		Int("player1_score", r.Player1Score).
		Int("player2_score", r.Player2Score).
		Str("winner_id", r.WinnerID).
		Msg("room completed")
	return r, nil
}
