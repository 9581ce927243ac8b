// Package events is the append-only answer log of a room and its consumer-side views.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-duel/internal/room"
)

// Stream appends and replays room events over the configured backend.
type Stream struct {
	log    room.EventLog
	logger zerolog.Logger
}

func NewStream(log room.EventLog, logger zerolog.Logger) *Stream {
	return &Stream{log: log, logger: logger.With().Str("component", "event_stream").Logger()}
}

// Append inserts one immutable event. Callers own idempotency.
func (s *Stream) Append(ctx context.Context, roomID uuid.UUID, playerID string, questionIndex int, isCorrect bool, answerTime time.Duration) (room.Event, error) {
	ev, err := s.log.AppendEvent(ctx, room.NewEvent{
		RoomID:        roomID,
		PlayerID:      playerID,
		QuestionIndex: questionIndex,
		IsCorrect:     isCorrect,
		AnswerTime:    answerTime,
	})
	if err != nil {
		return room.Event{}, fmt.Errorf("append room event: %w", err)
	}
	s.logger.Debug().
		Str("room_id", roomID.String()).
		Str("player_id", playerID).
		Int("question_index", questionIndex).
		Bool("correct", isCorrect).
		Msg("event appended")
	return ev, nil
}

// SubscribeToInserts pushes every new event of the room, from any player.
func (s *Stream) SubscribeToInserts(ctx context.Context, roomID uuid.UUID, onEvent func(room.Event)) (room.Subscription, error) {
	sub, err := s.log.WatchEvents(ctx, roomID, onEvent)
	if err != nil {
		return nil, fmt.Errorf("subscribe to room events: %w", err)
	}
	return sub, nil
}

// LoadHistory returns all events of the room ordered by timestamp.
func (s *Stream) LoadHistory(ctx context.Context, roomID uuid.UUID) ([]room.Event, error) {
	evs, err := s.log.ListEvents(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load room events: %w", err)
	}
	return evs, nil
}
