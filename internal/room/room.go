// Package room holds the shared match record two players synchronize through.
package room

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gokatarajesh/trivia-duel/internal/question"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

var (
	ErrNotFound = errors.New("room not found")
	// ErrSlotTaken means another guest claimed the room first.
	ErrSlotTaken = errors.New("room guest slot already taken")
	// ErrStatusConflict rejects writes that would regress the room status.
	ErrStatusConflict = errors.New("room status conflict")
)

// Room is the shared record of one two-player match.
type Room struct {
	ID              uuid.UUID           `json:"id"`
	Status          Status              `json:"status"`
	Category        string              `json:"category"`
	Questions       []question.Question `json:"questions"`
	Player1ID       string              `json:"player1_id"`
	Player1Username string              `json:"player1_username"`
	Player2ID       string              `json:"player2_id,omitempty"`
	Player2Username string              `json:"player2_username,omitempty"`
	Player1Score    int                 `json:"player1_score"`
	Player2Score    int                 `json:"player2_score"`
	WinnerID        string              `json:"winner_id,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// SlotOf returns 1 for the host, 2 for the guest and 0 for strangers.
func (r Room) SlotOf(playerID string) int {
	switch {
	case playerID == "":
		return 0
	case r.Player1ID == playerID:
		return 1
	case r.Player2ID == playerID:
		return 2
	default:
		return 0
	}
}

// OpponentOf returns the other participant, or "" while the guest slot is empty.
func (r Room) OpponentOf(playerID string) string {
	switch r.SlotOf(playerID) {
	case 1:
		return r.Player2ID
	case 2:
		return r.Player1ID
	default:
		return ""
	}
}

// Event is one immutable answer fact within a room.
type Event struct {
	ID            uuid.UUID `json:"id"`
	RoomID        uuid.UUID `json:"room_id"`
	PlayerID      string    `json:"player_id"`
	QuestionIndex int       `json:"question_index"`
	IsCorrect     bool      `json:"is_correct"`
	AnswerTimeMs  int64     `json:"answer_time_ms"`
	Timestamp     time.Time `json:"timestamp"`
}

// AnswerTime converts the stored milliseconds back to a duration.
func (e Event) AnswerTime() time.Duration {
	return time.Duration(e.AnswerTimeMs) * time.Millisecond
}

type NewRoom struct {
	Category     string
	Questions    []question.Question
	HostID       string
	HostUsername string
}

type NewEvent struct {
	RoomID        uuid.UUID
	PlayerID      string
	QuestionIndex int
	IsCorrect     bool
	AnswerTime    time.Duration
}

// Completion is the single terminal write of a room.
type Completion struct {
	RoomID       uuid.UUID
	Player1Score int
	Player2Score int
	WinnerID     string
}

// Subscription is a live change feed. Close is idempotent.
type Subscription interface {
	Close() error
}

type Repository interface {
	CreateRoom(ctx context.Context, in NewRoom) (*Room, error)
	// FindWaiting returns the oldest waiting room for category with an empty guest slot
	// that excludePlayer does not host, or nil, nil when there is none.
	FindWaiting(ctx context.Context, category, excludePlayer string) (*Room, error)
	// ClaimGuestSlot atomically fills the guest slot and activates the room.
	ClaimGuestSlot(ctx context.Context, roomID uuid.UUID, playerID, username string) (*Room, error)
	GetRoom(ctx context.Context, roomID uuid.UUID) (*Room, error)
	// CompleteRoom writes final scores and the winner. Only an active room can complete.
	CompleteRoom(ctx context.Context, c Completion) (*Room, error)
}

type RoomFeed interface {
	WatchRoom(ctx context.Context, roomID uuid.UUID, fn func(Room)) (Subscription, error)
}

type EventLog interface {
	AppendEvent(ctx context.Context, in NewEvent) (Event, error)
	// ListEvents returns every event of the room ordered by timestamp.
	ListEvents(ctx context.Context, roomID uuid.UUID) ([]Event, error)
	WatchEvents(ctx context.Context, roomID uuid.UUID, fn func(Event)) (Subscription, error)
}

// Backend is the full shared-store surface a match runtime needs.
type Backend interface {
	Repository
	RoomFeed
	EventLog
}
