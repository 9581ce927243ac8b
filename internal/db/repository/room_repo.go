package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/gokatarajesh/trivia-duel/internal/question"
	"github.com/gokatarajesh/trivia-duel/internal/room"
)

type roomStore interface {
	CreateRoom(ctx context.Context, arg CreateRoomParams) (RoomRow, error)
	FindWaitingRoom(ctx context.Context, category, excludePlayer string) (RoomRow, error)
	ClaimGuestSlot(ctx context.Context, arg ClaimGuestSlotParams) (RoomRow, error)
	GetRoom(ctx context.Context, id pgtype.UUID) (RoomRow, error)
	CompleteRoom(ctx context.Context, arg CompleteRoomParams) (RoomRow, error)
	InsertEvent(ctx context.Context, arg InsertEventParams) (EventRow, error)
	ListEvents(ctx context.Context, roomID pgtype.UUID) ([]EventRow, error)
}

// RoomRepository maps room rows to domain rooms. Conditional writes surface as room errors.
type RoomRepository struct {
	store roomStore
}

var _ room.Repository = (*RoomRepository)(nil)

// NewRoomRepository wraps the query layer for room and event operations.
func NewRoomRepository(store roomStore) *RoomRepository {
	return &RoomRepository{store: store}
}

func (r *RoomRepository) CreateRoom(ctx context.Context, in room.NewRoom) (*room.Room, error) {
	payload, err := json.Marshal(in.Questions)
	if err != nil {
		return nil, fmt.Errorf("encode questions: %w", err)
	}
	row, err := r.store.CreateRoom(ctx, CreateRoomParams{
		ID:              pgUUID(uuid.New()),
		Category:        in.Category,
		Questions:       payload,
		Player1ID:       in.HostID,
		Player1Username: in.HostUsername,
	})
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return toRoom(row)
}

func (r *RoomRepository) FindWaiting(ctx context.Context, category, excludePlayer string) (*room.Room, error) {
	row, err := r.store.FindWaitingRoom(ctx, category, excludePlayer)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find waiting room: %w", err)
	}
	return toRoom(row)
}

func (r *RoomRepository) ClaimGuestSlot(ctx context.Context, roomID uuid.UUID, playerID, username string) (*room.Room, error) {
	row, err := r.store.ClaimGuestSlot(ctx, ClaimGuestSlotParams{
		ID:              pgUUID(roomID),
		Player2ID:       playerID,
		Player2Username: username,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.GetRoom(ctx, roomID); gerr != nil {
			return nil, gerr
		}
		return nil, room.ErrSlotTaken
	}
	if err != nil {
		return nil, fmt.Errorf("claim guest slot: %w", err)
	}
	return toRoom(row)
}

func (r *RoomRepository) GetRoom(ctx context.Context, roomID uuid.UUID) (*room.Room, error) {
	row, err := r.store.GetRoom(ctx, pgUUID(roomID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, room.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return toRoom(row)
}

func (r *RoomRepository) CompleteRoom(ctx context.Context, c room.Completion) (*room.Room, error) {
	row, err := r.store.CompleteRoom(ctx, CompleteRoomParams{
		ID:           pgUUID(c.RoomID),
		Player1Score: int32(c.Player1Score),
		Player2Score: int32(c.Player2Score),
		WinnerID:     pgtype.Text{String: c.WinnerID, Valid: c.WinnerID != ""},
	})
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.GetRoom(ctx, c.RoomID); gerr != nil {
			return nil, gerr
		}
		return nil, room.ErrStatusConflict
	}
	if err != nil {
		return nil, fmt.Errorf("complete room: %w", err)
	}
	return toRoom(row)
}

func (r *RoomRepository) AppendEvent(ctx context.Context, in room.NewEvent) (room.Event, error) {
	row, err := r.store.InsertEvent(ctx, InsertEventParams{
		ID:            pgUUID(uuid.New()),
		RoomID:        pgUUID(in.RoomID),
		PlayerID:      in.PlayerID,
		QuestionIndex: int32(in.QuestionIndex),
		IsCorrect:     in.IsCorrect,
		AnswerTimeMs:  in.AnswerTime.Round(time.Millisecond).Milliseconds(),
	})
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.GetRoom(ctx, in.RoomID); gerr != nil {
			return room.Event{}, gerr
		}
		return room.Event{}, room.ErrStatusConflict
	}
	if err != nil {
		return room.Event{}, fmt.Errorf("insert room event: %w", err)
	}
	return toEvent(row), nil
}

func (r *RoomRepository) ListEvents(ctx context.Context, roomID uuid.UUID) ([]room.Event, error) {
	rows, err := r.store.ListEvents(ctx, pgUUID(roomID))
	if err != nil {
		return nil, fmt.Errorf("list room events: %w", err)
	}
	out := make([]room.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, toEvent(row))
	}
	return out, nil
}

func toRoom(row RoomRow) (*room.Room, error) {
	var qs []question.Question
	if len(row.Questions) > 0 {
		if err := json.Unmarshal(row.Questions, &qs); err != nil {
			return nil, fmt.Errorf("decode room questions: %w", err)
		}
	}
	return &room.Room{
		ID:              uuid.UUID(row.ID.Bytes),
		Status:          room.Status(row.Status),
		Category:        row.Category,
		Questions:       qs,
		Player1ID:       row.Player1ID,
		Player1Username: row.Player1Username,
		Player2ID:       row.Player2ID.String,
		Player2Username: row.Player2Username.String,
		Player1Score:    int(row.Player1Score),
		Player2Score:    int(row.Player2Score),
		WinnerID:        row.WinnerID.String,
		CreatedAt:       row.CreatedAt.Time,
		UpdatedAt:       row.UpdatedAt.Time,
	}, nil
}

func toEvent(row EventRow) room.Event {
	return room.Event{
		ID:            uuid.UUID(row.ID.Bytes),
		RoomID:        uuid.UUID(row.RoomID.Bytes),
		PlayerID:      row.PlayerID,
		QuestionIndex: int(row.QuestionIndex),
		IsCorrect:     row.IsCorrect,
		AnswerTimeMs:  row.AnswerTimeMs,
		Timestamp:     row.Timestamp.Time,
	}
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
