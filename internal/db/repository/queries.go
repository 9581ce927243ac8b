package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Queries holds the raw SQL for rooms and room events.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type RoomRow struct {
	ID              pgtype.UUID
	Status          string
	Category        string
	Questions       []byte
	Player1ID       string
	Player1Username string
	Player2ID       pgtype.Text
	Player2Username pgtype.Text
	Player1Score    int32
	Player2Score    int32
	WinnerID        pgtype.Text
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

type EventRow struct {
	ID            pgtype.UUID
	RoomID        pgtype.UUID
	PlayerID      string
	QuestionIndex int32
	IsCorrect     bool
	AnswerTimeMs  int64
	Timestamp     pgtype.Timestamptz
}

const roomColumns = `id, status, category, questions, player1_id, player1_username,
	player2_id, player2_username, player1_score, player2_score, winner_id, created_at, updated_at`

func scanRoom(row pgx.Row) (RoomRow, error) {
	var r RoomRow
	err := row.Scan(
		&r.ID, &r.Status, &r.Category, &r.Questions, &r.Player1ID, &r.Player1Username,
		&r.Player2ID, &r.Player2Username, &r.Player1Score, &r.Player2Score, &r.WinnerID,
		&r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

type CreateRoomParams struct {
	ID              pgtype.UUID
	Category        string
	Questions       []byte
	Player1ID       string
	Player1Username string
}

const createRoom = `INSERT INTO rooms (id, status, category, questions, player1_id, player1_username)
VALUES ($1, 'waiting', $2, $3, $4, $5)
RETURNING ` + roomColumns

func (q *Queries) CreateRoom(ctx context.Context, arg CreateRoomParams) (RoomRow, error) {
	return scanRoom(q.db.QueryRow(ctx, createRoom, arg.ID, arg.Category, arg.Questions, arg.Player1ID, arg.Player1Username))
}

const findWaitingRoom = `SELECT ` + roomColumns + `
FROM rooms
WHERE status = 'waiting' AND player2_id IS NULL AND category = $1 AND player1_id <> $2
ORDER BY created_at ASC
LIMIT 1`

func (q *Queries) FindWaitingRoom(ctx context.Context, category, excludePlayer string) (RoomRow, error) {
	return scanRoom(q.db.QueryRow(ctx, findWaitingRoom, category, excludePlayer))
}

type ClaimGuestSlotParams struct {
	ID              pgtype.UUID
	Player2ID       string
	Player2Username string
}

const claimGuestSlot = `UPDATE rooms
SET player2_id = $2, player2_username = $3, status = 'active', updated_at = clock_timestamp()
WHERE id = $1 AND status = 'waiting' AND player2_id IS NULL
RETURNING ` + roomColumns

func (q *Queries) ClaimGuestSlot(ctx context.Context, arg ClaimGuestSlotParams) (RoomRow, error) {
	return scanRoom(q.db.QueryRow(ctx, claimGuestSlot, arg.ID, arg.Player2ID, arg.Player2Username))
}

const getRoom = `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`

func (q *Queries) GetRoom(ctx context.Context, id pgtype.UUID) (RoomRow, error) {
	return scanRoom(q.db.QueryRow(ctx, getRoom, id))
}

type CompleteRoomParams struct {
	ID           pgtype.UUID
	Player1Score int32
	Player2Score int32
	WinnerID     pgtype.Text
}

const completeRoom = `UPDATE rooms
SET player1_score = $2, player2_score = $3, winner_id = $4, status = 'completed', updated_at = clock_timestamp()
WHERE id = $1 AND status = 'active'
RETURNING ` + roomColumns

func (q *Queries) CompleteRoom(ctx context.Context, arg CompleteRoomParams) (RoomRow, error) {
	return scanRoom(q.db.QueryRow(ctx, completeRoom, arg.ID, arg.Player1Score, arg.Player2Score, arg.WinnerID))
}

type InsertEventParams struct {
	ID            pgtype.UUID
	RoomID        pgtype.UUID
	PlayerID      string
	QuestionIndex int32
	IsCorrect     bool
	AnswerTimeMs  int64
}

// insertEvent refuses rows for completed rooms.
const insertEvent = `INSERT INTO room_events (id, room_id, player_id, question_index, is_correct, answer_time_ms)
SELECT $1, r.id, $3, $4, $5, $6 FROM rooms r WHERE r.id = $2 AND r.status <> 'completed'
RETURNING id, room_id, player_id, question_index, is_correct, answer_time_ms, timestamp`

func (q *Queries) InsertEvent(ctx context.Context, arg InsertEventParams) (EventRow, error) {
	var e EventRow
	err := q.db.QueryRow(ctx, insertEvent,
		arg.ID, arg.RoomID, arg.PlayerID, arg.QuestionIndex, arg.IsCorrect, arg.AnswerTimeMs,
	).Scan(&e.ID, &e.RoomID, &e.PlayerID, &e.QuestionIndex, &e.IsCorrect, &e.AnswerTimeMs, &e.Timestamp)
	return e, err
}

const listEvents = `SELECT id, room_id, player_id, question_index, is_correct, answer_time_ms, timestamp
FROM room_events
WHERE room_id = $1
ORDER BY timestamp ASC, id ASC`

func (q *Queries) ListEvents(ctx context.Context, roomID pgtype.UUID) ([]EventRow, error) {
	rows, err := q.db.Query(ctx, listEvents, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(&e.ID, &e.RoomID, &e.PlayerID, &e.QuestionIndex, &e.IsCorrect, &e.AnswerTimeMs, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
