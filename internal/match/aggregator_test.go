package match

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/trivia-duel/internal/match/scoring"
	"github.com/gokatarajesh/trivia-duel/internal/room"
)

func TestAggregatorCountsFirstEventPerQuestion(t *testing.T) {
	ctx := context.Background()
	backend := room.NewMemoryBackend()
	r, err := backend.CreateRoom(ctx, room.NewRoom{Category: "History", Questions: makeQuestions(2), HostID: "host", HostUsername: "TriviaKing1"})
	require.NoError(t, err)
	_, err = backend.ClaimGuestSlot(ctx, r.ID, "guest", "AnswerPro2")
	require.NoError(t, err)

	appendEvent := func(player string, idx int, correct bool, d time.Duration) {
		_, err := backend.AppendEvent(ctx, room.NewEvent{RoomID: r.ID, PlayerID: player, QuestionIndex: idx, IsCorrect: correct, AnswerTime: d})
		require.NoError(t, err)
	}
	appendEvent("guest", 0, true, time.Second)
	appendEvent("guest", 0, false, 2*time.Second)
	appendEvent("host", 0, false, 3*time.Second)
	appendEvent("guest", 1, true, time.Second)

	agg := NewAggregator(backend, backend, scoring.NewEngine(scoring.DefaultConfig()), zerolog.Nop())
	res, _, err := agg.Calculate(ctx, r.ID, "guest")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Self.Slot)
	assert.Equal(t, "AnswerPro2", res.Self.Username)
	assert.Equal(t, "TriviaKing1", res.Opponent.Username)
	assert.Equal(t, 2, res.Self.Tally.CorrectCount)
	assert.Equal(t, 2, res.Self.Tally.Answered)
	assert.Equal(t, 0, res.Opponent.Tally.CorrectCount)
	assert.Equal(t, scoring.OutcomeWin, res.Outcome)
	assert.Equal(t, "guest", res.WinnerID)
	assert.False(t, res.Final)

	c := res.Completion()
	assert.Equal(t, res.Self.Tally.Score, c.Player2Score)
	assert.Equal(t, 0, c.Player1Score)

	completed, err := agg.Persist(ctx, res)
	require.NoError(t, err)
	assert.Equal(t, room.StatusCompleted, completed.Status)

	_, err = agg.Persist(ctx, res)
	assert.ErrorIs(t, err, room.ErrStatusConflict)
}

func TestAggregatorRejectsNonParticipant(t *testing.T) {
	ctx := context.Background()
	backend := room.NewMemoryBackend()
	r, err := backend.CreateRoom(ctx, room.NewRoom{Questions: makeQuestions(1), HostID: "host", HostUsername: "SmartPlayer3"})
	require.NoError(t, err)

	agg := NewAggregator(backend, backend, scoring.NewEngine(scoring.DefaultConfig()), zerolog.Nop())
	_, _, err = agg.Calculate(ctx, r.ID, "stranger")
	assert.ErrorIs(t, err, ErrNotParticipant)
}
