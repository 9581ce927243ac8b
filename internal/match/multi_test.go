package match

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/trivia-duel/internal/events"
	"github.com/gokatarajesh/trivia-duel/internal/match/scoring"
	"github.com/gokatarajesh/trivia-duel/internal/room"
)

type duelFixture struct {
	backend *room.MemoryBackend
	deps    MultiplayerDeps
	room    *room.Room
}

func newDuel(t *testing.T, questions int) *duelFixture {
	t.Helper()
	ctx := context.Background()
	backend := room.NewMemoryBackend()
	scorer := scoring.NewEngine(scoring.DefaultConfig())

	r, err := backend.CreateRoom(ctx, room.NewRoom{
		Category:     "Science",
		Questions:    makeQuestions(questions),
		HostID:       "p1",
		HostUsername: "BrainBox12",
	})
	require.NoError(t, err)
	r, err = backend.ClaimGuestSlot(ctx, r.ID, "p2", "QuizWhiz7")
	require.NoError(t, err)

	return &duelFixture{
		backend: backend,
		room:    r,
		deps: MultiplayerDeps{
			Rooms:      backend,
			Feed:       backend,
			Stream:     events.NewStream(backend, zerolog.Nop()),
			Aggregator: NewAggregator(backend, backend, scorer, zerolog.Nop()),
			Claims:     NewLocalCompletionGuard(),
		},
	}
}

func (f *duelFixture) join(t *testing.T, playerID string, clock *fakeClock) *Multiplayer {
	t.Helper()
	m := NewMultiplayer(f.deps, MultiplayerOptions{
		RoomID:        f.room.ID,
		PlayerID:      playerID,
		Category:      "Science",
		OpponentGrace: time.Minute,
		Engine:        EngineOptions{Now: clock.Now, Logger: zerolog.Nop()},
	})
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Close)
	return m
}

// play answers every question after think, getting the first correct questions right.
func play(t *testing.T, m *Multiplayer, clock *fakeClock, correct int, think time.Duration) {
	t.Helper()
	ctx := context.Background()
	total := len(m.Questions())
	for i := 0; i < total; i++ {
		clock.Advance(think)
		choice := 0
		if i < correct {
			choice = 1
		}
		res, err := m.SubmitAnswer(ctx, choice)
		require.NoError(t, err)
		require.True(t, res.Accepted, "question %d", i)
		m.Advance()
	}
}

func TestMultiplayerTieBreakOnAverageTime(t *testing.T) {
	ctx := context.Background()
	f := newDuel(t, 10)
	clockA, clockB := newFakeClock(), newFakeClock()
	a := f.join(t, "p1", clockA)
	b := f.join(t, "p2", clockB)

	play(t, a, clockA, 8, 9*time.Second)
	play(t, b, clockB, 8, 4*time.Second)

	resA, err := a.CalculateResults(ctx)
	require.NoError(t, err)
	assert.True(t, resA.Final)
	assert.Equal(t, scoring.OutcomeLoss, resA.Outcome)
	assert.Equal(t, "p2", resA.WinnerID)
	assert.EqualValues(t, 9000, resA.Self.Tally.AverageTimeMs)
	assert.EqualValues(t, 4000, resA.Opponent.Tally.AverageTimeMs)

	resB, err := b.CalculateResults(ctx)
	require.NoError(t, err)
	assert.True(t, resB.Final)
	assert.Equal(t, scoring.OutcomeWin, resB.Outcome)
	assert.Equal(t, resA.WinnerID, resB.WinnerID)

	scorer := scoring.NewEngine(scoring.DefaultConfig())
	stored, err := f.backend.GetRoom(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.StatusCompleted, stored.Status)
	assert.Equal(t, 8*scorer.QuestionScore(true, 9*time.Second), stored.Player1Score)
	assert.Equal(t, 8*scorer.QuestionScore(true, 4*time.Second), stored.Player2Score)
	assert.Equal(t, "p2", stored.WinnerID)
}

func TestMultiplayerSeesOpponentProgress(t *testing.T) {
	f := newDuel(t, 3)
	clockA, clockB := newFakeClock(), newFakeClock()
	a := f.join(t, "p1", clockA)
	b := f.join(t, "p2", clockB)

	assert.Equal(t, -1, a.State().OpponentLatestIndex)
	play(t, b, clockB, 3, time.Second)

	require.Eventually(t, func() bool { return a.State().OpponentLatestIndex == 2 }, time.Second, 5*time.Millisecond)
	assert.Len(t, a.OpponentEvents(), 3)
	assert.Equal(t, 2, b.State().PlayerNumber)
	assert.True(t, b.IsComplete())
	assert.False(t, a.IsComplete())
}

func TestMultiplayerResultsProvisionalUntilOpponentOrGrace(t *testing.T) {
	ctx := context.Background()
	f := newDuel(t, 4)
	clockA, clockB := newFakeClock(), newFakeClock()
	a := f.join(t, "p1", clockA)
	b := f.join(t, "p2", clockB)

	play(t, a, clockA, 4, time.Second)
	_, err := b.SubmitAnswer(ctx, 1)
	require.NoError(t, err)

	res, err := a.CalculateResults(ctx)
	require.NoError(t, err)
	assert.False(t, res.Final)
	assert.Equal(t, 1, res.Opponent.Tally.Answered)

	stored, err := f.backend.GetRoom(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.StatusActive, stored.Status)

	clockA.Advance(time.Minute)
	res, err = a.CalculateResults(ctx)
	require.NoError(t, err)
	assert.True(t, res.Final)
	assert.Equal(t, scoring.OutcomeWin, res.Outcome)

	require.Eventually(t, func() bool { return b.State().RoomStatus == room.StatusCompleted }, time.Second, 5*time.Millisecond)
	assert.True(t, b.IsComplete())

	b.Advance()
	_, err = b.SubmitAnswer(ctx, 1)
	assert.ErrorIs(t, err, room.ErrStatusConflict)
}

func TestMultiplayerCompletesRoomOnce(t *testing.T) {
	ctx := context.Background()
	f := newDuel(t, 5)
	clockA, clockB := newFakeClock(), newFakeClock()
	a := f.join(t, "p1", clockA)
	b := f.join(t, "p2", clockB)

	play(t, a, clockA, 3, 2*time.Second)
	play(t, b, clockB, 3, 2*time.Second)

	var wg sync.WaitGroup
	for _, m := range []*Multiplayer{a, b} {
		wg.Add(1)
		go func(m *Multiplayer) {
			defer wg.Done()
			_, err := m.CalculateResults(ctx)
			assert.NoError(t, err)
		}(m)
	}
	wg.Wait()

	resA, err := a.CalculateResults(ctx)
	require.NoError(t, err)
	resB, err := b.CalculateResults(ctx)
	require.NoError(t, err)
	assert.True(t, resA.Final)
	assert.True(t, resB.Final)
	assert.Equal(t, scoring.OutcomeTie, resA.Outcome)
	assert.Equal(t, scoring.OutcomeTie, resB.Outcome)
	assert.Empty(t, resA.WinnerID)

	stored, err := f.backend.GetRoom(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.Player1Score, stored.Player2Score)
	assert.Empty(t, stored.WinnerID)
}

func TestMultiplayerRejectsOutsider(t *testing.T) {
	f := newDuel(t, 2)
	m := NewMultiplayer(f.deps, MultiplayerOptions{RoomID: f.room.ID, PlayerID: "p3"})
	assert.ErrorIs(t, m.Start(context.Background()), ErrNotParticipant)
}
