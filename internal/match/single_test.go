package match

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/trivia-duel/internal/fetchguard"
	"github.com/gokatarajesh/trivia-duel/internal/question"
)

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) Load(ctx context.Context, req question.LoadRequest) (question.LoadResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(question.LoadResult), args.Error(1)
}

func newSingle(loader QuestionLoader, guard *fetchguard.Guard) *SinglePlayer {
	return NewSinglePlayer(loader, guard, EngineOptions{Now: newFakeClock().Now, Logger: zerolog.Nop()})
}

func TestSinglePlayerStartLoadsAndSkipsCached(t *testing.T) {
	ctx := context.Background()
	loader := new(mockLoader)
	loader.On("Load", mock.Anything, question.LoadRequest{Count: 5, Category: "Science"}).
		Return(question.LoadResult{Questions: makeQuestions(5), Source: question.SourceUpstream}, nil).Once()

	sp := newSingle(loader, fetchguard.New(0, zerolog.Nop()))

	status, err := sp.Start(ctx, 5, "Science")
	require.NoError(t, err)
	assert.Equal(t, StartLoaded, status)
	assert.Equal(t, question.SourceUpstream, sp.Source())
	assert.Equal(t, PhasePlaying, sp.Snapshot().Phase)

	status, err = sp.Start(ctx, 5, "Science")
	require.NoError(t, err)
	assert.Equal(t, StartSkippedCached, status)
	loader.AssertExpectations(t)
}

func TestSinglePlayerReloadsAfterGameEnded(t *testing.T) {
	ctx := context.Background()
	loader := new(mockLoader)
	loader.On("Load", mock.Anything, mock.Anything).
		Return(question.LoadResult{Questions: makeQuestions(2), Source: question.SourceFallback}, nil).Twice()

	sp := newSingle(loader, fetchguard.New(0, zerolog.Nop()))
	_, err := sp.Start(ctx, 2, "History")
	require.NoError(t, err)
	sp.End(ctx)

	res, ok := sp.Result()
	require.True(t, ok)
	assert.Len(t, res.Answers, 2)
	assert.Zero(t, res.Score)

	status, err := sp.Start(ctx, 2, "History")
	require.NoError(t, err)
	assert.Equal(t, StartLoaded, status)
	loader.AssertExpectations(t)
}

func TestSinglePlayerSkipsWhileGuardHeldElsewhere(t *testing.T) {
	guard := fetchguard.New(0, zerolog.Nop())
	require.NoError(t, guard.Acquire("Sports", fetchguard.ModeMulti))

	loader := new(mockLoader)
	sp := newSingle(loader, guard)

	status, err := sp.Start(context.Background(), 10, "Science")
	require.NoError(t, err)
	assert.Equal(t, StartSkippedGuard, status)
	loader.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
}

func TestSinglePlayerSkipsWhileLoadInFlight(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	entered := make(chan struct{})

	loader := new(mockLoader)
	loader.On("Load", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(question.LoadResult{Questions: makeQuestions(3)}, nil).Once()

	sp := newSingle(loader, fetchguard.New(0, zerolog.Nop()))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		status, err := sp.Start(ctx, 3, "Science")
		assert.NoError(t, err)
		assert.Equal(t, StartLoaded, status)
	}()

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("load never started")
	}
	status, err := sp.Start(ctx, 3, "Science")
	require.NoError(t, err)
	assert.Equal(t, StartSkippedInFlight, status)

	close(release)
	wg.Wait()
	loader.AssertExpectations(t)
}

func TestSinglePlayerInvalidCategoryResetsToIdle(t *testing.T) {
	ctx := context.Background()
	loader := new(mockLoader)
	loader.On("Load", mock.Anything, mock.Anything).
		Return(question.LoadResult{}, question.ErrInvalidCategory).Twice()

	guard := fetchguard.New(0, zerolog.Nop())
	sp := newSingle(loader, guard)

	_, err := sp.Start(ctx, 10, "Nope")
	require.ErrorIs(t, err, question.ErrInvalidCategory)
	assert.Equal(t, PhaseIdle, sp.Snapshot().Phase)

	_, held := guard.Held()
	assert.False(t, held)

	_, err = sp.Start(ctx, 10, "Nope")
	require.ErrorIs(t, err, question.ErrInvalidCategory)
	loader.AssertExpectations(t)
}
