package events

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/trivia-duel/internal/room"
)

func ev(player string, idx int) room.Event {
	return room.Event{ID: uuid.New(), PlayerID: player, QuestionIndex: idx}
}

func TestTrackerFiltersToOpponentAndDedups(t *testing.T) {
	tr := NewOpponentTracker("me")
	tr.SetRoom(room.Room{Player1ID: "me", Player2ID: "them"})

	e := ev("them", 0)
	assert.True(t, tr.Observe(e))
	assert.False(t, tr.Observe(e), "same event id delivered twice")
	assert.False(t, tr.Observe(ev("me", 1)))
	assert.False(t, tr.Observe(ev("stranger", 2)))

	assert.Len(t, tr.Events(), 1)
	assert.Equal(t, 0, tr.LatestIndex())
}

func TestTrackerMergesByIndexNotArrival(t *testing.T) {
	tr := NewOpponentTracker("me")
	tr.SetRoom(room.Room{Player1ID: "them", Player2ID: "me"})

	tr.Observe(ev("them", 2))
	tr.Observe(ev("them", 0))
	tr.Observe(ev("them", 1))

	got := tr.Events()
	require.Len(t, got, 3)
	for i, e := range got {
		assert.Equal(t, i, e.QuestionIndex)
	}
	assert.Equal(t, 2, tr.LatestIndex())
}

func TestTrackerBuffersUntilOpponentKnown(t *testing.T) {
	tr := NewOpponentTracker("me")
	tr.SetRoom(room.Room{Player1ID: "me"})

	assert.False(t, tr.Observe(ev("them", 0)))
	assert.Equal(t, -1, tr.LatestIndex())

	tr.SetRoom(room.Room{Player1ID: "me", Player2ID: "them"})
	assert.Equal(t, "them", tr.Opponent())
	assert.Equal(t, 0, tr.LatestIndex())
}

func TestStreamHistoryAndRealtimeOverlap(t *testing.T) {
	backend := room.NewMemoryBackend()
	ctx := context.Background()
	s := NewStream(backend, zerolog.New(io.Discard))

	r, err := backend.CreateRoom(ctx, room.NewRoom{Category: "Science", HostID: "host"})
	require.NoError(t, err)
	r, err = backend.ClaimGuestSlot(ctx, r.ID, "guest", "Guest")
	require.NoError(t, err)

	_, err = s.Append(ctx, r.ID, "guest", 0, true, 2*time.Second)
	require.NoError(t, err)

	tr := NewOpponentTracker("host")
	tr.SetRoom(*r)
	sub, err := s.SubscribeToInserts(ctx, r.ID, func(e room.Event) { tr.Observe(e) })
	require.NoError(t, err)
	defer sub.Close()

	history, err := s.LoadHistory(ctx, r.ID)
	require.NoError(t, err)
	tr.Seed(history)
	tr.Seed(history)

	_, err = s.Append(ctx, r.ID, "guest", 1, false, 3*time.Second)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return tr.LatestIndex() == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, tr.Events(), 2)
}
