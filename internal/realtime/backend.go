// Package realtime pushes room row changes and event inserts to every process over Redis pub/sub,
// on top of the Postgres room store.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-duel/internal/room"
)

// Store is the durable half of a room backend.
type Store interface {
	room.Repository
	AppendEvent(ctx context.Context, in room.NewEvent) (room.Event, error)
	ListEvents(ctx context.Context, roomID uuid.UUID) ([]room.Event, error)
}

// Backend persists through Store and notifies subscribers after every successful write.
// A failed publish is logged and never fails the write; late subscribers recover through
// GetRoom and ListEvents.
type Backend struct {
	store  Store
	redis  redis.UniversalClient
	logger zerolog.Logger
}

var _ room.Backend = (*Backend)(nil)

func NewBackend(store Store, client redis.UniversalClient, logger zerolog.Logger) *Backend {
	return &Backend{
		store:  store,
		redis:  client,
		logger: logger.With().Str("component", "realtime").Logger(),
	}
}

func RoomChannel(id uuid.UUID) string {
	return "room:" + id.String()
}

func EventChannel(id uuid.UUID) string {
	return "room_events:" + id.String()
}

func (b *Backend) CreateRoom(ctx context.Context, in room.NewRoom) (*room.Room, error) {
	return b.store.CreateRoom(ctx, in)
}

func (b *Backend) FindWaiting(ctx context.Context, category, excludePlayer string) (*room.Room, error) {
	return b.store.FindWaiting(ctx, category, excludePlayer)
}

func (b *Backend) GetRoom(ctx context.Context, roomID uuid.UUID) (*room.Room, error) {
	return b.store.GetRoom(ctx, roomID)
}

func (b *Backend) ClaimGuestSlot(ctx context.Context, roomID uuid.UUID, playerID, username string) (*room.Room, error) {
	r, err := b.store.ClaimGuestSlot(ctx, roomID, playerID, username)
	if err != nil {
		return nil, err
	}
	b.publish(ctx, RoomChannel(r.ID), r)
	return r, nil
}

func (b *Backend) CompleteRoom(ctx context.Context, c room.Completion) (*room.Room, error) {
	r, err := b.store.CompleteRoom(ctx, c)
	if err != nil {
		return nil, err
	}
	b.publish(ctx, RoomChannel(r.ID), r)
	return r, nil
}

func (b *Backend) AppendEvent(ctx context.Context, in room.NewEvent) (room.Event, error) {
	ev, err := b.store.AppendEvent(ctx, in)
	if err != nil {
		return room.Event{}, err
	}
	b.publish(ctx, EventChannel(ev.RoomID), ev)
	return ev, nil
}

func (b *Backend) ListEvents(ctx context.Context, roomID uuid.UUID) ([]room.Event, error) {
	return b.store.ListEvents(ctx, roomID)
}

func (b *Backend) WatchRoom(ctx context.Context, roomID uuid.UUID, fn func(room.Room)) (room.Subscription, error) {
	return watch(ctx, b, RoomChannel(roomID), fn)
}

func (b *Backend) WatchEvents(ctx context.Context, roomID uuid.UUID, fn func(room.Event)) (room.Subscription, error) {
	return watch(ctx, b, EventChannel(roomID), fn)
}

func (b *Backend) publish(ctx context.Context, channel string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		b.logger.Warn().Err(err).Str("channel", channel).Msg("failed to encode notification")
		return
	}
	if err := b.redis.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Warn().Err(err).Str("channel", channel).Msg("failed to publish notification")
	}
}

// watch subscribes to channel and returns once Redis confirmed the subscription, so no
// notification published after it returns can be missed.
func watch[T any](ctx context.Context, b *Backend, channel string, fn func(T)) (room.Subscription, error) {
	sub := b.redis.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	mb := room.NewMailbox(fn)
	mb.OnClose(func() { _ = sub.Close() })
	mb.CloseOn(ctx)

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-mb.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var v T
				if err := json.Unmarshal([]byte(msg.Payload), &v); err != nil {
					b.logger.Warn().Err(err).Str("channel", channel).Msg("failed to decode notification")
					continue
				}
				mb.Push(v)
			}
		}
	}()
	return mb, nil
}
