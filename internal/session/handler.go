package session

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-duel/internal/identity"
	"github.com/gokatarajesh/trivia-duel/internal/logging"
	httperrors "github.com/gokatarajesh/trivia-duel/pkg/http/errors"
	"github.com/gokatarajesh/trivia-duel/pkg/http/ws"
)

// Manager accepts WebSocket connections and runs one Session per connection.
type Manager struct {
	hub      *ws.Hub
	deps     Deps
	opts     Options
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewManager(hub *ws.Hub, deps Deps, opts Options, logger zerolog.Logger) *Manager {
	return &Manager{
		hub:  hub,
		deps: deps,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "session_manager").Logger(),
	}
}

// HandleWebSocket upgrades an identified request and serves the session until the peer leaves.
// It must run behind identity.Middleware.
func (m *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	player, ok := identity.FromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Identity token required")
		return
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	log := m.logger.With().Str("player_id", player.ID).Str("username", player.Username).Logger()
	wsConn := ws.NewConnection(conn, log)
	m.hub.Register(player.ID, wsConn)
	go wsConn.WritePump()

	// The request context ends with the handler; the session lives as long as the socket.
	ctx := logging.IntoContext(context.Background(), log)
	sess := New(ctx, player, wsConn, m.deps, m.opts)
	m.deps.Metrics.SessionOpened()
	log.Info().Msg("session opened")

	wsConn.ReadPump(sess.Handle, func(err error) {
		_ = sess.sendError("", httperrors.New(httperrors.ErrCodeInvalidPayload, "Malformed message", err))
	})

	sess.Close()
	m.hub.Unregister(player.ID, wsConn)
	m.deps.Metrics.SessionClosed()
	log.Info().Msg("session closed")
}

// Shutdown closes every live connection.
func (m *Manager) Shutdown() {
	m.hub.CloseAll()
}
