package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/trivia-duel/internal/identity"
	"github.com/gokatarajesh/trivia-duel/internal/metrics"
	"github.com/gokatarajesh/trivia-duel/internal/session"
	"github.com/gokatarajesh/trivia-duel/pkg/http/ws"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	collector := metrics.New()
	sessions := session.NewManager(ws.NewHub(zerolog.Nop()), session.Deps{Metrics: collector}, session.Options{}, zerolog.Nop())
	srv := httptest.NewServer(NewRouter(zerolog.Nop(), Dependencies{
		Metrics:  collector,
		Identity: identity.NewManager([]byte("test-secret"), time.Hour),
		Sessions: sessions,
	}))
	t.Cleanup(func() {
		sessions.Shutdown()
		srv.Close()
	})
	return srv
}

func TestOperationalRoutes(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// No database or redis on the memory backend; ping still succeeds.
	resp, err = http.Get(srv.URL + "/v1/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionRequiresIdentity(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/ws/session")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSessionPingOverWebSocket(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/identity", "application/json", nil)
	require.NoError(t, err)
	var issued identity.IssueResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&issued))
	resp.Body.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session?token=" + issued.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.TypePing, RequestID: "r1"}))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply ws.Message
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, ws.TypePong, reply.Type)
	assert.Equal(t, "r1", reply.RequestID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, ws.TypeError, reply.Type)
}
