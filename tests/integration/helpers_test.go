//go:build integration
// +build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gokatarajesh/trivia-duel/internal/identity"
	wsmsg "github.com/gokatarajesh/trivia-duel/pkg/http/ws"
)

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func baseURL() string {
	return envOrDefault("INTEGRATION_BASE_URL", "http://localhost:8080")
}

func sessionURL() string {
	return envOrDefault("INTEGRATION_WS_URL", "ws://localhost:8080/ws/session")
}

func issueIdentity(t *testing.T) identity.IssueResponse {
	t.Helper()

	resp, err := http.Post(fmt.Sprintf("%s/v1/identity", baseURL()), "application/json", nil)
	if err != nil {
		t.Fatalf("identity request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected identity response status: %d", resp.StatusCode)
	}

	var out identity.IssueResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode identity response failed: %v", err)
	}
	if out.Token == "" || out.ID == "" {
		t.Fatalf("identity response missing token or player id")
	}
	return out
}

func dialSession(t *testing.T, token string) *websocket.Conn {
	t.Helper()

	u, err := url.Parse(sessionURL())
	if err != nil {
		t.Fatalf("invalid WS url: %v", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	return conn
}

func sendMessage(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()

	msg, err := wsmsg.NewMessage(msgType, payload, "")
	if err != nil {
		t.Fatalf("encode %s: %v", msgType, err)
	}
	conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("failed to send %s: %v", msgType, err)
	}
}

// waitForType reads until a message of msgType arrives, skipping everything else.
// An error message fails the test unless msgType is error.
func waitForType(t *testing.T, conn *websocket.Conn, msgType string, timeout time.Duration) wsmsg.Message {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		var msg wsmsg.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read ws message failed while waiting for %s: %v", msgType, err)
		}
		if msg.Type == msgType {
			return msg
		}
		if msg.Type == wsmsg.TypeError {
			t.Fatalf("unexpected error while waiting for %s: %s", msgType, msg.Payload)
		}
	}
	t.Fatalf("timed out waiting for %s", msgType)
	return wsmsg.Message{}
}

func decodePayload[T any](t *testing.T, msg wsmsg.Message) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		t.Fatalf("decode %s payload: %v", msg.Type, err)
	}
	return v
}
