package ws

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType constants for the session protocol.
const (
	// Client -> Server
	TypeStartSingle      = "start_single"
	TypeFindMatch        = "find_match"
	TypeCancelMatch      = "cancel_match"
	TypeSubmitAnswer     = "submit_answer"
	TypeAdvance          = "advance"
	TypeTimerExpired     = "timer_expired"
	TypeCalculateResults = "calculate_results"
	TypeLeave            = "leave"
	TypePing             = "ping"

	// Server -> Client
	TypeStarted            = "started"
	TypeState              = "state"
	TypeMatchmakingWaiting = "matchmaking_waiting"
	TypeMatchFound         = "match_found"
	TypeMatchmakingTimeout = "matchmaking_timeout"
	TypeAnswerResult       = "answer_result"
	TypeResults            = "results"
	TypeError              = "error"
	TypePong               = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

var errMissingType = errors.New("message type is required")

// Decode parses one frame.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if msg.Type == "" {
		return Message{}, errMissingType
	}
	return msg, nil
}

// NewMessage encodes payload into a message of type t.
func NewMessage(t string, payload any, requestID string) (Message, error) {
	msg := Message{Type: t, RequestID: requestID}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	msg.Payload = raw
	return msg, nil
}

// DecodePayload unmarshals the payload into v. An empty payload leaves v untouched.
func (m Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 || string(m.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// Client Messages (incoming)

type StartSinglePayload struct {
	Count    int    `json:"count,omitempty"` // default: QUESTION_COUNT
	Category string `json:"category,omitempty"`
}

type FindMatchPayload struct {
	Category string `json:"category,omitempty"`
}

type SubmitAnswerPayload struct {
	AnswerIndex int `json:"answer_index"`
}

// Server Messages (outgoing)

type StartedPayload struct {
	Mode   string `json:"mode"`
	Status string `json:"status"`
	Source string `json:"source,omitempty"`
}

type MatchmakingWaitingPayload struct {
	RoomID   string `json:"room_id"`
	Category string `json:"category"`
}

type MatchFoundPayload struct {
	RoomID       string   `json:"room_id"`
	PlayerNumber int      `json:"player_number"`
	Category     string   `json:"category"`
	Players      []Player `json:"players"`
}

type Player struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
}

type MatchmakingTimeoutPayload struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type AnswerResultPayload struct {
	Accepted      bool   `json:"accepted"`
	Correct       bool   `json:"correct"`
	Points        int    `json:"points"`
	Reason        string `json:"reason,omitempty"`
	CorrectAnswer *int   `json:"correct_answer,omitempty"`
}
