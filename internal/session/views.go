package session

import (
	"errors"

	"github.com/gokatarajesh/trivia-duel/internal/fetchguard"
	"github.com/gokatarajesh/trivia-duel/internal/match"
	"github.com/gokatarajesh/trivia-duel/internal/matchmaking"
	"github.com/gokatarajesh/trivia-duel/internal/question"
	"github.com/gokatarajesh/trivia-duel/internal/room"
	httperrors "github.com/gokatarajesh/trivia-duel/pkg/http/errors"
)

// QuestionView is a question as shown while it can still be answered.
type QuestionView struct {
	ID         string   `json:"id"`
	Category   string   `json:"category"`
	Prompt     string   `json:"question"`
	Answers    []string `json:"answers"`
	Difficulty string   `json:"difficulty"`
}

// StateView is the payload of a state message.
type StateView struct {
	Mode           string        `json:"mode"`
	Phase          match.Phase   `json:"phase"`
	Question       *QuestionView `json:"question,omitempty"`
	Index          int           `json:"index"`
	Total          int           `json:"total"`
	Answered       bool          `json:"answered"`
	TimerExpired   bool          `json:"timer_expired"`
	Active         bool          `json:"active"`
	Ended          bool          `json:"ended"`
	Complete       bool          `json:"complete"`
	QuestionTimeMs int64         `json:"question_time_ms"`
	Score          int           `json:"score"`
	CorrectCount   int           `json:"correct_count"`

	RoomID              string      `json:"room_id,omitempty"`
	RoomStatus          room.Status `json:"room_status,omitempty"`
	PlayerNumber        int         `json:"player_number,omitempty"`
	OpponentLatestIndex *int        `json:"opponent_latest_index,omitempty"`
	OpponentAnswering   bool        `json:"opponent_answering,omitempty"`
}

// ResultsPayload carries exactly one of Single or Multi.
type ResultsPayload struct {
	Mode   string                   `json:"mode"`
	Final  bool                     `json:"final"`
	Single *match.GameResult        `json:"single,omitempty"`
	Multi  *match.MultiplayerResult `json:"multi,omitempty"`
}

func questionView(q *question.Question) *QuestionView {
	if q == nil {
		return nil
	}
	return &QuestionView{
		ID:         q.ID,
		Category:   q.Category,
		Prompt:     q.Prompt,
		Answers:    q.Answers,
		Difficulty: q.Difficulty,
	}
}

func singleView(s match.Snapshot) StateView {
	return StateView{
		Mode:           ModeSingle,
		Phase:          s.Phase,
		Question:       questionView(s.Question),
		Index:          s.Index,
		Total:          s.Total,
		Answered:       s.Answered,
		TimerExpired:   s.TimerExpired,
		Active:         s.Active,
		Ended:          s.Ended,
		Complete:       s.Complete,
		QuestionTimeMs: s.QuestionTimeMs,
		Score:          s.Score,
		CorrectCount:   s.CorrectCount,
	}
}

func multiView(s match.MultiSnapshot) StateView {
	v := singleView(s.Snapshot)
	v.Mode = ModeMulti
	v.RoomID = s.RoomID
	v.RoomStatus = s.RoomStatus
	v.PlayerNumber = s.PlayerNumber
	latest := s.OpponentLatestIndex
	v.OpponentLatestIndex = &latest
	v.OpponentAnswering = s.OpponentAnswering
	return v
}

// classify maps domain errors to wire codes. Anything unrecognised gets fallback.
func classify(err error, fallback string) *httperrors.Error {
	var coded *httperrors.Error
	switch {
	case errors.As(err, &coded):
		return coded
	case errors.Is(err, question.ErrInvalidCategory):
		return httperrors.New(httperrors.ErrCodeCategory, "The selected category is not available", err)
	case errors.Is(err, question.ErrNoQuestions), errors.Is(err, match.ErrRoomHasNoQuestions):
		return httperrors.New(httperrors.ErrCodeNoQuestions, "No questions available", err)
	case errors.Is(err, fetchguard.ErrFetchInProgress):
		return httperrors.New(httperrors.ErrCodeFetchInProgress, "Another question load is in progress, try again", err)
	case errors.Is(err, matchmaking.ErrDisabled):
		return httperrors.New(httperrors.ErrCodeMultiplayerDisabled, "Multiplayer is disabled", err)
	case errors.Is(err, matchmaking.ErrMatchmakingTimeout):
		return httperrors.New(httperrors.ErrCodeMatchmakingTimeout, "No opponent joined in time", err)
	case errors.Is(err, matchmaking.ErrCancelled):
		return httperrors.New(httperrors.ErrCodeMatchmakingCancelled, "Matchmaking cancelled", err)
	case errors.Is(err, room.ErrNotFound):
		return httperrors.New(httperrors.ErrCodeRoomNotFound, "Room not found", err)
	case errors.Is(err, room.ErrSlotTaken), errors.Is(err, room.ErrStatusConflict):
		return httperrors.New(httperrors.ErrCodeConflict, "Room changed concurrently, try again", err)
	case errors.Is(err, match.ErrNotParticipant):
		return httperrors.New(httperrors.ErrCodeNotParticipant, "You are not part of this room", err)
	default:
		return httperrors.New(fallback, "Request failed", err)
	}
}
