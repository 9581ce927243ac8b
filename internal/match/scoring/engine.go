package scoring

import (
	"cmp"
	"math"
	"time"

	"github.com/gokatarajesh/trivia-duel/internal/question"
	"github.com/gokatarajesh/trivia-duel/internal/room"
)

// NoAnswer marks a question that was never answered (timer expiry or back-fill).
const NoAnswer = -1

// Config holds the scoring constants.
type Config struct {
	MaxPoints int           // default: 1000
	MaxTime   time.Duration // default: 65s
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxPoints: 1000,
		MaxTime:   65 * time.Second,
	}
}

// Engine computes time-decayed scores.
type Engine struct {
	config Config
}

// NewEngine creates a scoring engine. Zero fields fall back to defaults.
func NewEngine(config Config) *Engine {
	def := DefaultConfig()
	if config.MaxPoints <= 0 {
		config.MaxPoints = def.MaxPoints
	}
	if config.MaxTime <= 0 {
		config.MaxTime = def.MaxTime
	}
	return &Engine{config: config}
}

func (e *Engine) Config() Config {
	return e.config
}

// QuestionScore awards points for one answer.
// Formula: round(max * (1 - min(1, elapsed/maxTime) * 0.5))
// - full points at zero elapsed, half at the deadline
// - nothing for wrong answers or answers after the deadline
func (e *Engine) QuestionScore(correct bool, elapsed time.Duration) int {
	if !correct || elapsed > e.config.MaxTime {
		return 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	ratio := math.Min(1, float64(elapsed)/float64(e.config.MaxTime))
	return int(math.Round(float64(e.config.MaxPoints) * (1 - ratio*0.5)))
}

// Answer is one single-player submission in the local log.
type Answer struct {
	QuestionIndex int           `json:"question_index"`
	QuestionID    string        `json:"question_id"`
	AnswerIndex   int           `json:"answer_index"`
	Elapsed       time.Duration `json:"elapsed"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Tally is the per-player reduction of a game.
type Tally struct {
	Score         int   `json:"score"`
	CorrectCount  int   `json:"correct_count"`
	Answered      int   `json:"answered"`
	TotalTimeMs   int64 `json:"total_time_ms"`
	AverageTimeMs int64 `json:"average_time_ms"`
}

// TallyLocal scans the local answer log once. Entries pointing past the question list are ignored.
func (e *Engine) TallyLocal(questions []question.Question, answers []Answer) Tally {
	var t Tally
	for _, a := range answers {
		if a.QuestionIndex < 0 || a.QuestionIndex >= len(questions) {
			continue
		}
		t.Answered++
		t.TotalTimeMs += a.Elapsed.Milliseconds()
		correct := a.AnswerIndex != NoAnswer && a.AnswerIndex == questions[a.QuestionIndex].CorrectAnswer
		if correct {
			t.CorrectCount++
			t.Score += e.QuestionScore(true, a.Elapsed)
		}
	}
	t.AverageTimeMs = average(t.TotalTimeMs, t.Answered)
	return t
}

// TallyEvents reduces one player's room events. Only the first event per question index counts,
// and indices outside the question list are ignored.
func (e *Engine) TallyEvents(questions []question.Question, events []room.Event) Tally {
	var t Tally
	seen := make(map[int]struct{}, len(events))
	for _, ev := range events {
		if ev.QuestionIndex < 0 || ev.QuestionIndex >= len(questions) {
			continue
		}
		if _, dup := seen[ev.QuestionIndex]; dup {
			continue
		}
		seen[ev.QuestionIndex] = struct{}{}
		t.Answered++
		t.TotalTimeMs += ev.AnswerTimeMs
		if ev.IsCorrect {
			t.CorrectCount++
			t.Score += e.QuestionScore(true, ev.AnswerTime())
		}
	}
	t.AverageTimeMs = average(t.TotalTimeMs, t.Answered)
	return t
}

func average(totalMs int64, n int) int64 {
	if n == 0 {
		return 0
	}
	return totalMs / int64(n)
}

// Outcome of a two-player comparison from the first player's point of view.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeTie  Outcome = "tie"
)

// Decide compares two tallies: more correct answers wins, then the lower average time.
func Decide(self, opponent Tally) Outcome {
	switch {
	case self.CorrectCount > opponent.CorrectCount:
		return OutcomeWin
	case self.CorrectCount < opponent.CorrectCount:
		return OutcomeLoss
	}
	switch compareAverage(self, opponent) {
	case -1:
		return OutcomeWin
	case 1:
		return OutcomeLoss
	default:
		return OutcomeTie
	}
}

// compareAverage orders exact average answer times without dividing. AverageTimeMs is
// truncated and only used for display. No answers counts as a zero average.
func compareAverage(a, b Tally) int {
	switch {
	case a.Answered == 0 && b.Answered == 0:
		return 0
	case a.Answered == 0:
		return cmp.Compare(0, b.TotalTimeMs)
	case b.Answered == 0:
		return cmp.Compare(a.TotalTimeMs, 0)
	}
	return cmp.Compare(a.TotalTimeMs*int64(b.Answered), b.TotalTimeMs*int64(a.Answered))
}
