package question

import (
	"context"
	"errors"
)

// Difficulty constants for readability.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Source labels reported by Load.
const (
	SourceCache    = "cache"
	SourceUpstream = "upstream"
	SourceFallback = "fallback"
)

var (
	// ErrInvalidCategory is fatal: the upstream rejected the category mapping.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrNoQuestions means neither the upstream nor the bank produced anything usable.
	ErrNoQuestions = errors.New("no questions available")
)

// Question is an immutable multiple-choice item shared by both players of a room.
type Question struct {
	ID            string   `json:"id"`
	Category      string   `json:"category"`
	Prompt        string   `json:"question"`
	Answers       []string `json:"answers"`
	CorrectAnswer int      `json:"correct_answer"`
	Difficulty    string   `json:"difficulty"`
}

// Valid reports whether the correct index points at one of the answers.
func (q Question) Valid() bool {
	return q.Prompt != "" && q.CorrectAnswer >= 0 && q.CorrectAnswer < len(q.Answers)
}

// Provider fetches a batch from one upstream question API.
type Provider interface {
	Fetch(ctx context.Context, amount int, category string) ([]Question, error)
}

// LoadRequest drives the single-player load path.
type LoadRequest struct {
	Count    int
	Category string
}

// LoadResult holds the selected questions and where they came from.
type LoadResult struct {
	Questions []Question
	Source    string
}
