package match

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gokatarajesh/trivia-duel/internal/match/scoring"
	"github.com/gokatarajesh/trivia-duel/internal/question"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func makeQuestions(n int) []question.Question {
	qs := make([]question.Question, n)
	for i := range qs {
		qs[i] = question.Question{
			ID:            fmt.Sprintf("q%d", i),
			Category:      "Science",
			Prompt:        fmt.Sprintf("question %d", i),
			Answers:       []string{"A", "B", "C", "D"},
			CorrectAnswer: 1,
			Difficulty:    question.DifficultyEasy,
		}
	}
	return qs
}

type recordedAnswer struct {
	answer  scoring.Answer
	correct bool
}

type stubRecorder struct {
	mu      sync.Mutex
	entries []recordedAnswer
	err     error
}

func (r *stubRecorder) Record(_ context.Context, a scoring.Answer, correct bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, recordedAnswer{answer: a, correct: correct})
	return nil
}

func (r *stubRecorder) fail(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *stubRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
