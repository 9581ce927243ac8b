package question

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/trivia-duel/internal/question/external"
)

type stubOpentdb struct {
	gotCategory int
	questions   []external.OpenTDBQuestion
}

func (s *stubOpentdb) Fetch(_ context.Context, amount, categoryID int, _ string) ([]external.OpenTDBQuestion, error) {
	s.gotCategory = categoryID
	return s.questions[:min(amount, len(s.questions))], nil
}

func TestOpenTDBProviderNormalizes(t *testing.T) {
	stub := &stubOpentdb{questions: []external.OpenTDBQuestion{{
		Category:        "Entertainment: Film",
		Difficulty:      "hard",
		Question:        "Who said &quot;I&#039;ll be back&quot;?",
		CorrectAnswer:   "The Terminator",
		IncorrectAnswer: []string{"Rocky", "Rambo", "Ripley &amp; Co"},
	}}}
	p := NewOpenTDBProvider(stub, zerolog.New(io.Discard))

	qs, err := p.Fetch(context.Background(), 1, "Entertainment")
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, 10, stub.gotCategory)

	q := qs[0]
	assert.Equal(t, "Film", q.Category)
	assert.Equal(t, `Who said "I'll be back"?`, q.Prompt)
	assert.Equal(t, DifficultyHard, q.Difficulty)
	assert.Len(t, q.Answers, 4)
	assert.Equal(t, "The Terminator", q.Answers[q.CorrectAnswer])
	assert.Contains(t, q.Answers, "Ripley & Co")
	assert.NotEmpty(t, q.ID)
}

func TestOpenTDBProviderUnknownCategoryFetchesUncategorized(t *testing.T) {
	stub := &stubOpentdb{questions: []external.OpenTDBQuestion{{
		Question: "Q", CorrectAnswer: "A", IncorrectAnswer: []string{"B", "C", "D"},
	}}}
	p := NewOpenTDBProvider(stub, zerolog.New(io.Discard))

	_, err := p.Fetch(context.Background(), 1, "Cooking")
	require.NoError(t, err)
	assert.Equal(t, 0, stub.gotCategory)
}

func TestNormalizeDifficultyDefaultsToMedium(t *testing.T) {
	assert.Equal(t, DifficultyEasy, normalizeDifficulty("EASY"))
	assert.Equal(t, DifficultyMedium, normalizeDifficulty("impossible"))
}

func TestMatchesCategory(t *testing.T) {
	assert.True(t, MatchesCategory("Science", "science"))
	assert.True(t, MatchesCategory("Science & Nature", "Science"))
	assert.True(t, MatchesCategory("Science: Computers", "Computers"))
	assert.False(t, MatchesCategory("History", "Science"))
	assert.False(t, MatchesCategory("", "Science"))
}

func TestBankPick(t *testing.T) {
	bank := NewBank(nil)
	assert.Len(t, bank.All(), 8)

	science := bank.Pick("Science", 10)
	require.Len(t, science, 2)
	for _, q := range science {
		assert.Equal(t, "Science", q.Category)
		assert.True(t, q.Valid())
	}

	assert.Len(t, bank.Pick("Unknown", 3), 3)
	assert.Len(t, bank.Pick("", 20), 8)
}
