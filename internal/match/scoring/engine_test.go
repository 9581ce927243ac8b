package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gokatarajesh/trivia-duel/internal/question"
	"github.com/gokatarajesh/trivia-duel/internal/room"
)

func tenQuestions() []question.Question {
	qs := make([]question.Question, 10)
	for i := range qs {
		qs[i] = question.Question{ID: string(rune('a' + i)), Answers: []string{"A", "B", "C", "D"}, CorrectAnswer: 1}
	}
	return qs
}

func TestQuestionScoreBoundaries(t *testing.T) {
	e := NewEngine(DefaultConfig())

	assert.Equal(t, 1000, e.QuestionScore(true, 0))
	assert.Equal(t, 500, e.QuestionScore(true, 65*time.Second))
	assert.Equal(t, 0, e.QuestionScore(true, 65*time.Second+time.Millisecond))
	assert.Equal(t, 0, e.QuestionScore(false, time.Second))
}

func TestQuestionScoreMatchesFormula(t *testing.T) {
	e := NewEngine(Config{MaxPoints: 1000, MaxTime: 65 * time.Second})
	for ms := int64(0); ms <= 65000; ms += 1237 {
		elapsed := time.Duration(ms) * time.Millisecond
		want := int(math.Round(1000 * (1 - math.Min(1, float64(elapsed)/float64(65*time.Second))*0.5)))
		assert.Equal(t, want, e.QuestionScore(true, elapsed), "elapsed=%s", elapsed)
	}
}

func TestQuestionScoreOddMaxRounds(t *testing.T) {
	e := NewEngine(Config{MaxPoints: 999, MaxTime: 10 * time.Second})
	assert.Equal(t, 500, e.QuestionScore(true, 10*time.Second))
}

func TestTallyLocalSinglePlayerScenario(t *testing.T) {
	e := NewEngine(DefaultConfig())
	qs := tenQuestions()

	answers := []Answer{
		{QuestionIndex: 0, AnswerIndex: 1, Elapsed: 0},
		{QuestionIndex: 1, AnswerIndex: 2, Elapsed: 30 * time.Second},
	}
	for i := 2; i < 10; i++ {
		answers = append(answers, Answer{QuestionIndex: i, AnswerIndex: NoAnswer, Elapsed: 65 * time.Second})
	}

	tally := e.TallyLocal(qs, answers)
	assert.Equal(t, 1, tally.CorrectCount)
	assert.Equal(t, 1000, tally.Score)
	assert.Equal(t, 10, tally.Answered)
}

func eventsFor(player string, correct int, answerMs int64) []room.Event {
	out := make([]room.Event, 0, 10)
	for i := 0; i < 10; i++ {
		out = append(out, room.Event{PlayerID: player, QuestionIndex: i, IsCorrect: i < correct, AnswerTimeMs: answerMs})
	}
	return out
}

func TestDecideTieBreakByAverageTime(t *testing.T) {
	e := NewEngine(DefaultConfig())
	qs := tenQuestions()

	a := e.TallyEvents(qs, eventsFor("a", 8, 9000))
	b := e.TallyEvents(qs, eventsFor("b", 8, 4000))

	assert.Equal(t, 8, a.CorrectCount)
	assert.Equal(t, 8, b.CorrectCount)
	assert.EqualValues(t, 4000, b.AverageTimeMs)
	assert.Equal(t, OutcomeLoss, Decide(a, b))
	assert.Equal(t, OutcomeWin, Decide(b, a))
}

func TestDecideCorrectCountFirstThenTie(t *testing.T) {
	assert.Equal(t, OutcomeWin, Decide(Tally{CorrectCount: 5, AverageTimeMs: 9000}, Tally{CorrectCount: 4, AverageTimeMs: 100}))
	assert.Equal(t, OutcomeTie, Decide(Tally{CorrectCount: 5, Answered: 5, TotalTimeMs: 500}, Tally{CorrectCount: 5, Answered: 10, TotalTimeMs: 1000}))
	assert.Equal(t, OutcomeTie, Decide(Tally{}, Tally{}))
}

func TestDecideSubMillisecondAverages(t *testing.T) {
	e := NewEngine(DefaultConfig())
	qs := tenQuestions()

	a := e.TallyEvents(qs, eventsFor("a", 8, 1000))
	b := e.TallyEvents(qs, eventsFor("b", 8, 1000))
	a.TotalTimeMs += 4
	b.TotalTimeMs += 6
	a.AverageTimeMs, b.AverageTimeMs = 1000, 1000

	assert.Equal(t, OutcomeWin, Decide(a, b))
	assert.Equal(t, OutcomeLoss, Decide(b, a))
	assert.Equal(t, OutcomeTie, Decide(a, a))
}

func TestDecideUnansweredCountsAsZeroAverage(t *testing.T) {
	answered := Tally{CorrectCount: 0, Answered: 2, TotalTimeMs: 3000}
	assert.Equal(t, OutcomeWin, Decide(Tally{}, answered))
	assert.Equal(t, OutcomeLoss, Decide(answered, Tally{}))
}

func TestTallyEventsIgnoresDuplicatesAndOutOfRange(t *testing.T) {
	e := NewEngine(DefaultConfig())
	qs := tenQuestions()[:2]

	tally := e.TallyEvents(qs, []room.Event{
		{QuestionIndex: 0, IsCorrect: true, AnswerTimeMs: 0},
		{QuestionIndex: 0, IsCorrect: true, AnswerTimeMs: 0},
		{QuestionIndex: 7, IsCorrect: true, AnswerTimeMs: 0},
		{QuestionIndex: 1, IsCorrect: false, AnswerTimeMs: 2000},
	})
	assert.Equal(t, 1, tally.CorrectCount)
	assert.Equal(t, 1000, tally.Score)
	assert.Equal(t, 2, tally.Answered)
	assert.EqualValues(t, 1000, tally.AverageTimeMs)
}

func TestTallyEmptyHasZeroAverage(t *testing.T) {
	e := NewEngine(DefaultConfig())
	assert.Equal(t, Tally{}, e.TallyEvents(tenQuestions(), nil))
}
