package question

import (
	"context"
	"html"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-duel/internal/question/external"
)

type opentdbFetcher interface {
	Fetch(ctx context.Context, amount, categoryID int, difficulty string) ([]external.OpenTDBQuestion, error)
}

type triviaFetcher interface {
	Fetch(ctx context.Context, amount int, category, difficulty string) ([]external.TriviaAPIQuestion, error)
}

// OpenTDBProvider adapts the Open Trivia DB client to Provider.
type OpenTDBProvider struct {
	client opentdbFetcher
	logger zerolog.Logger
}

func NewOpenTDBProvider(client opentdbFetcher, logger zerolog.Logger) *OpenTDBProvider {
	return &OpenTDBProvider{client: client, logger: logger.With().Str("component", "opentdb_provider").Logger()}
}

// Fetch maps the category name to an upstream id. Unknown names fetch uncategorized.
func (p *OpenTDBProvider) Fetch(ctx context.Context, amount int, category string) ([]Question, error) {
	categoryID := 0
	if category != "" {
		id, ok := external.OpenTDBCategoryID(category)
		if !ok {
			p.logger.Warn().Str("category", category).Msg("category has no upstream mapping, fetching uncategorized")
		}
		categoryID = id
	}

	raw, err := p.client.Fetch(ctx, amount, categoryID, "")
	if err != nil {
		return nil, err
	}
	out := make([]Question, 0, len(raw))
	for _, q := range raw {
		out = append(out, normalizeOpenTDB(q))
	}
	return out, nil
}

// TriviaAPIProvider adapts the trivia-api client to Provider.
type TriviaAPIProvider struct {
	client triviaFetcher
}

func NewTriviaAPIProvider(client triviaFetcher) *TriviaAPIProvider {
	return &TriviaAPIProvider{client: client}
}

var triviaAPISlugs = map[string]string{
	"Science":           "science",
	"History":           "history",
	"Sports":            "sport_and_leisure",
	"Entertainment":     "film_and_tv",
	"Geography":         "geography",
	"General Knowledge": "general_knowledge",
	"Technology":        "science",
}

func (p *TriviaAPIProvider) Fetch(ctx context.Context, amount int, category string) ([]Question, error) {
	raw, err := p.client.Fetch(ctx, amount, triviaAPISlugs[category], "")
	if err != nil {
		return nil, err
	}
	out := make([]Question, 0, len(raw))
	for _, q := range raw {
		out = append(out, normalizeTriviaAPI(q))
	}
	return out, nil
}

func normalizeOpenTDB(q external.OpenTDBQuestion) Question {
	answers, correct := shuffleAnswers(html.UnescapeString(q.CorrectAnswer), q.IncorrectAnswer, html.UnescapeString)
	return Question{
		ID:            uuid.NewString(),
		Category:      stripCategoryPrefix(html.UnescapeString(q.Category)),
		Prompt:        html.UnescapeString(q.Question),
		Answers:       answers,
		CorrectAnswer: correct,
		Difficulty:    normalizeDifficulty(q.Difficulty),
	}
}

func normalizeTriviaAPI(q external.TriviaAPIQuestion) Question {
	answers, correct := shuffleAnswers(q.Correct, q.Incorrect, strings.TrimSpace)
	id := q.ID
	if id == "" {
		id = uuid.NewString()
	}
	return Question{
		ID:            id,
		Category:      q.Category,
		Prompt:        q.Question,
		Answers:       answers,
		CorrectAnswer: correct,
		Difficulty:    normalizeDifficulty(q.Difficulty),
	}
}

func shuffleAnswers(correct string, incorrect []string, clean func(string) string) ([]string, int) {
	answers := make([]string, 0, len(incorrect)+1)
	for _, a := range incorrect {
		answers = append(answers, clean(a))
	}
	answers = append(answers, correct)
	rand.Shuffle(len(answers), func(i, j int) { answers[i], answers[j] = answers[j], answers[i] })
	for i, a := range answers {
		if a == correct {
			return answers, i
		}
	}
	return answers, -1
}

// stripCategoryPrefix turns "Entertainment: Books" into "Books".
func stripCategoryPrefix(label string) string {
	if i := strings.Index(label, ":"); i > 0 && strings.HasPrefix(label[i:], ": ") {
		return label[i+2:]
	}
	return label
}

func normalizeDifficulty(d string) string {
	switch strings.ToLower(d) {
	case DifficultyEasy:
		return DifficultyEasy
	case DifficultyHard:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}
