package question

import "math/rand/v2"

// Bank is the bundled fallback set used when the upstream is unavailable.
type Bank struct {
	questions []Question
}

// NewBank wraps a fixed question set. A nil set uses the bundled defaults.
func NewBank(questions []Question) *Bank {
	if questions == nil {
		questions = bundledQuestions
	}
	return &Bank{questions: questions}
}

// All returns a copy of every bundled question.
func (b *Bank) All() []Question {
	return append([]Question(nil), b.questions...)
}

// ByCategory returns bundled questions whose category equals category exactly.
func (b *Bank) ByCategory(category string) []Question {
	var out []Question
	for _, q := range b.questions {
		if q.Category == category {
			out = append(out, q)
		}
	}
	return out
}

// Pick shuffles the category subset and truncates it to n. With no exact category
// match, or an empty category, it picks from the whole bank.
func (b *Bank) Pick(category string, n int) []Question {
	pool := b.All()
	if category != "" {
		if subset := b.ByCategory(category); len(subset) > 0 {
			pool = subset
		}
	}
	return shuffleTake(pool, n)
}

func shuffleTake(qs []Question, n int) []Question {
	rand.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
	if n > 0 && len(qs) > n {
		qs = qs[:n]
	}
	return qs
}

var bundledQuestions = []Question{
	{
		ID:            "1",
		Category:      "Science",
		Prompt:        "What is the chemical symbol for gold?",
		Answers:       []string{"Go", "Au", "Gd", "Ag"},
		CorrectAnswer: 1,
		Difficulty:    DifficultyEasy,
	},
	{
		ID:            "2",
		Category:      "History",
		Prompt:        "In which year did World War II end?",
		Answers:       []string{"1943", "1944", "1945", "1946"},
		CorrectAnswer: 2,
		Difficulty:    DifficultyMedium,
	},
	{
		ID:            "3",
		Category:      "Sports",
		Prompt:        "How many players are on a basketball team on the court at once?",
		Answers:       []string{"4", "5", "6", "7"},
		CorrectAnswer: 1,
		Difficulty:    DifficultyEasy,
	},
	{
		ID:            "4",
		Category:      "Geography",
		Prompt:        "What is the capital of Australia?",
		Answers:       []string{"Sydney", "Melbourne", "Canberra", "Perth"},
		CorrectAnswer: 2,
		Difficulty:    DifficultyMedium,
	},
	{
		ID:            "5",
		Category:      "Entertainment",
		Prompt:        `Who directed the movie "Inception"?`,
		Answers:       []string{"Steven Spielberg", "Christopher Nolan", "Martin Scorsese", "Quentin Tarantino"},
		CorrectAnswer: 1,
		Difficulty:    DifficultyMedium,
	},
	{
		ID:            "6",
		Category:      "Science",
		Prompt:        "What is the speed of light in a vacuum?",
		Answers:       []string{"299,792,458 m/s", "150,000,000 m/s", "450,000,000 m/s", "100,000,000 m/s"},
		CorrectAnswer: 0,
		Difficulty:    DifficultyHard,
	},
	{
		ID:            "7",
		Category:      "Technology",
		Prompt:        `What does "HTTP" stand for?`,
		Answers:       []string{"HyperText Transfer Protocol", "High Transfer Text Protocol", "Hyper Transfer Text Process", "Home Transfer Text Protocol"},
		CorrectAnswer: 0,
		Difficulty:    DifficultyEasy,
	},
	{
		ID:            "8",
		Category:      "Geography",
		Prompt:        "Which is the largest ocean on Earth?",
		Answers:       []string{"Atlantic Ocean", "Indian Ocean", "Arctic Ocean", "Pacific Ocean"},
		CorrectAnswer: 3,
		Difficulty:    DifficultyEasy,
	},
}
