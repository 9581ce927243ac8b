// Package identity issues the anonymous player identities used for matchmaking and room slots.
package identity

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

// Player is a stable id plus a display name.
type Player struct {
	ID       string `json:"player_id"`
	Username string `json:"username"`
}

var usernames = []string{
	"TriviaMaster",
	"QuickThinker",
	"BrainBox",
	"QuizWhiz",
	"SmartPlayer",
	"TriviaKing",
	"AnswerPro",
}

// NewPlayer generates a fresh id and a random display name such as "QuizWhiz417".
func NewPlayer() Player {
	return Player{
		ID:       uuid.NewString(),
		Username: fmt.Sprintf("%s%d", usernames[rand.IntN(len(usernames))], rand.IntN(1000)),
	}
}
