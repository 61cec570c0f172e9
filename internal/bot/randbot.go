package bot

import (
	rand "math/rand/v2"

	"github.com/lox/rpsforbots/internal/game"
)

// RandBot throws a uniformly random move each round
type RandBot struct {
	rng *rand.Rand
}

// NewRandBot creates a new RandBot instance
func NewRandBot(rng *rand.Rand) *RandBot {
	return &RandBot{rng: rng}
}

func (r *RandBot) Name() string { return "random" }

func (r *RandBot) ChooseMove(int) game.Move {
	return game.AllMoves[r.rng.IntN(game.MoveCount)]
}
