package bot

import "github.com/lox/rpsforbots/internal/game"

// FixedBot always throws the same move
type FixedBot struct {
	move game.Move
}

// NewFixedBot creates a new FixedBot instance
func NewFixedBot(move game.Move) *FixedBot {
	return &FixedBot{move: move}
}

func (f *FixedBot) Name() string { return f.move.String() }

func (f *FixedBot) ChooseMove(int) game.Move {
	return f.move
}

// CycleBot walks through the moves in order, starting from a given move
type CycleBot struct {
	start game.Move
}

// NewCycleBot creates a new CycleBot instance
func NewCycleBot(start game.Move) *CycleBot {
	return &CycleBot{start: start}
}

func (c *CycleBot) Name() string { return "cycle" }

func (c *CycleBot) ChooseMove(round int) game.Move {
	return game.AllMoves[(int(c.start)+round-1)%game.MoveCount]
}
