package game

import (
	"fmt"
	"time"
)

const (
	// MinTimeout is the shortest allowed entry, move or reveal timeout.
	MinTimeout = 5 * time.Second

	// MinPlayersCount is the smallest lobby capacity that can host a game.
	MinPlayersCount = 2
)

// Amount is a quantity of value held or moved by the game.
type Amount uint64

// addAmount adds without wrapping.
func addAmount(a, b Amount) (Amount, error) {
	sum := a + b
	if sum < a {
		return 0, fmt.Errorf("%w: %d + %d", ErrAmountOverflow, a, b)
	}
	return sum, nil
}

// GameConfig holds the parameters of one game. It is fixed while a game is
// running; changes are staged and rolled in when the next game opens.
type GameConfig struct {
	BetSize           Amount        `json:"bet_size"`
	PlayersCountLimit int           `json:"players_count_limit"`
	EntryTimeout      time.Duration `json:"entry_timeout"`
	MoveTimeout       time.Duration `json:"move_timeout"`
	RevealTimeout     time.Duration `json:"reveal_timeout"`
}

// DefaultGameConfig returns a config accepted by Validate.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		BetSize:           1000,
		PlayersCountLimit: 10,
		EntryTimeout:      time.Minute,
		MoveTimeout:       time.Minute,
		RevealTimeout:     time.Minute,
	}
}

// Validate checks the capacity and timeout lower bounds.
func (c GameConfig) Validate() error {
	if c.PlayersCountLimit < MinPlayersCount {
		return fmt.Errorf("%w: %d < %d", ErrPlayersLimitTooLow, c.PlayersCountLimit, MinPlayersCount)
	}
	timeouts := []struct {
		name  string
		value time.Duration
	}{
		{"entry", c.EntryTimeout},
		{"move", c.MoveTimeout},
		{"reveal", c.RevealTimeout},
	}
	for _, t := range timeouts {
		if t.value < MinTimeout {
			return fmt.Errorf("%w: %s timeout %v < %v", ErrTimeoutTooLow, t.name, t.value, MinTimeout)
		}
	}
	return nil
}

// timeoutFor returns the deadline length of the given stage.
func (c GameConfig) timeoutFor(kind StageKind) time.Duration {
	switch kind {
	case InProgress:
		return c.MoveTimeout
	case Reveal:
		return c.RevealTimeout
	default:
		return c.EntryTimeout
	}
}

// InitConfig is the input used to create an engine.
type InitConfig struct {
	Owner  Address
	Config GameConfig
	// Lobby optionally pre-populates the first game's lobby. These players
	// have not paid and are charged on their first move.
	Lobby []Address
}
