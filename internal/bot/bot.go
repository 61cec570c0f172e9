// Package bot plays rpsforbots games automatically. A Bot turns the visible
// state of a game into its next action; strategies only pick moves.
package bot

import (
	"fmt"
	rand "math/rand/v2"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/lox/rpsforbots/internal/game"
)

// Strategy chooses the move for each round a bot plays.
type Strategy interface {
	Name() string
	ChooseMove(round int) game.Move
}

// View is the part of a game's state a bot decides on.
type View struct {
	Stage             game.Stage
	Lobby             []game.Address
	BetSize           game.Amount
	PlayersCountLimit int
	GameNumber        uint64
}

// Decision is an action and the value to attach to it.
type Decision struct {
	Action game.Action
	Value  game.Amount
}

type secret struct {
	move game.Move
	salt string
}

// Bot tracks its own commitments across rounds. It is not safe for
// concurrent use.
type Bot struct {
	address  game.Address
	strategy Strategy
	rng      *rand.Rand
	logger   *log.Logger

	round   int
	game    uint64
	pending *secret
}

// New creates a bot for address. rng seeds the commitment salts.
func New(address game.Address, strategy Strategy, rng *rand.Rand, logger *log.Logger) *Bot {
	return &Bot{
		address:  address,
		strategy: strategy,
		rng:      rng,
		logger:   logger.WithPrefix("bot").With("address", address, "strategy", strategy.Name()),
	}
}

// Address returns the bot's address.
func (b *Bot) Address() game.Address {
	return b.address
}

// Decide returns the bot's next action, or false when it should wait for
// other players.
func (b *Bot) Decide(v View) (Decision, bool) {
	if v.GameNumber != b.game {
		b.game = v.GameNumber
		b.round = 0
		b.pending = nil
	}

	switch v.Stage.Kind {
	case game.Preparation:
		inLobby := slices.Contains(v.Lobby, b.address)
		if !inLobby {
			if len(v.Lobby) >= v.PlayersCountLimit {
				return Decision{}, false
			}
			return Decision{Action: game.Register{}, Value: v.BetSize}, true
		}
		if len(v.Lobby) < game.MinPlayersCount {
			return Decision{}, false
		}
		return b.commit(v), true

	case game.InProgress, game.Reveal:
		// eliminated players sit out until the next game
		if !v.Stage.IsPlayerInGame(b.address) {
			return Decision{}, false
		}
		if !v.Stage.Description.Anticipated.Contains(b.address) {
			return Decision{}, false
		}
		if v.Stage.Kind == game.InProgress {
			return b.commit(v), true
		}
		if b.pending == nil {
			return Decision{}, false
		}
		return Decision{Action: game.RevealMove{Move: b.pending.move, Salt: b.pending.salt}}, true
	}
	return Decision{}, false
}

// commit picks a fresh move and salt. The bet is always attached; the engine
// returns it as change once the bot has paid into the game.
func (b *Bot) commit(v View) Decision {
	b.round++
	move := b.strategy.ChooseMove(b.round)
	salt := fmt.Sprintf("%016x", b.rng.Uint64())
	b.pending = &secret{move: move, salt: salt}
	b.logger.Debug("Committing", "game", v.GameNumber, "round", b.round, "move", move)
	return Decision{Action: game.SubmitMove{Commitment: game.Commit(move, salt)}, Value: v.BetSize}
}

// NewStrategy builds a strategy by name: "random", "cycle" or a move name
// for a bot that always throws that move.
func NewStrategy(name string, rng *rand.Rand) (Strategy, error) {
	switch name {
	case "random":
		return NewRandBot(rng), nil
	case "cycle":
		return NewCycleBot(game.Move(rng.IntN(game.MoveCount))), nil
	}
	move, err := game.ParseMove(name)
	if err != nil {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	return NewFixedBot(move), nil
}
