package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/lox/rpsforbots/internal/game"
)

// CreateGameCommand creates a game owned by the caller
type CreateGameCommand struct {
	Bet           uint64        `short:"b" default:"10" help:"Bet each player pays to enter"`
	Players       int           `short:"n" default:"5" help:"Maximum players per game"`
	EntryTimeout  time.Duration `default:"1m" help:"Time allowed for the lobby to start a game"`
	MoveTimeout   time.Duration `default:"1m" help:"Time allowed to commit a move"`
	RevealTimeout time.Duration `default:"1m" help:"Time allowed to reveal a move"`
	Lobby         []string      `help:"Players to seed the lobby with"`
}

func (cmd *CreateGameCommand) Run(ctx context.Context, flags *GlobalFlags) error {
	s, err := SetupClient(ctx, flags)
	if err != nil {
		return err
	}
	defer s.Close()

	cfg := game.GameConfig{
		BetSize:           game.Amount(cmd.Bet),
		PlayersCountLimit: cmd.Players,
		EntryTimeout:      cmd.EntryTimeout,
		MoveTimeout:       cmd.MoveTimeout,
		RevealTimeout:     cmd.RevealTimeout,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	lobby := make([]game.Address, len(cmd.Lobby))
	for i, p := range cmd.Lobby {
		lobby[i] = game.Address(p)
	}

	reqCtx, cancel := s.RequestContext(ctx)
	defer cancel()
	summary, err := s.Client.CreateGame(reqCtx, cfg, lobby)
	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}
	fmt.Printf("Created game %s (bet %d, up to %d players)\n", summary.ID, summary.BetSize, summary.PlayersCountLimit)
	return nil
}
