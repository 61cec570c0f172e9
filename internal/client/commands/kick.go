package commands

import (
	"context"
	"fmt"

	"github.com/lox/rpsforbots/internal/game"
)

// KickPlayerCommand removes a player from a game's lobby. Owner only.
type KickPlayerCommand struct {
	Game   string `arg:"" name:"game" help:"Game ID to kick the player from"`
	Player string `arg:"" name:"player" help:"Address of the player to remove"`
}

func (cmd *KickPlayerCommand) Run(ctx context.Context, flags *GlobalFlags) error {
	s, err := SetupClient(ctx, flags)
	if err != nil {
		return err
	}
	defer s.Close()

	reqCtx, cancel := s.RequestContext(ctx)
	defer cancel()
	if _, err := s.Client.Act(reqCtx, cmd.Game, 0, game.RemovePlayer{Player: game.Address(cmd.Player)}); err != nil {
		return fmt.Errorf("failed to kick %s: %w", cmd.Player, err)
	}
	fmt.Printf("Removed %s from %s\n", cmd.Player, cmd.Game)
	return nil
}

// AddPlayerCommand seats players in a game's lobby without payment. Owner only.
type AddPlayerCommand struct {
	Game    string   `arg:"" name:"game" help:"Game ID to add players to"`
	Players []string `arg:"" name:"players" help:"Addresses to add"`
}

func (cmd *AddPlayerCommand) Run(ctx context.Context, flags *GlobalFlags) error {
	s, err := SetupClient(ctx, flags)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, p := range cmd.Players {
		reqCtx, cancel := s.RequestContext(ctx)
		_, err := s.Client.Act(reqCtx, cmd.Game, 0, game.AddPlayer{Player: game.Address(p)})
		cancel()
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", p, err)
		}
		fmt.Printf("Added %s to %s\n", p, cmd.Game)
	}
	return nil
}
