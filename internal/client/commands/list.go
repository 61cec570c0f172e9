package commands

import (
	"context"
	"fmt"
)

// ListGamesCommand lists all games hosted by the server
type ListGamesCommand struct{}

func (cmd *ListGamesCommand) Run(ctx context.Context, flags *GlobalFlags) error {
	s, err := SetupClient(ctx, flags)
	if err != nil {
		return err
	}
	defer s.Close()

	reqCtx, cancel := s.RequestContext(ctx)
	defer cancel()
	games, err := s.Client.ListGames(reqCtx)
	if err != nil {
		return fmt.Errorf("failed to list games: %w", err)
	}

	if len(games) == 0 {
		fmt.Println("No games available")
		return nil
	}
	fmt.Printf("Available games:\n")
	for _, g := range games {
		fmt.Printf("  %s: %s, %d/%d players, bet %d, pot %d, owner %s\n",
			g.ID, g.Stage, g.LobbySize, g.PlayersCountLimit, g.BetSize, g.Pot, g.Owner)
	}
	return nil
}
