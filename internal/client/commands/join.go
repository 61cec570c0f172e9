package commands

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/lox/rpsforbots/internal/game"
	"github.com/lox/rpsforbots/internal/tui"
)

// JoinGameCommand opens a game in the TUI
type JoinGameCommand struct {
	Game string `arg:"" help:"Game ID to join"`
}

func (cmd *JoinGameCommand) Run(ctx context.Context, flags *GlobalFlags) error {
	// Log to file so the TUI owns the terminal
	s, err := SetupClientWithFileLogging(ctx, flags)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.Config.UI.NoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	s.Logger.Info("Starting rpsforbots client TUI",
		"server", s.Config.Server.URL,
		"address", s.Address(),
		"game", cmd.Game)

	reqCtx, cancel := s.RequestContext(ctx)
	_, err = s.Client.Query(reqCtx, cmd.Game)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to open game %s: %w", cmd.Game, err)
	}

	tuiModel := tui.NewTUIModel(s.Logger, s.Address(), cmd.Game)
	program := tea.NewProgram(tuiModel, tea.WithAltScreen(), tea.WithContext(ctx))

	bridge := tui.NewBridge(s.Client, tuiModel, program, s.Logger)
	bridge.SetStake(game.Amount(s.Config.Player.Stake))
	s.Client.AddEventHandler(bridge.HandleEvent)

	tuiModel.AddLogEntry(fmt.Sprintf("Connected to %s as %s (balance %d)", s.Config.Server.URL, s.Address(), s.Balance))
	bridge.Start(ctx)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
