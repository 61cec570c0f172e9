package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lox/rpsforbots/cmd/rpsforbots/shared"
	"github.com/lox/rpsforbots/internal/store"
)

// JournalCmd prints stored games or one game's action journal
type JournalCmd struct {
	Database string `short:"d" required:"" help:"SQLite database written by the server"`
	Game     string `arg:"" optional:"" help:"Game to print; lists games when empty"`
}

func (c *JournalCmd) Run(ctx context.Context) error {
	logger := shared.SetupLogger(os.Stderr, "warn")
	st, err := store.Open(c.Database, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(labelStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headStyle
			}
			return cellStyle
		})

	if c.Game == "" {
		games, err := st.ListGames(ctx)
		if err != nil {
			return err
		}
		t.Headers("game", "owner", "account", "created")
		for _, g := range games {
			t.Row(g.ID, string(g.Owner), string(g.Account), g.CreatedAt.Local().Format(time.DateTime))
		}
		fmt.Println(t.String())
		return nil
	}

	entries, err := st.Actions(ctx, c.Game)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no actions recorded for game %s", c.Game)
	}
	t.Headers("seq", "time", "caller", "action", "value", "event", "params")
	for _, e := range entries {
		t.Row(
			fmt.Sprint(e.Seq),
			e.CreatedAt.Local().Format(time.TimeOnly),
			string(e.Caller),
			string(e.Kind),
			fmt.Sprint(e.Value),
			string(e.Event),
			string(e.Payload),
		)
	}
	fmt.Println(titleStyle.Render("Journal for " + c.Game))
	fmt.Println(t.String())
	return nil
}
