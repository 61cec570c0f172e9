package main

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lox/rpsforbots/cmd/rpsforbots/shared"
	"github.com/lox/rpsforbots/internal/fileutil"
	"github.com/lox/rpsforbots/internal/game"
	"github.com/lox/rpsforbots/internal/simulator"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	cellStyle  = lipgloss.NewStyle().Padding(0, 1)
	headStyle  = cellStyle.Bold(true)
)

// SimulateCmd plays bot-only games without a server
type SimulateCmd struct {
	Games    int           `short:"n" default:"1000" help:"Number of games to play"`
	Players  int           `short:"p" default:"3" help:"Players per game"`
	Strategy string        `short:"s" default:"mixed" help:"Strategy for every player (random, cycle, a move, or mixed)"`
	Bet      uint64        `default:"10" help:"Bet size"`
	Seed     int64         `default:"0" help:"Base RNG seed (0 for random)"`
	Parallel int           `default:"4" help:"Games played concurrently"`
	Timeout  time.Duration `default:"10s" help:"Per-game time limit"`
	Actions  int           `default:"10000" help:"Per-game action limit; longer games are stopped and split"`
	Output   string        `short:"o" help:"Also write the results as JSON to this file"`
	Verbose  bool          `help:"Verbose logging"`
}

func (c *SimulateCmd) Run(ctx context.Context) error {
	level := "warn"
	if c.Verbose {
		level = "debug"
	}
	logger := shared.SetupLogger(os.Stderr, level)

	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	sim := simulator.New(simulator.Config{
		Games:      c.Games,
		Players:    c.Players,
		Strategy:   c.Strategy,
		BetSize:    game.Amount(c.Bet),
		Seed:       seed,
		Parallel:   c.Parallel,
		Timeout:    c.Timeout,
		MaxActions: c.Actions,
		Logger:     logger,
	})

	start := time.Now()
	results, err := sim.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Println(titleStyle.Render("Simulation results"))
	fmt.Printf("%s %d games, %d players, strategy %s, seed %d\n", labelStyle.Render("setup:"), results.Games, c.Players, c.Strategy, seed)
	rs := results.RoundStats
	fmt.Printf("%s %.2f average, %.0f median, %.0f p90, %d longest\n", labelStyle.Render("rounds:"), results.AverageRounds(), rs.Median, rs.P90, results.LongestGame)
	fmt.Printf("%s %d in %s\n", labelStyle.Render("actions:"), results.TotalActions, elapsed.Round(time.Millisecond))
	if results.Stopped > 0 {
		fmt.Printf("%s %d games hit the action limit and were split\n", labelStyle.Render("stopped:"), results.Stopped)
	}
	fmt.Println()
	fmt.Println(winsTable(results))

	if c.Output != "" {
		if err := fileutil.WriteJSON(c.Output, results); err != nil {
			return err
		}
		fmt.Printf("%s %s\n", labelStyle.Render("written:"), c.Output)
	}
	return nil
}

func winsTable(r *simulator.Results) string {
	type row struct {
		strategy string
		wins     int
	}
	names := make(map[string]struct{})
	for s := range r.Wins {
		names[s] = struct{}{}
	}
	for s := range r.NetByStrategy {
		names[s] = struct{}{}
	}
	rows := make([]row, 0, len(names))
	for s := range names {
		rows = append(rows, row{s, r.Wins[s]})
	}
	slices.SortFunc(rows, func(a, b row) int {
		if c := cmp.Compare(b.wins, a.wins); c != 0 {
			return c
		}
		return cmp.Compare(a.strategy, b.strategy)
	})

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(labelStyle).
		Headers("strategy", "wins", "share", "net/seat", "95% ci").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headStyle
			}
			return cellStyle
		})
	for _, rw := range rows {
		share := 0.0
		if r.Games > 0 {
			share = 100 * float64(rw.wins) / float64(r.Games)
		}
		net, ci := "-", "-"
		if sum, ok := r.NetByStrategy[rw.strategy]; ok {
			net = fmt.Sprintf("%+.2f", sum.Mean)
			ci = fmt.Sprintf("[%+.2f, %+.2f]", sum.CILow, sum.CIHigh)
			if sum.Significant() {
				ci += " *"
			}
		}
		t.Row(rw.strategy, strconv.Itoa(rw.wins), fmt.Sprintf("%.1f%%", share), net, ci)
	}
	return t.String()
}
