package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/lox/rpsforbots/cmd/rpsforbots/shared"
	"github.com/lox/rpsforbots/internal/spawner"
)

// SpawnCmd starts several `rpsforbots bot` processes against one game
type SpawnCmd struct {
	Strategies []string `arg:"" default:"random,random" help:"One bot per strategy (random, cycle, or a move)"`
	Server     string   `default:"http://localhost:8080" help:"Server URL"`
	Game       string   `required:"" help:"Game to play"`
	Prefix     string   `default:"bot" help:"Address prefix; bots are named <prefix>-<n>"`
	Games      uint64   `default:"0" help:"Each bot stops after this many completed games (0 plays forever)"`
	Seed       int64    `default:"0" help:"Base seed; each bot derives its own (0 for random)"`
	LogLevel   string   `default:"info" help:"Log level (debug|info|warn|error)"`
}

func (c *SpawnCmd) Run(ctx context.Context) error {
	logger := shared.SetupLogger(os.Stderr, c.LogLevel)

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	s := spawner.NewWithSeed(c.Server, logger, c.Seed)
	defer func() { _ = s.StopAll() }()

	for _, strategy := range c.Strategies {
		spec := spawner.BotSpec{
			Command: exe,
			Args:    c.botArgs(strategy),
			Count:   1,
			GameID:  c.Game,
			Prefix:  c.Prefix,
		}
		if err := s.Spawn(spec); err != nil {
			return err
		}
	}
	logger.Info("Bots running", "count", s.ActiveCount(), "game", c.Game)

	done := make(chan error, 1)
	go func() { done <- s.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return nil
	}
}

func (c *SpawnCmd) botArgs(strategy string) []string {
	return []string{
		"bot", strategy,
		"--games", strconv.FormatUint(c.Games, 10),
		"--wait", "10s",
		"--log-level", c.LogLevel,
	}
}
