package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/coder/quartz"

	"github.com/lox/rpsforbots/cmd/rpsforbots/shared"
	"github.com/lox/rpsforbots/internal/bot"
	"github.com/lox/rpsforbots/internal/client"
	"github.com/lox/rpsforbots/internal/game"
	"github.com/lox/rpsforbots/internal/randutil"
	"github.com/lox/rpsforbots/internal/server"
)

// BotCmd runs one built-in bot
type BotCmd struct {
	Strategy string        `arg:"" default:"random" help:"Bot strategy (random, cycle, or a fixed move such as rock)"`
	Server   string        `default:"http://localhost:8080" env:"RPSFORBOTS_SERVER" help:"Server URL"`
	Address  string        `required:"" env:"RPSFORBOTS_ADDRESS" help:"Address the bot plays as"`
	Game     string        `required:"" env:"RPSFORBOTS_GAME" help:"Game to play"`
	Token    string        `env:"RPSFORBOTS_TOKEN" help:"Token proving the address, when the server validates identities"`
	Games    uint64        `default:"0" help:"Stop after this many completed games (0 plays forever)"`
	Seed     int64         `default:"0" env:"RPSFORBOTS_SEED" help:"RNG seed for moves and salts (0 for random)"`
	Wait     time.Duration `default:"0s" help:"Wait up to this long for the server to become healthy"`
	LogLevel string        `default:"info" help:"Log level (debug|info|warn|error)"`
}

func (c *BotCmd) Run(ctx context.Context) error {
	logger := shared.SetupLogger(os.Stderr, c.LogLevel).With("bot", c.Address)

	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := randutil.New(seed)

	strategy, err := bot.NewStrategy(c.Strategy, rng)
	if err != nil {
		return err
	}

	clock := quartz.NewReal()
	if c.Wait > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, c.Wait)
		err := server.WaitForHealthy(waitCtx, clock, c.Server)
		cancel()
		if err != nil {
			return fmt.Errorf("server not healthy after %s: %w", c.Wait, err)
		}
	}

	wsClient := client.NewClient(c.Server, logger)
	if err := wsClient.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer func() { _ = wsClient.Disconnect() }()
	wsClient.SetToken(c.Token)

	welcome, err := wsClient.Hello(ctx, game.Address(c.Address))
	if err != nil {
		return fmt.Errorf("failed to say hello: %w", err)
	}
	logger.Info("Connected", "server", c.Server, "balance", welcome.Balance, "strategy", strategy.Name(), "seed", seed)

	b := bot.New(game.Address(c.Address), strategy, rng, logger)
	runner := bot.NewRunner(wsClient, b, c.Game, c.Games, clock, logger)
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
