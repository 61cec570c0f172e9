package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/coder/quartz"

	"github.com/lox/rpsforbots/cmd/rpsforbots/shared"
	"github.com/lox/rpsforbots/internal/auth"
	"github.com/lox/rpsforbots/internal/game"
	"github.com/lox/rpsforbots/internal/ledger"
	"github.com/lox/rpsforbots/internal/server"
	"github.com/lox/rpsforbots/internal/store"
)

// ServerCmd runs the websocket server
type ServerCmd struct {
	Config          string  `short:"c" default:"rpsforbots-server.hcl" help:"Path to HCL configuration file"`
	Addr            string  `short:"a" help:"Server address to bind to (overrides config)"`
	Port            int     `short:"p" help:"Port to listen on (overrides config)"`
	LogLevel        string  `short:"l" help:"Log level (overrides config)"`
	Database        string  `short:"d" help:"SQLite database path; balances and games survive restarts (overrides config)"`
	StartingBalance *uint64 `help:"Balance credited to new addresses (overrides config)"`
}

func (c *ServerCmd) Run(ctx context.Context) error {
	cfg, err := server.LoadServerConfig(c.Config)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	// Apply command line overrides
	if c.Addr != "" {
		cfg.Server.Address = c.Addr
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.Database != "" {
		cfg.Server.Database = c.Database
	}
	if c.StartingBalance != nil {
		cfg.Server.StartingBalance = *c.StartingBalance
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := shared.SetupLogger(os.Stderr, cfg.Server.LogLevel)
	ctx = shared.SetupSignalHandlerWithLogger(ctx, logger)

	var (
		bank server.Bank
		st   *store.Store
	)
	if cfg.Server.Database != "" {
		st, err = store.Open(cfg.Server.Database, logger)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		bank = server.StoreBank{Store: st}
	} else {
		logger.Warn("No database configured, balances are kept in memory")
		bank = server.MemoryBank{Ledger: ledger.New(logger)}
	}

	srv := server.NewServer(cfg.GetServerAddress(), bank, game.Amount(cfg.Server.StartingBalance), logger)
	games := server.NewGameManager(srv, bank, st, quartz.NewReal(), logger)
	srv.SetGameManager(games)
	if cfg.Server.AuthURL != "" {
		srv.SetValidator(auth.NewHTTPValidator(cfg.Server.AuthURL, cfg.Server.AuthSecret))
		logger.Info("Validating hello tokens", "url", cfg.Server.AuthURL)
	}

	if st != nil {
		n, err := games.RestoreGames(ctx)
		if err != nil {
			return fmt.Errorf("failed to restore games: %w", err)
		}
		logger.Info("Restored games", "count", n)
	}

	for _, block := range cfg.Games {
		if _, ok := games.GetGame(block.Name); ok {
			continue
		}
		init, err := block.InitConfig()
		if err != nil {
			return err
		}
		gs, err := games.CreateGame(ctx, block.Name, init)
		if err != nil {
			return fmt.Errorf("failed to create game %s: %w", block.Name, err)
		}
		logger.Info("Created game",
			"id", gs.ID(),
			"owner", init.Owner,
			"bet", init.Config.BetSize,
			"maxPlayers", init.Config.PlayersCountLimit)
	}

	logger.Info("Starting rpsforbots server",
		"addr", cfg.GetServerAddress(),
		"games", len(games.ListGames()),
		"database", cfg.Server.Database,
		"startingBalance", cfg.Server.StartingBalance)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	case err := <-serverErr:
		if err == nil {
			return errors.New("server stopped unexpectedly")
		}
		return err
	}
}
