// Package commands implements the interactive client subcommands.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/rpsforbots/internal/client"
	"github.com/lox/rpsforbots/internal/game"
)

// GlobalFlags holds common configuration for all commands
type GlobalFlags struct {
	Config   string `short:"c" long:"config" default:"rpsforbots-client.hcl" help:"Path to HCL configuration file"`
	Server   string `short:"s" long:"server" help:"Server URL to connect to (overrides config)"`
	Address  string `short:"a" long:"address" help:"Player address (overrides config)"`
	LogLevel string `short:"l" long:"log-level" help:"Log level (overrides config)"`
	LogFile  string `long:"log-file" help:"Log file path (overrides config)"`
}

// Session is a connected and greeted client.
type Session struct {
	Client  *client.Client
	Config  *client.ClientConfig
	Logger  *log.Logger
	Balance game.Amount
	cleanup func()
}

// Address returns the player address the session said hello with.
func (s *Session) Address() game.Address {
	return game.Address(s.Config.Player.Address)
}

// RequestContext bounds one request by the configured request timeout.
func (s *Session) RequestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(s.Config.Server.RequestTimeout)*time.Second)
}

// Close disconnects and releases the log file, if any.
func (s *Session) Close() {
	_ = s.Client.Disconnect()
	if s.cleanup != nil {
		s.cleanup()
	}
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(flags *GlobalFlags) (*client.ClientConfig, error) {
	cfg, err := client.LoadClientConfig(flags.Config)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	if flags.Server != "" {
		cfg.Server.URL = flags.Server
	}
	if flags.Address != "" {
		cfg.Player.Address = flags.Address
	}
	if flags.LogLevel != "" {
		cfg.UI.LogLevel = flags.LogLevel
	}
	if flags.LogFile != "" {
		cfg.UI.LogFile = flags.LogFile
	}
	return cfg, nil
}

// SetupClient creates and connects a client logging to stderr
func SetupClient(ctx context.Context, flags *GlobalFlags) (*Session, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	return connect(ctx, cfg, os.Stderr, nil)
}

// SetupClientWithFileLogging creates and connects a client logging to the
// configured file, leaving the terminal to the TUI.
func SetupClientWithFileLogging(ctx context.Context, flags *GlobalFlags) (*Session, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	// Setup logging to file (overwrite each time)
	logFile, err := os.OpenFile(cfg.UI.LogFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	s, err := connect(ctx, cfg, logFile, func() { _ = logFile.Close() })
	if err != nil {
		_ = logFile.Close()
		return nil, err
	}
	return s, nil
}

func connect(ctx context.Context, cfg *client.ClientConfig, logWriter io.Writer, cleanup func()) (*Session, error) {
	// Get player address if not set
	if cfg.Player.Address == "" {
		fmt.Print("Enter your player address: ")
		var input string
		_, _ = fmt.Scanln(&input)
		cfg.Player.Address = strings.TrimSpace(input)
		if cfg.Player.Address == "" {
			return nil, fmt.Errorf("player address is required")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := log.New(logWriter)
	level, err := log.ParseLevel(cfg.UI.LogLevel)
	if err != nil {
		level = log.WarnLevel
	}
	logger.SetLevel(level)

	wsClient := client.NewClient(cfg.Server.URL, logger)

	connectCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Server.ConnectTimeout)*time.Second)
	defer cancel()
	if err := wsClient.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}

	wsClient.SetToken(cfg.Player.Token)
	s := &Session{Client: wsClient, Config: cfg, Logger: logger, cleanup: cleanup}
	helloCtx, cancelHello := s.RequestContext(ctx)
	defer cancelHello()
	welcome, err := wsClient.Hello(helloCtx, game.Address(cfg.Player.Address))
	if err != nil {
		_ = wsClient.Disconnect()
		return nil, fmt.Errorf("failed to say hello: %w", err)
	}
	s.Balance = welcome.Balance
	return s, nil
}
