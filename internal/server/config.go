package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/rpsforbots/internal/game"
)

// ServerConfig represents the complete server configuration
type ServerConfig struct {
	Server ServerSettings `hcl:"server,block"`
	Games  []GameBlock    `hcl:"game,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address         string `hcl:"address,optional"`
	Port            int    `hcl:"port,optional"`
	LogLevel        string `hcl:"log_level,optional"`
	Database        string `hcl:"database,optional"`
	StartingBalance uint64 `hcl:"starting_balance,optional"`
	AuthURL         string `hcl:"auth_url,optional"`
	AuthSecret      string `hcl:"auth_secret,optional"`
}

// GameBlock defines a game created when the server starts. Timeouts are
// duration strings such as "30s".
type GameBlock struct {
	Name          string   `hcl:"name,label"`
	Owner         string   `hcl:"owner"`
	BetSize       uint64   `hcl:"bet_size,optional"`
	MaxPlayers    int      `hcl:"max_players,optional"`
	EntryTimeout  string   `hcl:"entry_timeout,optional"`
	MoveTimeout   string   `hcl:"move_timeout,optional"`
	RevealTimeout string   `hcl:"reveal_timeout,optional"`
	Lobby         []string `hcl:"lobby,optional"`
}

const (
	defaultAddress         = "localhost"
	defaultPort            = 8080
	defaultLogLevel        = "info"
	defaultStartingBalance = 10_000
)

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	def := game.DefaultGameConfig()
	return &ServerConfig{
		Server: ServerSettings{
			Address:         defaultAddress,
			Port:            defaultPort,
			LogLevel:        defaultLogLevel,
			StartingBalance: defaultStartingBalance,
		},
		Games: []GameBlock{
			{
				Name:          "main",
				Owner:         "house",
				BetSize:       uint64(def.BetSize),
				MaxPlayers:    def.PlayersCountLimit,
				EntryTimeout:  def.EntryTimeout.String(),
				MoveTimeout:   def.MoveTimeout.String(),
				RevealTimeout: def.RevealTimeout.String(),
			},
		},
	}
}

// LoadServerConfig loads server configuration from HCL file
func LoadServerConfig(filename string) (*ServerConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

func (c *ServerConfig) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = defaultAddress
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = defaultLogLevel
	}
	if c.Server.StartingBalance == 0 {
		c.Server.StartingBalance = defaultStartingBalance
	}

	def := game.DefaultGameConfig()
	for i := range c.Games {
		g := &c.Games[i]
		if g.BetSize == 0 {
			g.BetSize = uint64(def.BetSize)
		}
		if g.MaxPlayers == 0 {
			g.MaxPlayers = def.PlayersCountLimit
		}
		if g.EntryTimeout == "" {
			g.EntryTimeout = def.EntryTimeout.String()
		}
		if g.MoveTimeout == "" {
			g.MoveTimeout = def.MoveTimeout.String()
		}
		if g.RevealTimeout == "" {
			g.RevealTimeout = def.RevealTimeout.String()
		}
	}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	seen := make(map[string]bool)
	for _, g := range c.Games {
		if seen[g.Name] {
			return fmt.Errorf("game %s: defined twice", g.Name)
		}
		seen[g.Name] = true
		if g.Owner == "" {
			return fmt.Errorf("game %s: owner is required", g.Name)
		}
		cfg, err := g.GameConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("game %s: %w", g.Name, err)
		}
	}
	return nil
}

// GetServerAddress returns the full server address
func (c *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// GameConfig converts the block into an engine config.
func (g GameBlock) GameConfig() (game.GameConfig, error) {
	timeouts := make([]time.Duration, 3)
	for i, s := range []string{g.EntryTimeout, g.MoveTimeout, g.RevealTimeout} {
		d, err := time.ParseDuration(s)
		if err != nil {
			return game.GameConfig{}, fmt.Errorf("game %s: invalid timeout %q: %w", g.Name, s, err)
		}
		timeouts[i] = d
	}
	return game.GameConfig{
		BetSize:           game.Amount(g.BetSize),
		PlayersCountLimit: g.MaxPlayers,
		EntryTimeout:      timeouts[0],
		MoveTimeout:       timeouts[1],
		RevealTimeout:     timeouts[2],
	}, nil
}

// InitConfig returns the engine init config for this block.
func (g GameBlock) InitConfig() (game.InitConfig, error) {
	cfg, err := g.GameConfig()
	if err != nil {
		return game.InitConfig{}, err
	}
	lobby := make([]game.Address, len(g.Lobby))
	for i, p := range g.Lobby {
		lobby[i] = game.Address(p)
	}
	return game.InitConfig{Owner: game.Address(g.Owner), Config: cfg, Lobby: lobby}, nil
}
