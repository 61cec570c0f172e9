package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/lox/rpsforbots/internal/game"
	"github.com/lox/rpsforbots/internal/protocol"
)

// DefaultRequestTimeout bounds each command sent to the server.
const DefaultRequestTimeout = 10 * time.Second

var errNothingToReveal = errors.New("no committed move to reveal")

// GameClient is the part of the websocket client the bridge drives.
type GameClient interface {
	Act(ctx context.Context, gameID string, value game.Amount, action game.Action) (protocol.EventData, error)
	Query(ctx context.Context, gameID string) (protocol.QueryResultData, error)
}

// Sender delivers messages to the running program. *tea.Program
// satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

type secret struct {
	move game.Move
	salt string
}

// Bridge manages the connection between a client and TUI model
type Bridge struct {
	client  GameClient
	tui     *TUIModel
	program Sender
	gameID  string
	address game.Address
	timeout time.Duration
	logger  *log.Logger

	state   *protocol.QueryResultData
	secret  *secret
	stake   game.Amount
	newSalt func() string
}

// NewBridge creates a new bridge between client and TUI
func NewBridge(c GameClient, tui *TUIModel, program Sender, logger *log.Logger) *Bridge {
	return &Bridge{
		client:  c,
		tui:     tui,
		program: program,
		gameID:  tui.gameID,
		address: tui.address,
		timeout: DefaultRequestTimeout,
		logger:  logger.WithPrefix("bridge").With("game", tui.gameID),
		newSalt: uuid.NewString,
	}
}

// SetStake fixes the value attached to register and move actions. Zero
// attaches the game's current bet.
func (b *Bridge) SetStake(stake game.Amount) {
	b.stake = stake
}

// HandleEvent forwards broadcasts for the bridged game to the program. It
// is registered as a client event handler and must not block.
func (b *Bridge) HandleEvent(ev protocol.EventData) {
	if ev.Game != b.gameID {
		return
	}
	go b.program.Send(EventMsg(ev))
}

// Start begins the command handling loop (non-blocking)
func (b *Bridge) Start(ctx context.Context) {
	go b.commandLoop(ctx)
}

// commandLoop handles user actions from the TUI
func (b *Bridge) commandLoop(ctx context.Context) {
	b.run(ctx, "state", nil)
	b.program.Send(LogMsg(helpLines))

	for {
		action, args, shouldContinue, err := b.tui.WaitForAction()
		if err != nil {
			continue
		}
		if !shouldContinue || !b.run(ctx, action, args) {
			b.tui.SendQuitSignal()
			return
		}
	}
}

func (b *Bridge) run(ctx context.Context, action string, args []string) bool {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cont, err := b.Execute(ctx, action, args)
	if err != nil {
		b.logger.Debug("Command failed", "action", action, "error", err)
		b.program.Send(ErrorMsg{Err: err})
	}
	return cont
}

var helpLines = []string{
	"Commands:",
	"  register              join the lobby paying the bet",
	"  move <m>              commit to rock, paper, scissors, lizard or spock",
	"  reveal [<digit><salt>] reveal your committed move, or one made elsewhere",
	"  state                 refresh the game state",
	"  add <addr>            owner: add a player without payment",
	"  remove <addr>         owner: remove a player",
	"  lobby <addr>...       owner: replace the lobby",
	"  bet <n>               owner: change the bet size",
	"  next key=value...     owner: stage bet, players, entry, move, reveal for the next game",
	"  stop                  owner: stop the game and pay everyone out",
	"  quit                  leave",
}

// Execute runs one command. It returns false when the user asked to quit.
func (b *Bridge) Execute(ctx context.Context, action string, args []string) (bool, error) {
	switch action {
	case "quit", "exit", "q":
		return false, nil
	case "help", "?":
		b.program.Send(LogMsg(helpLines))
		return true, nil
	case "", "state":
		return true, b.refresh(ctx)
	case "register", "join":
		bet, err := b.betSize(ctx)
		if err != nil {
			return true, err
		}
		return true, b.act(ctx, bet, game.Register{})
	case "move", "m":
		if len(args) != 1 {
			return true, fmt.Errorf("usage: move <rock|paper|scissors|lizard|spock>")
		}
		return true, b.commit(ctx, args[0])
	case "rock", "paper", "scissors", "lizard", "spock":
		return true, b.commit(ctx, action)
	case "reveal", "r":
		if len(args) == 1 {
			m, salt, err := game.ParseReveal(args[0])
			if err != nil {
				return true, err
			}
			return true, b.act(ctx, 0, game.RevealMove{Move: m, Salt: salt})
		}
		if b.secret == nil {
			return true, errNothingToReveal
		}
		return true, b.act(ctx, 0, game.RevealMove{Move: b.secret.move, Salt: b.secret.salt})
	case "add", "remove":
		if len(args) != 1 {
			return true, fmt.Errorf("usage: %s <address>", action)
		}
		p := game.Address(args[0])
		if action == "add" {
			return true, b.act(ctx, 0, game.AddPlayer{Player: p})
		}
		return true, b.act(ctx, 0, game.RemovePlayer{Player: p})
	case "lobby":
		players := make([]game.Address, len(args))
		for i, a := range args {
			players[i] = game.Address(a)
		}
		return true, b.act(ctx, 0, game.SetLobby{Players: players})
	case "bet":
		if len(args) != 1 {
			return true, fmt.Errorf("usage: bet <amount>")
		}
		n, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return true, fmt.Errorf("invalid bet %q", args[0])
		}
		return true, b.act(ctx, 0, game.SetBetSize{BetSize: game.Amount(n)})
	case "next":
		cfg, err := b.nextConfig(ctx, args)
		if err != nil {
			return true, err
		}
		return true, b.act(ctx, 0, game.ChangeNextConfig{Config: cfg})
	case "stop":
		return true, b.act(ctx, 0, game.StopGame{})
	}
	return true, fmt.Errorf("unknown command %q (try 'help')", action)
}

// commit submits a fresh commitment and remembers the secret for reveal.
func (b *Bridge) commit(ctx context.Context, move string) error {
	m, err := game.ParseMove(move)
	if err != nil {
		return err
	}
	bet, err := b.betSize(ctx)
	if err != nil {
		return err
	}
	salt := b.newSalt()
	if err := b.act(ctx, bet, game.SubmitMove{Commitment: game.Commit(m, salt)}); err != nil {
		return err
	}
	b.secret = &secret{move: m, salt: salt}
	b.program.Send(LogMsg{InfoStyle.Render("committed " + MoveStyle.Render(m.String()) + ", type 'reveal' when asked")})
	return nil
}

func (b *Bridge) act(ctx context.Context, value game.Amount, action game.Action) error {
	if _, err := b.client.Act(ctx, b.gameID, value, action); err != nil {
		return fmt.Errorf("%s: %w", action.Kind(), err)
	}
	return b.refresh(ctx)
}

func (b *Bridge) refresh(ctx context.Context) error {
	q, err := b.client.Query(ctx, b.gameID)
	if err != nil {
		return err
	}
	b.state = &q
	b.program.Send(StateMsg(q))
	return nil
}

// betSize returns the bet of the running config. Commitments always carry
// it; the game returns it as change when the caller already paid.
func (b *Bridge) betSize(ctx context.Context) (game.Amount, error) {
	if b.stake > 0 {
		return b.stake, nil
	}
	if err := b.refresh(ctx); err != nil {
		return 0, err
	}
	return b.state.Config.BetSize, nil
}

// nextConfig applies key=value overrides to the current config.
func (b *Bridge) nextConfig(ctx context.Context, args []string) (game.GameConfig, error) {
	if err := b.refresh(ctx); err != nil {
		return game.GameConfig{}, err
	}
	base := b.state.Config
	if b.state.NextConfig != nil {
		base = *b.state.NextConfig
	}
	cfg := base.ToGame()

	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return cfg, fmt.Errorf("expected key=value, got %q", arg)
		}
		switch key {
		case "bet":
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return cfg, fmt.Errorf("invalid bet %q", value)
			}
			cfg.BetSize = game.Amount(n)
		case "players":
			n, err := strconv.Atoi(value)
			if err != nil {
				return cfg, fmt.Errorf("invalid players %q", value)
			}
			cfg.PlayersCountLimit = n
		case "entry", "move", "reveal":
			d, err := time.ParseDuration(value)
			if err != nil {
				return cfg, fmt.Errorf("invalid %s timeout %q", key, value)
			}
			switch key {
			case "entry":
				cfg.EntryTimeout = d
			case "move":
				cfg.MoveTimeout = d
			default:
				cfg.RevealTimeout = d
			}
		default:
			return cfg, fmt.Errorf("unknown setting %q", key)
		}
	}
	return cfg, nil
}
