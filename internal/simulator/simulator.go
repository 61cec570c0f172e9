// Package simulator plays many bot-only games in process and checks that
// every game conserves value.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/lox/rpsforbots/internal/bot"
	"github.com/lox/rpsforbots/internal/game"
	"github.com/lox/rpsforbots/internal/ledger"
	"github.com/lox/rpsforbots/internal/randutil"
	"github.com/lox/rpsforbots/internal/statistics"
)

// StartingBalance is credited to every simulated player.
const StartingBalance game.Amount = 1_000

// DefaultMaxActions bounds a single game so a strategy mix that always ties
// cannot spin forever.
const DefaultMaxActions = 10_000

// house owns every simulated game and stops the ones that run too long.
const house game.Address = "house"

var ErrNotConserved = errors.New("value not conserved")

// Config holds configuration for running simulations
type Config struct {
	Games    int
	Players  int
	Strategy string
	BetSize  game.Amount
	Seed     int64
	Parallel int
	Timeout  time.Duration

	// MaxActions is the action budget per game. A game still running after
	// it is stopped by the owner and its pot split.
	MaxActions int
	Logger     *log.Logger
}

// GameResult describes one finished game.
type GameResult struct {
	Seed    int64        `json:"seed"`
	Winner  game.Address `json:"winner"`
	Rounds  int          `json:"rounds"`
	Actions int          `json:"actions"`
	Prize   game.Amount  `json:"prize"`

	// Stopped marks a game ended by the owner; Shares holds its payouts.
	Stopped bool                         `json:"stopped,omitempty"`
	Shares  map[game.Address]game.Amount `json:"shares,omitempty"`
}

// Results aggregates every simulated game.
type Results struct {
	Games        int            `json:"games"`
	TotalRounds  int            `json:"total_rounds"`
	LongestGame  int            `json:"longest_game"`
	TotalActions int            `json:"total_actions"`
	Stopped      int            `json:"stopped"`
	Wins         map[string]int `json:"wins"`
	PerGame      []GameResult   `json:"per_game"`

	// RoundStats summarises rounds per game.
	RoundStats statistics.Summary `json:"round_stats"`
	// NetByStrategy summarises each seat's net result per game, grouped
	// by strategy.
	NetByStrategy map[string]statistics.Summary `json:"net_by_strategy"`
}

// AverageRounds returns the mean number of rounds per game.
func (r *Results) AverageRounds() float64 {
	if r.Games == 0 {
		return 0
	}
	return float64(r.TotalRounds) / float64(r.Games)
}

// Simulator runs rock-paper-scissors-lizard-spock simulations
type Simulator struct {
	config Config
}

// New creates a new simulator with the given configuration
func New(config Config) *Simulator {
	if config.Players < game.MinPlayersCount {
		config.Players = game.MinPlayersCount
	}
	if config.Parallel < 1 {
		config.Parallel = 1
	}
	if config.BetSize == 0 {
		config.BetSize = 10
	}
	if config.Strategy == "" {
		config.Strategy = "random"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxActions <= 0 {
		config.MaxActions = DefaultMaxActions
	}
	if config.Logger == nil {
		config.Logger = log.New(io.Discard)
	}
	return &Simulator{config: config}
}

// Run plays every game, up to Parallel at a time.
func (s *Simulator) Run(ctx context.Context) (*Results, error) {
	results := &Results{
		Wins:    make(map[string]int),
		PerGame: make([]GameResult, s.config.Games),
	}
	var (
		mu     sync.Mutex
		rounds statistics.Sample
		net    = make(map[string]*statistics.Sample)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Parallel)
	for i := range s.config.Games {
		seed := s.config.Seed + int64(i)
		g.Go(func() error {
			res, err := s.playGameWithTimeout(gctx, seed)
			if err != nil {
				return fmt.Errorf("game %d (seed %d): %w", i+1, seed, err)
			}

			mu.Lock()
			defer mu.Unlock()
			results.PerGame[i] = res
			results.Games++
			results.TotalRounds += res.Rounds
			results.TotalActions += res.Actions
			results.LongestGame = max(results.LongestGame, res.Rounds)
			if res.Stopped {
				results.Stopped++
			} else {
				results.Wins[strategyOf(res.Winner)]++
			}
			rounds.Add(float64(res.Rounds))
			for seat := range s.config.Players {
				s.recordNet(net, seat, res)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results.RoundStats = rounds.Summary()
	results.NetByStrategy = make(map[string]statistics.Summary, len(net))
	for name, sample := range net {
		results.NetByStrategy[name] = sample.Summary()
	}
	return results, nil
}

// recordNet adds one seat's result for a finished game: the prize less its
// bet for the winner, the lost bet for everyone else.
func (s *Simulator) recordNet(net map[string]*statistics.Sample, seat int, res GameResult) {
	name := s.strategyFor(seat)
	sample, ok := net[name]
	if !ok {
		sample = &statistics.Sample{}
		net[name] = sample
	}
	addr := playerName(seat, name)
	delta := -float64(s.config.BetSize)
	switch {
	case res.Stopped:
		delta += float64(res.Shares[addr])
	case addr == res.Winner:
		delta += float64(res.Prize)
	}
	sample.Add(delta)
}

func (s *Simulator) playGameWithTimeout(ctx context.Context, seed int64) (GameResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	return s.playGame(ctx, seed)
}

// playerName encodes the strategy so wins can be grouped by it.
func playerName(i int, strategy string) game.Address {
	return game.Address(fmt.Sprintf("p%d-%s", i, strategy))
}

func strategyOf(addr game.Address) string {
	_, strategy, _ := strings.Cut(string(addr), "-")
	return strategy
}

// mixedStrategies is the fixed rotation used by the "mixed" strategy.
var mixedStrategies = []string{"random", "cycle", "rock", "random", "paper"}

func (s *Simulator) strategyFor(i int) string {
	if s.config.Strategy == "mixed" {
		return mixedStrategies[i%len(mixedStrategies)]
	}
	return s.config.Strategy
}

// playGame runs one game to completion on a fresh ledger.
func (s *Simulator) playGame(ctx context.Context, seed int64) (GameResult, error) {
	if err := ctx.Err(); err != nil {
		return GameResult{}, err
	}
	rng := randutil.New(seed)
	logger := s.config.Logger.With("seed", seed)
	l := ledger.New(logger)

	bots := make([]*bot.Bot, s.config.Players)
	for i := range bots {
		name := s.strategyFor(i)
		strategy, err := bot.NewStrategy(name, rng)
		if err != nil {
			return GameResult{}, err
		}
		addr := playerName(i, name)
		if err := l.Deposit(addr, StartingBalance); err != nil {
			return GameResult{}, err
		}
		bots[i] = bot.New(addr, strategy, rng, logger)
	}
	initialTotal := l.Total()

	cfg := game.DefaultGameConfig()
	cfg.BetSize = s.config.BetSize
	cfg.PlayersCountLimit = s.config.Players

	const account game.Address = "game:sim"
	engine, err := game.New(game.InitConfig{Owner: house, Config: cfg}, quartz.NewReal(), l.Account(account), logger)
	if err != nil {
		return GameResult{}, err
	}

	result := GameResult{Seed: seed}
	for _, b := range bots {
		msg := game.Message{Caller: b.Address(), Value: cfg.BetSize, Action: game.Register{}}
		if _, err := engine.Handle(ctx, msg); err != nil {
			return result, fmt.Errorf("%s register: %w", b.Address(), err)
		}
		result.Actions++
	}

	for result.Actions < s.config.MaxActions {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		acted := false
		for _, i := range rng.Perm(len(bots)) {
			b := bots[i]
			view := bot.View{
				Stage:             engine.Stage(),
				Lobby:             engine.Lobby(),
				BetSize:           engine.Config().BetSize,
				PlayersCountLimit: engine.Config().PlayersCountLimit,
				GameNumber:        engine.GameNumber(),
			}
			d, ok := b.Decide(view)
			if !ok {
				continue
			}

			out, err := engine.Handle(ctx, game.Message{Caller: b.Address(), Value: d.Value, Action: d.Action})
			if err != nil {
				return result, fmt.Errorf("%s %s: %w", b.Address(), d.Action.Kind(), err)
			}
			result.Actions++
			acted = true

			if reveal, ok := out.Event.(game.SuccessfulReveal); ok {
				switch reveal.Result.Kind {
				case game.NextRoundStarted:
					result.Rounds++
				case game.GameOver:
					result.Rounds++
					result.Winner = reveal.Result.Winner
					for _, tr := range out.Transfers {
						if tr.Reason == game.ReasonPrize {
							result.Prize += tr.Amount
						}
					}
					return result, s.verify(l, account, initialTotal, result)
				}
			}
		}
		if !acted {
			return result, fmt.Errorf("no bot could act in stage %s", engine.Stage())
		}
	}
	return s.stop(ctx, engine, l, account, initialTotal, result)
}

// stop ends a game that ran out of actions. The owner's StopGame splits the
// pot between the players still in the game.
func (s *Simulator) stop(ctx context.Context, engine *game.Engine, l *ledger.Ledger, account game.Address, initialTotal game.Amount, result GameResult) (GameResult, error) {
	s.config.Logger.Debug("Stopping unfinished game", "seed", result.Seed, "actions", result.Actions, "stage", engine.Stage().Kind)
	out, err := engine.Handle(ctx, game.Message{Caller: house, Action: game.StopGame{}})
	if err != nil {
		return result, fmt.Errorf("stop after %d actions: %w", result.Actions, err)
	}
	result.Actions++
	result.Stopped = true
	result.Shares = make(map[game.Address]game.Amount)
	for _, tr := range out.Transfers {
		if tr.Reason == game.ReasonShare || tr.Reason == game.ReasonRefund {
			result.Shares[tr.To] += tr.Amount
		}
	}
	return result, s.verify(l, account, initialTotal, result)
}

// verify checks that value was only moved, never created or lost, and that
// the whole pot went to the winner, or to the shareholders of a stopped game.
func (s *Simulator) verify(l *ledger.Ledger, account game.Address, initialTotal game.Amount, res GameResult) error {
	if total := l.Total(); total != initialTotal {
		return fmt.Errorf("%w: total %d, started with %d", ErrNotConserved, total, initialTotal)
	}
	if held := l.Balance(account); held != 0 {
		return fmt.Errorf("%w: game account still holds %d", ErrNotConserved, held)
	}
	pot := s.config.BetSize * game.Amount(s.config.Players)
	if res.Stopped {
		var paid game.Amount
		for addr, share := range res.Shares {
			paid += share
			want := StartingBalance - s.config.BetSize + share
			if got := l.Balance(addr); got != want {
				return fmt.Errorf("%w: %s holds %d, expected %d", ErrNotConserved, addr, got, want)
			}
		}
		if paid != pot {
			return fmt.Errorf("%w: shares %d, expected pot %d", ErrNotConserved, paid, pot)
		}
		return nil
	}
	if res.Prize != pot {
		return fmt.Errorf("%w: prize %d, expected pot %d", ErrNotConserved, res.Prize, pot)
	}
	want := StartingBalance - s.config.BetSize + pot
	if got := l.Balance(res.Winner); got != want {
		return fmt.Errorf("%w: winner %s holds %d, expected %d", ErrNotConserved, res.Winner, got, want)
	}
	return nil
}
