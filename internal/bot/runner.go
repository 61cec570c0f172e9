package bot

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/rpsforbots/internal/client"
	"github.com/lox/rpsforbots/internal/protocol"
)

// DefaultPollInterval bounds how long a runner waits between state checks
// when no events arrive.
const DefaultPollInterval = 2 * time.Second

// Runner drives a Bot against a server over a client connection.
type Runner struct {
	client       *client.Client
	bot          *Bot
	gameID       string
	games        uint64
	clock        quartz.Clock
	pollInterval time.Duration
	logger       *log.Logger
}

// NewRunner creates a runner that stops after games completed games, or
// never when games is zero.
func NewRunner(c *client.Client, b *Bot, gameID string, games uint64, clock quartz.Clock, logger *log.Logger) *Runner {
	return &Runner{
		client:       c,
		bot:          b,
		gameID:       gameID,
		games:        games,
		clock:        clock,
		pollInterval: DefaultPollInterval,
		logger:       logger.WithPrefix("runner").With("game", gameID),
	}
}

// ViewFromQuery converts a query result into a bot view.
func ViewFromQuery(q protocol.QueryResultData) View {
	return View{
		Stage:             q.Stage,
		Lobby:             q.Lobby,
		BetSize:           q.Config.BetSize,
		PlayersCountLimit: q.Config.PlayersCountLimit,
		GameNumber:        q.GameNumber,
	}
}

// Run plays until ctx is cancelled, the connection drops or the game
// target is reached. Rejected actions are logged and retried on the next
// state change.
func (r *Runner) Run(ctx context.Context) error {
	updates := make(chan struct{}, 1)
	r.client.AddEventHandler(func(ev protocol.EventData) {
		if ev.Game != r.gameID {
			return
		}
		select {
		case updates <- struct{}{}:
		default:
		}
	})

	var start uint64
	first := true
	for {
		q, err := r.client.Query(ctx, r.gameID)
		if err != nil {
			return err
		}
		if first {
			start = q.GameNumber
			first = false
		}
		if r.games > 0 && q.GameNumber-start >= r.games {
			r.logger.Info("Finished", "games", q.GameNumber-start)
			return nil
		}

		if d, ok := r.bot.Decide(ViewFromQuery(q)); ok {
			_, err := r.client.Act(ctx, r.gameID, d.Value, d.Action)
			var serr *client.ServerError
			switch {
			case err == nil:
				continue
			case errors.As(err, &serr):
				r.logger.Warn("Action rejected", "action", d.Action.Kind(), "code", serr.Code, "error", serr.Message)
			default:
				return err
			}
		}

		timer := r.clock.NewTimer(r.pollInterval, "runner", "poll")
		select {
		case <-updates:
		case <-timer.C:
		case <-r.client.Done():
			timer.Stop()
			return client.ErrNotConnected
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		timer.Stop()
	}
}
