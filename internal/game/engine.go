package game

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// Engine runs one game instance. Handle is not safe for concurrent use;
// callers serialize actions (see server.GameService).
type Engine struct {
	state    *State
	clock    quartz.Clock
	treasury Treasury
	logger   *log.Logger
}

// New creates an engine in the Preparation stage with the clock started at
// the current time.
func New(init InitConfig, clock quartz.Clock, treasury Treasury, logger *log.Logger) (*Engine, error) {
	if err := init.Config.Validate(); err != nil {
		return nil, err
	}
	lobby := NewAddressSet(init.Lobby...)
	if lobby.Len() > init.Config.PlayersCountLimit {
		return nil, fmt.Errorf("%w: initial lobby of %d exceeds limit %d", ErrLobbyFull, lobby.Len(), init.Config.PlayersCountLimit)
	}
	return newEngine(newState(init, clock.Now()), clock, treasury, logger), nil
}

func newEngine(state *State, clock quartz.Clock, treasury Treasury, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Engine{
		state:    state,
		clock:    clock,
		treasury: treasury,
		logger:   logger.WithPrefix("engine"),
	}
}

// txn is the scratch context of one action. Everything it touches is
// discarded unless the action and its settlement succeed.
type txn struct {
	state *State
	now   time.Time
	msg   Message

	// available is the value the game can pay out: treasury balance plus
	// the attached value, minus transfers queued so far.
	available Amount
	// unspent is the part of the attached value not yet consumed as a bet.
	unspent Amount

	transfers   []Transfer
	transitions []Event
	logger      *log.Logger
}

// Handle applies a single action. The current stage's timeout is evaluated
// first; on any error the engine state is unchanged and no value moves.
func (e *Engine) Handle(ctx context.Context, msg Message) (*Outcome, error) {
	if msg.Action == nil {
		return nil, ErrUnknownAction
	}

	held, err := e.treasury.Available(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettlement, err)
	}
	available, err := addAmount(held, msg.Value)
	if err != nil {
		return nil, err
	}

	tx := &txn{
		state:     e.state.Clone(),
		now:       e.clock.Now(),
		msg:       msg,
		available: available,
		unspent:   msg.Value,
		logger:    e.logger.With("game", e.state.GameNumber),
	}

	event, err := tx.run()
	if err != nil {
		e.logger.Debug("Action rejected",
			"caller", msg.Caller,
			"action", msg.Action.Kind(),
			"error", err)
		return nil, err
	}

	settlement := Settlement{From: msg.Caller, Received: msg.Value, Payouts: tx.transfers}
	if err := e.treasury.Settle(ctx, settlement); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettlement, err)
	}

	e.state = tx.state
	e.logger.Debug("Action applied",
		"caller", msg.Caller,
		"action", msg.Action.Kind(),
		"event", event.EventType(),
		"stage", e.state.Stage.Kind,
		"pot", e.state.Pot)

	return &Outcome{
		Event:       event,
		Transitions: tx.transitions,
		Transfers:   tx.transfers,
		Stage:       e.state.Stage.Clone(),
		Pot:         e.state.Pot,
		GameNumber:  e.state.GameNumber,
		At:          tx.now,
	}, nil
}

func (tx *txn) run() (Event, error) {
	if err := tx.applyTimeout(); err != nil {
		return nil, err
	}
	event, err := tx.dispatch()
	if err != nil {
		return nil, err
	}
	if err := tx.returnChange(); err != nil {
		return nil, err
	}
	if err := tx.checkInvariants(); err != nil {
		return nil, err
	}
	return event, nil
}

func (tx *txn) dispatch() (Event, error) {
	switch a := tx.msg.Action.(type) {
	case Register:
		return tx.register()
	case AddPlayer:
		return tx.addPlayer(a.Player)
	case RemovePlayer:
		return tx.removePlayer(a.Player)
	case SetLobby:
		return tx.setLobby(a.Players)
	case SetBetSize:
		return tx.setBetSize(a.BetSize)
	case SubmitMove:
		return tx.submitMove(a.Commitment)
	case RevealMove:
		return tx.reveal(a.Move, a.Salt)
	case ChangeNextConfig:
		return tx.changeNextConfig(a.Config)
	case StopGame:
		return tx.stopGame()
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownAction, tx.msg.Action)
	}
}

func (tx *txn) checkInvariants() error {
	st := tx.state
	d := st.Stage.Description
	if d.Anticipated.Intersects(d.Finished) {
		return fmt.Errorf("%w: anticipated and finished overlap", ErrInternal)
	}
	if st.Stage.Kind == Preparation && !(d.Anticipated.IsEmpty() && d.Finished.IsEmpty()) {
		return fmt.Errorf("%w: preparation stage carries players", ErrInternal)
	}
	if st.Pot > tx.available {
		return fmt.Errorf("%w: pot %d exceeds held value %d", ErrInternal, st.Pot, tx.available)
	}
	var contributed Amount
	for _, amount := range st.Bettors {
		contributed += amount
	}
	if contributed != st.Pot {
		return fmt.Errorf("%w: pot %d does not match contributions %d", ErrInternal, st.Pot, contributed)
	}
	return nil
}

func (tx *txn) requireOwner() error {
	if tx.msg.Caller != tx.state.Owner {
		return ErrNotOwner
	}
	return nil
}

// Config returns the config of the current game.
func (e *Engine) Config() GameConfig {
	return e.state.Config
}

// NextConfig returns the staged config, if any.
func (e *Engine) NextConfig() (GameConfig, bool) {
	if e.state.NextConfig == nil {
		return GameConfig{}, false
	}
	return *e.state.NextConfig, true
}

// Owner returns the address allowed to run owner actions.
func (e *Engine) Owner() Address {
	return e.state.Owner
}

// Lobby returns the lobby members in address order.
func (e *Engine) Lobby() []Address {
	return e.state.Lobby.Slice()
}

// Stage returns the stored stage. Timeouts are only applied by Handle, so
// this may describe a stage whose deadline has already passed.
func (e *Engine) Stage() Stage {
	return e.state.Stage.Clone()
}

// StageStartedAt returns the time the current stage clock was last stamped.
func (e *Engine) StageStartedAt() time.Time {
	return e.state.StageStart
}

// Deadline returns when the current stage times out. A timeout is due once
// the clock is strictly after this instant.
func (e *Engine) Deadline() time.Time {
	return e.state.StageStart.Add(e.state.Config.timeoutFor(e.state.Stage.Kind))
}

// Pot returns the value collected for the current game.
func (e *Engine) Pot() Amount {
	return e.state.Pot
}

// GameNumber counts completed games: it starts at zero and goes up each
// time a game ends and the engine returns to Preparation.
func (e *Engine) GameNumber() uint64 {
	return e.state.GameNumber
}
