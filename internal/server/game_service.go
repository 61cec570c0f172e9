package server

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/rpsforbots/internal/game"
	"github.com/lox/rpsforbots/internal/protocol"
	"github.com/lox/rpsforbots/internal/store"
)

// Broadcaster delivers messages to everyone following a game.
type Broadcaster interface {
	Broadcast(gameID string, msg *protocol.Message)
}

// GameService serializes every action of one game through its engine, then
// persists and broadcasts the outcome.
type GameService struct {
	id      string
	account game.Address

	mu          sync.Mutex
	engine      *game.Engine
	store       *store.Store
	broadcaster Broadcaster
	logger      *log.Logger
}

// ID returns the game ID.
func (gs *GameService) ID() string {
	return gs.id
}

// Account returns the address holding the game's funds.
func (gs *GameService) Account() game.Address {
	return gs.account
}

// Handle applies one action from caller. Rejected actions change nothing
// and are not broadcast. The broadcast event carries requestID so the
// caller can correlate it.
func (gs *GameService) Handle(ctx context.Context, requestID string, caller game.Address, value game.Amount, action game.Action) (*game.Outcome, error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	out, err := gs.engine.Handle(ctx, game.Message{Caller: caller, Value: value, Action: action})
	if err != nil {
		gs.logger.Debug("Action rejected", "caller", caller, "action", action.Kind(), "error", err)
		return nil, err
	}

	for _, tr := range out.Transitions {
		gs.logger.Info("Stage transition", "event", tr.EventType(), "game", out.GameNumber)
	}
	gs.persist(ctx, caller, value, action, out)
	gs.publish(requestID, caller, out)
	return out, nil
}

// persist journals the action and saves a snapshot. Failures are logged; the
// engine has already committed.
func (gs *GameService) persist(ctx context.Context, caller game.Address, value game.Amount, action game.Action, out *game.Outcome) {
	if gs.store == nil {
		return
	}

	data, err := protocol.EncodeAction(gs.id, value, action)
	if err != nil {
		gs.logger.Error("Failed to encode action for journal", "error", err)
		return
	}
	_, err = gs.store.AppendAction(ctx, store.JournalEntry{
		GameID:    gs.id,
		Caller:    caller,
		Value:     value,
		Kind:      action.Kind(),
		Payload:   data.Params,
		Event:     out.Event.EventType(),
		CreatedAt: out.At,
	})
	if err != nil {
		gs.logger.Error("Failed to journal action", "error", err)
	}
	if err := gs.store.SaveSnapshot(ctx, gs.id, gs.engine.Snapshot()); err != nil {
		gs.logger.Error("Failed to save snapshot", "error", err)
	}
}

func (gs *GameService) publish(requestID string, caller game.Address, out *game.Outcome) {
	if gs.broadcaster == nil {
		return
	}
	data, err := protocol.NewEventData(gs.id, caller, out)
	if err != nil {
		gs.logger.Error("Failed to encode event", "error", err)
		return
	}
	msg, err := protocol.NewMessage(protocol.MessageTypeEvent, data)
	if err != nil {
		gs.logger.Error("Failed to create event message", "error", err)
		return
	}
	gs.broadcaster.Broadcast(gs.id, msg.WithRequestID(requestID))
}

// Query returns the stored state. Pending timeouts are not applied.
func (gs *GameService) Query() protocol.QueryResultData {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	e := gs.engine
	result := protocol.QueryResultData{
		Game:       gs.id,
		Owner:      e.Owner(),
		Config:     protocol.ConfigFromGame(e.Config()),
		Lobby:      e.Lobby(),
		Stage:      e.Stage(),
		StageStart: e.StageStartedAt(),
		Deadline:   e.Deadline(),
		Pot:        e.Pot(),
		GameNumber: e.GameNumber(),
	}
	if next, ok := e.NextConfig(); ok {
		cfg := protocol.ConfigFromGame(next)
		result.NextConfig = &cfg
	}
	return result
}

// Summary returns lightweight metadata for game lists.
func (gs *GameService) Summary() protocol.GameSummary {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	e := gs.engine
	return protocol.GameSummary{
		ID:                gs.id,
		Owner:             e.Owner(),
		BetSize:           e.Config().BetSize,
		PlayersCountLimit: e.Config().PlayersCountLimit,
		Stage:             e.Stage().Kind,
		LobbySize:         len(e.Lobby()),
		Pot:               e.Pot(),
		GameNumber:        e.GameNumber(),
	}
}
