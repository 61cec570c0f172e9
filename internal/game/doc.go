// Package game implements an n-player commit-reveal Rock-Paper-Scissors-
// Lizard-Spock elimination game.
//
// The main type is Engine, which owns the state of a single game instance
// and applies one Message at a time through Handle.
//
// # Basic Usage
//
// Create an engine, register players and play a round:
//
//	clock := quartz.NewReal()
//	e, err := game.New(game.InitConfig{Owner: "owner", Config: game.DefaultGameConfig()}, clock, treasury, logger)
//	e.Handle(ctx, game.Message{Caller: "alice", Value: 1000, Action: game.Register{}})
//	e.Handle(ctx, game.Message{Caller: "bob", Value: 1000, Action: game.Register{}})
//	e.Handle(ctx, game.Message{Caller: "alice", Action: game.SubmitMove{Commitment: game.Commit(game.Rock, "salt")}})
//
// # Stages
//
// A game moves through Preparation, InProgress and Reveal. Stage deadlines
// are lazy: nothing happens when a deadline passes, the next action first
// applies at most one timeout transition and then runs against the result.
//
// # Atomicity
//
// Handle clones the state, runs the timeout and the action on the clone and
// collects the payouts. Only when the Treasury accepts the whole Settlement
// does the clone replace the stored state. A rejected action leaves no trace.
//
// # Deterministic Testing
//
// Pass a quartz mock clock to control deadlines:
//
//	clock := quartz.NewMock(t)
//	clock.Advance(cfg.MoveTimeout + time.Millisecond)
package game
