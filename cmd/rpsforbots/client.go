package main

import (
	"github.com/alecthomas/kong"

	"github.com/lox/rpsforbots/internal/client/commands"
)

// ClientCmd groups the interactive client subcommands
type ClientCmd struct {
	commands.GlobalFlags `embed:""`

	List   commands.ListGamesCommand  `cmd:"" help:"List games on the server"`
	Create commands.CreateGameCommand `cmd:"" help:"Create a game owned by you"`
	Join   commands.JoinGameCommand   `cmd:"" help:"Play a game in the terminal UI"`
	Add    commands.AddPlayerCommand  `cmd:"" help:"Add players to a game you own"`
	Kick   commands.KickPlayerCommand `cmd:"" help:"Remove a player from a game you own"`
}

// AfterApply makes the global flags available to subcommand Run methods.
func (c *ClientCmd) AfterApply(kctx *kong.Context) error {
	kctx.Bind(&c.GlobalFlags)
	return nil
}
