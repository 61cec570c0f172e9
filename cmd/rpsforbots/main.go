package main

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/lox/rpsforbots/cmd/rpsforbots/shared"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Server   ServerCmd        `cmd:"" help:"Run the game server"`
	Client   ClientCmd        `cmd:"" help:"Play or manage games as a client"`
	Bot      BotCmd           `cmd:"" help:"Run a built-in bot against a server"`
	Spawn    SpawnCmd         `cmd:"" help:"Run several built-in bots as child processes"`
	Simulate SimulateCmd      `cmd:"" help:"Play bot-only games in process"`
	Commit   CommitCmd        `cmd:"" help:"Compute a move commitment"`
	Journal  JournalCmd       `cmd:"" help:"Print the stored action journal of a game"`
}

func main() {
	ctx := shared.SetupSignalHandler()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("rpsforbots"),
		kong.Description("Commit-reveal rock-paper-scissors-lizard-spock for bots"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	err := kctx.Run()
	kctx.FatalIfErrorf(err)
}
