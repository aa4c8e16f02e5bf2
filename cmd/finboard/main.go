// Command finboard serves the personal finance dashboard and manages its
// session token.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&serveCmd{}, "")
	commander.Register(&statusCmd{}, "session")
	commander.Register(&tokenCmd{}, "session")
	commander.Register(&logoutCmd{}, "session")
	commander.Register(&eventsCmd{}, "events")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
