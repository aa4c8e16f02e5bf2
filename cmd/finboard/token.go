package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"finboard/internal/cli"
	applog "finboard/internal/log"
	"finboard/internal/session"
)

type tokenCmd struct{}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "store a session token in the token slot" }
func (*tokenCmd) Usage() string {
	return `finboard token set [<token>]

  Stores the token the way the login flow would. Without an argument the
  token is read from the first line of stdin.
`
}

func (*tokenCmd) SetFlags(*flag.FlagSet) {}

func (c *tokenCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) == 0 || args[0] != "set" || len(args) > 2 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	cfg, logger, err := cli.Bootstrap()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if cfg.TokenBackend == "memory" {
		fmt.Fprintln(os.Stderr, "Error: the memory backend lives inside `finboard serve`; use serve -token instead")
		return subcommands.ExitUsageError
	}

	token := ""
	if len(args) == 2 {
		token = args[1]
	} else {
		sc := bufio.NewScanner(os.Stdin)
		if sc.Scan() {
			token = sc.Text()
		}
	}
	token = strings.TrimSpace(token)
	if token == "" {
		fmt.Fprintln(os.Stderr, "Error: empty token")
		return subcommands.ExitUsageError
	}

	tokens, err := cli.OpenTokenStore(ctx, cfg, logger, "")
	if err != nil {
		logger.Error("Failed to open token store", applog.FieldError, err)
		return subcommands.ExitFailure
	}
	defer tokens.Close()

	if err := tokens.Store.Set(ctx, token); err != nil {
		logger.Error("Failed to store token", applog.FieldError, err)
		return subcommands.ExitFailure
	}
	logger.Info("Token stored", applog.FieldBackend, cfg.TokenBackend)
	return subcommands.ExitSuccess
}

type logoutCmd struct{}

func (*logoutCmd) Name() string     { return "logout" }
func (*logoutCmd) Synopsis() string { return "discard the stored session token" }
func (*logoutCmd) Usage() string {
	return `finboard logout

  Discards the session token. A running dashboard redirects to login on its
  next resolution.
`
}

func (*logoutCmd) SetFlags(*flag.FlagSet) {}

func (*logoutCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := cli.Bootstrap()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	tokens, err := cli.OpenTokenStore(ctx, cfg, logger, "")
	if err != nil {
		logger.Error("Failed to open token store", applog.FieldError, err)
		return subcommands.ExitFailure
	}
	defer tokens.Close()

	guard := session.NewGuard(tokens.Store,
		session.NewHTTPProfileClient(cfg.ProfileURL, cfg.ProfileTimeout),
		session.WithLogger(logger))
	if err := guard.Logout(ctx); err != nil {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
