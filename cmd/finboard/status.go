package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"finboard/internal/cli"
	applog "finboard/internal/log"
	"finboard/internal/report"
	"finboard/internal/session"
)

type statusCmd struct {
	plain bool
	width int
	raw   bool
}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "show token slot and profile status" }
func (*statusCmd) Usage() string {
	return `finboard status [-plain] [-raw] [-width n]

  Checks the stored token against the profile endpoint without changing
  it and prints a summary.
`
}

func (c *statusCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.plain, "plain", false, "render without colors")
	f.BoolVar(&c.raw, "raw", false, "print the markdown source")
	f.IntVar(&c.width, "width", 80, "wrap output at this width")
}

func (c *statusCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	st := report.Status{
		Backend:    cfg.TokenBackend,
		ProfileURL: cfg.ProfileURL,
		EventsURL:  cfg.AMQPURL,
		Currency:   cfg.Currency,
		Timezone:   cfg.LedgerTimezone,
	}
	token, ok, err := tokens.Store.Get(ctx)
	if err != nil {
		logger.Error("Failed to read token", applog.FieldError, err)
		return subcommands.ExitFailure
	}
	st.TokenPresent = ok
	if ok {
		profile, err := session.NewHTTPProfileClient(cfg.ProfileURL, cfg.ProfileTimeout).FetchProfile(ctx, token)
		if err != nil {
			st.ProfileErr = err
		} else {
			st.Profile = &profile
		}
	}

	md := st.Markdown()
	if c.raw {
		fmt.Print(md)
		return subcommands.ExitSuccess
	}
	out, err := report.Render(md, c.width, c.plain)
	if err != nil {
		logger.Error("Failed to render status", applog.FieldError, err)
		fmt.Print(md)
		return subcommands.ExitFailure
	}
	fmt.Print(out)
	return subcommands.ExitSuccess
}
