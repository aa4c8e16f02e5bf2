package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"finboard/internal/amqp"
	"finboard/internal/cli"
	applog "finboard/internal/log"
)

type eventsCmd struct{}

func (*eventsCmd) Name() string     { return "events" }
func (*eventsCmd) Synopsis() string { return "tail the ledger change feed" }
func (*eventsCmd) Usage() string {
	return `finboard events

  Consumes ledger events from AMQP_QUEUE and logs each one until
  interrupted.
`
}

func (*eventsCmd) SetFlags(*flag.FlagSet) {}

func (*eventsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := cli.Bootstrap()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if cfg.AMQPURL == "" {
		fmt.Fprintln(os.Stderr, "Error: AMQP_URL is not set")
		return subcommands.ExitUsageError
	}
	ctx, stop := cli.SignalContext(ctx)
	defer stop()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to connect to broker", applog.FieldError, err)
		return subcommands.ExitFailure
	}
	defer client.Close()

	feed := logger.WithComponent(applog.ComponentLedger)
	err = client.ConsumeLedgerEvents(ctx, func(msg *amqp.LedgerEventMessage) error {
		feed.InfoContext(ctx, "Ledger event",
			applog.FieldOperation, applog.OpConsume,
			"type", msg.Type,
			applog.FieldTransactionID, msg.TransactionID,
			applog.FieldAmountCents, msg.AmountCents,
			applog.FieldKind, msg.Kind,
			applog.FieldCategory, msg.Category,
			applog.FieldBalanceCents, msg.BalanceCents,
			applog.FieldRevision, msg.Revision)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Event consumption stopped", applog.FieldError, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
