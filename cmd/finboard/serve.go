package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"finboard/internal/amqp"
	"finboard/internal/cache"
	"finboard/internal/cli"
	apphttp "finboard/internal/http"
	"finboard/internal/ledger"
	applog "finboard/internal/log"
	"finboard/internal/services"
	"finboard/internal/session"
)

const shutdownTimeout = 30 * time.Second

type serveCmd struct {
	token string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the dashboard over HTTP" }
func (*serveCmd) Usage() string {
	return `finboard serve [-token <token>]

  Serves the dashboard on PORT. The ledger lives in memory and is dropped
  on logout or shutdown.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.token, "token", "", "store this session token before serving")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := cli.Bootstrap()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	ctx, stop := cli.SignalContext(ctx)
	defer stop()

	tokens, err := cli.OpenTokenStore(ctx, cfg, logger, c.token)
	if err != nil {
		logger.Error("Failed to open token store", applog.FieldError, err, applog.FieldBackend, cfg.TokenBackend)
		return subcommands.ExitFailure
	}
	defer func() {
		if err := tokens.Close(); err != nil {
			logger.Warn("Failed to close token store", applog.FieldError, err)
		}
	}()
	if c.token != "" && cfg.TokenBackend != "memory" {
		if err := tokens.Store.Set(ctx, c.token); err != nil {
			logger.Error("Failed to store token", applog.FieldError, err)
			return subcommands.ExitFailure
		}
	}

	aggregates := ledger.NewAggregateCache(64, 30*time.Minute)
	caches := cache.NewManager(logger)
	caches.Register(aggregates)
	caches.StartCleanup(10 * time.Minute)
	defer caches.Stop()

	navLogger := logger.WithComponent(applog.ComponentSession)
	guard := session.NewGuard(tokens.Store,
		session.NewHTTPProfileClient(cfg.ProfileURL, cfg.ProfileTimeout),
		session.WithLogger(logger),
		session.WithNavigator(session.NavigatorFunc(func(ctx context.Context, to session.Destination) {
			navLogger.DebugContext(ctx, "Navigation", "destination", string(to))
		})))

	dashOpts := []services.DashboardOption{
		services.WithLogger(logger),
		services.WithLedgerOptions(
			ledger.WithLocation(cfg.Location()),
			ledger.WithAggregateCache(aggregates),
		),
	}
	if cfg.AMQPURL != "" {
		events, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Ledger events disabled: broker unreachable", applog.FieldError, err)
		} else {
			defer events.Close()
			dashOpts = append(dashOpts, services.WithPublisher(events))
			logger.Info("Publishing ledger events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	dash := services.NewDashboard(guard, dashOpts...)

	srv, err := apphttp.NewServer(":"+cfg.Port, dash, apphttp.Options{
		LoginURL:           cfg.LoginURL,
		Currency:           cfg.Currency,
		Location:           cfg.Location(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
		ReadyChecks: map[string]apphttp.ReadyCheck{
			"token_store": tokens.Check,
		},
	})
	if err != nil {
		logger.Error("Failed to build server", applog.FieldError, err)
		return subcommands.ExitFailure
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting finboard server", applog.FieldOperation, applog.OpStartup, "port", cfg.Port, applog.FieldBackend, cfg.TokenBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on :%s: %w", cfg.Port, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := dash.Close(shutdownCtx); err != nil {
			logger.Warn("Unpublished ledger events at shutdown", applog.FieldError, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err)
		return subcommands.ExitFailure
	}
	stats := aggregates.Stats()
	logger.Info("Server stopped gracefully", applog.FieldOperation, applog.OpShutdown,
		"aggregate_hits", stats.Hits, "aggregate_misses", stats.Misses)
	return subcommands.ExitSuccess
}
