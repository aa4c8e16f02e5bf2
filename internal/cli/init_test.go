package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("log output = %q", buf.String())
	}

	buf.Reset()
	SetupLogger(&buf, "chatty")
	if !strings.Contains(buf.String(), "Unknown log level") {
		t.Errorf("unknown level not reported: %q", buf.String())
	}
}

func TestBootstrapAndOpenTokenStore(t *testing.T) {
	t.Setenv("TOKEN_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(t.TempDir(), "db", "finboard.db"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("AMQP_URL", "")

	cfg, logger, err := Bootstrap()
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	ctx := context.Background()
	res, err := OpenTokenStore(ctx, cfg, logger, "")
	if err != nil {
		t.Fatalf("OpenTokenStore() error = %v", err)
	}
	if err := res.Store.Set(ctx, "tok"); err != nil {
		t.Fatal(err)
	}
	if err := res.Close(); err != nil {
		t.Fatal(err)
	}

	res, err = OpenTokenStore(ctx, cfg, logger, "")
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer res.Close()
	if tok, ok, err := res.Store.Get(ctx); err != nil || !ok || tok != "tok" {
		t.Fatalf("Get() = %q, %v, %v", tok, ok, err)
	}
}

func TestBootstrapRejectsInvalidConfig(t *testing.T) {
	t.Setenv("TOKEN_BACKEND", "floppy")
	t.Setenv("LOG_LEVEL", "error")
	if _, _, err := Bootstrap(); err == nil {
		t.Fatal("Bootstrap() accepted an invalid backend")
	}
}

func TestOpenTokenStoreSeedsMemory(t *testing.T) {
	t.Setenv("TOKEN_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "error")
	cfg, logger, err := Bootstrap()
	if err != nil {
		t.Fatal(err)
	}
	res, err := OpenTokenStore(context.Background(), cfg, logger, "seed")
	if err != nil {
		t.Fatal(err)
	}
	if tok, ok, _ := res.Store.Get(context.Background()); !ok || tok != "seed" {
		t.Fatalf("memory store not seeded: %q", tok)
	}
}
