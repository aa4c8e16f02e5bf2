package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"

	applog "finboard/internal/log"
)

const DefaultProfileURL = "https://finance-app-backend-two.vercel.app/api/auth/profile"

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Session
	ProfileURL     string
	LoginURL       string
	ProfileTimeout time.Duration

	// Token slot
	TokenBackend string
	SQLiteDBPath string
	RedisURL     string

	// AMQP (empty URL disables ledger events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Ledger display
	Currency       string
	LedgerTimezone string

	LogLevel string
}

// Load reads the configuration from the environment. Unset or unparseable
// variables take their defaults.
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		ProfileURL:     getEnv("PROFILE_URL", DefaultProfileURL),
		LoginURL:       getEnv("LOGIN_URL", "/login"),
		ProfileTimeout: getEnvDuration("PROFILE_TIMEOUT", 10*time.Second),

		TokenBackend: getEnv("TOKEN_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finboard.db"),
		RedisURL:     getEnv("REDIS_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finboard"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		Currency:       strings.ToUpper(getEnv("CURRENCY", money.USD)),
		LedgerTimezone: getEnv("LEDGER_TIMEZONE", "UTC"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Location resolves LedgerTimezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.LedgerTimezone); err == nil {
		return loc
	}
	return time.UTC
}

// problems collects every validation failure so they are reported together.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

// Validate checks every setting and reports all problems in one error. It
// creates the SQLite directory when it is missing.
func (c *Config) Validate() error {
	var p problems
	c.checkServer(&p)
	c.checkSession(&p)
	c.checkTokenSlot(&p)
	c.checkEvents(&p)
	c.checkDisplay(&p)
	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(p, "\n- "))
}

func (c *Config) checkServer(p *problems) {
	port, err := strconv.Atoi(c.Port)
	switch {
	case err != nil:
		p.addf("invalid port '%s': must be a number", c.Port)
	case port < 1 || port > 65535:
		p.addf("invalid port %d: must be between 1 and 65535", port)
	}
	if c.RateLimitPerMinute < 1 {
		p.addf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute)
	}
}

func (c *Config) checkSession(p *problems) {
	if !isAbsoluteURL(c.ProfileURL, "http", "https") {
		p.addf("invalid profile URL '%s': must be an absolute http(s) URL", c.ProfileURL)
	}
	if strings.TrimSpace(c.LoginURL) == "" {
		p.addf("login URL cannot be empty")
	}
	if c.ProfileTimeout < 100*time.Millisecond || c.ProfileTimeout > 2*time.Minute {
		p.addf("invalid profile timeout %v: must be between 100ms and 2m", c.ProfileTimeout)
	}
}

var tokenBackends = []string{"memory", "sqlite", "redis"}

func (c *Config) checkTokenSlot(p *problems) {
	switch c.TokenBackend {
	case "memory":
	case "sqlite":
		if c.SQLiteDBPath == "" {
			p.addf("SQLite database path cannot be empty when using sqlite backend")
			return
		}
		if dir := filepath.Dir(c.SQLiteDBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				p.addf("cannot create SQLite database directory '%s': %v", dir, err)
			}
		}
	case "redis":
		if c.RedisURL == "" {
			p.addf("REDIS_URL is required when using redis backend")
		}
	default:
		p.addf("invalid token backend '%s': must be one of %v", c.TokenBackend, tokenBackends)
	}
}

// checkEvents only runs when AMQP_URL is set; an empty URL disables events.
func (c *Config) checkEvents(p *problems) {
	if c.AMQPURL == "" {
		return
	}
	if u, err := url.Parse(c.AMQPURL); err != nil {
		p.addf("invalid AMQP URL '%s': %v", c.AMQPURL, err)
	} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
		p.addf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme)
	}
	if c.AMQPExchange == "" {
		p.addf("AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		p.addf("AMQP queue name cannot be empty when AMQP URL is provided")
	}
}

func (c *Config) checkDisplay(p *problems) {
	if money.GetCurrency(c.Currency) == nil {
		p.addf("unknown currency '%s': must be an ISO 4217 code", c.Currency)
	}
	if _, err := time.LoadLocation(c.LedgerTimezone); err != nil {
		p.addf("invalid ledger timezone '%s': %v", c.LedgerTimezone, err)
	}
	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		p.addf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel)
	}
}

func isAbsoluteURL(raw string, schemes ...string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Host != "" && slices.Contains(schemes, u.Scheme)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// lookupParsed returns parse(os.Getenv(key)), or fallback when the variable
// is unset or does not parse.
func lookupParsed[T any](key string, fallback T, parse func(string) (T, error)) T {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := parse(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	return lookupParsed(key, fallback, strconv.Atoi)
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	return lookupParsed(key, fallback, time.ParseDuration)
}
