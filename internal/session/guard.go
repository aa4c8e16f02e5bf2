// Package session decides whether the user may enter the ledger view.
//
// A Guard reads the token slot, fetches the matching profile once per
// activation and commits the outcome. Every rejection discards the token it
// checked, unless a new login has replaced it since, and signals a redirect
// to the login flow.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"finboard/internal/core"
	applog "finboard/internal/log"
	"finboard/internal/tokens"
)

type State string

const (
	Pending       State = "pending"
	Authenticated State = "authenticated"
	Rejected      State = "rejected"
)

// Destination is the navigation signal emitted after a resolution.
type Destination string

const (
	ToLogin     Destination = "login"
	ToDashboard Destination = "dashboard"
)

// Session is the committed outcome of a resolution.
type Session struct {
	State   State
	Profile core.UserProfile
	Err     error
}

func (s Session) Authenticated() bool {
	return s.State == Authenticated
}

// Next tells the consumer where to go. Pending sessions stay put.
func (s Session) Next() Destination {
	switch s.State {
	case Authenticated:
		return ToDashboard
	case Rejected:
		return ToLogin
	default:
		return ""
	}
}

type Navigator interface {
	Navigate(ctx context.Context, to Destination)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, to Destination)

func (f NavigatorFunc) Navigate(ctx context.Context, to Destination) { f(ctx, to) }

type GuardOption func(*Guard)

// WithNavigator sets the receiver of redirect signals.
func WithNavigator(n Navigator) GuardOption {
	return func(g *Guard) { g.nav = n }
}

func WithLogger(l *applog.Logger) GuardOption {
	return func(g *Guard) {
		if l != nil {
			g.logger = l.WithComponent(applog.ComponentSession)
		}
	}
}

type Guard struct {
	tokens   tokens.Store
	profiles ProfileFetcher
	nav      Navigator
	logger   *applog.Logger
	flights  singleflight.Group

	mu sync.Mutex
	// started numbers resolutions; a result commits only if it is newer
	// than the last commit. Logout marks every in-flight resolution stale.
	started   uint64
	committed uint64
	current   Session
}

func NewGuard(ts tokens.Store, pf ProfileFetcher, opts ...GuardOption) *Guard {
	g := &Guard{
		tokens:   ts,
		profiles: pf,
		logger:   applog.Default().WithComponent(applog.ComponentSession),
		current:  Session{State: Pending},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Current returns the last committed session.
func (g *Guard) Current() Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Resolve runs one session resolution. The error is nil exactly when the
// returned session is authenticated.
//
// Concurrent resolutions of the same token share one profile request. A
// result that arrives after a newer commit or a logout is dropped and the
// caller gets the current session instead.
func (g *Guard) Resolve(ctx context.Context) (Session, error) {
	if ctx.Err() != nil {
		return Session{State: Rejected, Err: ErrCanceled}, ErrCanceled
	}

	g.mu.Lock()
	g.started++
	seq := g.started
	g.mu.Unlock()

	token, ok, err := g.tokens.Get(ctx)
	if err != nil {
		return g.reject(ctx, seq, fmt.Errorf("%w: %v", ErrNoToken, err), discardAny)
	}
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return g.reject(ctx, seq, ErrNoToken, discardNone)
	}

	// The shared fetch must not die with whichever caller started it.
	flightCtx := context.WithoutCancel(ctx)
	ch := g.flights.DoChan(token, func() (any, error) {
		return g.profiles.FetchProfile(flightCtx, token)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		g.logger.DebugContext(ctx, "Session resolution abandoned", applog.FieldError, ctx.Err())
		return Session{State: Rejected, Err: ErrCanceled}, ErrCanceled
	case res = <-ch:
	}

	if res.Err != nil {
		return g.reject(ctx, seq, res.Err, discardToken(token))
	}
	profile, _ := res.Val.(core.UserProfile)

	g.mu.Lock()
	if seq <= g.committed {
		cur := g.current
		g.mu.Unlock()
		return cur, cur.Err
	}
	g.committed = seq
	g.current = Session{State: Authenticated, Profile: profile}
	sess := g.current
	g.mu.Unlock()

	g.logger.InfoContext(ctx, "Session authenticated",
		applog.FieldOperation, applog.OpResolve, applog.FieldEmail, profile.Email)
	g.navigate(ctx, ToDashboard)
	return sess, nil
}

// Logout discards the token and redirects to login regardless of any
// resolution in flight.
func (g *Guard) Logout(ctx context.Context) error {
	g.mu.Lock()
	g.committed = g.started
	g.current = Session{State: Rejected, Err: ErrLoggedOut}
	g.mu.Unlock()

	err := g.tokens.Delete(ctx)
	if err != nil {
		g.logger.ErrorContext(ctx, "Failed to discard token on logout", applog.FieldError, err)
		err = fmt.Errorf("discard token: %w", err)
	}
	g.logger.InfoContext(ctx, "Session ended",
		applog.FieldOperation, applog.OpLogout, applog.FieldReason, Reason(ErrLoggedOut))
	g.navigate(ctx, ToLogin)
	return err
}

// discard selects what a rejection removes from the token slot.
type discard struct {
	all   bool   // clear the slot whatever it holds
	token string // clear the slot only while it holds this token
}

var (
	discardNone = discard{}
	discardAny  = discard{all: true}
)

func discardToken(token string) discard { return discard{token: token} }

func (g *Guard) reject(ctx context.Context, seq uint64, cause error, d discard) (Session, error) {
	g.mu.Lock()
	if seq <= g.committed {
		cur := g.current
		g.mu.Unlock()
		return cur, cur.Err
	}
	g.committed = seq
	g.current = Session{State: Rejected, Err: cause}
	sess := g.current
	g.mu.Unlock()

	switch {
	case d.all:
		if err := g.tokens.Delete(ctx); err != nil {
			g.logger.ErrorContext(ctx, "Failed to discard token", applog.FieldError, err)
		}
	case d.token != "":
		removed, err := g.tokens.DeleteIf(ctx, d.token)
		if err != nil {
			g.logger.ErrorContext(ctx, "Failed to discard token", applog.FieldError, err)
		} else if !removed {
			g.logger.InfoContext(ctx, "Token replaced during resolution, keeping it")
		}
	}

	level := g.logger.WarnContext
	if errors.Is(cause, ErrNoToken) {
		level = g.logger.InfoContext
	}
	level(ctx, "Session rejected", applog.FieldReason, Reason(cause), applog.FieldError, cause)

	g.navigate(ctx, ToLogin)
	return sess, cause
}

func (g *Guard) navigate(ctx context.Context, to Destination) {
	if g.nav != nil {
		g.nav.Navigate(ctx, to)
	}
}
