package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"finboard/internal/core"
	applog "finboard/internal/log"
	"finboard/internal/tokens/memory"
)

type fakeFetcher struct {
	calls   atomic.Int32
	profile core.UserProfile
	err     error
	gate    chan struct{} // when set, FetchProfile waits for it
}

func (f *fakeFetcher) FetchProfile(ctx context.Context, token string) (core.UserProfile, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.profile, f.err
}

type recordingNav struct {
	mu   sync.Mutex
	dest []Destination
}

func (n *recordingNav) Navigate(_ context.Context, to Destination) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dest = append(n.dest, to)
}

func (n *recordingNav) all() []Destination {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Destination(nil), n.dest...)
}

func newGuard(token string, f ProfileFetcher) (*Guard, *memory.Store, *recordingNav) {
	ts := memory.New(token)
	nav := &recordingNav{}
	return NewGuard(ts, f, WithNavigator(nav), WithLogger(applog.Discard())), ts, nav
}

func TestResolveWithoutTokenRedirects(t *testing.T) {
	f := &fakeFetcher{}
	g, _, nav := newGuard("", f)

	if g.Current().State != Pending {
		t.Fatalf("initial state = %s", g.Current().State)
	}
	sess, err := g.Resolve(context.Background())
	if !errors.Is(err, ErrNoToken) {
		t.Fatalf("err = %v, want ErrNoToken", err)
	}
	if sess.State != Rejected || sess.Next() != ToLogin {
		t.Fatalf("unexpected session %+v", sess)
	}
	if f.calls.Load() != 0 {
		t.Fatal("profile fetched without a token")
	}
	if d := nav.all(); len(d) != 1 || d[0] != ToLogin {
		t.Fatalf("navigation = %v", d)
	}
}

func TestResolveAuthenticates(t *testing.T) {
	f := &fakeFetcher{profile: core.UserProfile{FullName: "Ada Lovelace", Email: "ada@example.com"}}
	g, ts, nav := newGuard("tok", f)

	sess, err := g.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !sess.Authenticated() || sess.Profile.Email != "ada@example.com" || sess.Next() != ToDashboard {
		t.Fatalf("unexpected session %+v", sess)
	}
	if g.Current().State != Authenticated {
		t.Fatal("session not committed")
	}
	if _, ok, _ := ts.Get(context.Background()); !ok {
		t.Fatal("token discarded on success")
	}
	if d := nav.all(); len(d) != 1 || d[0] != ToDashboard {
		t.Fatalf("navigation = %v", d)
	}
}

func TestResolveFailureDiscardsToken(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"fetch failed", &FetchFailedError{StatusCode: http.StatusUnauthorized}, ErrFetchFailed},
		{"malformed", ErrMalformedProfile, ErrMalformedProfile},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, ts, nav := newGuard("tok", &fakeFetcher{err: tc.err})
			sess, err := g.Resolve(context.Background())
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if sess.State != Rejected {
				t.Fatalf("state = %s", sess.State)
			}
			if _, ok, _ := ts.Get(context.Background()); ok {
				t.Fatal("token kept after failed fetch")
			}
			if d := nav.all(); len(d) != 1 || d[0] != ToLogin {
				t.Fatalf("navigation = %v", d)
			}
		})
	}
}

func TestLogoutIsUnconditional(t *testing.T) {
	g, ts, nav := newGuard("tok", &fakeFetcher{profile: core.UserProfile{FullName: "A", Email: "a@b"}})
	if _, err := g.Resolve(context.Background()); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := g.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok, _ := ts.Get(context.Background()); ok {
		t.Fatal("token kept after logout")
	}
	cur := g.Current()
	if cur.State != Rejected || !errors.Is(cur.Err, ErrLoggedOut) {
		t.Fatalf("current = %+v", cur)
	}
	if d := nav.all(); len(d) != 2 || d[1] != ToLogin {
		t.Fatalf("navigation = %v", d)
	}

	// Logging out again with no session still redirects.
	if err := g.Logout(context.Background()); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if len(nav.all()) != 3 {
		t.Fatal("second logout did not redirect")
	}
}

func TestFailedFetchKeepsTokenWrittenMeanwhile(t *testing.T) {
	f := &fakeFetcher{err: &FetchFailedError{StatusCode: http.StatusUnauthorized}, gate: make(chan struct{})}
	g, ts, _ := newGuard("old", f)

	done := make(chan error)
	go func() {
		_, err := g.Resolve(context.Background())
		done <- err
	}()

	waitFor(t, func() bool { return f.calls.Load() == 1 })
	// A fresh login lands while the old token is still being checked.
	if err := ts.Set(context.Background(), "new"); err != nil {
		t.Fatal(err)
	}
	close(f.gate)

	if err := <-done; !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("err = %v, want ErrFetchFailed", err)
	}
	if tok, ok, _ := ts.Get(context.Background()); !ok || tok != "new" {
		t.Fatalf("slot = %q, %v; the new token should survive", tok, ok)
	}
}

func TestFetchCompletingAfterLogoutIsDropped(t *testing.T) {
	f := &fakeFetcher{profile: core.UserProfile{FullName: "A", Email: "a@b"}, gate: make(chan struct{})}
	g, _, nav := newGuard("tok", f)

	done := make(chan Session)
	go func() {
		sess, _ := g.Resolve(context.Background())
		done <- sess
	}()

	waitFor(t, func() bool { return f.calls.Load() == 1 })
	if err := g.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	close(f.gate)

	sess := <-done
	if sess.Authenticated() {
		t.Fatal("stale fetch authenticated the session")
	}
	if cur := g.Current(); cur.State != Rejected || !errors.Is(cur.Err, ErrLoggedOut) {
		t.Fatalf("current = %+v", cur)
	}
	if d := nav.all(); len(d) != 1 || d[0] != ToLogin {
		t.Fatalf("stale fetch navigated: %v", d)
	}
}

func TestConcurrentResolvesShareOneFetch(t *testing.T) {
	f := &fakeFetcher{profile: core.UserProfile{FullName: "A", Email: "a@b"}, gate: make(chan struct{})}
	g, _, _ := newGuard("tok", f)

	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Resolve(context.Background())
			errs <- err
		}()
	}
	waitFor(t, func() bool { return f.calls.Load() == 1 })
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}
	if got := f.calls.Load(); got != 1 {
		t.Fatalf("profile fetched %d times, want 1", got)
	}
}

func TestCanceledResolveKeepsToken(t *testing.T) {
	f := &fakeFetcher{profile: core.UserProfile{FullName: "A", Email: "a@b"}, gate: make(chan struct{})}
	defer close(f.gate)
	g, ts, nav := newGuard("tok", f)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		waitFor(t, func() bool { return f.calls.Load() == 1 })
		cancel()
	}()

	_, err := g.Resolve(ctx)
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("err = %v, want ErrCanceled", err)
	}
	if _, ok, _ := ts.Get(context.Background()); !ok {
		t.Fatal("token discarded on cancellation")
	}
	if g.Current().State != Pending || len(nav.all()) != 0 {
		t.Fatal("canceled resolution committed state")
	}
}

func TestGuardWithHTTPProfileEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"user": {"fullname": "Grace Hopper", "email": "grace@example.com"}}`))
	}))
	defer srv.Close()
	client := NewHTTPProfileClient(srv.URL, time.Second)

	g, _, _ := newGuard("good", client)
	sess, err := g.Resolve(context.Background())
	if err != nil || sess.Profile.FullName != "Grace Hopper" {
		t.Fatalf("resolve = %+v, %v", sess, err)
	}

	g, ts, _ := newGuard("bad", client)
	_, err = g.Resolve(context.Background())
	var ffe *FetchFailedError
	if !errors.As(err, &ffe) || ffe.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401 FetchFailedError", err)
	}
	if _, ok, _ := ts.Get(context.Background()); ok {
		t.Fatal("token kept after 401")
	}
}

func TestReason(t *testing.T) {
	cases := map[error]string{
		ErrNoToken:                        "no_token",
		&FetchFailedError{StatusCode: 500}: "fetch_failed",
		ErrMalformedProfile:               "malformed_profile",
		ErrLoggedOut:                      "logged_out",
		ErrCanceled:                       "canceled",
		errors.New("x"):                   "unknown",
	}
	for err, want := range cases {
		if got := Reason(err); got != want {
			t.Fatalf("Reason(%v) = %q, want %q", err, got, want)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}
