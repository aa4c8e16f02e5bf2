package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"finboard/internal/core"
)

// maxProfileBody caps how much of the profile response is read.
const maxProfileBody = 1 << 20

// ProfileFetcher loads the profile belonging to a session token.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, token string) (core.UserProfile, error)
}

// HTTPProfileClient fetches the profile with a bearer-authenticated GET.
type HTTPProfileClient struct {
	url    string
	client *http.Client
}

func NewHTTPProfileClient(url string, timeout time.Duration) *HTTPProfileClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProfileClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type profileEnvelope struct {
	User *struct {
		FullName *string `json:"fullname"`
		Email    *string `json:"email"`
	} `json:"user"`
}

// FetchProfile performs exactly one request. Transport errors and non-2xx
// statuses yield *FetchFailedError; any other payload shape yields
// ErrMalformedProfile.
func (c *HTTPProfileClient) FetchProfile(ctx context.Context, token string) (core.UserProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return core.UserProfile{}, &FetchFailedError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return core.UserProfile{}, &FetchFailedError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProfileBody))
		return core.UserProfile{}, &FetchFailedError{StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBody+1))
	if err != nil {
		return core.UserProfile{}, &FetchFailedError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > maxProfileBody {
		return core.UserProfile{}, fmt.Errorf("%w: body exceeds %d bytes", ErrMalformedProfile, maxProfileBody)
	}
	return decodeProfile(body)
}

func decodeProfile(body []byte) (core.UserProfile, error) {
	var env profileEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return core.UserProfile{}, fmt.Errorf("%w: %v", ErrMalformedProfile, err)
	}
	if env.User == nil {
		return core.UserProfile{}, fmt.Errorf("%w: missing user object", ErrMalformedProfile)
	}
	if env.User.FullName == nil || env.User.Email == nil {
		return core.UserProfile{}, fmt.Errorf("%w: missing fullname or email", ErrMalformedProfile)
	}
	return core.UserProfile{FullName: *env.User.FullName, Email: *env.User.Email}, nil
}
