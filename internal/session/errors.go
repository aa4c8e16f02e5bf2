package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNoToken means the token slot was empty or unreadable.
	ErrNoToken = errors.New("no session token")
	// ErrFetchFailed matches every *FetchFailedError.
	ErrFetchFailed = errors.New("profile fetch failed")
	// ErrMalformedProfile means the profile endpoint answered with an unexpected shape.
	ErrMalformedProfile = errors.New("malformed profile payload")

	// ErrLoggedOut is the rejection cause after an explicit logout.
	ErrLoggedOut = errors.New("logged out")
	// ErrCanceled means the caller went away before the profile arrived.
	ErrCanceled = errors.New("session resolution canceled")
)

// FetchFailedError reports a transport failure or a non-success status from
// the profile endpoint. StatusCode is zero for transport failures.
type FetchFailedError struct {
	StatusCode int
	Err        error
}

func (e *FetchFailedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("profile fetch failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("profile fetch failed: %v", e.Err)
}

func (e *FetchFailedError) Unwrap() error {
	return e.Err
}

func (e *FetchFailedError) Is(target error) bool {
	return target == ErrFetchFailed
}

// Reason returns a short stable label for logging a rejection cause.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoToken):
		return "no_token"
	case errors.Is(err, ErrMalformedProfile):
		return "malformed_profile"
	case errors.Is(err, ErrFetchFailed):
		return "fetch_failed"
	case errors.Is(err, ErrLoggedOut):
		return "logged_out"
	case errors.Is(err, ErrCanceled):
		return "canceled"
	default:
		return "unknown"
	}
}
