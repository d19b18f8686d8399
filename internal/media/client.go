package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// NewHTTPClient creates an HTTP client with safe defaults for media fetching.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return fmt.Errorf("redirect to unsupported scheme %q blocked", req.URL.Scheme)
			}
			return nil
		},
	}
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Code)
}

// transportError wraps a failure to obtain any response at all.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// isTransient reports whether a fetch failure is worth retrying: network
// errors and 408, 429 and 5xx responses.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusRequestTimeout ||
			se.Code == http.StatusTooManyRequests ||
			se.Code >= 500
	}
	var te *transportError
	return errors.As(err, &te)
}
