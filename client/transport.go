package client

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/sync/singleflight"
)

type retriedKey struct{}

// WithRetried marks a request context as a second attempt after a refresh.
// A 401 on a marked request means the refreshed credentials are still being
// rejected, so the session is treated as expired instead of refreshed again.
func WithRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

func isRetried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}

// authTransport is the interceptor every storefront request passes through.
// It attaches the bearer token on the way out and watches for 401s on the
// way back. On the first 401 it refreshes the session exactly once no matter
// how many requests fail concurrently, then hands the ORIGINAL 401 back to
// the caller; callers decide whether to re-issue. Responses from the auth
// endpoints themselves pass through untouched, otherwise a wrong password
// would trigger a refresh.
type authTransport struct {
	base             http.RoundTripper
	tokens           *TokenStore
	refresh          func(ctx context.Context) error
	onSessionExpired func()

	group singleflight.Group
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	sentToken := t.tokens.AccessToken()

	out := req.Clone(req.Context())
	if out.Header.Get("Authorization") == "" && sentToken != "" {
		out.Header.Set("Authorization", "Bearer "+sentToken)
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	if isAuthPath(req.URL.Path) {
		return resp, nil
	}

	if isRetried(req.Context()) {
		t.expireSession()
		return resp, nil
	}

	// A rotation that landed while this request was in flight already
	// superseded the credentials it carried; the caller just retries.
	if t.tokens.AccessToken() != sentToken {
		return resp, nil
	}

	// All requests that 401 while a refresh is in flight share its outcome.
	// The re-check inside the closure covers the straggler that reaches here
	// just after a previous flight finished. The refresh runs detached from
	// the initiating request's context: its outcome is shared by every
	// waiter, so one caller cancelling must not log the whole session out.
	if _, refreshErr, _ := t.group.Do("refresh", func() (any, error) {
		if t.tokens.AccessToken() != sentToken {
			return nil, nil
		}
		return nil, t.refresh(context.WithoutCancel(req.Context()))
	}); refreshErr != nil {
		t.expireSession()
	}

	return resp, nil
}

func (t *authTransport) expireSession() {
	t.tokens.ClearSession()
	if t.onSessionExpired != nil {
		t.onSessionExpired()
	}
}

func isAuthPath(path string) bool {
	return strings.Contains(path, "/api/v1/auth/")
}
