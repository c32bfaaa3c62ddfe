package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/kariteco/storefront-core/api/responses"
	pkgerrors "github.com/kariteco/storefront-core/pkg/errors"
	"github.com/kariteco/storefront-core/pkg/logger"
)

const (
	guestSessionHeader = "X-Guest-Session"
	guestSessionPrefix = "guest_"
	maxGuestSessionLen = 128
)

// GuestSession requires a well-formed X-Guest-Session header and seeds the
// request context with its value. The identifier is opaque to the server; only
// shape is validated.
func GuestSession(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(guestSessionHeader))
			if sessionID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "missing guest session header"))
				return
			}
			if !strings.HasPrefix(sessionID, guestSessionPrefix) || len(sessionID) > maxGuestSessionLen {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "malformed guest session id"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxGuestSession, sessionID)
			if logg != nil {
				ctx = logg.WithGuestSessionID(ctx, sessionID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
