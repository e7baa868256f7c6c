package middleware

import (
	"net/http"
	"strings"

	"github.com/josh-kwaku/opsledger/internal/auth"
	"github.com/josh-kwaku/opsledger/internal/handler"
	"github.com/josh-kwaku/opsledger/internal/logging"
)

// Auth resolves the bearer token to an actor reference. The ledger does not
// authenticate users itself; it trusts tokens signed with the shared secret.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, appErr := bearerToken(r)
			if appErr == nil {
				claims, err := auth.ValidateToken(token, secret)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(auth.ContextWithActor(r.Context(), claims.Actor)))
					return
				}
				logging.FromContext(r.Context()).Debug("token rejected", "error", err)
				appErr = handler.ErrInvalidToken
			}

			w.Header().Set("WWW-Authenticate", `Bearer realm="opsledger"`)
			handler.RespondAppError(w, appErr, nil)
		})
	}
}

func bearerToken(r *http.Request) (string, *handler.AppError) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", handler.ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", handler.ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}
