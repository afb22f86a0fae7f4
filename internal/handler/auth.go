package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/efreitasn/papertrader/internal/domain"
	"github.com/efreitasn/papertrader/internal/service"
)

type sessionKey struct{}

// requireSession resolves the bearer token to a live session and stores it
// in the request context. Requests without one get 401.
func requireSession(accounts *service.AccountService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				WriteError(w, http.StatusUnauthorized, "unauthorized", "Authorization: Bearer <token> is required")
				return
			}

			session, err := accounts.Authenticate(token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeServiceError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey{}, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// sessionFrom returns the session placed in ctx by requireSession.
func sessionFrom(ctx context.Context) *domain.Session {
	session, _ := ctx.Value(sessionKey{}).(*domain.Session)
	return session
}
