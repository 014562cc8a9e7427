package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/riteshkumar/peer-transfers/internal/auth"
	"github.com/riteshkumar/peer-transfers/internal/errors"
	u "github.com/riteshkumar/peer-transfers/internal/utils"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// Authenticate accepts an access token from the Authorization header or the
// accessToken cookie and stores the caller in the request context.
func Authenticate(tokens *auth.TokenManager, logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := tokens.ParseAccessToken(accessToken(r))
			if err != nil {
				logger.Warn("unauthenticated request",
					"method", r.Method,
					"path", r.URL.Path,
					"error", err.Error(),
				)
				u.WriteError(w, http.StatusUnauthorized, errors.KindUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAdmin must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			u.WriteError(w, http.StatusUnauthorized, errors.KindUnauthorized, errors.ErrMissingToken.Error())
			return
		}
		if !principal.IsAdmin {
			u.WriteError(w, http.StatusForbidden, errors.KindForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func accessToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}
