package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ecovend/backend/internal/database"
	"github.com/ecovend/backend/internal/services"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	claimsKey contextKey = "claims"
	tokenKey  contextKey = "token"
)

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Auth rejects requests without a valid, unrevoked session token and stores
// the token claims in the request context.
func Auth(tokens *services.TokenService, sessions database.SessionStore, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				services.SendErrorResponse(w, "Authorization header required", http.StatusUnauthorized, nil)
				return
			}

			token, ok := BearerToken(r)
			if !ok {
				services.SendErrorResponse(w, "Invalid authorization header format", http.StatusUnauthorized, nil)
				return
			}

			claims, err := tokens.Parse(token)
			if err != nil {
				log.Debug().Err(err).Msg("Rejected token")
				services.SendErrorResponse(w, "Invalid token", http.StatusUnauthorized, nil)
				return
			}

			revoked, err := sessions.IsTokenBlacklisted(r.Context(), token)
			if err != nil {
				log.Error().Err(err).Msg("Token blacklist lookup failed")
				services.SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
				return
			}
			if revoked {
				services.SendErrorResponse(w, "Token has been revoked", http.StatusUnauthorized, nil)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims stored by Auth.
func ClaimsFromContext(ctx context.Context) (*services.TokenClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*services.TokenClaims)
	return claims, ok && claims != nil
}

// IdentityFromContext returns the authenticated identity.
func IdentityFromContext(ctx context.Context) (string, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return "", false
	}
	return claims.Identity, true
}

// TokenFromContext returns the raw bearer token accepted by Auth.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok && token != ""
}
