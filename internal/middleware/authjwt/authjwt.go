// Package authjwt verifies bearer tokens and enforces role checks from
// the verified claims. Admin and view-only flags are read from the
// stored credential, never from client input.
package authjwt

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"presence_service/internal/lib/api/response"
	"presence_service/internal/lib/jwt"
	sl "presence_service/internal/lib/logger"
	"presence_service/internal/models"

	"github.com/go-chi/render"
)

type ctxKey struct{}

var claimsKey ctxKey

type CredentialProvider interface {
	CredentialByID(ctx context.Context, id string) (models.Credential, error)
}

// Verify extracts and validates the bearer token, storing its claims in
// the request context for handlers downstream.
func Verify(log *slog.Logger, secret string) func(http.Handler) http.Handler {
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("Authorization token required"))

				return
			}

			claims, err := jwt.Parse(token, key)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					render.Status(r, http.StatusUnauthorized)
					render.JSON(w, r, response.Error("Token expired"))

					return
				}

				log.Warn("invalid token", sl.Err(err))

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("Invalid token"))

				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireAdmin allows only credentials with the admin flag set.
func RequireAdmin(log *slog.Logger, creds CredentialProvider) func(http.Handler) http.Handler {
	return requireFlag(log, creds, func(c models.Credential) bool { return c.Admin })
}

// RequireEditor rejects view-only credentials on mutating routes.
func RequireEditor(log *slog.Logger, creds CredentialProvider) func(http.Handler) http.Handler {
	return requireFlag(log, creds, func(c models.Credential) bool { return !c.ViewOnly })
}

func requireFlag(log *slog.Logger, creds CredentialProvider, allowed func(models.Credential) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := Claims(r.Context())
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("Authorization token required"))

				return
			}

			cred, err := creds.CredentialByID(r.Context(), claims.CredentialID)
			if err != nil {
				log.Warn("failed to load credential for authorization", sl.Err(err))

				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("Forbidden"))

				return
			}

			if !allowed(cred) {
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("Forbidden"))

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func WithClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func Claims(ctx context.Context) (*jwt.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*jwt.Claims)
	return claims, ok
}
