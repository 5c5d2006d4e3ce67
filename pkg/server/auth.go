package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/raterudder/solarwatch/pkg/log"
)

// tokenVerifier validates a raw ID token and returns the email it was issued
// to.
type tokenVerifier func(ctx context.Context, rawIDToken string) (string, error)

// oidcEmailVerifier adapts an OIDC verifier into a tokenVerifier.
func oidcEmailVerifier(v *oidc.IDTokenVerifier) tokenVerifier {
	return func(ctx context.Context, rawIDToken string) (string, error) {
		idToken, err := v.Verify(ctx, rawIDToken)
		if err != nil {
			return "", err
		}
		var claims struct {
			Email string `json:"email"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return "", err
		}
		if claims.Email == "" {
			return "", errors.New("token has no email claim")
		}
		return claims.Email, nil
	}
}

// authMiddleware requires a valid Google ID token as a bearer token when an
// OIDC audience is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if s.verifyToken == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			log.Ctx(ctx).WarnContext(ctx, "no auth header found")
			writeJSONError(w, "missing auth token", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			log.Ctx(ctx).WarnContext(ctx, "invalid auth header")
			writeJSONError(w, "invalid auth header", http.StatusBadRequest)
			return
		}

		email, err := s.verifyToken(ctx, strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "auth token validation failed", slog.Any("error", err))
			writeJSONError(w, "invalid auth token", http.StatusUnauthorized)
			return
		}
		if len(s.allowedEmails) > 0 && !slices.Contains(s.allowedEmails, email) {
			log.Ctx(ctx).WarnContext(ctx, "email not allowed", slog.String("email", email))
			writeJSONError(w, "forbidden", http.StatusForbidden)
			return
		}

		ctx = log.WithAttrs(ctx, slog.String("email", email))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
