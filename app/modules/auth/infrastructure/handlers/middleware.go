package authhandlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	authdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/auth/domain"
	authjwt "github.com/Black-And-White-Club/beauty-contest/app/modules/auth/infrastructure/jwt"
	"github.com/Black-And-White-Club/beauty-contest/app/observability/attr"
)

type claimsKey struct{}

// ClaimsFromContext returns the claims stored by RequireRole.
func ClaimsFromContext(ctx context.Context) (*authdomain.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*authdomain.Claims)
	return c, ok
}

// RequireRole accepts a bearer token carrying role and rejects anything else.
func RequireRole(provider authjwt.Provider, role authdomain.Role, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := provider.ValidateToken(raw)
			if err != nil {
				logger.InfoContext(r.Context(), "Rejected bearer token",
					attr.Error(err),
					attr.ExtractCorrelationID(r.Context()),
				)
				status := http.StatusUnauthorized
				if errors.Is(err, authjwt.ErrExpiredToken) {
					w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="expired"`)
				}
				http.Error(w, "Unauthorized", status)
				return
			}
			if claims.Role != role {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
