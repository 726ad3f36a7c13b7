package apitest

import (
	"context"
	"net/http"
	"strings"

	"childbehavior/internal/models"
	"childbehavior/internal/security"
)

type contextKey string

const claimsContextKey contextKey = "claims"

func claimsFrom(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey).(*Claims)
	return claims
}

// requireAuth rejects requests without a valid bearer token
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header required", nil)
			return
		}

		claims, err := s.parseToken(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token", nil)
			return
		}

		s.mu.RLock()
		_, exists := s.accounts[claims.UserID]
		s.mu.RUnlock()
		if !exists {
			writeError(w, http.StatusUnauthorized, "Invalid token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// requireParent is requireAuth restricted to parent accounts
func (s *Server) requireParent(next http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		if claimsFrom(r.Context()).Role != string(models.RoleParent) {
			writeError(w, http.StatusForbidden, "Insufficient permissions", nil)
			return
		}
		next(w, r)
	})
}

// rateLimit throttles credential endpoints per client IP
func (s *Server) rateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.logins != nil && !s.logins.Allow(security.GetClientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "Too many attempts, please try again later", nil)
			return
		}
		next(w, r)
	}
}
