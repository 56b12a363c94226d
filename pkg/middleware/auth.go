package middleware

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"examhub/pkg/api"
)

type contextKey string

// UserIDKey holds the authenticated user's ID (int64) in the request context.
const UserIDKey contextKey = "user_id"

// UserID pulls the authenticated user out of the request context.
func UserID(r *http.Request) (int64, bool) {
	id, ok := r.Context().Value(UserIDKey).(int64)
	return id, ok
}

// JWTAuth validates the Bearer token and puts the user ID into the context.
func JWTAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				api.Fail(w, http.StatusUnauthorized, "missing authorization header", nil)
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				api.Fail(w, http.StatusUnauthorized, "invalid authorization header", nil)
				return
			}

			token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				api.Fail(w, http.StatusUnauthorized, "invalid or expired token", nil)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "invalid token claims", nil)
				return
			}
			// encoding/json decodes numbers as float64
			rawID, ok := claims["user_id"].(float64)
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "invalid token claims", nil)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, int64(rawID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminChecker resolves the admin flag for a user. Backed by the user service
// so the flag is read from the database on every admin request, not trusted
// from the token.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// RequireAdmin guards admin-only routes. Must run after JWTAuth.
func RequireAdmin(checker AdminChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserID(r)
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "authentication required", nil)
				return
			}

			isAdmin, err := checker.IsAdmin(r.Context(), userID)
			if err != nil {
				api.Fail(w, http.StatusInternalServerError, "failed to verify permissions", err)
				return
			}
			if !isAdmin {
				api.Fail(w, http.StatusForbidden, "admin access required", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// BasicAuth protects the metrics endpoint.
func BasicAuth(username, password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)

			auth := r.Header.Get("Authorization")
			if auth == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(auth, " ", 2)
			if len(parts) != 2 || parts[0] != "Basic" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			payload, err := base64.StdEncoding.DecodeString(parts[1])
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			pair := strings.SplitN(string(payload), ":", 2)
			if len(pair) != 2 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !constantTimeCompare(pair[0], username) || !constantTimeCompare(pair[1], password) {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func constantTimeCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	result := 0
	for i := range a {
		result |= int(a[i] ^ b[i])
	}
	return result == 0
}
