package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/meracare/frontdesk/internal/shared/config"
	"github.com/meracare/frontdesk/internal/shared/types"
)

type contextKey string

const operatorContextKey contextKey = "operator"

// Operator represents the authenticated front-desk user from JWT claims
type Operator struct {
	ID      types.ID `json:"sub"`
	Name    string   `json:"name"`
	Role    string   `json:"role"` // front_desk, nurse, admin
	Station string   `json:"station"`
}

// Claims extends JWT claims with console-specific data
type Claims struct {
	jwt.RegisteredClaims
	Name    string `json:"name"`
	Role    string `json:"role"`
	Station string `json:"station,omitempty"`
}

// Middleware creates JWT authentication middleware
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
				return []byte(cfg.JWTSecret), nil
			})
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			op := &Operator{
				ID:      types.ID(claims.Subject),
				Name:    claims.Name,
				Role:    claims.Role,
				Station: claims.Station,
			}

			ctx := context.WithValue(r.Context(), operatorContextKey, op)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetOperator returns the authenticated operator from the context, or nil.
func GetOperator(ctx context.Context) *Operator {
	op, _ := ctx.Value(operatorContextKey).(*Operator)
	return op
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
