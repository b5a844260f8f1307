package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"trackhub/backend/services/tracking-service/internal/models"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller of a read API.
type Principal struct {
	UserID   int64
	TenantID int64
	Global   bool
}

// Scope converts the principal into a query scope.
func (p Principal) Scope() models.Scope {
	return models.Scope{TenantID: p.TenantID, Global: p.Global}
}

// AuthMiddleware validates HMAC JWT bearer tokens and stores the caller's
// Principal in the request context. The tenant equal to globalTenantID sees
// every device. An empty secret disables verification and every request runs
// with global scope.
func AuthMiddleware(secret string, globalTenantID int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				p := Principal{TenantID: globalTenantID, Global: true}
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
			})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}
			tokenStr := strings.TrimSpace(parts[1])
			token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenInvalidClaims
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "invalid token claims", http.StatusUnauthorized)
				return
			}

			userID, err := int64Claim(claims, "user_id")
			if err != nil {
				http.Error(w, "user id not found", http.StatusUnauthorized)
				return
			}
			tenantID, err := int64Claim(claims, "tenant_id")
			if err != nil {
				http.Error(w, "tenant id not found", http.StatusUnauthorized)
				return
			}

			p := Principal{UserID: userID, TenantID: tenantID, Global: tenantID == globalTenantID}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func int64Claim(claims jwt.MapClaims, key string) (int64, error) {
	switch v := claims[key].(type) {
	case float64:
		return int64(v), nil
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, err
		}
		return id, nil
	default:
		return 0, fmt.Errorf("%s not present", key)
	}
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the caller from request context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
