package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kilowulf/livdoc/internal/plan"
)

const (
	ownerKey key = 1
	planKey  key = 2
)

// Identity carries the claims the core needs from the auth and billing
// providers: who the caller is and which plan they are on.
type Identity struct {
	OwnerID string
	PlanID  string
}

// Auth validates a Bearer token (HS256) and stores the caller identity in
// the request context. The token's "sub" claim is the owner id; the "plan"
// claim, supplied by the billing provider at token mint time, defaults to
// the free tier when absent.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "Authorization header is required", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(header, "Bearer ")
			ident, err := validateToken(tokenString, secret)
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ownerKey, ident.OwnerID)
			ctx = context.WithValue(ctx, planKey, ident.PlanID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validateToken(tokenString, secret string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("missing sub claim")
	}

	planID, _ := claims["plan"].(string)
	if planID == "" {
		planID = plan.Free
	}

	return &Identity{OwnerID: sub, PlanID: planID}, nil
}

// GetOwnerID returns the authenticated caller's owner id, or "" if the
// request did not pass through Auth.
func GetOwnerID(ctx context.Context) string {
	if id, ok := ctx.Value(ownerKey).(string); ok {
		return id
	}
	return ""
}

func GetPlanID(ctx context.Context) string {
	if id, ok := ctx.Value(planKey).(string); ok {
		return id
	}
	return plan.Free
}

// WithIdentity injects a caller identity directly; used by tests.
func WithIdentity(ctx context.Context, ownerID, planID string) context.Context {
	ctx = context.WithValue(ctx, ownerKey, ownerID)
	return context.WithValue(ctx, planKey, planID)
}
