/**
 * @description
 * This file contains custom middleware for the HTTP router: bearer-token
 * authentication and the inline membership guard that downgrades a lapsed
 * premium profile before the request proceeds.
 *
 * @dependencies
 * - context, net/http, strings: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: JWT parsing and validation.
 */

package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tradelearn/billing-service/internal/domain"
)

// UserIDContextKey is a custom type for the context key to avoid collisions.
type UserIDContextKey string

const userIDKey UserIDContextKey = "userID"

// UserFromContext extracts the authenticated user id injected by AuthMiddleware.
func UserFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDKey).(uuid.UUID)
	return userID, ok
}

// AuthMiddleware creates a middleware that validates the platform's
// HMAC-signed JWTs. The auth subsystem signs tokens with a shared secret and
// puts the user id in the standard 'sub' claim.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(jwtSecret), nil
			})
			if err != nil {
				http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
				return
			}
			if !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}

			sub, ok := claims["sub"].(string)
			if !ok {
				http.Error(w, "User ID not found in token", http.StatusUnauthorized)
				return
			}
			userID, err := uuid.Parse(sub)
			if err != nil {
				http.Error(w, "Invalid user ID in token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GuardRepository is the narrow store surface the membership guard needs.
type GuardRepository interface {
	FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	DowngradeProfile(ctx context.Context, userID uuid.UUID) error
}

// MembershipGuard downgrades the requesting user's own profile synchronously
// when it shows premium access past expiry, so a logged-in user never observes
// premium past their paid-for window even before the periodic sweep runs. The
// guard is corrective: a store error is logged and the request proceeds.
func MembershipGuard(repo GuardRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			profile, err := repo.FindProfileByUserID(r.Context(), userID)
			if err == nil && profile.IsLapsedPremium(time.Now()) {
				if err := repo.DowngradeProfile(r.Context(), userID); err != nil {
					log.Printf("level=warn component=membership_guard msg=\"inline downgrade failed\" user_id=%s err=%v", userID, err)
				} else {
					log.Printf("level=info component=membership_guard msg=\"downgraded lapsed premium profile\" user_id=%s", userID)
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
