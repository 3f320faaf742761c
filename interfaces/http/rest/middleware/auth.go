package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"lms-dashboard/domain/core/entities"
	"lms-dashboard/domain/core/valueobjects"
	"lms-dashboard/pkg/auth"
	pkgerrors "lms-dashboard/pkg/errors"

	"go.uber.org/zap"
)

// ViewerAuthenticator resolves a bearer token into the dashboard viewer
type ViewerAuthenticator interface {
	Authenticate(token string) (*entities.Viewer, error)
}

// Authenticate validates the bearer token and puts the viewer into the
// request context
func Authenticate(authenticator ViewerAuthenticator, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				respondUnauthorized(w, r, "Missing authentication token")
				return
			}

			viewer, err := authenticator.Authenticate(token)
			if err != nil {
				logger.Warn("Invalid token",
					zap.Error(err),
					zap.String("ip", getClientIP(r)),
					zap.String("path", r.URL.Path),
				)

				switch {
				case errors.Is(err, auth.ErrExpiredToken):
					respondUnauthorized(w, r, "Token has expired")
				case errors.Is(err, auth.ErrInvalidSignature):
					respondUnauthorized(w, r, "Invalid token signature")
				default:
					respondUnauthorized(w, r, "Invalid token")
				}
				return
			}

			logger.Debug("Request authenticated",
				zap.Int64("userID", viewer.UserID),
				zap.String("role", viewer.Role.String()),
				zap.String("path", r.URL.Path),
			)

			next.ServeHTTP(w, r.WithContext(auth.WithViewer(r.Context(), viewer)))
		})
	}
}

// RequireRole rejects viewers whose role is not listed
func RequireRole(roles ...valueobjects.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			viewer, ok := auth.ViewerFromContext(r.Context())
			if !ok {
				respondUnauthorized(w, r, "Unauthorized")
				return
			}

			for _, role := range roles {
				if viewer.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			pkgerrors.Respond(w, r, pkgerrors.NewForbiddenError("Insufficient permissions"))
		})
	}
}

// RateLimit limits requests per viewer. Limiter errors fail open.
func RateLimit(limiter auth.RateLimiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + getClientIP(r)
			if viewer, ok := auth.ViewerFromContext(r.Context()); ok {
				key = "user:" + strconv.FormatInt(viewer.UserID, 10)
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("Rate limiter error", zap.String("key", key), zap.Error(err))
			}
			if !allowed {
				pkgerrors.Respond(w, r, pkgerrors.NewRateLimitError("Too many cache clears, try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken reads the bearer token from the Authorization header
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return authHeader
}

// getClientIP extracts the client IP address. chi's RealIP has already
// rewritten RemoteAddr when proxy headers are present.
func getClientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

// respondUnauthorized sends an unauthorized response
func respondUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	pkgerrors.Respond(w, r, pkgerrors.NewUnauthorizedError(message))
}
