package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"voting-platform/internal/domain"
	"voting-platform/internal/service"
	"voting-platform/pkg/errors"
	"voting-platform/pkg/logger"
)

// ContextKey represents keys used in request context
type ContextKey string

const (
	// IdentityContextKey is the key for the authenticated identity in context
	IdentityContextKey ContextKey = "identity"
	// RequestIDContextKey is the key for request ID in context
	RequestIDContextKey ContextKey = "request_id"
)

// IdentityFrom returns the caller resolved by Auth or OptionalAuth, or nil
func IdentityFrom(ctx context.Context) *domain.Identity {
	identity, _ := ctx.Value(IdentityContextKey).(*domain.Identity)
	return identity
}

// WithIdentity stores identity in ctx
func WithIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, identity)
}

// RequestIDFrom returns the request ID set by RequestID
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}

// bearerToken extracts the token from the Authorization header.
// ok is false when the header is absent; err is set when it is malformed.
func bearerToken(r *http.Request) (token string, ok bool, err *errors.AppError) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false, nil
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", true, errors.NewAuthenticationError("Invalid authorization header format")
	}
	token = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", true, errors.NewAuthenticationError("Token is required")
	}
	return token, true, nil
}

// tokenError keeps the status chosen by the auth service (403 for a banned account)
func tokenError(err error) *errors.AppError {
	if appErr, ok := errors.As(err); ok {
		return appErr
	}
	return errors.NewAuthenticationError("Invalid or expired token")
}

// Auth creates an authentication middleware
func Auth(authService service.AuthService, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok, appErr := bearerToken(r)
			if !ok {
				WriteError(w, r, errors.NewAuthenticationError("Authorization header is required"), logger)
				return
			}
			if appErr != nil {
				WriteError(w, r, appErr, logger)
				return
			}

			identity, err := authService.ValidateToken(r.Context(), token)
			if err != nil {
				WriteError(w, r, tokenError(err), logger)
				return
			}

			logger.WithField("user_id", identity.UserID).Debug("User authenticated successfully")

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// OptionalAuth resolves the identity when a token is present and continues anonymously otherwise
func OptionalAuth(authService service.AuthService, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok, appErr := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			if appErr != nil {
				WriteError(w, r, appErr, logger)
				return
			}

			identity, err := authService.ValidateToken(r.Context(), token)
			if err != nil {
				WriteError(w, r, tokenError(err), logger)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireOwner rejects callers whose identity lacks the owner claim. Must run after Auth.
func RequireOwner(logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFrom(r.Context())
			if identity == nil {
				WriteError(w, r, errors.NewAuthenticationError("Authentication required"), logger)
				return
			}
			if !identity.IsOwner {
				logger.WithField("user_id", identity.UserID).Warn("Owner-only route refused")
				WriteError(w, r, errors.NewAuthorizationError("Owner role required"), logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID creates a middleware that adds a unique request ID to each request
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}

			w.Header().Set("X-Request-ID", requestID)
			ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WriteError writes the JSON error envelope for appErr
func WriteError(w http.ResponseWriter, r *http.Request, appErr *errors.AppError, logger *logger.Logger) {
	requestID := RequestIDFrom(r.Context())

	log := logger.WithError(appErr).WithFields(map[string]interface{}{
		"request_id": requestID,
		"status":     appErr.StatusCode,
		"path":       r.URL.Path,
	})
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.Error("Request error")
	} else {
		log.Debug("Request rejected")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	if err := json.NewEncoder(w).Encode(errors.NewErrorResponse(appErr, requestID)); err != nil {
		logger.WithError(err).Error("Failed to encode error response")
	}
}
