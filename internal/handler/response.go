package handler

import (
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"voting-platform/internal/domain"
	"voting-platform/internal/middleware"
	"voting-platform/internal/tally"
	apperrors "voting-platform/pkg/errors"
	"voting-platform/pkg/logger"
)

const maxBodyBytes = 1 << 20

// toAppError maps domain and validation failures to the error envelope types
func toAppError(err error) *apperrors.AppError {
	if appErr, ok := apperrors.As(err); ok {
		return appErr
	}

	var verr *tally.ValidationError
	if errors.As(err, &verr) {
		return apperrors.NewValidationError("Invalid poll", verr.Details())
	}

	switch {
	case errors.Is(err, domain.ErrAlreadyVoted):
		return apperrors.NewAlreadyVotedError("")
	case errors.Is(err, domain.ErrPollNotFound):
		return apperrors.NewNotFoundError("Poll not found")
	case errors.Is(err, domain.ErrOptionNotFound):
		return apperrors.NewValidationError("Option does not belong to this poll", nil)
	case errors.Is(err, domain.ErrPollNotActive):
		return apperrors.NewConflictError("Poll is not active")
	case errors.Is(err, domain.ErrOwnerRequired):
		return apperrors.NewAuthorizationError("Owner role required")
	case errors.Is(err, domain.ErrUserNotFound):
		return apperrors.NewNotFoundError("User not found")
	case errors.Is(err, domain.ErrUserBanned):
		return apperrors.NewAuthorizationError("Account is banned")
	}

	return apperrors.NewInternalError("Internal server error", err)
}

func respondError(w http.ResponseWriter, r *http.Request, err error, log *logger.Logger) {
	middleware.WriteError(w, r, toAppError(err), log)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}, log *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

// decodeJSON reads a bounded JSON body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.NewValidationError("Invalid request body", map[string]interface{}{"reason": err.Error()})
	}
	return nil
}

func generateETag(data interface{}) string {
	jsonData, _ := json.Marshal(data)
	hash := md5.Sum(jsonData)
	return fmt.Sprintf(`"%x"`, hash)
}
