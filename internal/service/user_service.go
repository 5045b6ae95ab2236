package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"voting-platform/internal/domain"
	"voting-platform/internal/repository"
	"voting-platform/internal/tally"
	apperrors "voting-platform/pkg/errors"
)

// UserService handles owner-side user administration
type UserService struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func NewUserService(users repository.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// ListUsers returns every registered user, newest first
func (s *UserService) ListUsers(ctx context.Context, identity *domain.Identity) ([]domain.User, error) {
	if err := tally.RequireOwner(identity); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateRole changes a user's role and returns the updated user
func (s *UserService) UpdateRole(ctx context.Context, identity *domain.Identity, userID string, role domain.Role) (*domain.User, error) {
	if err := tally.RequireOwner(identity); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("Invalid role", map[string]interface{}{
			"role":    string(role),
			"allowed": []string{string(domain.RoleUser), string(domain.RoleModerator), string(domain.RoleAdmin)},
		})
	}

	ok, err := s.users.UpdateRole(ctx, userID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	s.logger.Info("User role updated",
		zap.String("user_id", userID),
		zap.String("role", string(role)),
		zap.String("by", identity.UserID))

	return s.reload(ctx, userID)
}

// SetBanned bans or unbans a user. The owner account cannot be banned.
func (s *UserService) SetBanned(ctx context.Context, identity *domain.Identity, userID string, banned bool, reason string) (*domain.User, error) {
	if err := tally.RequireOwner(identity); err != nil {
		return nil, err
	}

	target, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if target == nil {
		return nil, domain.ErrUserNotFound
	}
	if banned && target.IsOwner {
		return nil, apperrors.NewConflictError("The owner account cannot be banned")
	}

	if _, err := s.users.SetBanned(ctx, userID, banned, strings.TrimSpace(reason)); err != nil {
		return nil, fmt.Errorf("failed to update ban: %w", err)
	}

	s.logger.Info("User ban updated",
		zap.String("user_id", userID),
		zap.Bool("banned", banned),
		zap.String("by", identity.UserID))

	return s.reload(ctx, userID)
}

func (s *UserService) reload(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}
