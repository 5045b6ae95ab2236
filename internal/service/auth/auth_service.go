package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"voting-platform/internal/domain"
	"voting-platform/internal/repository"
	"voting-platform/internal/service"
	"voting-platform/pkg/errors"
	"voting-platform/pkg/logger"
)

// Service implements the AuthService interface
type Service struct {
	users      repository.UserRepository
	tokens     *TokenManager
	ownerEmail string
	logger     *logger.Logger
}

// NewService creates a new auth service. The account whose email matches ownerEmail
// carries the owner claim.
func NewService(users repository.UserRepository, tokens *TokenManager, ownerEmail string, logger *logger.Logger) service.AuthService {
	return &Service{
		users:      users,
		tokens:     tokens,
		ownerEmail: normalizeEmail(ownerEmail),
		logger:     logger,
	}
}

// Login resolves the email to a user, registering it on first sight, and issues a session token
func (s *Service) Login(ctx context.Context, email string) (*domain.LoginResponse, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.NewValidationError("A valid email is required", map[string]interface{}{"email": email})
	}

	isOwner := s.ownerEmail != "" && email == s.ownerEmail

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, errors.NewInternalError("Failed to look up user", err)
	}

	if user == nil {
		user = &domain.User{
			ID:      uuid.NewString(),
			Email:   email,
			Role:    domain.RoleUser,
			IsOwner: isOwner,
		}
		if isOwner {
			user.Role = domain.RoleAdmin
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, errors.NewInternalError("Failed to register user", err)
		}
		s.logger.WithFields(map[string]interface{}{
			"user_id":  user.ID,
			"is_owner": user.IsOwner,
		}).Info("User registered")
	} else if user.IsOwner != isOwner {
		if err := s.users.SetOwner(ctx, user.ID, isOwner); err != nil {
			return nil, errors.NewInternalError("Failed to update owner flag", err)
		}
		user.IsOwner = isOwner
		s.logger.WithField("user_id", user.ID).WithField("is_owner", isOwner).Info("Owner flag updated")
	}

	if user.Banned {
		return nil, bannedError(user)
	}

	token, expiresAt, err := s.tokens.Issue(domain.IdentityOf(user))
	if err != nil {
		return nil, errors.NewInternalError("Failed to issue token", err)
	}

	s.logger.WithField("user_id", user.ID).Debug("Login succeeded")

	return &domain.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      *user,
	}, nil
}

// ValidateToken verifies a bearer token and resolves it against the stored user, so a ban
// or a role change applies to tokens issued before it
func (s *Service) ValidateToken(ctx context.Context, token string) (*domain.Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		s.logger.WithError(err).Debug("Token rejected")
		return nil, errors.NewAuthenticationError("Invalid or expired token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, errors.NewInternalError("Failed to look up user", err)
	}
	if user == nil {
		s.logger.WithField("user_id", claims.UserID).Debug("Token for unknown user")
		return nil, errors.NewAuthenticationError("Invalid or expired token")
	}
	if user.Banned {
		s.logger.WithField("user_id", user.ID).Warn("Banned user token refused")
		return nil, bannedError(user)
	}

	identity := domain.IdentityOf(user)
	return &identity, nil
}

// CurrentUser loads the stored user behind an identity
func (s *Service) CurrentUser(ctx context.Context, identity *domain.Identity) (*domain.User, error) {
	if identity == nil {
		return nil, errors.NewAuthenticationError("Authentication required")
	}
	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func bannedError(user *domain.User) *errors.AppError {
	appErr := errors.NewAuthorizationError("Account is banned").
		WithDetail("banned", true).
		WithDetail("banReason", user.BanReason)
	appErr.Internal = domain.ErrUserBanned
	return appErr
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
