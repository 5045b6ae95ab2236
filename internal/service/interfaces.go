package service

import (
	"context"

	"voting-platform/internal/domain"
)

// AuthService defines the interface for authentication operations
type AuthService interface {
	// Login resolves an email to a user, creating it on first sight, and issues a token
	Login(ctx context.Context, email string) (*domain.LoginResponse, error)

	// ValidateToken verifies a bearer token and returns the stored user's current identity
	ValidateToken(ctx context.Context, token string) (*domain.Identity, error)

	// CurrentUser loads the user behind an identity
	CurrentUser(ctx context.Context, identity *domain.Identity) (*domain.User, error)
}

// PollNotifier receives the refreshed poll list after every mutation
type PollNotifier interface {
	PollsUpdated(resp *domain.PollsResponse)
}

// Services aggregates all services
type Services struct {
	Auth  AuthService
	Polls *PollService
	Users *UserService
}
