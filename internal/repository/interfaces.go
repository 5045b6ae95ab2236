package repository

import (
	"context"

	"voting-platform/internal/domain"
)

// PollRepository defines the interface for poll data operations
type PollRepository interface {
	// ListPolls returns polls newest first, options in their original order
	ListPolls(ctx context.Context, filter domain.PollFilter) ([]domain.Poll, error)

	// GetPoll returns nil when the poll does not exist
	GetPoll(ctx context.Context, id string) (*domain.Poll, error)

	// CreatePoll persists a poll and its options. IDs must already be assigned.
	CreatePoll(ctx context.Context, poll *domain.Poll, createdBy string) error

	// UpdateStatus reports false when the poll does not exist
	UpdateStatus(ctx context.Context, id string, status domain.PollStatus) (bool, error)

	// DeletePoll reports false when the poll does not exist
	DeletePoll(ctx context.Context, id string) (bool, error)

	// RecordVote stores the user's vote and bumps the option count atomically.
	// Returns domain.ErrAlreadyVoted on a second vote and domain.ErrOptionNotFound for a foreign option.
	RecordVote(ctx context.Context, userID, pollID, optionID string) error

	// VotedPollIDs lists the polls the user has voted in
	VotedPollIDs(ctx context.Context, userID string) ([]string, error)
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	// GetByID returns nil when the user does not exist
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail returns nil when the user does not exist
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Create inserts a new user. The ID must already be assigned.
	Create(ctx context.Context, user *domain.User) error

	SetOwner(ctx context.Context, id string, isOwner bool) error
	List(ctx context.Context) ([]domain.User, error)
	UpdateRole(ctx context.Context, id string, role domain.Role) (bool, error)
	SetBanned(ctx context.Context, id string, banned bool, reason string) (bool, error)
	Count(ctx context.Context) (int, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Poll PollRepository
	User UserRepository
}
