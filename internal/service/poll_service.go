package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voting-platform/internal/domain"
	"voting-platform/internal/export"
	"voting-platform/internal/repository"
	"voting-platform/internal/tally"
	apperrors "voting-platform/pkg/errors"
)

type PollService struct {
	polls    repository.PollRepository
	users    repository.UserRepository
	cache    *PollCache
	notifier PollNotifier
	horizon  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewPollService(repos *repository.Repositories, cache *PollCache, notifier PollNotifier, horizon time.Duration, logger *zap.Logger) *PollService {
	if horizon <= 0 {
		horizon = tally.DefaultHorizon
	}
	return &PollService{
		polls:    repos.Poll,
		users:    repos.User,
		cache:    cache,
		notifier: notifier,
		horizon:  horizon,
		now:      time.Now,
		logger:   logger,
	}
}

// ListPolls returns the poll list with percentages and stats
func (s *PollService) ListPolls(ctx context.Context, filter domain.PollFilter) (*domain.PollsResponse, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.NewValidationError("Invalid status filter", map[string]interface{}{
			"status":  string(filter.Status),
			"allowed": []string{string(domain.PollStatusActive), string(domain.PollStatusCompleted)},
		})
	}
	return s.cache.GetPolls(ctx, filter, s.load)
}

// load reads the authoritative list straight from the repositories
func (s *PollService) load(ctx context.Context, filter domain.PollFilter) (*domain.PollsResponse, error) {
	polls, err := s.polls.ListPolls(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	totalUsers, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	tally.AnnotateAll(polls)

	return &domain.PollsResponse{
		Polls:     polls,
		Stats:     tally.Aggregate(polls, totalUsers),
		UpdatedAt: s.now().UTC(),
	}, nil
}

// GetPoll returns a single annotated poll
func (s *PollService) GetPoll(ctx context.Context, pollID string) (*domain.Poll, error) {
	poll, err := s.polls.GetPoll(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	if poll == nil {
		return nil, domain.ErrPollNotFound
	}
	tally.Annotate(poll)
	return poll, nil
}

// Vote casts the caller's vote. The store's unique constraint decides duplicates;
// the cached marker only short-circuits the obvious repeat.
func (s *PollService) Vote(ctx context.Context, identity *domain.Identity, pollID, optionID string) (*domain.PollsResponse, error) {
	if identity == nil {
		return nil, apperrors.NewAuthenticationError("Authentication required")
	}
	if optionID == "" {
		return nil, apperrors.NewValidationError("option_id is required", nil)
	}

	poll, err := s.polls.GetPoll(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	if poll == nil {
		return nil, domain.ErrPollNotFound
	}

	hasVoted := s.cache.HasVoted(ctx, identity.UserID, pollID)
	if err := tally.CheckVote(poll, optionID, hasVoted); err != nil {
		return nil, err
	}

	if err := s.polls.RecordVote(ctx, identity.UserID, pollID, optionID); err != nil {
		if errors.Is(err, domain.ErrAlreadyVoted) {
			s.cache.MarkVoted(ctx, identity.UserID, pollID)
		}
		return nil, err
	}
	s.cache.MarkVoted(ctx, identity.UserID, pollID)

	s.logger.Info("Vote recorded",
		zap.String("user_id", identity.UserID),
		zap.String("poll_id", pollID),
		zap.String("option_id", optionID))

	return s.reconcile(ctx)
}

// VotedPollIDs reads the voted set from the store and warms the cache with it
func (s *PollService) VotedPollIDs(ctx context.Context, identity *domain.Identity) ([]string, error) {
	if identity == nil {
		return nil, apperrors.NewAuthenticationError("Authentication required")
	}
	ids, err := s.polls.VotedPollIDs(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list voted polls: %w", err)
	}
	s.cache.MarkVoted(ctx, identity.UserID, ids...)
	return ids, nil
}

// CreatePoll validates the input and stores a new active poll
func (s *PollService) CreatePoll(ctx context.Context, identity *domain.Identity, input domain.NewPollInput) (*domain.PollsResponse, error) {
	if err := tally.RequireOwner(identity); err != nil {
		return nil, err
	}

	poll, err := tally.NewPoll(input, s.now(), s.horizon)
	if err != nil {
		return nil, err
	}
	poll.ID = uuid.NewString()
	for i := range poll.Options {
		poll.Options[i].ID = uuid.NewString()
	}

	if err := s.polls.CreatePoll(ctx, poll, identity.UserID); err != nil {
		return nil, fmt.Errorf("failed to create poll: %w", err)
	}

	s.logger.Info("Poll created",
		zap.String("poll_id", poll.ID),
		zap.Int("options", len(poll.Options)),
		zap.String("end_date", poll.EndDate))

	return s.reconcile(ctx)
}

// TogglePoll flips a poll between active and completed
func (s *PollService) TogglePoll(ctx context.Context, identity *domain.Identity, pollID string) (*domain.PollsResponse, error) {
	if err := tally.RequireOwner(identity); err != nil {
		return nil, err
	}

	poll, err := s.polls.GetPoll(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	if poll == nil {
		return nil, domain.ErrPollNotFound
	}

	tally.Toggle(poll)
	return s.updateStatus(ctx, pollID, poll.Status)
}

// SetPollStatus stores an explicit status
func (s *PollService) SetPollStatus(ctx context.Context, identity *domain.Identity, pollID string, status domain.PollStatus) (*domain.PollsResponse, error) {
	if err := tally.RequireOwner(identity); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperrors.NewValidationError("Invalid status", map[string]interface{}{"status": string(status)})
	}
	return s.updateStatus(ctx, pollID, status)
}

func (s *PollService) updateStatus(ctx context.Context, pollID string, status domain.PollStatus) (*domain.PollsResponse, error) {
	ok, err := s.polls.UpdateStatus(ctx, pollID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to update poll status: %w", err)
	}
	if !ok {
		return nil, domain.ErrPollNotFound
	}

	s.logger.Info("Poll status changed", zap.String("poll_id", pollID), zap.String("status", string(status)))
	return s.reconcile(ctx)
}

// DeletePoll removes a poll with its options and votes
func (s *PollService) DeletePoll(ctx context.Context, identity *domain.Identity, pollID string) (*domain.PollsResponse, error) {
	if err := tally.RequireOwner(identity); err != nil {
		return nil, err
	}

	ok, err := s.polls.DeletePoll(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete poll: %w", err)
	}
	if !ok {
		return nil, domain.ErrPollNotFound
	}

	s.logger.Info("Poll deleted", zap.String("poll_id", pollID))
	return s.reconcile(ctx)
}

// Export writes polls as an xlsx workbook. An empty pollID exports every poll.
func (s *PollService) Export(ctx context.Context, identity *domain.Identity, pollID string, w io.Writer) error {
	if err := tally.RequireOwner(identity); err != nil {
		return err
	}

	var polls []domain.Poll
	if pollID != "" {
		poll, err := s.GetPoll(ctx, pollID)
		if err != nil {
			return err
		}
		polls = []domain.Poll{*poll}
	} else {
		var err error
		if polls, err = s.polls.ListPolls(ctx, domain.PollFilter{}); err != nil {
			return fmt.Errorf("failed to list polls: %w", err)
		}
	}

	if err := export.WriteXLSX(w, polls); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// reconcile drops cached listings, reloads the authoritative list and pushes it to subscribers
func (s *PollService) reconcile(ctx context.Context) (*domain.PollsResponse, error) {
	s.cache.InvalidatePolls(ctx)

	resp, err := s.load(ctx, domain.PollFilter{})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.PollsUpdated(resp)
	}
	return resp, nil
}
