package pollclient

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"voting-platform/internal/domain"
	"voting-platform/internal/export"
	"voting-platform/internal/tally"
	"voting-platform/pkg/errors"
)

// Session holds one signed-in user's view of the polls. Every mutation is sent to the
// server first and the answer replaces the local list wholesale.
type Session struct {
	client *Client
	logger *zap.Logger

	mu        sync.RWMutex
	identity  *domain.Identity
	polls     []domain.Poll
	stats     domain.Stats
	voted     *tally.VotedSet
	updatedAt time.Time
}

func NewSession(client *Client, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		client: client,
		logger: logger.With(zap.String("component", "session")),
		voted:  tally.NewVotedSet(),
	}
}

// Login signs in by email and loads the poll list and the caller's voted polls.
// When the load fails the session is left as it was before the call.
func (s *Session) Login(ctx context.Context, email string) (*domain.User, error) {
	prevToken := s.client.bearer()
	s.mu.RLock()
	prevIdentity, prevVoted := s.identity, s.voted
	s.mu.RUnlock()

	resp, err := s.client.Login(ctx, email)
	if err != nil {
		s.logger.Warn("Login failed", zap.Error(err))
		return nil, err
	}

	identity := domain.IdentityOf(&resp.User)
	s.mu.Lock()
	s.identity = &identity
	s.voted = tally.NewVotedSet()
	s.mu.Unlock()

	if err := s.Refresh(ctx); err != nil {
		s.client.SetToken(prevToken)
		s.mu.Lock()
		s.identity, s.voted = prevIdentity, prevVoted
		s.mu.Unlock()
		return nil, err
	}
	return &resp.User, nil
}

// Logout drops the identity and every cached marker
func (s *Session) Logout() {
	s.client.SetToken("")

	s.mu.Lock()
	s.identity = nil
	s.voted = tally.NewVotedSet()
	s.mu.Unlock()
}

// Refresh reloads the poll list and, when signed in, the voted set
func (s *Session) Refresh(ctx context.Context) error {
	resp, err := s.client.ListPolls(ctx, "")
	if err != nil {
		s.logger.Error("Failed to load polls", zap.Error(err))
		return err
	}

	var voted *tally.VotedSet
	if s.Identity() != nil {
		ids, err := s.client.VotedPollIDs(ctx)
		if err != nil {
			s.logger.Error("Failed to load voted polls", zap.Error(err))
			return err
		}
		voted = tally.NewVotedSet(ids...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(resp)
	if voted != nil {
		s.voted = voted
	}
	return nil
}

// CastVote checks the vote locally, then records it on the server.
// A vote the server already holds marks the poll, reloads and returns domain.ErrAlreadyVoted.
func (s *Session) CastVote(ctx context.Context, pollID, optionID string) error {
	s.mu.RLock()
	identity := s.identity
	poll, ok := s.find(pollID)
	hasVoted := s.voted.Has(pollID)
	s.mu.RUnlock()

	if identity == nil {
		return errors.NewAuthenticationError("Sign in to vote")
	}
	if !ok {
		return domain.ErrPollNotFound
	}
	if err := tally.CheckVote(&poll, optionID, hasVoted); err != nil {
		return err
	}

	resp, err := s.client.Vote(ctx, pollID, optionID)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeAlreadyVoted) {
			s.mu.Lock()
			s.voted.Mark(pollID)
			s.mu.Unlock()

			if rerr := s.Refresh(ctx); rerr != nil {
				s.logger.Warn("Refresh after duplicate vote failed", zap.Error(rerr))
			}
			return domain.ErrAlreadyVoted
		}

		s.logger.Error("Vote failed",
			zap.String("poll_id", pollID),
			zap.String("option_id", optionID),
			zap.Error(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(resp)
	s.voted.Mark(pollID)
	return nil
}

// CreatePoll validates the input locally and creates the poll on the server
func (s *Session) CreatePoll(ctx context.Context, input domain.NewPollInput) error {
	if err := tally.RequireOwner(s.Identity()); err != nil {
		return err
	}
	if _, err := tally.NewPoll(input, time.Now(), tally.DefaultHorizon); err != nil {
		return err
	}

	return s.command(ctx, "create poll", func() (*domain.PollsResponse, error) {
		return s.client.CreatePoll(ctx, input)
	})
}

func (s *Session) TogglePoll(ctx context.Context, pollID string) error {
	if err := tally.RequireOwner(s.Identity()); err != nil {
		return err
	}
	return s.command(ctx, "toggle poll", func() (*domain.PollsResponse, error) {
		return s.client.TogglePoll(ctx, pollID)
	})
}

func (s *Session) SetPollStatus(ctx context.Context, pollID string, status domain.PollStatus) error {
	if err := tally.RequireOwner(s.Identity()); err != nil {
		return err
	}
	return s.command(ctx, "set poll status", func() (*domain.PollsResponse, error) {
		return s.client.SetPollStatus(ctx, pollID, status)
	})
}

func (s *Session) DeletePoll(ctx context.Context, pollID string) error {
	if err := tally.RequireOwner(s.Identity()); err != nil {
		return err
	}
	if err := s.command(ctx, "delete poll", func() (*domain.PollsResponse, error) {
		return s.client.DeletePoll(ctx, pollID)
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.voted.Unmark(pollID)
	s.mu.Unlock()
	return nil
}

// command runs one owner write and replaces local state with the server's answer.
// On failure the previous state is kept.
func (s *Session) command(ctx context.Context, name string, call func() (*domain.PollsResponse, error)) error {
	resp, err := call()
	if err != nil {
		s.logger.Error("Command failed", zap.String("command", name), zap.Error(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(resp)
	return nil
}

func (s *Session) replace(resp *domain.PollsResponse) {
	polls := make([]domain.Poll, len(resp.Polls))
	for i := range resp.Polls {
		polls[i] = resp.Polls[i].Clone()
	}
	s.polls = polls
	s.stats = resp.Stats
	s.updatedAt = resp.UpdatedAt
}

func (s *Session) find(pollID string) (domain.Poll, bool) {
	for i := range s.polls {
		if s.polls[i].ID == pollID {
			return s.polls[i].Clone(), true
		}
	}
	return domain.Poll{}, false
}

// Percentage is the option's share of the poll's votes, one decimal
func (s *Session) Percentage(poll domain.Poll, option domain.Option) float64 {
	return tally.Percentage(option.Votes, poll.TotalVotes)
}

func (s *Session) Stats() domain.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Polls returns a copy of the current list
func (s *Session) Polls() []domain.Poll {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Poll, len(s.polls))
	for i := range s.polls {
		out[i] = s.polls[i].Clone()
	}
	return out
}

func (s *Session) Poll(pollID string) (domain.Poll, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(pollID)
}

func (s *Session) HasVoted(pollID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voted.Has(pollID)
}

func (s *Session) Identity() *domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

func (s *Session) IsOwner() bool {
	id := s.Identity()
	return id != nil && id.IsOwner
}

// UpdatedAt is the server time of the last reload
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Export writes the polls held by the session as an .xlsx workbook
func (s *Session) Export(w io.Writer) error {
	return export.WriteXLSX(w, s.Polls())
}
