package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"voting-platform/internal/domain"
	"voting-platform/internal/tally"
)

// MemoryPollRepository keeps polls in process. Used when no DATABASE_URL is configured.
type MemoryPollRepository struct {
	mu    sync.RWMutex
	polls []*domain.Poll // newest first
	votes map[string]*tally.VotedSet
}

func NewMemoryPollRepository() *MemoryPollRepository {
	return &MemoryPollRepository{votes: make(map[string]*tally.VotedSet)}
}

func (r *MemoryPollRepository) find(id string) (int, *domain.Poll) {
	for i, p := range r.polls {
		if p.ID == id {
			return i, p
		}
	}
	return -1, nil
}

func (r *MemoryPollRepository) ListPolls(_ context.Context, filter domain.PollFilter) ([]domain.Poll, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Poll, 0, len(r.polls))
	for _, p := range r.polls {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p.Clone())
	}
	return out, nil
}

func (r *MemoryPollRepository) GetPoll(_ context.Context, id string) (*domain.Poll, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, p := r.find(id)
	if p == nil {
		return nil, nil
	}
	cp := p.Clone()
	return &cp, nil
}

func (r *MemoryPollRepository) CreatePoll(_ context.Context, poll *domain.Poll, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := poll.Clone()
	r.polls = append([]*domain.Poll{&cp}, r.polls...)
	return nil
}

func (r *MemoryPollRepository) UpdateStatus(_ context.Context, id string, status domain.PollStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, p := r.find(id)
	if p == nil {
		return false, nil
	}
	p.Status = status
	return true, nil
}

func (r *MemoryPollRepository) DeletePoll(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, p := r.find(id)
	if p == nil {
		return false, nil
	}
	r.polls = append(r.polls[:i], r.polls[i+1:]...)
	for _, set := range r.votes {
		set.Unmark(id)
	}
	return true, nil
}

func (r *MemoryPollRepository) RecordVote(_ context.Context, userID, pollID, optionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, p := r.find(pollID)
	if p == nil {
		return domain.ErrPollNotFound
	}
	voted, ok := r.votes[userID]
	if !ok {
		voted = tally.NewVotedSet()
		r.votes[userID] = voted
	}
	return tally.CastVote(p, optionID, voted)
}

func (r *MemoryPollRepository) VotedPollIDs(_ context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.votes[userID].IDs()
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// MemoryUserRepository keeps users in process
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*domain.User)}
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *MemoryUserRepository) SetOwner(_ context.Context, id string, isOwner bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[id]; ok {
		u.IsOwner = isOwner
	}
	return nil
}

func (r *MemoryUserRepository) List(_ context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryUserRepository) UpdateRole(_ context.Context, id string, role domain.Role) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return false, nil
	}
	u.Role = role
	return true, nil
}

func (r *MemoryUserRepository) SetBanned(_ context.Context, id string, banned bool, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return false, nil
	}
	u.Banned = banned
	u.BanReason = ""
	if banned {
		u.BanReason = reason
	}
	return true, nil
}

func (r *MemoryUserRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), nil
}
