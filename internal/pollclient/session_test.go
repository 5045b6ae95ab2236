package pollclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"voting-platform/internal/config"
	"voting-platform/internal/container"
	"voting-platform/internal/domain"
	"voting-platform/internal/router"
	"voting-platform/internal/tally"
	"voting-platform/pkg/errors"
	"voting-platform/pkg/logger"
)

const ownerEmail = "owner@example.com"

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		Environment:  "test",
		JWTSecret:    "pollclient-test-secret",
		JWTIssuer:    "voting-platform",
		TokenTTL:     time.Hour,
		OwnerEmail:   ownerEmail,
		PollHorizon:  7 * 24 * time.Hour,
		PollCacheTTL: 30 * time.Second,
		SeedSamples:  true,
	}

	ctx, cancel := context.WithCancel(context.Background())
	c, err := container.New(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	c.Start(ctx)

	srv := httptest.NewServer(router.New(c))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		c.Close()
	})
	return srv
}

func signIn(t *testing.T, srv *httptest.Server, email string) *Session {
	t.Helper()
	s := NewSession(NewClient(srv.URL, zap.NewNop()), zap.NewNop())
	_, err := s.Login(context.Background(), email)
	require.NoError(t, err)
	return s
}

func activePoll(t *testing.T, s *Session) domain.Poll {
	t.Helper()
	for _, p := range s.Polls() {
		if p.Status == domain.PollStatusActive {
			return p
		}
	}
	t.Fatal("no active poll")
	return domain.Poll{}
}

func TestSession_LoginLoadsState(t *testing.T) {
	srv := newServer(t)
	s := signIn(t, srv, "voter@example.com")

	require.NotNil(t, s.Identity())
	assert.False(t, s.IsOwner())
	assert.Len(t, s.Polls(), 2)

	stats := s.Stats()
	assert.Equal(t, 2, stats.TotalPolls)
	assert.Equal(t, 252, stats.TotalVotes)
	assert.Equal(t, 1, stats.ActivePolls)
	assert.Equal(t, 1, stats.CompletedPolls)
	assert.Equal(t, 1, stats.TotalUsers)
	assert.False(t, s.UpdatedAt().IsZero())

	poll := activePoll(t, s)
	assert.Equal(t, 34.1, s.Percentage(poll, poll.Options[0]))
	assert.Equal(t, 34.1, poll.Options[0].Percentage)
}

func TestSession_LoginRollsBackWhenLoadFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/auth/login" {
			_ = json.NewEncoder(w).Encode(domain.LoginResponse{
				Token: "fresh-token",
				User:  domain.User{ID: "u1", Email: "voter@example.com", Role: domain.RoleUser},
			})
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(errors.NewErrorResponse(errors.NewInternalError("database down", nil), ""))
	}))
	defer srv.Close()

	s := NewSession(NewClient(srv.URL, nil), nil)
	user, err := s.Login(context.Background(), "voter@example.com")
	require.Error(t, err)
	assert.Nil(t, user)

	assert.Nil(t, s.Identity())
	assert.False(t, s.IsOwner())
	assert.Empty(t, s.client.bearer())
	assert.Empty(t, s.Polls())
}

func TestSession_CastVote(t *testing.T) {
	srv := newServer(t)
	s := signIn(t, srv, "voter@example.com")
	ctx := context.Background()
	poll := activePoll(t, s)

	require.NoError(t, s.CastVote(ctx, poll.ID, poll.Options[1].ID))
	assert.True(t, s.HasVoted(poll.ID))

	after, ok := s.Poll(poll.ID)
	require.True(t, ok)
	assert.Equal(t, 124, after.TotalVotes)
	assert.Equal(t, 39, after.Options[1].Votes)
	assert.True(t, tally.Consistent(&after))
	assert.Equal(t, 253, s.Stats().TotalVotes)

	// rejected locally, nothing changes
	err := s.CastVote(ctx, poll.ID, poll.Options[0].ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyVoted)
	again, _ := s.Poll(poll.ID)
	assert.Equal(t, after, again)
}

func TestSession_CastVoteLocalRejections(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	anonymous := NewSession(NewClient(srv.URL, nil), nil)
	require.NoError(t, anonymous.Refresh(ctx))
	poll := activePoll(t, anonymous)
	err := anonymous.CastVote(ctx, poll.ID, poll.Options[0].ID)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))

	s := signIn(t, srv, "voter@example.com")

	var completed domain.Poll
	for _, p := range s.Polls() {
		if p.Status == domain.PollStatusCompleted {
			completed = p
		}
	}

	tests := []struct {
		name     string
		pollID   string
		optionID string
		want     error
	}{
		{name: "unknown poll", pollID: "missing", optionID: "x", want: domain.ErrPollNotFound},
		{name: "unknown option", pollID: poll.ID, optionID: "x", want: domain.ErrOptionNotFound},
		{name: "completed poll", pollID: completed.ID, optionID: completed.Options[0].ID, want: domain.ErrPollNotActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := s.Polls()
			assert.ErrorIs(t, s.CastVote(ctx, tt.pollID, tt.optionID), tt.want)
			assert.Equal(t, before, s.Polls())
			assert.False(t, s.HasVoted(tt.pollID))
		})
	}
}

func TestSession_RemoteAlreadyVotedReconciles(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	first := signIn(t, srv, "voter@example.com")
	stale := signIn(t, srv, "voter@example.com")
	poll := activePoll(t, first)

	require.NoError(t, first.CastVote(ctx, poll.ID, poll.Options[0].ID))
	require.False(t, stale.HasVoted(poll.ID))

	err := stale.CastVote(ctx, poll.ID, poll.Options[2].ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyVoted)
	assert.True(t, stale.HasVoted(poll.ID))

	refreshed, ok := stale.Poll(poll.ID)
	require.True(t, ok)
	assert.Equal(t, 124, refreshed.TotalVotes)
	assert.Equal(t, 43, refreshed.Options[0].Votes)
	assert.Equal(t, 15, refreshed.Options[2].Votes)
}

func TestSession_OwnerCommands(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	s := signIn(t, srv, ownerEmail)
	require.True(t, s.IsOwner())

	require.NoError(t, s.CreatePoll(ctx, domain.NewPollInput{
		Title:   "Offsite location",
		Options: []string{"Lake", "Mountains", ""},
	}))
	polls := s.Polls()
	require.Len(t, polls, 3)
	created := polls[0]
	assert.Equal(t, "Offsite location", created.Title)
	assert.Len(t, created.Options, 2)
	assert.Equal(t, 3, s.Stats().TotalPolls)

	require.NoError(t, s.TogglePoll(ctx, created.ID))
	toggled, _ := s.Poll(created.ID)
	assert.Equal(t, domain.PollStatusCompleted, toggled.Status)

	require.NoError(t, s.SetPollStatus(ctx, created.ID, domain.PollStatusActive))
	reopened, _ := s.Poll(created.ID)
	assert.Equal(t, domain.PollStatusActive, reopened.Status)

	require.NoError(t, s.CastVote(ctx, created.ID, created.Options[0].ID))
	require.NoError(t, s.DeletePoll(ctx, created.ID))
	_, ok := s.Poll(created.ID)
	assert.False(t, ok)
	assert.False(t, s.HasVoted(created.ID))
	assert.Equal(t, 2, s.Stats().TotalPolls)
}

func TestSession_OwnerCommandFailureKeepsState(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	s := signIn(t, srv, ownerEmail)
	before := s.Polls()

	err := s.DeletePoll(ctx, "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.StatusCode)
	assert.Equal(t, before, s.Polls())

	err = s.CreatePoll(ctx, domain.NewPollInput{Title: "", Options: []string{"one"}})
	var verr *tally.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, before, s.Polls())
}

func TestSession_NonOwnerRejectedLocally(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	s := signIn(t, srv, "voter@example.com")
	poll := activePoll(t, s)

	assert.ErrorIs(t, s.CreatePoll(ctx, domain.NewPollInput{Title: "x", Options: []string{"a", "b"}}), domain.ErrOwnerRequired)
	assert.ErrorIs(t, s.TogglePoll(ctx, poll.ID), domain.ErrOwnerRequired)
	assert.ErrorIs(t, s.SetPollStatus(ctx, poll.ID, domain.PollStatusCompleted), domain.ErrOwnerRequired)
	assert.ErrorIs(t, s.DeletePoll(ctx, poll.ID), domain.ErrOwnerRequired)

	// the server agrees
	_, err := s.client.TogglePoll(ctx, poll.ID)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthorization))
}

func TestSession_Logout(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	s := signIn(t, srv, "voter@example.com")
	poll := activePoll(t, s)
	require.NoError(t, s.CastVote(ctx, poll.ID, poll.Options[0].ID))

	s.Logout()
	assert.Nil(t, s.Identity())
	assert.False(t, s.HasVoted(poll.ID))

	_, err := s.client.VotedPollIDs(ctx)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
}

func TestSession_Export(t *testing.T) {
	srv := newServer(t)
	s := signIn(t, srv, "voter@example.com")

	var buf bytes.Buffer
	require.NoError(t, s.Export(&buf))

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows("Polls")
	require.NoError(t, err)
	require.Len(t, rows, 9)
	assert.Equal(t, "Platform roadmap", rows[1][0])
	assert.Equal(t, "34.1%", rows[1][6])
}
