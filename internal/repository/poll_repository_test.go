package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voting-platform/internal/domain"
)

const (
	pollID    = "0b9f6a52-3c1e-4f0a-9a57-1d2f3c4b5a61"
	missingID = "5e0c7d2a-8b1f-4c3d-9e6a-7f8b9c0d1e2f"
	optionID  = "6f1d2c3b-4a5e-4f60-8b7c-9d0e1f2a3b4c"
)

var pollColumns = []string{"id", "title", "description", "status", "end_date", "option_id", "option_text", "votes"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestPollRepository_ListPolls(t *testing.T) {
	end := time.Date(2026, 10, 26, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		filter  domain.PollFilter
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr bool
		check   func(t *testing.T, polls []domain.Poll)
	}{
		{
			name: "groups options and sums votes",
			setup: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(pollColumns).
					AddRow("p2", "Newest", "", "active", end, strPtr("o3"), strPtr("Yes"), intPtr(3)).
					AddRow("p2", "Newest", "", "active", end, strPtr("o4"), strPtr("No"), intPtr(1)).
					AddRow("p1", "Older", "desc", "completed", end, strPtr("o1"), strPtr("A"), intPtr(42)).
					AddRow("p1", "Older", "desc", "completed", end, strPtr("o2"), strPtr("B"), intPtr(38)).
					AddRow("p0", "No options", "", "active", end, nil, nil, nil)
				mock.ExpectQuery(`SELECT .+ FROM polls p LEFT JOIN poll_options po ON po.poll_id = p.id ORDER BY p.created_at DESC`).
					WillReturnRows(rows)
			},
			check: func(t *testing.T, polls []domain.Poll) {
				require.Len(t, polls, 3)
				assert.Equal(t, "p2", polls[0].ID)
				assert.Equal(t, 4, polls[0].TotalVotes)
				assert.Equal(t, "No", polls[0].Options[1].Text)

				assert.Equal(t, domain.PollStatusCompleted, polls[1].Status)
				assert.Equal(t, 80, polls[1].TotalVotes)
				assert.Equal(t, "2026-10-26", polls[1].EndDate)

				assert.Empty(t, polls[2].Options)
				assert.Zero(t, polls[2].TotalVotes)
			},
		},
		{
			name:   "status filter",
			filter: domain.PollFilter{Status: domain.PollStatusActive},
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`WHERE p.status = \$1`).
					WithArgs("active").
					WillReturnRows(pgxmock.NewRows(pollColumns))
			},
			check: func(t *testing.T, polls []domain.Poll) {
				assert.NotNil(t, polls)
				assert.Empty(t, polls)
			},
		},
		{
			name: "query error",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT`).WillReturnError(errors.New("connection reset"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setup(mock)
			repo := NewPollRepository(mock)

			polls, err := repo.ListPolls(context.Background(), tt.filter)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				tt.check(t, polls)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPollRepository_GetPoll(t *testing.T) {
	end := time.Date(2026, 10, 26, 0, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`WHERE p.id = \$1`).
			WithArgs(pollID).
			WillReturnRows(pgxmock.NewRows(pollColumns).
				AddRow(pollID, "Title", "", "active", end, strPtr("o1"), strPtr("A"), intPtr(2)))

		poll, err := NewPollRepository(mock).GetPoll(context.Background(), pollID)
		require.NoError(t, err)
		require.NotNil(t, poll)
		assert.Equal(t, 2, poll.TotalVotes)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing returns nil", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`WHERE p.id = \$1`).
			WithArgs(missingID).
			WillReturnRows(pgxmock.NewRows(pollColumns))

		poll, err := NewPollRepository(mock).GetPoll(context.Background(), missingID)
		require.NoError(t, err)
		assert.Nil(t, poll)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed id never queries", func(t *testing.T) {
		mock := newMock(t)

		poll, err := NewPollRepository(mock).GetPoll(context.Background(), "nope")
		require.NoError(t, err)
		assert.Nil(t, poll)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPollRepository_CreatePoll(t *testing.T) {
	poll := &domain.Poll{
		ID:      "p1",
		Title:   "Lunch?",
		Status:  domain.PollStatusActive,
		EndDate: "2026-10-26",
		Options: []domain.Option{{ID: "o1", Text: "Pizza"}, {ID: "o2", Text: "Sushi"}},
	}
	end := time.Date(2026, 10, 26, 0, 0, 0, 0, time.UTC)

	t.Run("commits poll and options", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO polls`).
			WithArgs("p1", "Lunch?", "", "active", end, strPtr("owner-1")).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`INSERT INTO poll_options`).
			WithArgs("o1", "p1", "Pizza", 0, 0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`INSERT INTO poll_options`).
			WithArgs("o2", "p1", "Sushi", 0, 1).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		err := NewPollRepository(mock).CreatePoll(context.Background(), poll, "owner-1")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on option failure", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO polls`).
			WithArgs("p1", "Lunch?", "", "active", end, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`INSERT INTO poll_options`).
			WithArgs("o1", "p1", "Pizza", 0, 0).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		err := NewPollRepository(mock).CreatePoll(context.Background(), poll, "")
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("bad end date never touches the database", func(t *testing.T) {
		mock := newMock(t)
		bad := *poll
		bad.EndDate = "next week"

		err := NewPollRepository(mock).CreatePoll(context.Background(), &bad, "")
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPollRepository_UpdateStatusAndDelete(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`UPDATE polls SET status`).
		WithArgs("completed", pollID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE polls SET status`).
		WithArgs("active", missingID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec(`DELETE FROM polls`).
		WithArgs(pollID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	repo := NewPollRepository(mock)
	ctx := context.Background()

	ok, err := repo.UpdateStatus(ctx, pollID, domain.PollStatusCompleted)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateStatus(ctx, missingID, domain.PollStatusActive)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.DeletePoll(ctx, pollID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateStatus(ctx, "missing", domain.PollStatusActive)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.DeletePoll(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPollRepository_RecordVote(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(mock pgxmock.PgxPoolIface)
		pollID   string
		optionID string
		wantErr  error
		anyErr   bool
	}{
		{
			name: "records vote",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectQuery(`SELECT status FROM polls WHERE id = \$1 FOR SHARE`).
					WithArgs(pollID).
					WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("active"))
				mock.ExpectExec(`UPDATE poll_options SET votes = votes \+ 1`).
					WithArgs(optionID, pollID).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
				mock.ExpectExec(`INSERT INTO user_votes`).
					WithArgs("u1", pollID, optionID).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "option from another poll",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectQuery(`SELECT status FROM polls WHERE id = \$1 FOR SHARE`).
					WithArgs(pollID).
					WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("active"))
				mock.ExpectExec(`UPDATE poll_options`).
					WithArgs(optionID, pollID).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
				mock.ExpectRollback()
			},
			wantErr: domain.ErrOptionNotFound,
		},
		{
			name: "duplicate vote maps to already voted",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectQuery(`SELECT status FROM polls WHERE id = \$1 FOR SHARE`).
					WithArgs(pollID).
					WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("active"))
				mock.ExpectExec(`UPDATE poll_options`).
					WithArgs(optionID, pollID).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
				mock.ExpectExec(`INSERT INTO user_votes`).
					WithArgs("u1", pollID, optionID).
					WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "user_votes_user_poll_key"})
				mock.ExpectRollback()
			},
			wantErr: domain.ErrAlreadyVoted,
		},
		{
			name: "poll missing",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectQuery(`SELECT status FROM polls`).
					WithArgs(pollID).
					WillReturnError(pgx.ErrNoRows)
				mock.ExpectRollback()
			},
			wantErr: domain.ErrPollNotFound,
		},
		{
			name: "poll completed before the vote landed",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectQuery(`SELECT status FROM polls`).
					WithArgs(pollID).
					WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("completed"))
				mock.ExpectRollback()
			},
			wantErr: domain.ErrPollNotActive,
		},
		{
			name:    "malformed poll id",
			setup:   func(mock pgxmock.PgxPoolIface) {},
			pollID:  "p1",
			wantErr: domain.ErrPollNotFound,
		},
		{
			name:     "malformed option id",
			setup:    func(mock pgxmock.PgxPoolIface) {},
			optionID: "o1",
			wantErr:  domain.ErrOptionNotFound,
		},
		{
			name: "begin fails",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin().WillReturnError(errors.New("too many connections"))
			},
			anyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setup(mock)

			pid, oid := pollID, optionID
			if tt.pollID != "" {
				pid = tt.pollID
			}
			if tt.optionID != "" {
				oid = tt.optionID
			}

			err := NewPollRepository(mock).RecordVote(context.Background(), "u1", pid, oid)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPollRepository_VotedPollIDs(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT poll_id::text FROM user_votes`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"poll_id"}).AddRow("p1").AddRow("p2"))

	ids, err := NewPollRepository(mock).VotedPollIDs(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
