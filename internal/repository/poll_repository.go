package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"voting-platform/internal/domain"
	"voting-platform/pkg/database"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type PollPostgresRepository struct {
	db database.Querier
}

func NewPollRepository(db database.Querier) *PollPostgresRepository {
	return &PollPostgresRepository{db: db}
}

func pollSelect() sq.SelectBuilder {
	return psql.
		Select(
			"p.id::text", "p.title", "p.description", "p.status", "p.end_date",
			"po.id::text", "po.option_text", "po.votes",
		).
		From("polls p").
		LeftJoin("poll_options po ON po.poll_id = p.id")
}

// ListPolls gets all polls with their options in a single query
func (r *PollPostgresRepository) ListPolls(ctx context.Context, filter domain.PollFilter) ([]domain.Poll, error) {
	q := pollSelect().OrderBy("p.created_at DESC", "p.id", "po.position ASC")
	if filter.Status != "" {
		q = q.Where(sq.Eq{"p.status": string(filter.Status)})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build poll query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	defer rows.Close()

	return scanPolls(rows)
}

// GetPoll gets a single poll by ID
func (r *PollPostgresRepository) GetPoll(ctx context.Context, id string) (*domain.Poll, error) {
	if !validID(id) {
		return nil, nil
	}

	query, args, err := pollSelect().
		Where(sq.Eq{"p.id": id}).
		OrderBy("po.position ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build poll query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	defer rows.Close()

	polls, err := scanPolls(rows)
	if err != nil {
		return nil, err
	}
	if len(polls) == 0 {
		return nil, nil
	}
	return &polls[0], nil
}

// scanPolls folds joined poll/option rows into polls, keeping row order
func scanPolls(rows pgx.Rows) ([]domain.Poll, error) {
	polls := make([]domain.Poll, 0)
	index := make(map[string]int)

	for rows.Next() {
		var (
			pollID, title, description, status string
			endDate                             time.Time
			optionID, optionText                *string
			votes                               *int
		)
		if err := rows.Scan(&pollID, &title, &description, &status, &endDate, &optionID, &optionText, &votes); err != nil {
			return nil, fmt.Errorf("failed to scan poll row: %w", err)
		}

		i, ok := index[pollID]
		if !ok {
			polls = append(polls, domain.Poll{
				ID:          pollID,
				Title:       title,
				Description: description,
				Status:      domain.PollStatus(status),
				EndDate:     endDate.Format(domain.DateLayout),
				Options:     []domain.Option{},
			})
			i = len(polls) - 1
			index[pollID] = i
		}

		if optionID == nil {
			continue
		}
		opt := domain.Option{ID: *optionID}
		if optionText != nil {
			opt.Text = *optionText
		}
		if votes != nil {
			opt.Votes = *votes
		}
		polls[i].Options = append(polls[i].Options, opt)
		polls[i].TotalVotes += opt.Votes
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating poll rows: %w", err)
	}
	return polls, nil
}

// CreatePoll inserts the poll and its options in one transaction
func (r *PollPostgresRepository) CreatePoll(ctx context.Context, poll *domain.Poll, createdBy string) (err error) {
	endDate, err := time.Parse(domain.DateLayout, poll.EndDate)
	if err != nil {
		return fmt.Errorf("invalid end date %q: %w", poll.EndDate, err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var creator *string
	if createdBy != "" {
		creator = &createdBy
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO polls (id, title, description, status, end_date, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, poll.ID, poll.Title, poll.Description, string(poll.Status), endDate, creator)
	if err != nil {
		return fmt.Errorf("failed to insert poll: %w", err)
	}

	for i, opt := range poll.Options {
		_, err = tx.Exec(ctx, `
			INSERT INTO poll_options (id, poll_id, option_text, votes, position)
			VALUES ($1, $2, $3, $4, $5)
		`, opt.ID, poll.ID, opt.Text, opt.Votes, i)
		if err != nil {
			return fmt.Errorf("failed to insert poll option: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit poll: %w", err)
	}
	return nil
}

// UpdateStatus sets the poll status
func (r *PollPostgresRepository) UpdateStatus(ctx context.Context, id string, status domain.PollStatus) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	tag, err := r.db.Exec(ctx, `UPDATE polls SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return false, fmt.Errorf("failed to update poll status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeletePoll removes the poll; options and votes cascade
func (r *PollPostgresRepository) DeletePoll(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM polls WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete poll: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RecordVote bumps the option count and records the user's vote while the poll is active.
// The unique (user_id, poll_id) constraint is the authoritative duplicate guard.
func (r *PollPostgresRepository) RecordVote(ctx context.Context, userID, pollID, optionID string) (err error) {
	if !validID(pollID) {
		return domain.ErrPollNotFound
	}
	if !validID(optionID) {
		return domain.ErrOptionNotFound
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// the share lock holds off a concurrent status change until the vote commits
	var status string
	if err = tx.QueryRow(ctx, `SELECT status FROM polls WHERE id = $1 FOR SHARE`, pollID).Scan(&status); err != nil {
		if IsNotFound(err) {
			return domain.ErrPollNotFound
		}
		return fmt.Errorf("failed to lock poll: %w", err)
	}
	if domain.PollStatus(status) != domain.PollStatusActive {
		return domain.ErrPollNotActive
	}

	tag, err := tx.Exec(ctx, `
		UPDATE poll_options SET votes = votes + 1
		WHERE id = $1 AND poll_id = $2
	`, optionID, pollID)
	if err != nil {
		return fmt.Errorf("failed to increment option votes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOptionNotFound
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_votes (user_id, poll_id, option_id)
		VALUES ($1, $2, $3)
	`, userID, pollID, optionID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrAlreadyVoted
		}
		return fmt.Errorf("failed to record vote: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit vote: %w", err)
	}
	return nil
}

// VotedPollIDs lists poll IDs the user has voted in
func (r *PollPostgresRepository) VotedPollIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT poll_id::text FROM user_votes WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list voted polls: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan voted poll: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating voted polls: %w", err)
	}
	return ids, nil
}

// validID reports whether id can name a row. Keys are UUIDs, so anything else is simply absent.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}

// IsNotFound reports whether err means the row is gone
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
