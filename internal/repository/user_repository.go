package repository

import (
	"context"
	"fmt"

	"voting-platform/internal/domain"
	"voting-platform/pkg/database"
)

const userColumns = `id::text, email, role, is_owner, banned, ban_reason, created_at`

type UserPostgresRepository struct {
	db database.Querier
}

func NewUserRepository(db database.Querier) *UserPostgresRepository {
	return &UserPostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		role      string
		banReason *string
	)
	if err := row.Scan(&u.ID, &u.Email, &role, &u.IsOwner, &u.Banned, &banReason, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	if banReason != nil {
		u.BanReason = *banReason
	}
	return &u, nil
}

// GetByID gets a user by ID
func (r *UserPostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, nil
	}
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetByEmail gets a user by normalized email
func (r *UserPostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// Create inserts a user and fills CreatedAt
func (r *UserPostgresRepository) Create(ctx context.Context, user *domain.User) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (id, email, role, is_owner)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, user.ID, user.Email, string(user.Role), user.IsOwner).Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserPostgresRepository) SetOwner(ctx context.Context, id string, isOwner bool) error {
	if _, err := r.db.Exec(ctx, `UPDATE users SET is_owner = $1 WHERE id = $2`, isOwner, id); err != nil {
		return fmt.Errorf("failed to set owner flag: %w", err)
	}
	return nil
}

// List returns every user, newest first
func (r *UserPostgresRepository) List(ctx context.Context) ([]domain.User, error) {
	query, args, err := psql.Select(userColumns).From("users").OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func (r *UserPostgresRepository) UpdateRole(ctx context.Context, id string, role domain.Role) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	tag, err := r.db.Exec(ctx, `UPDATE users SET role = $1 WHERE id = $2`, string(role), id)
	if err != nil {
		return false, fmt.Errorf("failed to update role: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *UserPostgresRepository) SetBanned(ctx context.Context, id string, banned bool, reason string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	var banReason *string
	if banned && reason != "" {
		banReason = &reason
	}
	tag, err := r.db.Exec(ctx, `UPDATE users SET banned = $1, ban_reason = $2 WHERE id = $3`, banned, banReason, id)
	if err != nil {
		return false, fmt.Errorf("failed to update ban: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *UserPostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
