package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const defaultQueryTimeout = 5 * time.Second

// rowQuerier is satisfied by *pgxpool.Pool and pgxmock pools.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads CMS users from Postgres.
type Repository struct {
	db rowQuerier
}

// NewRepository constructs a new Repository.
func NewRepository(db rowQuerier) *Repository {
	return &Repository{db: db}
}

const selectUser = `
SELECT id::text, email, COALESCE(password_hash, ''), created_at, updated_at
FROM users
`

// FindUserByID fetches a user by primary key.
func (r *Repository) FindUserByID(ctx context.Context, id string) (User, error) {
	return r.findOne(ctx, selectUser+"WHERE id::text = $1;", id)
}

// FindUserByEmail fetches a user by email.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, selectUser+"WHERE lower(email) = $1;", email)
}

func (r *Repository) findOne(ctx context.Context, query string, arg string) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	var user User
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}
