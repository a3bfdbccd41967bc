package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/account-service/internal/domain"
)

// RefreshTokenRepository manages refresh token persistence.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	GetByToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	// Rotate deletes the consumed token row and inserts its replacement in a
	// single transaction; pgx.ErrNoRows means the old token was already gone.
	Rotate(ctx context.Context, oldToken string, next *domain.RefreshToken) error
	// DeleteByToken removes a token row; deleting an absent token is not an
	// error, which makes logout idempotent.
	DeleteByToken(ctx context.Context, token string) error
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type refreshTokenRepository struct {
	pool *pgxpool.Pool
}

// NewRefreshTokenRepository returns a Postgres-backed implementation.
func NewRefreshTokenRepository(pool *pgxpool.Pool) RefreshTokenRepository {
	return &refreshTokenRepository{pool: pool}
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	const query = `
        INSERT INTO refresh_tokens (user_id, token, expires_at)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		token.UserID,
		token.Token,
		token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
}

func (r *refreshTokenRepository) GetByToken(ctx context.Context, tokenStr string) (*domain.RefreshToken, error) {
	const query = `
        SELECT id, user_id, token, expires_at, created_at
        FROM refresh_tokens WHERE token=$1`

	var token domain.RefreshToken
	if err := r.pool.QueryRow(ctx, query, tokenStr).Scan(
		&token.ID,
		&token.UserID,
		&token.Token,
		&token.ExpiresAt,
		&token.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *refreshTokenRepository) Rotate(ctx context.Context, oldToken string, next *domain.RefreshToken) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cmd, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE token=$1`, oldToken)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	const insert = `
        INSERT INTO refresh_tokens (user_id, token, expires_at)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, insert,
		next.UserID,
		next.Token,
		next.ExpiresAt,
	).Scan(&next.ID, &next.CreatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *refreshTokenRepository) DeleteByToken(ctx context.Context, tokenStr string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token=$1`, tokenStr)
	return err
}

func (r *refreshTokenRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
