package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/account-service/internal/domain"
)

// OTPRepository manages one-time code persistence.
type OTPRepository interface {
	Create(ctx context.Context, code *domain.OneTimeCode) error
	// GetActiveByUserAndCode returns the newest unconsumed code matching the
	// given value, or pgx.ErrNoRows.
	GetActiveByUserAndCode(ctx context.Context, userID, code string) (*domain.OneTimeCode, error)
	// InvalidateAllForUser marks every unconsumed code for the user as
	// verified, so at most one code is ever active.
	InvalidateAllForUser(ctx context.Context, userID string) error
	// ConsumeAndActivateUser marks the code consumed and flips the user's
	// email_verified flag in a single transaction.
	ConsumeAndActivateUser(ctx context.Context, codeID, userID string) error
	CountActiveForUser(ctx context.Context, userID string) (int, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type otpRepository struct {
	pool *pgxpool.Pool
}

// NewOTPRepository returns a Postgres-backed implementation.
func NewOTPRepository(pool *pgxpool.Pool) OTPRepository {
	return &otpRepository{pool: pool}
}

func (r *otpRepository) Create(ctx context.Context, code *domain.OneTimeCode) error {
	const query = `
        INSERT INTO one_time_codes (user_id, code, expires_at)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		code.UserID,
		code.Code,
		code.ExpiresAt,
	).Scan(&code.ID, &code.CreatedAt)
}

func (r *otpRepository) GetActiveByUserAndCode(ctx context.Context, userID, codeStr string) (*domain.OneTimeCode, error) {
	const query = `
        SELECT id, user_id, code, expires_at, verified, created_at
        FROM one_time_codes
        WHERE user_id=$1 AND code=$2 AND verified=false
        ORDER BY created_at DESC
        LIMIT 1`

	var code domain.OneTimeCode
	if err := r.pool.QueryRow(ctx, query, userID, codeStr).Scan(
		&code.ID,
		&code.UserID,
		&code.Code,
		&code.ExpiresAt,
		&code.Verified,
		&code.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *otpRepository) InvalidateAllForUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE one_time_codes SET verified=true WHERE user_id=$1 AND verified=false`, userID)
	return err
}

func (r *otpRepository) ConsumeAndActivateUser(ctx context.Context, codeID, userID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cmd, err := tx.Exec(ctx,
		`UPDATE one_time_codes SET verified=true WHERE id=$1 AND verified=false`, codeID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	cmd, err = tx.Exec(ctx,
		`UPDATE users SET email_verified=true, updated_at=NOW() WHERE id=$1`, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return tx.Commit(ctx)
}

func (r *otpRepository) CountActiveForUser(ctx context.Context, userID string) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM one_time_codes WHERE user_id=$1 AND verified=false`, userID).Scan(&total)
	return total, err
}

func (r *otpRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx,
		`DELETE FROM one_time_codes WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
