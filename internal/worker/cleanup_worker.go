package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/repository"
)

// CleanupWorker periodically removes expired one-time codes, expired refresh
// tokens and unverified accounts past the retention window.
type CleanupWorker struct {
	users         repository.UserRepository
	otps          repository.OTPRepository
	refreshTokens repository.RefreshTokenRepository
	logger        *zap.Logger
	interval      time.Duration
	unverifiedTTL time.Duration
}

// NewCleanupWorker builds the worker.
func NewCleanupWorker(
	users repository.UserRepository,
	otps repository.OTPRepository,
	refreshTokens repository.RefreshTokenRepository,
	logger *zap.Logger,
	cfg config.CleanupConfig,
) *CleanupWorker {
	interval := time.Duration(cfg.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	unverifiedTTL := time.Duration(cfg.UnverifiedAfterHours) * time.Hour
	if unverifiedTTL <= 0 {
		unverifiedTTL = 24 * time.Hour
	}
	return &CleanupWorker{
		users:         users,
		otps:          otps,
		refreshTokens: refreshTokens,
		logger:        logger,
		interval:      interval,
		unverifiedTTL: unverifiedTTL,
	}
}

// Run blocks until the context is canceled, sweeping once per interval.
func (w *CleanupWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep performs one cleanup pass.
func (w *CleanupWorker) Sweep(ctx context.Context) {
	now := time.Now()

	if n, err := w.otps.DeleteExpiredBefore(ctx, now); err != nil {
		w.logger.Error("cleanup expired codes", zap.Error(err))
	} else if n > 0 {
		w.logger.Info("deleted expired one-time codes", zap.Int64("count", n))
	}

	if n, err := w.refreshTokens.DeleteExpiredBefore(ctx, now); err != nil {
		w.logger.Error("cleanup expired refresh tokens", zap.Error(err))
	} else if n > 0 {
		w.logger.Info("deleted expired refresh tokens", zap.Int64("count", n))
	}

	cutoff := now.Add(-w.unverifiedTTL)
	if n, err := w.users.DeleteUnverifiedBefore(ctx, cutoff); err != nil {
		w.logger.Error("cleanup unverified users", zap.Error(err))
	} else if n > 0 {
		w.logger.Info("deleted stale unverified users", zap.Int64("count", n))
	}
}
