package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/account-service/internal/domain"
)

// ErrDuplicate mirrors the database unique-constraint violation for the
// in-memory implementations.
var ErrDuplicate = errors.New("duplicate key")

// The memory repositories implement the same interfaces as the Postgres ones
// behind a mutex. They back the test suites and the DSN-less development mode.

type memoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

// NewMemoryUserRepository returns an in-memory UserRepository.
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{users: make(map[string]domain.User)}
}

func (r *memoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return ErrDuplicate
		}
	}
	now := time.Now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

func (r *memoryUserRepository) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = *user
	return nil
}

func (r *memoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r *memoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memoryUserRepository) List(_ context.Context, limit, offset int) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]domain.User, 0, len(r.users))
	for _, user := range r.users {
		all = append(all, user)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memoryUserRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), nil
}

func (r *memoryUserRepository) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.users, id)
	return nil
}

func (r *memoryUserRepository) DeleteUnverifiedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, user := range r.users {
		if !user.EmailVerified && user.CreatedAt.Before(cutoff) {
			delete(r.users, id)
			deleted++
		}
	}
	return deleted, nil
}

type memoryOTPRepository struct {
	mu    sync.Mutex
	codes map[string]domain.OneTimeCode
	users UserRepository
}

// NewMemoryOTPRepository returns an in-memory OTPRepository. The user
// repository is needed to mirror the consume+activate transaction.
func NewMemoryOTPRepository(users UserRepository) OTPRepository {
	return &memoryOTPRepository{codes: make(map[string]domain.OneTimeCode), users: users}
}

func (r *memoryOTPRepository) Create(_ context.Context, code *domain.OneTimeCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	code.ID = uuid.NewString()
	code.CreatedAt = time.Now()
	r.codes[code.ID] = *code
	return nil
}

func (r *memoryOTPRepository) GetActiveByUserAndCode(_ context.Context, userID, codeStr string) (*domain.OneTimeCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var newest *domain.OneTimeCode
	for _, code := range r.codes {
		if code.UserID == userID && code.Code == codeStr && !code.Verified {
			c := code
			if newest == nil || c.CreatedAt.After(newest.CreatedAt) {
				newest = &c
			}
		}
	}
	if newest == nil {
		return nil, pgx.ErrNoRows
	}
	return newest, nil
}

func (r *memoryOTPRepository) InvalidateAllForUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, code := range r.codes {
		if code.UserID == userID && !code.Verified {
			code.Verified = true
			r.codes[id] = code
		}
	}
	return nil
}

func (r *memoryOTPRepository) ConsumeAndActivateUser(ctx context.Context, codeID, userID string) error {
	r.mu.Lock()
	code, ok := r.codes[codeID]
	if !ok || code.Verified {
		r.mu.Unlock()
		return pgx.ErrNoRows
	}
	code.Verified = true
	r.codes[codeID] = code
	r.mu.Unlock()

	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	user.EmailVerified = true
	return r.users.Update(ctx, user)
}

func (r *memoryOTPRepository) CountActiveForUser(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, code := range r.codes {
		if code.UserID == userID && !code.Verified {
			total++
		}
	}
	return total, nil
}

func (r *memoryOTPRepository) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, code := range r.codes {
		if code.ExpiresAt.Before(cutoff) {
			delete(r.codes, id)
			deleted++
		}
	}
	return deleted, nil
}

type memoryRefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]domain.RefreshToken
}

// NewMemoryRefreshTokenRepository returns an in-memory RefreshTokenRepository.
func NewMemoryRefreshTokenRepository() RefreshTokenRepository {
	return &memoryRefreshTokenRepository{tokens: make(map[string]domain.RefreshToken)}
}

func (r *memoryRefreshTokenRepository) Create(_ context.Context, token *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[token.Token]; ok {
		return ErrDuplicate
	}
	token.ID = uuid.NewString()
	token.CreatedAt = time.Now()
	r.tokens[token.Token] = *token
	return nil
}

func (r *memoryRefreshTokenRepository) GetByToken(_ context.Context, tokenStr string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[tokenStr]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &token, nil
}

func (r *memoryRefreshTokenRepository) Rotate(_ context.Context, oldToken string, next *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[oldToken]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tokens, oldToken)
	next.ID = uuid.NewString()
	next.CreatedAt = time.Now()
	r.tokens[next.Token] = *next
	return nil
}

func (r *memoryRefreshTokenRepository) DeleteByToken(_ context.Context, tokenStr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, tokenStr)
	return nil
}

func (r *memoryRefreshTokenRepository) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for key, token := range r.tokens {
		if token.ExpiresAt.Before(cutoff) {
			delete(r.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}
