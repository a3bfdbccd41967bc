package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// Pagination describes a page of results.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// UserService provides user administration: fetch, list, block.
type UserService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, dispatcher events.Dispatcher) *UserService {
	return &UserService{users: users, dispatcher: dispatcher}
}

// GetByID returns a user record. Non-admin callers may only fetch their own.
func (s *UserService) GetByID(ctx context.Context, requester *domain.User, id string) (*domain.User, error) {
	if !auth.CanAccessUser(requester, id) {
		return nil, apperrors.NewForbidden("you can only access your own profile")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user")
		}
		return nil, err
	}
	return user, nil
}

// List returns a page of users ordered newest-first, with totals. The role
// gate (admin only) is enforced by the route middleware.
func (s *UserService) List(ctx context.Context, page, limit int) ([]domain.User, Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	users, err := s.users.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, Pagination{}, err
	}
	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, Pagination{}, err
	}

	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}

	return users, Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// Block deactivates an account. Subject to the same admin-or-self check as
// GetByID; blocking an already-blocked user fails and changes nothing.
func (s *UserService) Block(ctx context.Context, requester *domain.User, id string) (*domain.User, error) {
	if !auth.CanAccessUser(requester, id) {
		return nil, apperrors.NewForbidden("you can only access your own profile")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user")
		}
		return nil, err
	}
	if user.Blocked {
		return nil, apperrors.NewAlreadyBlocked()
	}

	user.Blocked = true
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.NewEvent(events.EventUserBlocked, user.ID, events.UserBlockedPayload{
			BlockedBy: requester.ID,
		}))
	}
	return user, nil
}
