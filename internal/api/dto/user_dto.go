package dto

import (
	"time"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/service"
)

// UserResponse is the public view of an account. The password hash never
// leaves the service layer.
type UserResponse struct {
	ID            string      `json:"id"`
	FullName      string      `json:"fullName"`
	BirthDate     string      `json:"birthDate"`
	Email         string      `json:"email"`
	Role          domain.Role `json:"role"`
	IsActive      bool        `json:"isActive"`
	EmailVerified bool        `json:"emailVerified"`
	Blocked       bool        `json:"blocked"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// NewUserResponse maps a domain user to its public view.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:            user.ID,
		FullName:      user.FullName,
		BirthDate:     user.BirthDate.Format(birthDateLayout),
		Email:         user.Email,
		Role:          user.Role,
		IsActive:      user.Active(),
		EmailVerified: user.EmailVerified,
		Blocked:       user.Blocked,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

// NewUserResponses maps a slice of users.
func NewUserResponses(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, NewUserResponse(&users[i]))
	}
	return out
}

// UserListResponse is a page of users plus pagination metadata.
type UserListResponse struct {
	Users      []UserResponse     `json:"users"`
	Pagination service.Pagination `json:"pagination"`
}
