package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/account-service/internal/domain"
)

func TestCanAccessUser(t *testing.T) {
	t.Parallel()

	admin := &domain.User{ID: "admin-id", Role: domain.RoleAdmin}
	user := &domain.User{ID: "user-id", Role: domain.RoleUser}

	tests := []struct {
		name      string
		requester *domain.User
		targetID  string
		want      bool
	}{
		{"admin accesses anyone", admin, "user-id", true},
		{"user accesses self", user, "user-id", true},
		{"user denied other record", user, "someone-else", false},
		{"nil requester denied", nil, "user-id", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccessUser(tt.requester, tt.targetID))
		})
	}
}
