package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/account-service/internal/domain"
)

func testUser() *domain.User {
	return &domain.User{
		ID:    "11111111-1111-1111-1111-111111111111",
		Email: "jane@x.com",
		Role:  domain.RoleUser,
	}
}

func TestGeneratePair_ParsesBack(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	user := testUser()

	pair, err := tm.GeneratePair(user)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims, err := tm.ParseAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, domain.RoleUser, claims.Role)

	claims, err = tm.ParseRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestParse_SecretsAreIndependent(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	pair, err := tm.GeneratePair(testUser())
	require.NoError(t, err)

	_, err = tm.ParseAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = tm.ParseRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParse_ExpiredAndInvalidAreDistinct(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)

	expired := signExpiredToken(t, "access-secret")
	_, err := tm.ParseAccessToken(expired)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = tm.ParseAccessToken("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	wrongSecret := signExpiredToken(t, "another-secret")
	_, err = tm.ParseAccessToken(wrongSecret)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRefreshExpiry(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("a", "b", 15*time.Minute, 2*time.Hour)
	now := time.Now()
	assert.Equal(t, now.Add(2*time.Hour), tm.RefreshExpiry(now))
}

func signExpiredToken(t *testing.T, secret string) string {
	t.Helper()
	claims := &Claims{
		UserID: "11111111-1111-1111-1111-111111111111",
		Email:  "jane@x.com",
		Role:   domain.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}
