package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/account-service/internal/domain"
)

// ErrTokenExpired and ErrTokenInvalid are surfaced distinctly so callers can
// prompt a refresh on expiry but reject outright on a bad signature.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// TokenManager issues and validates JWT access and refresh tokens. The two
// token kinds are signed with independent secrets and expiry policies.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// Claims describes the JWT payload shared by both token kinds.
type Claims struct {
	UserID string      `json:"userId"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs a short-lived access token for the user.
func (tm *TokenManager) GenerateAccessToken(user *domain.User) (string, error) {
	return tm.generate(user, tm.accessSecret, tm.accessTTL)
}

// GenerateRefreshToken signs a long-lived refresh token for the user.
func (tm *TokenManager) GenerateRefreshToken(user *domain.User) (string, error) {
	return tm.generate(user, tm.refreshSecret, tm.refreshTTL)
}

// GeneratePair signs an access/refresh token pair.
func (tm *TokenManager) GeneratePair(user *domain.User) (domain.TokenPair, error) {
	access, err := tm.GenerateAccessToken(user)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := tm.GenerateRefreshToken(user)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// RefreshExpiry returns the absolute expiry for a refresh token issued now.
// The persisted row carries this timestamp so rotation can be revoked early,
// independently of the signed expiry.
func (tm *TokenManager) RefreshExpiry(now time.Time) time.Time {
	return now.Add(tm.refreshTTL)
}

// ParseAccessToken validates an access token and returns its claims.
func (tm *TokenManager) ParseAccessToken(tokenStr string) (*Claims, error) {
	return tm.parse(tokenStr, tm.accessSecret)
}

// ParseRefreshToken validates a refresh token and returns its claims.
func (tm *TokenManager) ParseRefreshToken(tokenStr string) (*Claims, error) {
	return tm.parse(tokenStr, tm.refreshSecret)
}

func (tm *TokenManager) generate(user *domain.User, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti keeps tokens unique even when two are signed for the
			// same user within one second.
			ID:        uuid.NewString(),
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (tm *TokenManager) parse(tokenStr string, secret []byte) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenInvalid
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
