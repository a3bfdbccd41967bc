package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/email"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// AuthService orchestrates the session lifecycle:
// register -> verify -> login -> refresh -> logout.
// It is the only component that mutates users, one-time codes and refresh
// token rows.
type AuthService struct {
	users          repository.UserRepository
	otps           repository.OTPRepository
	refreshTokens  repository.RefreshTokenRepository
	tokenMgr       *auth.TokenManager
	mailer         email.Mailer
	dispatcher     events.Dispatcher
	redis          *redis.Client
	bcryptCost     int
	otpTTL         time.Duration
	resendCooldown time.Duration
}

// AuthDependencies encapsulates collaborator requirements for the service.
type AuthDependencies struct {
	UserRepo         repository.UserRepository
	OTPRepo          repository.OTPRepository
	RefreshTokenRepo repository.RefreshTokenRepository
	Mailer           email.Mailer
	Dispatcher       events.Dispatcher
	// Redis is optional; without it the resend cooldown is not enforced.
	Redis *redis.Client
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:         deps.UserRepo,
		otps:          deps.OTPRepo,
		refreshTokens: deps.RefreshTokenRepo,
		tokenMgr: auth.NewTokenManager(
			cfg.Auth.AccessTokenSecret,
			cfg.Auth.RefreshTokenSecret,
			cfg.Auth.AccessTokenTTL(),
			cfg.Auth.RefreshTokenTTL(),
		),
		mailer:         deps.Mailer,
		dispatcher:     deps.Dispatcher,
		redis:          deps.Redis,
		bcryptCost:     cfg.Auth.BcryptCost,
		otpTTL:         cfg.Auth.OTPTTL(),
		resendCooldown: cfg.Auth.OTPResendCooldown(),
	}
}

// Register creates an unverified account and sends the first OTP. The user
// and code rows are committed before the email send, so a delivery failure
// leaves a usable code behind (resend covers the gap).
func (s *AuthService) Register(ctx context.Context, fullName string, birthDate time.Time, emailAddr, password string) (*domain.User, error) {
	if _, err := s.users.GetByEmail(ctx, emailAddr); err == nil {
		return nil, apperrors.NewConflict("user with this email already exists")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		FullName:      fullName,
		BirthDate:     birthDate,
		Email:         emailAddr,
		PasswordHash:  hash,
		Role:          domain.RoleUser,
		EmailVerified: false,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventUserRegistered, user.ID, events.UserRegisteredPayload{
		Email: user.Email,
		Role:  user.Role,
	})

	if err := s.issueOTP(ctx, user, false); err != nil {
		return user, err
	}
	return user, nil
}

// VerifyOTP consumes a pending code, activates the account and issues the
// initial token pair. Consume and activate commit in one transaction.
func (s *AuthService) VerifyOTP(ctx context.Context, userID, code string) (*domain.User, domain.TokenPair, error) {
	otp, err := s.otps.GetActiveByUserAndCode(ctx, userID, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.TokenPair{}, apperrors.NewInvalidCode()
		}
		return nil, domain.TokenPair{}, err
	}
	if otp.Expired(time.Now()) {
		return nil, domain.TokenPair{}, apperrors.NewCodeExpired()
	}

	if err := s.otps.ConsumeAndActivateUser(ctx, otp.ID, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.TokenPair{}, apperrors.NewInvalidCode()
		}
		return nil, domain.TokenPair{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, domain.TokenPair{}, err
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, domain.TokenPair{}, err
	}

	s.publish(ctx, events.EventUserVerified, user.ID, nil)
	return user, pair, nil
}

// Login authenticates by email and password. Unknown email and wrong
// password fail identically so responses carry no enumeration signal.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (*domain.User, domain.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.TokenPair{}, apperrors.NewInvalidCredentials()
		}
		return nil, domain.TokenPair{}, err
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, domain.TokenPair{}, apperrors.NewInvalidCredentials()
	}
	if !user.Active() {
		return nil, domain.TokenPair{}, apperrors.NewAccountBlocked()
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, domain.TokenPair{}, err
	}

	s.publish(ctx, events.EventUserLoggedIn, user.ID, nil)
	return user, pair, nil
}

// Refresh exchanges a refresh token for a new pair. The consumed row is
// deleted and its replacement inserted in one transaction, so the old token
// is permanently unusable even while its signature still verifies.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	if _, err := s.tokenMgr.ParseRefreshToken(refreshToken); err != nil {
		return domain.TokenPair{}, apperrors.NewInvalidRefreshToken()
	}

	stored, err := s.refreshTokens.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TokenPair{}, apperrors.NewInvalidRefreshToken()
		}
		return domain.TokenPair{}, err
	}
	// The persisted expiry is checked independently of the signed one since
	// rows can be revoked early.
	if time.Now().After(stored.ExpiresAt) {
		return domain.TokenPair{}, apperrors.NewInvalidRefreshToken()
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TokenPair{}, apperrors.NewInvalidRefreshToken()
		}
		return domain.TokenPair{}, err
	}
	if !user.Active() {
		return domain.TokenPair{}, apperrors.NewAccountBlocked()
	}

	pair, err := s.tokenMgr.GeneratePair(user)
	if err != nil {
		return domain.TokenPair{}, err
	}

	next := &domain.RefreshToken{
		UserID:    user.ID,
		Token:     pair.RefreshToken,
		ExpiresAt: s.tokenMgr.RefreshExpiry(time.Now()),
	}
	if err := s.refreshTokens.Rotate(ctx, refreshToken, next); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TokenPair{}, apperrors.NewInvalidRefreshToken()
		}
		return domain.TokenPair{}, err
	}

	return pair, nil
}

// Logout deletes the stored refresh token row. Logging out with an unknown
// token is not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.refreshTokens.DeleteByToken(ctx, refreshToken)
}

// ResendOTP re-issues a verification code for an unverified account,
// invalidating all previously unconsumed codes.
func (s *AuthService) ResendOTP(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user")
		}
		return err
	}
	if user.EmailVerified {
		return apperrors.NewAlreadyActive()
	}

	if err := s.checkResendCooldown(ctx, userID); err != nil {
		return err
	}

	return s.issueOTP(ctx, user, true)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issueOTP(ctx context.Context, user *domain.User, resend bool) error {
	if err := s.otps.InvalidateAllForUser(ctx, user.ID); err != nil {
		return err
	}

	code, err := auth.GenerateOTP()
	if err != nil {
		return err
	}

	otp := &domain.OneTimeCode{
		UserID:    user.ID,
		Code:      code,
		ExpiresAt: time.Now().Add(s.otpTTL),
	}
	if err := s.otps.Create(ctx, otp); err != nil {
		return err
	}

	s.publish(ctx, events.EventOTPIssued, user.ID, events.OTPIssuedPayload{
		Email:     user.Email,
		ExpiresAt: otp.ExpiresAt,
		Resend:    resend,
	})

	if err := s.mailer.SendOTP(ctx, user.Email, code); err != nil {
		return apperrors.NewEmailDeliveryError(err)
	}
	return nil
}

func (s *AuthService) issueTokenPair(ctx context.Context, user *domain.User) (domain.TokenPair, error) {
	pair, err := s.tokenMgr.GeneratePair(user)
	if err != nil {
		return domain.TokenPair{}, err
	}

	row := &domain.RefreshToken{
		UserID:    user.ID,
		Token:     pair.RefreshToken,
		ExpiresAt: s.tokenMgr.RefreshExpiry(time.Now()),
	}
	if err := s.refreshTokens.Create(ctx, row); err != nil {
		return domain.TokenPair{}, err
	}
	return pair, nil
}

func (s *AuthService) checkResendCooldown(ctx context.Context, userID string) error {
	if s.redis == nil || s.resendCooldown <= 0 {
		return nil
	}
	ok, err := s.redis.SetNX(ctx, "otp:cooldown:"+userID, 1, s.resendCooldown).Result()
	if err != nil {
		// Redis being down must not take the resend path with it.
		return nil
	}
	if !ok {
		return apperrors.NewRateLimited("OTP was recently sent, try again later")
	}
	return nil
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, userID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.NewEvent(eventType, userID, payload))
}
