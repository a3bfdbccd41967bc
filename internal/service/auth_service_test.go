package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

type captureMailer struct {
	sent    []sentMail
	failErr error
}

type sentMail struct {
	To   string
	Code string
}

func (m *captureMailer) SendOTP(_ context.Context, to, code string) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.sent = append(m.sent, sentMail{To: to, Code: code})
	return nil
}

func (m *captureMailer) lastCode() string {
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Code
}

type authFixture struct {
	svc    *AuthService
	users  repository.UserRepository
	otps   repository.OTPRepository
	tokens repository.RefreshTokenRepository
	mailer *captureMailer
}

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			AccessTokenSecret:     "test-access-secret",
			RefreshTokenSecret:    "test-refresh-secret",
			AccessTokenTTLMinutes: 15,
			RefreshTokenTTLHours:  168,
			OTPTTLMinutes:         5,
			OTPResendCooldownSec:  0,
			BcryptCost:            4, // minimum cost keeps the suite fast
		},
	}
}

func newAuthFixture(t *testing.T, cfg config.Config) *authFixture {
	t.Helper()

	users := repository.NewMemoryUserRepository()
	otps := repository.NewMemoryOTPRepository(users)
	tokens := repository.NewMemoryRefreshTokenRepository()
	mailer := &captureMailer{}

	svc := NewAuthService(cfg, AuthDependencies{
		UserRepo:         users,
		OTPRepo:          otps,
		RefreshTokenRepo: tokens,
		Mailer:           mailer,
	})

	return &authFixture{svc: svc, users: users, otps: otps, tokens: tokens, mailer: mailer}
}

func requireDomainCode(t *testing.T, err error, code string) {
	t.Helper()
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, code, domainErr.Code)
}

func registerJane(t *testing.T, f *authFixture) *domain.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(),
		"Jane Doe", time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), "jane@x.com", "password123")
	require.NoError(t, err)
	return user
}

func TestRegister_CreatesInactiveUserWithOneActiveCode(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, testConfig())

	user := registerJane(t, f)

	assert.False(t, user.EmailVerified)
	assert.False(t, user.Blocked)
	assert.False(t, user.Active())
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.NotEqual(t, "password123", user.PasswordHash)

	active, err := f.otps.CountActiveForUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, active)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "jane@x.com", f.mailer.sent[0].To)
	assert.Len(t, f.mailer.sent[0].Code, 6)
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, testConfig())
	registerJane(t, f)

	_, err := f.svc.Register(context.Background(),
		"Jane Again", time.Date(1991, 2, 2, 0, 0, 0, 0, time.UTC), "jane@x.com", "password456")
	requireDomainCode(t, err, "CONFLICT")
}

func TestRegister_MailFailureLeavesCodeUsable(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, testConfig())
	f.mailer.failErr = errors.New("smtp down")

	user, err := f.svc.Register(context.Background(),
		"Jane Doe", time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), "jane@x.com", "password123")
	requireDomainCode(t, err, "EMAIL_DELIVERY")

	// The user and code rows were committed before the send attempt.
	require.NotNil(t, user)
	active, err := f.otps.CountActiveForUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, active)
}

func TestResendOTP_InvalidatesPriorCodes(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, testConfig())
	user := registerJane(t, f)
	firstCode := f.mailer.lastCode()

	require.NoError(t, f.svc.ResendOTP(context.Background(), user.ID))
	secondCode := f.mailer.lastCode()

	active, err := f.otps.CountActiveForUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, active, "at most one active code per user")

	if firstCode != secondCode {
		_, _, err = f.svc.VerifyOTP(context.Background(), user.ID, firstCode)
		requireDomainCode(t, err, "INVALID_CODE")
	}

	_, _, err = f.svc.VerifyOTP(context.Background(), user.ID, secondCode)
	require.NoError(t, err)
}

func TestResendOTP_Errors(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, testConfig())
	user := registerJane(t, f)

	err := f.svc.ResendOTP(context.Background(), "00000000-0000-0000-0000-000000000000")
	requireDomainCode(t, err, "NOT_FOUND")

	_, _, err = f.svc.VerifyOTP(context.Background(), user.ID, f.mailer.lastCode())
	require.NoError(t, err)

	err = f.svc.ResendOTP(context.Background(), user.ID)
	requireDomainCode(t, err, "ALREADY_ACTIVE")
}

func TestVerifyOTP_Success(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, testConfig())
	user := registerJane(t, f)

	verified, pair, err := f.svc.VerifyOTP(context.Background(), user.ID, f.mailer.lastCode())
	require.NoError(t, err)
	assert.True(t, verified.EmailVerified)
	assert.True(t, verified.Active())
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	stored, err := f.tokens.GetByToken(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.UserID)

	// Consumed codes cannot be replayed.
	_, _, err = f.svc.VerifyOTP(context.Background(), user.ID, f.mailer.lastCode())
	requireDomainCode(t, err, "INVALID_CODE")
}

func TestVerifyOTP_WrongCode(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, testConfig())
	user := registerJane(t, f)

	wrong := "000000"
	if f.mailer.lastCode() == wrong {
		wrong = "000001"
	}
	_, _, err := f.svc.VerifyOTP(context.Background(), user.ID, wrong)
	requireDomainCode(t, err, "INVALID_CODE")
}

func TestVerifyOTP_ExpiredDoesNotActivate(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Auth.OTPTTLMinutes = -1 // codes are born expired
	f := newAuthFixture(t, cfg)
	user := registerJane(t, f)

	_, _, err := f.svc.VerifyOTP(context.Background(), user.ID, f.mailer.lastCode())
	requireDomainCode(t, err, "CODE_EXPIRED")

	stored, err := f.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, stored.EmailVerified)
}

func TestLogin_UniformErrorForUnknownEmailAndWrongPassword(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, testConfig())
	user := registerJane(t, f)
	_, _, err := f.svc.VerifyOTP(context.Background(), user.ID, f.mailer.lastCode())
	require.NoError(t, err)

	_, _, unknownErr := f.svc.Login(context.Background(), "nobody@x.com", "password123")
	_, _, wrongPassErr := f.svc.Login(context.Background(), "jane@x.com", "wrong-password")

	requireDomainCode(t, unknownErr, "INVALID_CREDENTIALS")
	requireDomainCode(t, wrongPassErr, "INVALID_CREDENTIALS")
	assert.Equal(t, unknownErr.Error(), wrongPassErr.Error(), "no enumeration signal")
}

func TestLogin_BlockedAndUnverifiedAccounts(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, testConfig())
	user := registerJane(t, f)

	// Correct password on an unverified account must not succeed.
	_, _, err := f.svc.Login(context.Background(), "jane@x.com", "password123")
	requireDomainCode(t, err, "ACCOUNT_BLOCKED")

	_, _, err = f.svc.VerifyOTP(context.Background(), user.ID, f.mailer.lastCode())
	require.NoError(t, err)

	stored, err := f.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	stored.Blocked = true
	require.NoError(t, f.users.Update(context.Background(), stored))

	_, _, err = f.svc.Login(context.Background(), "jane@x.com", "password123")
	requireDomainCode(t, err, "ACCOUNT_BLOCKED")
}

func TestLogin_IssuesIndependentPairs(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, testConfig())
	user := registerJane(t, f)
	_, pair1, err := f.svc.VerifyOTP(context.Background(), user.ID, f.mailer.lastCode())
	require.NoError(t, err)

	_, pair2, err := f.svc.Login(context.Background(), "jane@x.com", "password123")
	require.NoError(t, err)
	assert.NotEqual(t, pair1.RefreshToken, pair2.RefreshToken)

	// Both sessions remain usable concurrently.
	_, err = f.tokens.GetByToken(context.Background(), pair1.RefreshToken)
	require.NoError(t, err)
	_, err = f.tokens.GetByToken(context.Background(), pair2.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_RotationInvalidatesOldToken(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, testConfig())
	user := registerJane(t, f)
	_, pair1, err := f.svc.VerifyOTP(context.Background(), user.ID, f.mailer.lastCode())
	require.NoError(t, err)

	pair2, err := f.svc.Refresh(context.Background(), pair1.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair1.RefreshToken, pair2.RefreshToken)

	// The consumed token is permanently unusable, even though its signature
	// still verifies.
	_, err = f.svc.Refresh(context.Background(), pair1.RefreshToken)
	requireDomainCode(t, err, "INVALID_REFRESH_TOKEN")

	_, err = f.svc.Refresh(context.Background(), pair2.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_ChecksPersistedExpiry(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, testConfig())
	user := registerJane(t, f)
	verified, _, err := f.svc.VerifyOTP(context.Background(), user.ID, f.mailer.lastCode())
	require.NoError(t, err)

	// Signed expiry is a week out; the stored row says it is already revoked.
	signed, err := f.svc.TokenManager().GenerateRefreshToken(verified)
	require.NoError(t, err)
	require.NoError(t, f.tokens.Create(context.Background(), &domain.RefreshToken{
		UserID:    verified.ID,
		Token:     signed,
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	_, err = f.svc.Refresh(context.Background(), signed)
	requireDomainCode(t, err, "INVALID_REFRESH_TOKEN")
}

func TestRefresh_RejectsGarbageAndBlockedOwner(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, testConfig())
	user := registerJane(t, f)
	_, pair, err := f.svc.VerifyOTP(context.Background(), user.ID, f.mailer.lastCode())
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), "garbage")
	requireDomainCode(t, err, "INVALID_REFRESH_TOKEN")

	stored, err := f.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	stored.Blocked = true
	require.NoError(t, f.users.Update(context.Background(), stored))

	_, err = f.svc.Refresh(context.Background(), pair.RefreshToken)
	requireDomainCode(t, err, "ACCOUNT_BLOCKED")
}

func TestLogout_Idempotent(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, testConfig())
	user := registerJane(t, f)
	_, pair, err := f.svc.VerifyOTP(context.Background(), user.ID, f.mailer.lastCode())
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), pair.RefreshToken))
	require.NoError(t, f.svc.Logout(context.Background(), pair.RefreshToken))
	require.NoError(t, f.svc.Logout(context.Background(), "never-existed"))

	_, err = f.svc.Refresh(context.Background(), pair.RefreshToken)
	requireDomainCode(t, err, "INVALID_REFRESH_TOKEN")
}
