package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/api/http/handlers"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/observability"
	"github.com/spec-kit/account-service/internal/repository"
	"github.com/spec-kit/account-service/internal/service"
)

type testMailer struct {
	codes map[string]string // email -> last code
}

func (m *testMailer) SendOTP(_ context.Context, to, code string) error {
	m.codes[to] = code
	return nil
}

type testApp struct {
	app    *fiber.App
	mailer *testMailer
	users  repository.UserRepository
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	cfg := config.Config{
		App: config.AppConfig{Name: "account-service", Version: "test"},
		Auth: config.AuthConfig{
			AccessTokenSecret:     "test-access-secret",
			RefreshTokenSecret:    "test-refresh-secret",
			AccessTokenTTLMinutes: 15,
			RefreshTokenTTLHours:  168,
			OTPTTLMinutes:         5,
			BcryptCost:            4,
		},
	}

	users := repository.NewMemoryUserRepository()
	otps := repository.NewMemoryOTPRepository(users)
	tokens := repository.NewMemoryRefreshTokenRepository()
	mailer := &testMailer{codes: make(map[string]string)}
	dispatcher := events.NewInMemoryDispatcher()

	authService := service.NewAuthService(cfg, service.AuthDependencies{
		UserRepo:         users,
		OTPRepo:          otps,
		RefreshTokenRepo: tokens,
		Mailer:           mailer,
		Dispatcher:       dispatcher,
	})
	userService := service.NewUserService(users, dispatcher)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, nil, nil),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), users),
	})

	return &testApp{app: app, mailer: mailer, users: users}
}

func (ta *testApp) request(t *testing.T, method, path, bearer string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

func dig(t *testing.T, m map[string]any, keys ...string) any {
	t.Helper()
	var cur any = m
	for _, key := range keys {
		obj, ok := cur.(map[string]any)
		require.True(t, ok, "expected object at %q in %v", key, m)
		cur, ok = obj[key]
		require.True(t, ok, "missing key %q in %v", key, obj)
	}
	return cur
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	code, ok := dig(t, body, "error", "code").(string)
	require.True(t, ok)
	return code
}

func (ta *testApp) seedAdmin(t *testing.T) {
	t.Helper()
	hash, err := auth.HashPassword("admin-password", 4)
	require.NoError(t, err)
	require.NoError(t, ta.users.Create(context.Background(), &domain.User{
		FullName:      "Root Admin",
		BirthDate:     time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
		Email:         "admin@x.com",
		PasswordHash:  hash,
		Role:          domain.RoleAdmin,
		EmailVerified: true,
	}))
}

func TestEndToEnd_SessionLifecycle(t *testing.T) {
	ta := newTestApp(t)

	// Register.
	status, body := ta.request(t, stdhttp.MethodPost, "/auth/register", "", fiber.Map{
		"fullName":  "Jane Doe",
		"birthDate": "1990-01-01",
		"email":     "jane@x.com",
		"password":  "password123",
	})
	require.Equal(t, stdhttp.StatusCreated, status)
	userID, ok := dig(t, body, "data", "userId").(string)
	require.True(t, ok)
	require.NotEmpty(t, userID)

	// Login before verification is rejected.
	status, body = ta.request(t, stdhttp.MethodPost, "/auth/login", "", fiber.Map{
		"email": "jane@x.com", "password": "password123",
	})
	require.Equal(t, stdhttp.StatusForbidden, status)
	assert.Equal(t, "ACCOUNT_BLOCKED", errorCode(t, body))

	// Verify with the delivered code.
	code := ta.mailer.codes["jane@x.com"]
	require.Len(t, code, 6)
	status, body = ta.request(t, stdhttp.MethodPost, "/auth/verify-otp", "", fiber.Map{
		"userId": userID, "otpCode": code,
	})
	require.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, true, dig(t, body, "data", "user", "isActive"))
	pair1Refresh, _ := dig(t, body, "data", "tokens", "refreshToken").(string)
	require.NotEmpty(t, pair1Refresh)

	// Login yields a second, independent pair.
	status, body = ta.request(t, stdhttp.MethodPost, "/auth/login", "", fiber.Map{
		"email": "jane@x.com", "password": "password123",
	})
	require.Equal(t, stdhttp.StatusOK, status)
	pair2Access, _ := dig(t, body, "data", "tokens", "accessToken").(string)
	pair2Refresh, _ := dig(t, body, "data", "tokens", "refreshToken").(string)
	require.NotEmpty(t, pair2Access)
	assert.NotEqual(t, pair1Refresh, pair2Refresh)

	// Me.
	status, body = ta.request(t, stdhttp.MethodGet, "/auth/me", pair2Access, nil)
	require.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, "jane@x.com", dig(t, body, "data", "user", "email"))

	// Refresh rotates pair1.
	status, body = ta.request(t, stdhttp.MethodPost, "/auth/refresh-token", "", fiber.Map{
		"refreshToken": pair1Refresh,
	})
	require.Equal(t, stdhttp.StatusOK, status)
	rotated, _ := dig(t, body, "data", "refreshToken").(string)
	require.NotEmpty(t, rotated)
	assert.NotEqual(t, pair1Refresh, rotated)

	// Replaying the consumed token fails.
	status, body = ta.request(t, stdhttp.MethodPost, "/auth/refresh-token", "", fiber.Map{
		"refreshToken": pair1Refresh,
	})
	require.Equal(t, stdhttp.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_REFRESH_TOKEN", errorCode(t, body))

	// Logout is idempotent.
	status, _ = ta.request(t, stdhttp.MethodPost, "/auth/logout", "", fiber.Map{"refreshToken": rotated})
	require.Equal(t, stdhttp.StatusOK, status)
	status, _ = ta.request(t, stdhttp.MethodPost, "/auth/logout", "", fiber.Map{"refreshToken": rotated})
	require.Equal(t, stdhttp.StatusOK, status)
}

func TestRegister_ValidationRejectedAtBoundary(t *testing.T) {
	ta := newTestApp(t)

	cases := []fiber.Map{
		{"fullName": "J", "birthDate": "1990-01-01", "email": "jane@x.com", "password": "password123"},
		{"fullName": "Jane Doe", "birthDate": "not-a-date", "email": "jane@x.com", "password": "password123"},
		{"fullName": "Jane Doe", "birthDate": "1990-01-01", "email": "not-an-email", "password": "password123"},
		{"fullName": "Jane Doe", "birthDate": "1990-01-01", "email": "jane@x.com", "password": "short"},
	}
	for i, payload := range cases {
		status, body := ta.request(t, stdhttp.MethodPost, "/auth/register", "", payload)
		require.Equal(t, stdhttp.StatusBadRequest, status, "case %d", i)
		assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body), "case %d", i)
	}
}

func TestUsersEndpoints_AccessControl(t *testing.T) {
	ta := newTestApp(t)
	ta.seedAdmin(t)

	// Admin login.
	status, body := ta.request(t, stdhttp.MethodPost, "/auth/login", "", fiber.Map{
		"email": "admin@x.com", "password": "admin-password",
	})
	require.Equal(t, stdhttp.StatusOK, status)
	adminToken, _ := dig(t, body, "data", "tokens", "accessToken").(string)

	// Register and verify a normal user.
	status, body = ta.request(t, stdhttp.MethodPost, "/auth/register", "", fiber.Map{
		"fullName": "Jane Doe", "birthDate": "1990-01-01", "email": "jane@x.com", "password": "password123",
	})
	require.Equal(t, stdhttp.StatusCreated, status)
	janeID, _ := dig(t, body, "data", "userId").(string)
	status, body = ta.request(t, stdhttp.MethodPost, "/auth/verify-otp", "", fiber.Map{
		"userId": janeID, "otpCode": ta.mailer.codes["jane@x.com"],
	})
	require.Equal(t, stdhttp.StatusOK, status)
	janeToken, _ := dig(t, body, "data", "tokens", "accessToken").(string)

	// Listing requires admin.
	status, body = ta.request(t, stdhttp.MethodGet, "/users?page=1&limit=10", janeToken, nil)
	require.Equal(t, stdhttp.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(t, body))

	status, body = ta.request(t, stdhttp.MethodGet, "/users?page=1&limit=10", adminToken, nil)
	require.Equal(t, stdhttp.StatusOK, status)
	assert.EqualValues(t, 2, dig(t, body, "data", "pagination", "total"))

	// A user may fetch their own record but not someone else's.
	status, _ = ta.request(t, stdhttp.MethodGet, "/users/"+janeID, janeToken, nil)
	require.Equal(t, stdhttp.StatusOK, status)

	status, body = ta.request(t, stdhttp.MethodGet, "/users/00000000-0000-0000-0000-000000000000", janeToken, nil)
	require.Equal(t, stdhttp.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(t, body))

	// Unauthenticated and malformed credentials.
	status, body = ta.request(t, stdhttp.MethodGet, "/users/"+janeID, "", nil)
	require.Equal(t, stdhttp.StatusUnauthorized, status)
	status, body = ta.request(t, stdhttp.MethodGet, "/users/"+janeID, "not-a-jwt", nil)
	require.Equal(t, stdhttp.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_TOKEN", errorCode(t, body))

	// Block Jane; her valid access token stops working immediately.
	status, body = ta.request(t, stdhttp.MethodPatch, "/users/"+janeID+"/block", adminToken, nil)
	require.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, false, dig(t, body, "data", "user", "isActive"))

	status, body = ta.request(t, stdhttp.MethodPatch, "/users/"+janeID+"/block", adminToken, nil)
	require.Equal(t, stdhttp.StatusBadRequest, status)
	assert.Equal(t, "ALREADY_BLOCKED", errorCode(t, body))

	status, body = ta.request(t, stdhttp.MethodGet, "/auth/me", janeToken, nil)
	require.Equal(t, stdhttp.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(t, body))

	// Blocked login.
	status, body = ta.request(t, stdhttp.MethodPost, "/auth/login", "", fiber.Map{
		"email": "jane@x.com", "password": "password123",
	})
	require.Equal(t, stdhttp.StatusForbidden, status)
	assert.Equal(t, "ACCOUNT_BLOCKED", errorCode(t, body))
}

func TestHealthLive(t *testing.T) {
	ta := newTestApp(t)
	status, body := ta.request(t, stdhttp.MethodGet, "/health/live", "", nil)
	require.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, "alive", body["status"])
	assert.Equal(t, "account-service", body["service"])
}
