package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/medflow/medflow-auth/access"
	"github.com/medflow/medflow-auth/auth"
	"github.com/medflow/medflow-auth/internal/config"
	"github.com/medflow/medflow-auth/server"
	"github.com/medflow/medflow-auth/sessions/repoinmemory"
	"github.com/medflow/medflow-auth/token"
	"github.com/medflow/medflow-auth/twofactor"
	"github.com/medflow/medflow-auth/users"
	fakeuserrepo "github.com/medflow/medflow-auth/users/repofake"
)

const (
	testUserEmail    = "jane.roe@example.com"
	testUserPassword = "Password123"
)

type testFixture struct {
	server   *server.Server
	service  *auth.Service
	userRepo users.UserRepo
	lastCode string
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{}
	f.userRepo = fakeuserrepo.NewFakeUserRepo()

	cfg := config.New()
	tc, err := token.NewCreator([]byte(cfg.GetTokenSecret()), cfg.GetTokenIssuer(), cfg.GetTokenAudience())
	require.NoError(t, err)

	service, err := auth.NewService(
		auth.Repos{
			Users:      f.userRepo,
			Sessions:   repoinmemory.New(),
			Challenges: twofactor.NewInMemoryRepo(),
		},
		access.DefaultTable(),
		auth.WithTokenCreator(tc),
		auth.WithCodeDelivery(func(_ context.Context, _ *users.User, code string) error {
			f.lastCode = code
			return nil
		}),
	)
	require.NoError(t, err)

	f.service = service
	f.server = server.New(cfg, service, tc, zerolog.Nop())
	return f
}

func (f *testFixture) createTestUser(t *testing.T, email, password string, role users.Role, twoFactor bool) {
	t.Helper()

	passwordHash, err := users.HashPassword(password)
	require.NoError(t, err)

	err = f.userRepo.Upsert(&users.User{
		Email:            email,
		PasswordHash:     passwordHash,
		Role:             role,
		Active:           true,
		TwoFactorEnabled: twoFactor,
	})
	require.NoError(t, err)
}

func (f *testFixture) postJSON(t *testing.T, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func (f *testFixture) get(t *testing.T, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestLoginEndpoint_Success(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t, testUserEmail, testUserPassword, users.RoleProvider, false)

	rec := f.postJSON(t, server.RouteAPILogin, map[string]string{
		"email":    testUserEmail,
		"password": testUserPassword,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, "active", body["status"])
	require.NotEmpty(t, body["session_id"])
	require.NotEmpty(t, body["access_token"])
}

func TestLoginEndpoint_InvalidCredentials(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t, testUserEmail, testUserPassword, users.RoleProvider, false)

	rec := f.postJSON(t, server.RouteAPILogin, map[string]string{
		"email":    testUserEmail,
		"password": "WrongPassword1",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid_credentials", decodeBody(t, rec)["error"])
}

func TestLoginEndpoint_MalformedBody(t *testing.T) {
	f := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodPost, server.RouteAPILogin, bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTwoFactorEndpoint_Flow(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t, testUserEmail, testUserPassword, users.RoleProvider, true)

	rec := f.postJSON(t, server.RouteAPILogin, map[string]string{
		"email":    testUserEmail,
		"password": testUserPassword,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, "pending_two_factor", body["status"])
	sessionID := body["session_id"].(string)

	wrong := "000000"
	if wrong == f.lastCode {
		wrong = "000001"
	}
	rec = f.postJSON(t, server.RouteAPITwoFactor, map[string]string{
		"session_id": sessionID,
		"code":       wrong,
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body = decodeBody(t, rec)
	require.Equal(t, "invalid_code", body["error"])
	require.Equal(t, float64(2), body["attempts_remaining"])

	rec = f.postJSON(t, server.RouteAPITwoFactor, map[string]string{
		"session_id": sessionID,
		"code":       f.lastCode,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "active", decodeBody(t, rec)["status"])
}

func TestAccessEndpoint_SessionTokenHeader(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t, testUserEmail, testUserPassword, users.RolePatient, false)

	rec := f.postJSON(t, server.RouteAPILogin, map[string]string{
		"email":    testUserEmail,
		"password": testUserPassword,
	}, nil)
	sessionID := decodeBody(t, rec)["session_id"].(string)
	headers := map[string]string{server.HeaderSessionToken: sessionID}

	rec = f.get(t, "/api/auth/access/appointments", headers)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decodeBody(t, rec)["allowed"])

	rec = f.get(t, "/api/auth/access/billing", headers)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, decodeBody(t, rec)["allowed"])
}

func TestAccessEndpoint_BearerToken(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t, testUserEmail, testUserPassword, users.RoleProvider, false)

	rec := f.postJSON(t, server.RouteAPILogin, map[string]string{
		"email":    testUserEmail,
		"password": testUserPassword,
	}, nil)
	accessToken := decodeBody(t, rec)["access_token"].(string)

	rec = f.get(t, "/api/auth/access/patients", map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decodeBody(t, rec)["allowed"])
}

func TestAccessEndpoint_MissingCredentials(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.get(t, "/api/auth/access/dashboard", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionEndpoint(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t, testUserEmail, testUserPassword, users.RoleStaff, false)

	rec := f.postJSON(t, server.RouteAPILogin, map[string]string{
		"email":    testUserEmail,
		"password": testUserPassword,
	}, nil)
	sessionID := decodeBody(t, rec)["session_id"].(string)

	rec = f.get(t, server.RouteAPISession, map[string]string{server.HeaderSessionToken: sessionID})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, "staff", body["role"])
	require.Equal(t, "active", body["state"])
}

func TestModulesEndpoint(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t, testUserEmail, testUserPassword, users.RolePatient, false)

	rec := f.postJSON(t, server.RouteAPILogin, map[string]string{
		"email":    testUserEmail,
		"password": testUserPassword,
	}, nil)
	sessionID := decodeBody(t, rec)["session_id"].(string)

	rec = f.get(t, server.RouteAPIModules, map[string]string{server.HeaderSessionToken: sessionID})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	modules := body["modules"].([]any)
	require.Contains(t, modules, "portal")
	require.NotContains(t, modules, "billing")
}

func TestLogoutEndpoint_Idempotent(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t, testUserEmail, testUserPassword, users.RoleProvider, false)

	rec := f.postJSON(t, server.RouteAPILogin, map[string]string{
		"email":    testUserEmail,
		"password": testUserPassword,
	}, nil)
	sessionID := decodeBody(t, rec)["session_id"].(string)
	headers := map[string]string{server.HeaderSessionToken: sessionID}

	rec = f.postJSON(t, server.RouteAPILogout, nil, headers)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.postJSON(t, server.RouteAPILogout, nil, headers)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// A revoked session is allowed nothing but the check itself still works.
	rec = f.get(t, "/api/auth/access/dashboard", headers)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, decodeBody(t, rec)["allowed"])
}

func TestRegisterEndpoint(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.postJSON(t, server.RouteAPIRegister, map[string]any{
		"email":      "new.patient@example.com",
		"password":   "Sturdy1Password",
		"first_name": "Pat",
		"last_name":  "Jones",
		"role":       "patient",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	require.NotEmpty(t, body["id"])
	require.NotContains(t, rec.Body.String(), "Sturdy1Password")

	rec = f.postJSON(t, server.RouteAPIRegister, map[string]any{
		"email":    "new.patient@example.com",
		"password": "Sturdy1Password",
		"role":     "patient",
	}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "duplicate_email", decodeBody(t, rec)["error"])
}

func TestHealthzEndpoint(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.get(t, server.RouteHealthz, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestLoginEndpoint_RateLimited(t *testing.T) {
	f := setupTestFixture(t)

	var limited bool
	for i := 0; i < 30; i++ {
		rec := f.postJSON(t, server.RouteAPILogin, map[string]string{
			"email":    fmt.Sprintf("probe%d@example.com", i),
			"password": "WrongPassword1",
		}, nil)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	require.True(t, limited)
}
