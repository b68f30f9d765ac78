package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasanarpat/memento-mori/api/middleware"
	"github.com/hasanarpat/memento-mori/internal/auth"
	"github.com/hasanarpat/memento-mori/internal/users"
	"github.com/hasanarpat/memento-mori/pkg/enums"
	pkgerrors "github.com/hasanarpat/memento-mori/pkg/errors"
	"github.com/hasanarpat/memento-mori/pkg/logger"
)

type stubAuthService struct {
	login          auth.LoginRequest
	loggedOut      string
	refreshAccess  string
	refreshRefresh string
	err            error
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	s.login = req
	if s.err != nil {
		return nil, s.err
	}
	return &auth.LoginResponse{AccessToken: "access", RefreshToken: "refresh", User: sampleUser()}, nil
}

func (s *stubAuthService) Register(ctx context.Context, req auth.RegisterRequest) (*auth.RegisterResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &auth.RegisterResponse{User: sampleUser(), VerificationRequired: true}, nil
}

func (s *stubAuthService) VerifyEmail(ctx context.Context, token string) (*users.UserDTO, error) {
	return sampleUser(), s.err
}

func (s *stubAuthService) Logout(ctx context.Context, accessID string) error {
	s.loggedOut = accessID
	return s.err
}

func (s *stubAuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (*auth.RefreshResponse, error) {
	s.refreshAccess = accessToken
	s.refreshRefresh = refreshToken
	if s.err != nil {
		return nil, s.err
	}
	return &auth.RefreshResponse{AccessToken: "access-2", RefreshToken: "refresh-2"}, nil
}

func (s *stubAuthService) Me(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	user := sampleUser()
	user.ID = userID
	return user, s.err
}

func sampleUser() *users.UserDTO {
	return &users.UserDTO{ID: uuid.New(), Email: "lenore@example.com", Name: "Lenore", Role: enums.RoleCustomer}
}

func TestAuthLoginDecodesBody(t *testing.T) {
	t.Parallel()

	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"lenore@example.com","password":"nevermore"}`))
	rec := httptest.NewRecorder()

	AuthLogin(svc, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lenore@example.com", svc.login.Email)
	assert.Contains(t, rec.Body.String(), `"accessToken":"access"`)
}

func TestAuthLoginRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@b.co","password":"x","admin":true}`))
	rec := httptest.NewRecorder()

	AuthLogin(&stubAuthService{}, logger.Nop()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthLoginInvalidCredentials(t *testing.T) {
	t.Parallel()

	svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"lenore@example.com","password":"wrong"}`))
	rec := httptest.NewRecorder()

	AuthLogin(svc, logger.Nop()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRegisterReturnsCreated(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"email":"lenore@example.com","password":"nevermore1","name":"Lenore"}`))
	rec := httptest.NewRecorder()

	AuthRegister(&stubAuthService{}, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"verificationRequired":true`)
}

func TestAuthRegisterShortPassword(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"email":"lenore@example.com","password":"short","name":"Lenore"}`))
	rec := httptest.NewRecorder()

	AuthRegister(&stubAuthService{}, logger.Nop()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthLogoutUsesAccessID(t *testing.T) {
	t.Parallel()

	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req = req.WithContext(middleware.WithAccessID(req.Context(), "jti-123"))
	rec := httptest.NewRecorder()

	AuthLogout(svc, logger.Nop()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "jti-123", svc.loggedOut)
}

func TestAuthLogoutWithoutSession(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	rec := httptest.NewRecorder()

	AuthLogout(&stubAuthService{}, logger.Nop()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRefreshPassesBothTokens(t *testing.T) {
	t.Parallel()

	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", strings.NewReader(`{"refreshToken":"r1"}`))
	req.Header.Set("Authorization", "Bearer a1")
	rec := httptest.NewRecorder()

	AuthRefresh(svc, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a1", svc.refreshAccess)
	assert.Equal(t, "r1", svc.refreshRefresh)
}

func TestAuthMeRequiresUser(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	AuthMe(&stubAuthService{}, logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	userID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	rec = httptest.NewRecorder()
	AuthMe(&stubAuthService{}, logger.Nop()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), userID.String())
}
