package login_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"presence_service/internal/auth"
	"presence_service/internal/http_server/handlers/login"
	"presence_service/internal/models"
	"presence_service/internal/storage"

	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type fakeCredStore struct {
	byEmail map[string]*models.Credential
}

func (s *fakeCredStore) SaveCredential(_ context.Context, email, passwordHash string, admin, viewOnly bool) (models.Credential, error) {
	if _, ok := s.byEmail[email]; ok {
		return models.Credential{}, storage.ErrEmailTaken
	}
	cred := &models.Credential{ID: "cred-1", Email: email, PasswordHash: passwordHash, Admin: admin, ViewOnly: viewOnly}
	s.byEmail[email] = cred
	return *cred, nil
}

func (s *fakeCredStore) UpdateAccessToken(_ context.Context, id, token string) error {
	for _, cred := range s.byEmail {
		if cred.ID == id {
			cred.Token = token
			return nil
		}
	}
	return storage.ErrCredentialNotFound
}

func (s *fakeCredStore) CredentialByEmail(_ context.Context, email string) (models.Credential, error) {
	cred, ok := s.byEmail[email]
	if !ok {
		return models.Credential{}, storage.ErrCredentialNotFound
	}
	return *cred, nil
}

func (s *fakeCredStore) CredentialByID(_ context.Context, id string) (models.Credential, error) {
	for _, cred := range s.byEmail {
		if cred.ID == id {
			return *cred, nil
		}
	}
	return models.Credential{}, storage.ErrCredentialNotFound
}

type noopLimiter struct{}

func (noopLimiter) FailedLogins(context.Context, string) (int64, error) { return 0, nil }
func (noopLimiter) RegisterFailedLogin(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}
func (noopLimiter) ResetFailedLogins(context.Context, string) error { return nil }

func newHandler(t *testing.T) http.HandlerFunc {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &fakeCredStore{byEmail: map[string]*models.Credential{}}
	a := auth.New(log, store, store, noopLimiter{}, testSecret, time.Hour, 720*time.Hour)

	_, err := a.Register(context.Background(), true, "admin@example.com", "hunter2", false)
	require.NoError(t, err)

	return login.New(log, a)
}

func TestLogin_NoBasicAuth(t *testing.T) {
	t.Parallel()

	handler := newHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Basic auth form not provided.")
}

func TestLogin_EmptyPassword(t *testing.T) {
	t.Parallel()

	handler := newHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.SetBasicAuth("admin@example.com", "")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Email and password must not be empty.")
}

func TestLogin_WrongCredentials(t *testing.T) {
	t.Parallel()

	handler := newHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.SetBasicAuth("admin@example.com", "wrong")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "Wrong credentials, please try again.")
}

func TestLogin_Success(t *testing.T) {
	t.Parallel()

	handler := newHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.SetBasicAuth("admin@example.com", "hunter2")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body login.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "OK", body.Status)
	require.NotEmpty(t, body.AccessToken)
	require.NotEmpty(t, body.RefreshToken)
	require.True(t, body.Admin)
	require.False(t, body.ViewOnly)
}
