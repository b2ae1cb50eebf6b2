package refresh_test

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
	"presence_service/internal/http_server/handlers/refresh"
	"presence_service/internal/lib/jwt"
	"presence_service/internal/middleware/authjwt"
	"presence_service/internal/models"
	"presence_service/internal/storage"

	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type fakeCredStore struct {
	byEmail map[string]*models.Credential
}

func (s *fakeCredStore) SaveCredential(_ context.Context, email, passwordHash string, admin, viewOnly bool) (models.Credential, error) {
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

func newHandler(t *testing.T) (http.HandlerFunc, models.Credential) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &fakeCredStore{byEmail: map[string]*models.Credential{}}
	a := auth.New(log, store, store, noopLimiter{}, testSecret, time.Hour, 720*time.Hour)

	cred, err := a.Register(context.Background(), false, "user@example.com", "pw", false)
	require.NoError(t, err)

	return refresh.New(log, a), cred
}

func TestRefresh_IssuesNewAccessToken(t *testing.T) {
	t.Parallel()

	handler, cred := newHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	req = req.WithContext(authjwt.WithClaims(req.Context(), &jwt.Claims{
		CredentialID: cred.ID,
		Email:        cred.Email,
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body refresh.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "OK", body.Status)

	claims, err := jwt.Parse(body.AccessToken, []byte(testSecret))
	require.NoError(t, err)
	require.Equal(t, cred.ID, claims.CredentialID)
}

func TestRefresh_MissingClaims(t *testing.T) {
	t.Parallel()

	handler, _ := newHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/refresh", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRefresh_UnknownCredentialIsInternal(t *testing.T) {
	t.Parallel()

	handler, _ := newHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	req = req.WithContext(authjwt.WithClaims(req.Context(), &jwt.Claims{
		CredentialID: "ghost",
		Email:        "ghost@example.com",
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "Internal error")
}
