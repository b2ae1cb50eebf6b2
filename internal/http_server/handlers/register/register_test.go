package register_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"presence_service/internal/auth"
	"presence_service/internal/http_server/handlers/register"
	"presence_service/internal/models"
	"presence_service/internal/storage"

	"github.com/go-playground/validator/v10"
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

type fakePublisher struct {
	events []models.Event
}

func (p *fakePublisher) Publish(_ context.Context, ev models.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func newHandler(t *testing.T) (http.HandlerFunc, *fakePublisher) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &fakeCredStore{byEmail: map[string]*models.Credential{}}
	a := auth.New(log, store, store, noopLimiter{}, testSecret, time.Hour, 720*time.Hour)
	pub := &fakePublisher{}

	return register.New(log, validator.New(), a, pub), pub
}

func TestRegister_Created(t *testing.T) {
	t.Parallel()

	handler, pub := newHandler(t)

	body := `{"admin": false, "email": "new@example.com", "password": "hunter2", "viewOnly": true}`
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "new@example.com", got["email"])
	require.Equal(t, true, got["viewOnly"])
	require.NotEmpty(t, got["token"])

	// The password hash must never reach the wire.
	require.NotContains(t, rec.Body.String(), "hash")
	require.NotContains(t, rec.Body.String(), "password")

	require.Len(t, pub.events, 1)
	require.Equal(t, "credential.registered", pub.events[0].Kind)
	require.Equal(t, got["_id"], pub.events[0].Subject)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	t.Parallel()

	handler, _ := newHandler(t)

	body := `{"email": "dup@example.com", "password": "pw"}`

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body)))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "Email already taken")
}

func TestRegister_InvalidBody(t *testing.T) {
	t.Parallel()

	handler, pub := newHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"email": `},
		{"missing password", `{"email": "a@example.com"}`},
		{"bad email", `{"email": "not-an-email", "password": "pw"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(tc.body)))
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	require.Empty(t, pub.events)
}
