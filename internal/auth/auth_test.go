package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"presence_service/internal/lib/jwt"
	"presence_service/internal/models"
	"presence_service/internal/storage"

	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type fakeCredStore struct {
	byEmail map[string]*models.Credential
	nextID  int
}

func newFakeCredStore() *fakeCredStore {
	return &fakeCredStore{byEmail: map[string]*models.Credential{}}
}

func (s *fakeCredStore) SaveCredential(_ context.Context, email, passwordHash string, admin, viewOnly bool) (models.Credential, error) {
	if _, ok := s.byEmail[email]; ok {
		return models.Credential{}, storage.ErrEmailTaken
	}

	s.nextID++
	cred := &models.Credential{
		ID:           fmt.Sprintf("cred-%d", s.nextID),
		Email:        email,
		PasswordHash: passwordHash,
		Admin:        admin,
		ViewOnly:     viewOnly,
	}
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

type fakeLimiter struct {
	counts  map[string]int64
	readErr error
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: map[string]int64{}}
}

func (l *fakeLimiter) FailedLogins(_ context.Context, email string) (int64, error) {
	if l.readErr != nil {
		return 0, l.readErr
	}
	return l.counts[email], nil
}

func (l *fakeLimiter) RegisterFailedLogin(_ context.Context, email string, _ time.Duration) (int64, error) {
	l.counts[email]++
	return l.counts[email], nil
}

func (l *fakeLimiter) ResetFailedLogins(_ context.Context, email string) error {
	delete(l.counts, email)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuth(store *fakeCredStore, limiter *fakeLimiter) *Auth {
	return New(discardLogger(), store, store, limiter, testSecret, time.Hour, 720*time.Hour)
}

func TestRegisterThenLogin(t *testing.T) {
	t.Parallel()

	store := newFakeCredStore()
	a := newTestAuth(store, newFakeLimiter())

	cred, err := a.Register(context.Background(), true, "User@Example.com", "hunter2", false)
	require.NoError(t, err)
	require.Equal(t, "user@example.com", cred.Email)
	require.True(t, cred.Admin)
	require.NotEmpty(t, cred.Token)
	require.NotEqual(t, "hunter2", cred.PasswordHash)

	// The registration token is a verifiable access token.
	claims, err := jwt.Parse(cred.Token, []byte(testSecret))
	require.NoError(t, err)
	require.Equal(t, cred.ID, claims.CredentialID)

	// Email lookup is case-insensitive.
	result, err := a.Login(context.Background(), "uSeR@eXaMpLe.CoM", "hunter2")
	require.NoError(t, err)
	require.True(t, result.Admin)
	require.False(t, result.ViewOnly)

	accessClaims, err := jwt.Parse(result.AccessToken, []byte(testSecret))
	require.NoError(t, err)
	require.Equal(t, cred.ID, accessClaims.CredentialID)

	refreshClaims, err := jwt.Parse(result.RefreshToken, []byte(testSecret))
	require.NoError(t, err)
	require.Equal(t, cred.ID, refreshClaims.CredentialID)

	// The last-issued access token is persisted on the record.
	stored, err := store.CredentialByID(context.Background(), cred.ID)
	require.NoError(t, err)
	require.Equal(t, result.AccessToken, stored.Token)
}

func TestLogin_WrongPasswordAndUnknownEmailLookTheSame(t *testing.T) {
	t.Parallel()

	store := newFakeCredStore()
	a := newTestAuth(store, newFakeLimiter())

	_, err := a.Register(context.Background(), false, "someone@example.com", "right-password", false)
	require.NoError(t, err)

	_, wrongPassErr := a.Login(context.Background(), "someone@example.com", "wrong-password")
	require.ErrorIs(t, wrongPassErr, ErrInvalidCredentials)

	_, unknownErr := a.Login(context.Background(), "nobody@example.com", "whatever")
	require.ErrorIs(t, unknownErr, ErrInvalidCredentials)
}

func TestRegister_DuplicateEmailCaseInsensitive(t *testing.T) {
	t.Parallel()

	store := newFakeCredStore()
	a := newTestAuth(store, newFakeLimiter())

	_, err := a.Register(context.Background(), false, "Dup@Example.com", "pw", false)
	require.NoError(t, err)

	_, err = a.Register(context.Background(), false, "dup@example.com", "pw", false)
	require.ErrorIs(t, err, ErrEmailTaken)
	require.Len(t, store.byEmail, 1)
}

func TestRegister_PasswordHashNeverSerializes(t *testing.T) {
	t.Parallel()

	store := newFakeCredStore()
	a := newTestAuth(store, newFakeLimiter())

	cred, err := a.Register(context.Background(), false, "safe@example.com", "pw", false)
	require.NoError(t, err)
	require.NotEmpty(t, cred.PasswordHash)

	body, err := json.Marshal(cred)
	require.NoError(t, err)
	require.NotContains(t, string(body), cred.PasswordHash)
	require.NotContains(t, string(body), "PasswordHash")
}

func TestRefresh_ResolvesSameSubjectEveryTime(t *testing.T) {
	t.Parallel()

	store := newFakeCredStore()
	a := newTestAuth(store, newFakeLimiter())

	cred, err := a.Register(context.Background(), false, "stable@example.com", "pw", false)
	require.NoError(t, err)

	result, err := a.Login(context.Background(), "stable@example.com", "pw")
	require.NoError(t, err)

	refreshClaims, err := jwt.Parse(result.RefreshToken, []byte(testSecret))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		access, err := a.Refresh(context.Background(), refreshClaims.CredentialID, refreshClaims.Email)
		require.NoError(t, err)

		claims, err := jwt.Parse(access, []byte(testSecret))
		require.NoError(t, err)
		require.Equal(t, cred.ID, claims.CredentialID)
	}

	// The refresh token itself still verifies; refreshing never touches it.
	_, err = jwt.Parse(result.RefreshToken, []byte(testSecret))
	require.NoError(t, err)
}

func TestRefresh_MissingCredentialIsInternal(t *testing.T) {
	t.Parallel()

	a := newTestAuth(newFakeCredStore(), newFakeLimiter())

	_, err := a.Refresh(context.Background(), "ghost", "ghost@example.com")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_Throttled(t *testing.T) {
	t.Parallel()

	store := newFakeCredStore()
	limiter := newFakeLimiter()
	a := newTestAuth(store, limiter)

	_, err := a.Register(context.Background(), false, "victim@example.com", "pw", false)
	require.NoError(t, err)

	limiter.counts["victim@example.com"] = maxLoginFailures

	_, err = a.Login(context.Background(), "victim@example.com", "pw")
	require.ErrorIs(t, err, ErrTooManyAttempts)
}

func TestLogin_FailuresCountedAndResetOnSuccess(t *testing.T) {
	t.Parallel()

	store := newFakeCredStore()
	limiter := newFakeLimiter()
	a := newTestAuth(store, limiter)

	_, err := a.Register(context.Background(), false, "count@example.com", "pw", false)
	require.NoError(t, err)

	_, err = a.Login(context.Background(), "count@example.com", "nope")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.EqualValues(t, 1, limiter.counts["count@example.com"])

	_, err = a.Login(context.Background(), "count@example.com", "pw")
	require.NoError(t, err)
	require.EqualValues(t, 0, limiter.counts["count@example.com"])
}

func TestLogin_LimiterOutageDoesNotBlock(t *testing.T) {
	t.Parallel()

	store := newFakeCredStore()
	limiter := newFakeLimiter()
	limiter.readErr = errors.New("redis down")
	a := newTestAuth(store, limiter)

	_, err := a.Register(context.Background(), false, "degraded@example.com", "pw", false)
	require.NoError(t, err)

	_, err = a.Login(context.Background(), "degraded@example.com", "pw")
	require.NoError(t, err)
}
