package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"presence_service/internal/lib/jwt"
	sl "presence_service/internal/lib/logger"
	"presence_service/internal/models"
	"presence_service/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already taken")
	ErrTooManyAttempts    = errors.New("too many login attempts")
)

const (
	maxLoginFailures   = 10
	loginFailureWindow = 15 * time.Minute
)

type Auth struct {
	log          *slog.Logger
	credSaver    CredentialSaver
	credProvider CredentialProvider
	attempts     AttemptLimiter
	secret       []byte
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

type CredentialSaver interface {
	SaveCredential(ctx context.Context, email, passwordHash string, admin, viewOnly bool) (models.Credential, error)
	UpdateAccessToken(ctx context.Context, id, token string) error
}

type CredentialProvider interface {
	CredentialByEmail(ctx context.Context, email string) (models.Credential, error)
	CredentialByID(ctx context.Context, id string) (models.Credential, error)
}

// AttemptLimiter tracks failed logins per email. A limiter error never
// blocks a login, it only disables throttling for that request.
type AttemptLimiter interface {
	FailedLogins(ctx context.Context, email string) (int64, error)
	RegisterFailedLogin(ctx context.Context, email string, window time.Duration) (int64, error)
	ResetFailedLogins(ctx context.Context, email string) error
}

func New(
	log *slog.Logger,
	credSaver CredentialSaver,
	credProvider CredentialProvider,
	attempts AttemptLimiter,
	secret string,
	accessTTL, refreshTTL time.Duration,
) *Auth {
	return &Auth{
		log:          log,
		credSaver:    credSaver,
		credProvider: credProvider,
		attempts:     attempts,
		secret:       []byte(secret),
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
	}
}

// Register creates a credential and issues an access token that is
// stored on the record for bookkeeping. Emails are lower-cased so
// lookups are case-insensitive.
func (a *Auth) Register(
	ctx context.Context,
	admin bool,
	email, password string,
	viewOnly bool,
) (models.Credential, error) {
	const op = "auth.Register"

	log := a.log.With(slog.String("op", op))

	email = strings.ToLower(email)

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return models.Credential{}, fmt.Errorf("%s: %w", op, err)
	}

	cred, err := a.credSaver.SaveCredential(ctx, email, string(passHash), admin, viewOnly)
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			log.Warn("email already taken")
			return models.Credential{}, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		log.Error("failed to save credential", sl.Err(err))
		return models.Credential{}, fmt.Errorf("%s: %w", op, err)
	}

	token, err := jwt.Issue(cred.ID, cred.Email, a.secret, a.accessTTL)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return models.Credential{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.credSaver.UpdateAccessToken(ctx, cred.ID, token); err != nil {
		log.Error("failed to persist access token", sl.Err(err))
		return models.Credential{}, fmt.Errorf("%s: %w", op, err)
	}

	cred.Token = token

	log.Info("credential registered", slog.String("id", cred.ID))

	return cred, nil
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	Admin        bool
	ViewOnly     bool
}

// Login verifies the credential pair and returns a fresh access/refresh
// token pair. Unknown emails and wrong passwords are indistinguishable
// to the caller.
func (a *Auth) Login(ctx context.Context, email, password string) (LoginResult, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	email = strings.ToLower(email)

	if a.throttled(ctx, log, email) {
		return LoginResult{}, ErrTooManyAttempts
	}

	cred, err := a.credProvider.CredentialByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrCredentialNotFound) {
			log.Warn("credential not found")
			a.registerFailure(ctx, log, email)
			return LoginResult{}, ErrInvalidCredentials
		}

		log.Error("failed to get credential", sl.Err(err))
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		log.Info("invalid credentials", sl.Err(err))
		a.registerFailure(ctx, log, email)
		return LoginResult{}, ErrInvalidCredentials
	}

	accessToken, err := jwt.Issue(cred.ID, cred.Email, a.secret, a.accessTTL)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, err := jwt.Issue(cred.ID, cred.Email, a.secret, a.refreshTTL)
	if err != nil {
		log.Error("failed to generate refresh token", sl.Err(err))
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.credSaver.UpdateAccessToken(ctx, cred.ID, accessToken); err != nil {
		log.Error("failed to persist access token", sl.Err(err))
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.attempts.ResetFailedLogins(ctx, email); err != nil {
		log.Warn("failed to reset login attempts", sl.Err(err))
	}

	log.Info("logged in successfully", slog.String("id", cred.ID))

	return LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Admin:        cred.Admin,
		ViewOnly:     cred.ViewOnly,
	}, nil
}

// Refresh issues a new access token for claims already verified by the
// bearer middleware. A missing credential here is unexpected: a valid
// refresh token implies the credential existed.
func (a *Auth) Refresh(ctx context.Context, credentialID, email string) (string, error) {
	const op = "auth.Refresh"

	log := a.log.With(slog.String("op", op))

	cred, err := a.credProvider.CredentialByID(ctx, credentialID)
	if err != nil {
		log.Error("failed to load credential for valid refresh token", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	accessToken, err := jwt.Issue(cred.ID, email, a.secret, a.accessTTL)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := a.credSaver.UpdateAccessToken(ctx, cred.ID, accessToken); err != nil {
		log.Error("failed to persist access token", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("access token refreshed", slog.String("id", cred.ID))

	return accessToken, nil
}

func (a *Auth) throttled(ctx context.Context, log *slog.Logger, email string) bool {
	count, err := a.attempts.FailedLogins(ctx, email)
	if err != nil {
		log.Warn("attempt limiter unavailable", sl.Err(err))
		return false
	}

	if count >= maxLoginFailures {
		log.Warn("login throttled", slog.Int64("failures", count))
		return true
	}

	return false
}

func (a *Auth) registerFailure(ctx context.Context, log *slog.Logger, email string) {
	if _, err := a.attempts.RegisterFailedLogin(ctx, email, loginFailureWindow); err != nil {
		log.Warn("failed to register login failure", sl.Err(err))
	}
}
