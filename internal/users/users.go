// Package users owns the user collection and each user's mailbox. A
// mailbox is created with its user and deleted right after it, so it
// never outlives the user.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sl "presence_service/internal/lib/logger"
	"presence_service/internal/models"
	"presence_service/internal/storage"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrTeamNotFound    = errors.New("team not found")
	ErrMailboxNotFound = errors.New("mailbox not found")
)

type UserStore interface {
	Users(ctx context.Context) ([]models.User, error)
	UserByID(ctx context.Context, id string) (models.User, error)
	SaveUser(ctx context.Context, u models.User) (models.User, error)
	UpdateUser(ctx context.Context, u models.User) error
	DeleteUser(ctx context.Context, id string) error
}

type TeamProvider interface {
	TeamByID(ctx context.Context, id string) (models.Team, error)
}

type MailboxStore interface {
	SaveMailbox(ctx context.Context, userID string) error
	MailboxByUser(ctx context.Context, userID string) (models.Mailbox, error)
	AppendMessage(ctx context.Context, userID string, msg models.MailMessage) error
	DeleteMailbox(ctx context.Context, userID string) error
}

type Users struct {
	log       *slog.Logger
	users     UserStore
	teams     TeamProvider
	mailboxes MailboxStore
}

func New(log *slog.Logger, userStore UserStore, teams TeamProvider, mailboxes MailboxStore) *Users {
	return &Users{
		log:       log,
		users:     userStore,
		teams:     teams,
		mailboxes: mailboxes,
	}
}

// Fields carries the client-settable user attributes. The team label is
// derived from TeamID at creation and maintained by the rename cascade,
// never set directly.
type Fields struct {
	Name       string
	TeamID     string
	Phone      string
	Email      string
	Memo       string
	Priority   int
	Status     string
	StatusText string
}

func (s *Users) List(ctx context.Context) ([]models.User, error) {
	const op = "users.List"

	users, err := s.users.Users(ctx)
	if err != nil {
		s.log.Error("failed to list users", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

// Create stores the user and its empty mailbox. The referenced team
// must exist; the team label is copied from it.
func (s *Users) Create(ctx context.Context, f Fields) (models.User, error) {
	const op = "users.Create"

	log := s.log.With(slog.String("op", op))

	team, err := s.teams.TeamByID(ctx, f.TeamID)
	if err != nil {
		if errors.Is(err, storage.ErrTeamNotFound) {
			return models.User{}, ErrTeamNotFound
		}

		log.Error("failed to load team", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.users.SaveUser(ctx, models.User{
		Name:       f.Name,
		TeamID:     team.ID,
		Team:       team.Team,
		Phone:      f.Phone,
		Email:      f.Email,
		Memo:       f.Memo,
		Priority:   f.Priority,
		Status:     f.Status,
		StatusText: f.StatusText,
	})
	if err != nil {
		log.Error("failed to save user", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.mailboxes.SaveMailbox(ctx, user.ID); err != nil {
		log.Error("failed to create mailbox", slog.String("user_id", user.ID), sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user created", slog.String("id", user.ID))

	return user, nil
}

// Update applies presence and contact fields. Team membership is not
// changed here; that belongs to the team endpoints.
func (s *Users) Update(ctx context.Context, userID string, f Fields) (models.User, error) {
	const op = "users.Update"

	log := s.log.With(slog.String("op", op), slog.String("user_id", userID))

	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, ErrUserNotFound
		}

		log.Error("failed to load user", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user.Name = f.Name
	user.Phone = f.Phone
	user.Email = f.Email
	user.Memo = f.Memo
	user.Priority = f.Priority
	user.Status = f.Status
	user.StatusText = f.StatusText

	if err := s.users.UpdateUser(ctx, user); err != nil {
		log.Error("failed to update user", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// DeleteReport mirrors the wire shape of a successful user deletion.
type DeleteReport struct {
	Message string `json:"message"`
	ID      string `json:"_id"`
}

// Delete removes the user and then its mailbox. A mailbox deletion
// failure is logged and tolerated; the user is already gone.
func (s *Users) Delete(ctx context.Context, userID string) (DeleteReport, error) {
	const op = "users.Delete"

	log := s.log.With(slog.String("op", op), slog.String("user_id", userID))

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return DeleteReport{}, ErrUserNotFound
		}

		log.Error("failed to delete user", sl.Err(err))
		return DeleteReport{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.mailboxes.DeleteMailbox(ctx, userID); err != nil {
		log.Warn("failed to delete mailbox", sl.Err(err))
	}

	return DeleteReport{
		Message: fmt.Sprintf("User %s deleted successfully.", userID),
		ID:      userID,
	}, nil
}

func (s *Users) Mailbox(ctx context.Context, userID string) (models.Mailbox, error) {
	const op = "users.Mailbox"

	box, err := s.mailboxes.MailboxByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrMailboxNotFound) {
			return models.Mailbox{}, ErrMailboxNotFound
		}

		s.log.Error("failed to load mailbox", slog.String("op", op), sl.Err(err))
		return models.Mailbox{}, fmt.Errorf("%s: %w", op, err)
	}

	return box, nil
}

// SendMessage appends a message to the user's mailbox and returns the
// updated mailbox.
func (s *Users) SendMessage(ctx context.Context, userID string, msg models.MailMessage) (models.Mailbox, error) {
	const op = "users.SendMessage"

	log := s.log.With(slog.String("op", op), slog.String("user_id", userID))

	if err := s.mailboxes.AppendMessage(ctx, userID, msg); err != nil {
		if errors.Is(err, storage.ErrMailboxNotFound) {
			return models.Mailbox{}, ErrMailboxNotFound
		}

		log.Error("failed to append message", sl.Err(err))
		return models.Mailbox{}, fmt.Errorf("%s: %w", op, err)
	}

	box, err := s.mailboxes.MailboxByUser(ctx, userID)
	if err != nil {
		log.Error("failed to load mailbox", sl.Err(err))
		return models.Mailbox{}, fmt.Errorf("%s: %w", op, err)
	}

	return box, nil
}
