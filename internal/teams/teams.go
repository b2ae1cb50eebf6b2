// Package teams owns the team collection and the referential cascade:
// renaming a team propagates the new name to every member's record,
// deleting a team removes its members and their mailboxes. Both
// cascades are best-effort, one store call per record, no rollback.
package teams

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sl "presence_service/internal/lib/logger"
	"presence_service/internal/models"
	"presence_service/internal/storage"
)

var ErrTeamNotFound = errors.New("team not found")

type TeamStore interface {
	Teams(ctx context.Context) ([]models.Team, error)
	TeamByID(ctx context.Context, id string) (models.Team, error)
	SaveTeam(ctx context.Context, t models.Team) (models.Team, error)
	UpdateTeam(ctx context.Context, t models.Team) error
	DeleteTeam(ctx context.Context, id string) error
}

type MemberStore interface {
	UsersByTeam(ctx context.Context, teamID string) ([]models.User, error)
	SetUserTeamName(ctx context.Context, userID, team string) error
	DeleteUser(ctx context.Context, id string) error
}

type MailboxRemover interface {
	DeleteMailbox(ctx context.Context, userID string) error
}

type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

type Teams struct {
	log       *slog.Logger
	teams     TeamStore
	members   MemberStore
	mailboxes MailboxRemover
	events    Publisher
}

func New(
	log *slog.Logger,
	teamStore TeamStore,
	members MemberStore,
	mailboxes MailboxRemover,
	events Publisher,
) *Teams {
	return &Teams{
		log:       log,
		teams:     teamStore,
		members:   members,
		mailboxes: mailboxes,
		events:    events,
	}
}

// Fields carries the client-settable team attributes.
type Fields struct {
	Team       string
	Priority   int
	Color      string
	Col1       string
	Col2       string
	Col3       string
	CheckInCol bool
	Hyperlink  string
}

func (t *Teams) List(ctx context.Context) ([]models.Team, error) {
	const op = "teams.List"

	teams, err := t.teams.Teams(ctx)
	if err != nil {
		t.log.Error("failed to list teams", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return teams, nil
}

func (t *Teams) Create(ctx context.Context, f Fields) (models.Team, error) {
	const op = "teams.Create"

	team, err := t.teams.SaveTeam(ctx, models.Team{
		Team:       f.Team,
		Priority:   f.Priority,
		Color:      f.Color,
		Col1:       f.Col1,
		Col2:       f.Col2,
		Col3:       f.Col3,
		CheckInCol: f.CheckInCol,
		Hyperlink:  f.Hyperlink,
	})
	if err != nil {
		t.log.Error("failed to create team", slog.String("op", op), sl.Err(err))
		return models.Team{}, fmt.Errorf("%s: %w", op, err)
	}

	return team, nil
}

// Update applies the new field values to the team. When the name
// changes, the new name is first written to every member's denormalized
// team label, each save independent of the others. A failed member save
// is counted and logged but never blocks the team update. Returns the
// updated team and the number of failed propagations.
func (t *Teams) Update(ctx context.Context, teamID string, f Fields) (models.Team, int, error) {
	const op = "teams.Update"

	log := t.log.With(slog.String("op", op), slog.String("team_id", teamID))

	team, err := t.teams.TeamByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, storage.ErrTeamNotFound) {
			return models.Team{}, 0, ErrTeamNotFound
		}

		log.Error("failed to load team", sl.Err(err))
		return models.Team{}, 0, fmt.Errorf("%s: %w", op, err)
	}

	members := 0
	failed := 0
	oldName := team.Team

	if f.Team != team.Team {
		users, err := t.members.UsersByTeam(ctx, teamID)
		if err != nil {
			log.Error("failed to load team members", sl.Err(err))
			return models.Team{}, 0, fmt.Errorf("%s: %w", op, err)
		}

		members = len(users)

		for _, u := range users {
			if err := t.members.SetUserTeamName(ctx, u.ID, f.Team); err != nil {
				failed++
				log.Warn("failed to propagate team name",
					slog.String("user_id", u.ID), sl.Err(err))
			}
		}
	}

	team.Team = f.Team
	team.Priority = f.Priority
	team.Color = f.Color
	team.Col1 = f.Col1
	team.Col2 = f.Col2
	team.Col3 = f.Col3
	team.CheckInCol = f.CheckInCol
	team.Hyperlink = f.Hyperlink

	if err := t.teams.UpdateTeam(ctx, team); err != nil {
		log.Error("failed to update team", sl.Err(err))
		return models.Team{}, failed, fmt.Errorf("%s: %w", op, err)
	}

	if oldName != team.Team {
		t.publish(ctx, log, models.Event{
			Kind:     "team.renamed",
			Subject:  team.ID,
			OldName:  oldName,
			NewName:  team.Team,
			Affected: members,
			Failures: failed,
			At:       time.Now(),
		})
	}

	return team, failed, nil
}

// DeleteReport mirrors the wire shape of a successful team deletion.
type DeleteReport struct {
	Message string `json:"message"`
	ID      string `json:"_id"`
}

// Delete removes the team record first, then every member and, after
// each member, that member's mailbox. The ordering means a crash
// mid-cascade can leave users referencing a deleted team; the store
// carries no foreign key for exactly that reason.
func (t *Teams) Delete(ctx context.Context, teamID string) (DeleteReport, error) {
	const op = "teams.Delete"

	log := t.log.With(slog.String("op", op), slog.String("team_id", teamID))

	if err := t.teams.DeleteTeam(ctx, teamID); err != nil {
		if errors.Is(err, storage.ErrTeamNotFound) {
			return DeleteReport{}, ErrTeamNotFound
		}

		log.Error("failed to delete team", sl.Err(err))
		return DeleteReport{}, fmt.Errorf("%s: %w", op, err)
	}

	users, err := t.members.UsersByTeam(ctx, teamID)
	if err != nil {
		log.Error("failed to load team members", sl.Err(err))
		return DeleteReport{}, fmt.Errorf("%s: %w", op, err)
	}

	failed := 0
	for _, u := range users {
		if err := t.members.DeleteUser(ctx, u.ID); err != nil {
			failed++
			log.Warn("failed to delete user", slog.String("user_id", u.ID), sl.Err(err))
			continue
		}

		// The mailbox goes only after its user is gone.
		if err := t.mailboxes.DeleteMailbox(ctx, u.ID); err != nil {
			failed++
			log.Warn("failed to delete mailbox", slog.String("user_id", u.ID), sl.Err(err))
		}
	}

	t.publish(ctx, log, models.Event{
		Kind:     "team.deleted",
		Subject:  teamID,
		Affected: len(users),
		Failures: failed,
		At:       time.Now(),
	})

	return DeleteReport{
		Message: fmt.Sprintf("Team %s deleted successfully.", teamID),
		ID:      teamID,
	}, nil
}

func (t *Teams) publish(ctx context.Context, log *slog.Logger, ev models.Event) {
	if err := t.events.Publish(ctx, ev); err != nil {
		log.Warn("failed to publish event", slog.String("kind", ev.Kind), sl.Err(err))
	}
}
