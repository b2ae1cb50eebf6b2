// Package teams exposes the team CRUD endpoints. Update and Delete run
// the member cascade through the teams service.
package teams

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	resp "presence_service/internal/lib/api/response"
	sl "presence_service/internal/lib/logger"
	"presence_service/internal/models"
	teamssvc "presence_service/internal/teams"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Team       string `json:"team" validate:"required"`
	Priority   int    `json:"priority"`
	Color      string `json:"color"`
	Col1       string `json:"col1"`
	Col2       string `json:"col2"`
	Col3       string `json:"col3"`
	CheckInCol bool   `json:"checkInCol"`
	Hyperlink  string `json:"hyperlink"`
}

type Service interface {
	List(ctx context.Context) ([]models.Team, error)
	Create(ctx context.Context, f teamssvc.Fields) (models.Team, error)
	Update(ctx context.Context, teamID string, f teamssvc.Fields) (models.Team, int, error)
	Delete(ctx context.Context, teamID string) (teamssvc.DeleteReport, error)
}

// UpdateResponse carries the updated team plus the count of member
// records the rename cascade failed to touch.
type UpdateResponse struct {
	models.Team
	FailedPropagations int `json:"failedPropagations"`
}

func NewList(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.teams.NewList"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		teams, err := svc.List(r.Context())
		if err != nil {
			log.Error("failed to list teams", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, teams)
	}
}

func NewCreate(log *slog.Logger, validate *validator.Validate, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.teams.NewCreate"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		req, ok := decodeTeam(w, r, log, validate)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		team, err := svc.Create(ctx, fields(req))
		if err != nil {
			log.Error("failed to create team", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("Team created", slog.String("id", team.ID))

		render.JSON(w, r, team)
	}
}

func NewUpdate(log *slog.Logger, validate *validator.Validate, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.teams.NewUpdate"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		teamID := chi.URLParam(r, "teamId")

		req, ok := decodeTeam(w, r, log, validate)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()

		team, failed, err := svc.Update(ctx, teamID, fields(req))
		if err != nil {
			if errors.Is(err, teamssvc.ErrTeamNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Team not found."))

				return
			}

			log.Error("failed to update team", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("Team updated", slog.String("id", team.ID), slog.Int("failed_propagations", failed))

		render.JSON(w, r, UpdateResponse{
			Team:               team,
			FailedPropagations: failed,
		})
	}
}

func NewDelete(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.teams.NewDelete"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		teamID := chi.URLParam(r, "teamId")

		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()

		report, err := svc.Delete(ctx, teamID)
		if err != nil {
			if errors.Is(err, teamssvc.ErrTeamNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Team not found."))

				return
			}

			log.Error("failed to delete team", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("Team deleted", slog.String("id", report.ID))

		render.JSON(w, r, report)
	}
}

func decodeTeam(w http.ResponseWriter, r *http.Request, log *slog.Logger, validate *validator.Validate) (Request, bool) {
	var req Request

	err := render.DecodeJSON(r.Body, &req)
	if err != nil {
		log.Error("Failed to decode request body", sl.Err(err))

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("Failed to decode request"))

		return Request{}, false
	}

	if err := validate.Struct(req); err != nil {
		validateErr := err.(validator.ValidationErrors)

		log.Error("Invalid request", sl.Err(err))

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.ValidationError(validateErr))

		return Request{}, false
	}

	return req, true
}

func fields(req Request) teamssvc.Fields {
	return teamssvc.Fields{
		Team:       req.Team,
		Priority:   req.Priority,
		Color:      req.Color,
		Col1:       req.Col1,
		Col2:       req.Col2,
		Col3:       req.Col3,
		CheckInCol: req.CheckInCol,
		Hyperlink:  req.Hyperlink,
	}
}
