// Package users exposes the user CRUD endpoints for the presence board.
package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	resp "presence_service/internal/lib/api/response"
	sl "presence_service/internal/lib/logger"
	"presence_service/internal/models"
	userssvc "presence_service/internal/users"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type CreateRequest struct {
	Name       string `json:"name" validate:"required"`
	TeamID     string `json:"teamId" validate:"required"`
	Phone      string `json:"phone"`
	Email      string `json:"email" validate:"omitempty,email"`
	Memo       string `json:"memo"`
	Priority   int    `json:"priority"`
	Status     string `json:"status"`
	StatusText string `json:"statusText"`
}

type UpdateRequest struct {
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone"`
	Email      string `json:"email" validate:"omitempty,email"`
	Memo       string `json:"memo"`
	Priority   int    `json:"priority"`
	Status     string `json:"status"`
	StatusText string `json:"statusText"`
}

type Service interface {
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, f userssvc.Fields) (models.User, error)
	Update(ctx context.Context, userID string, f userssvc.Fields) (models.User, error)
	Delete(ctx context.Context, userID string) (userssvc.DeleteReport, error)
}

func NewList(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.users.NewList"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		users, err := svc.List(r.Context())
		if err != nil {
			log.Error("failed to list users", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, users)
	}
}

func NewCreate(log *slog.Logger, validate *validator.Validate, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.users.NewCreate"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req CreateRequest

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		user, err := svc.Create(ctx, userssvc.Fields{
			Name:       req.Name,
			TeamID:     req.TeamID,
			Phone:      req.Phone,
			Email:      req.Email,
			Memo:       req.Memo,
			Priority:   req.Priority,
			Status:     req.Status,
			StatusText: req.StatusText,
		})
		if err != nil {
			if errors.Is(err, userssvc.ErrTeamNotFound) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Team not found."))

				return
			}

			log.Error("failed to create user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("User created", slog.String("id", user.ID))

		render.JSON(w, r, user)
	}
}

func NewUpdate(log *slog.Logger, validate *validator.Validate, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.users.NewUpdate"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID := chi.URLParam(r, "userId")

		var req UpdateRequest

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		user, err := svc.Update(ctx, userID, userssvc.Fields{
			Name:       req.Name,
			Phone:      req.Phone,
			Email:      req.Email,
			Memo:       req.Memo,
			Priority:   req.Priority,
			Status:     req.Status,
			StatusText: req.StatusText,
		})
		if err != nil {
			if errors.Is(err, userssvc.ErrUserNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("User not found."))

				return
			}

			log.Error("failed to update user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("User updated", slog.String("id", user.ID))

		render.JSON(w, r, user)
	}
}

func NewDelete(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.users.NewDelete"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID := chi.URLParam(r, "userId")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		report, err := svc.Delete(ctx, userID)
		if err != nil {
			if errors.Is(err, userssvc.ErrUserNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("User not found."))

				return
			}

			log.Error("failed to delete user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("User deleted", slog.String("id", report.ID))

		render.JSON(w, r, report)
	}
}
