// Package mailbox exposes read and append access to a user's mailbox.
package mailbox

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

type SendRequest struct {
	From string `json:"from" validate:"required"`
	Body string `json:"body" validate:"required"`
}

type Service interface {
	Mailbox(ctx context.Context, userID string) (models.Mailbox, error)
	SendMessage(ctx context.Context, userID string, msg models.MailMessage) (models.Mailbox, error)
}

func NewGet(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.mailbox.NewGet"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID := chi.URLParam(r, "userId")

		box, err := svc.Mailbox(r.Context(), userID)
		if err != nil {
			if errors.Is(err, userssvc.ErrMailboxNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Mailbox not found."))

				return
			}

			log.Error("failed to load mailbox", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, box)
	}
}

func NewSend(log *slog.Logger, validate *validator.Validate, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.mailbox.NewSend"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID := chi.URLParam(r, "userId")

		var req SendRequest

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

		box, err := svc.SendMessage(ctx, userID, models.MailMessage{
			From:   req.From,
			Body:   req.Body,
			SentAt: time.Now(),
		})
		if err != nil {
			if errors.Is(err, userssvc.ErrMailboxNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Mailbox not found."))

				return
			}

			log.Error("failed to send message", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("Message delivered", slog.String("user_id", userID))

		render.JSON(w, r, box)
	}
}
