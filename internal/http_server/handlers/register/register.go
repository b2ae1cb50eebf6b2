package register

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"presence_service/internal/auth"
	resp "presence_service/internal/lib/api/response"
	sl "presence_service/internal/lib/logger"
	"presence_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Admin    bool   `json:"admin"`
	Email    string `json:"email" validate:"required,email"`
	Pass     string `json:"password" validate:"required"`
	ViewOnly bool   `json:"viewOnly"`
}

type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

// New returns the registration handler. Replies 201 with the created
// credential; the password hash never serializes.
func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService *auth.Auth,
	events Publisher,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.register.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		log.Info("Request body decoded")

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		cred, err := authService.Register(ctx, req.Admin, req.Email, req.Pass, req.ViewOnly)
		if err != nil {
			if errors.Is(err, auth.ErrEmailTaken) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, resp.Error("Email already taken"))

				return
			}

			log.Error("failed to register credential", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("Credential registered", slog.String("id", cred.ID))

		if err := events.Publish(ctx, models.Event{
			Kind:    "credential.registered",
			Subject: cred.ID,
			At:      time.Now(),
		}); err != nil {
			log.Warn("Failed to publish registration event", sl.Err(err))
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, cred)
	}
}
