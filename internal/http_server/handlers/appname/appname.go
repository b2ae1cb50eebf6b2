// Package appname serves the application-name singleton shown on the
// board's top bar.
package appname

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	resp "presence_service/internal/lib/api/response"
	sl "presence_service/internal/lib/logger"
	"presence_service/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Store interface {
	AppName(ctx context.Context) (string, error)
	SetAppName(ctx context.Context, name string) error
}

type Request struct {
	AppName string `json:"appName" validate:"required"`
}

type Response struct {
	AppName string `json:"appName"`
}

func Get(log *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appname.Get"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		name, err := store.AppName(r.Context())
		if err != nil {
			if errors.Is(err, storage.ErrAppNameNotSet) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("App name not found."))

				return
			}

			log.Error("failed to load app name", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, Response{AppName: name})
	}
}

func Set(log *slog.Logger, validate *validator.Validate, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appname.Set"

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

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := store.SetAppName(ctx, req.AppName); err != nil {
			log.Error("failed to set app name", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("App name updated")

		render.JSON(w, r, Response{AppName: req.AppName})
	}
}
