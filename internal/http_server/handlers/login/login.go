package login

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"presence_service/internal/auth"
	resp "presence_service/internal/lib/api/response"
	sl "presence_service/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Admin        bool   `json:"admin"`
	ViewOnly     bool   `json:"viewOnly"`
}

// New returns the login handler. Credentials arrive as HTTP basic auth;
// a missing or unparseable header is a 400, wrong credentials a 403.
func New(
	log *slog.Logger,
	authService *auth.Auth,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		email, pass, ok := r.BasicAuth()
		if !ok {
			log.Warn("basic auth header missing or malformed")

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Basic auth form not provided."))

			return
		}

		if email == "" || pass == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Email and password must not be empty."))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		result, err := authService.Login(ctx, email, pass)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, resp.Error("Wrong credentials, please try again."))

				return
			}
			if errors.Is(err, auth.ErrTooManyAttempts) {
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, resp.Error("Too many login attempts, please try again later."))

				return
			}

			log.Error("failed to login", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("Logged in successfully")

		render.JSON(w, r, Response{
			Response:     resp.OK(),
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
			Admin:        result.Admin,
			ViewOnly:     result.ViewOnly,
		})
	}
}
