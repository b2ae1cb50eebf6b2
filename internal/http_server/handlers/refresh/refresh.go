package refresh

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"presence_service/internal/auth"
	resp "presence_service/internal/lib/api/response"
	sl "presence_service/internal/lib/logger"
	"presence_service/internal/middleware/authjwt"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	AccessToken string `json:"accessToken"`
}

// New returns the refresh handler. The refresh token itself was already
// verified by the bearer middleware; only its claims are used here. The
// refresh token is not rotated.
func New(
	log *slog.Logger,
	authService *auth.Auth,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.refresh.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		claims, ok := authjwt.Claims(r.Context())
		if !ok {
			log.Error("no verified claims in request context")

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		accessToken, err := authService.Refresh(ctx, claims.CredentialID, claims.Email)
		if err != nil {
			log.Error("failed to refresh access token", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("Access token refreshed")

		render.JSON(w, r, Response{
			Response:    resp.OK(),
			AccessToken: accessToken,
		})
	}
}
