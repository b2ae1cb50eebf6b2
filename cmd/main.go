package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"presence_service/internal/auth"
	"presence_service/internal/config"
	"presence_service/internal/http_server/handlers/appname"
	"presence_service/internal/http_server/handlers/login"
	"presence_service/internal/http_server/handlers/mailbox"
	"presence_service/internal/http_server/handlers/refresh"
	register "presence_service/internal/http_server/handlers/register"
	teamhandlers "presence_service/internal/http_server/handlers/teams"
	userhandlers "presence_service/internal/http_server/handlers/users"
	"presence_service/internal/middleware/authjwt"
	rateLimit "presence_service/internal/middleware/ratelimit"
	"presence_service/internal/rabbitmq"
	"presence_service/internal/storage/postgres"
	redisrepo "presence_service/internal/storage/redis"
	"presence_service/internal/teams"
	"presence_service/internal/users"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad("./config/config.yaml")

	log := setupLogger(cfg.Env)

	log.Info("starting presence service", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect postgres", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	attempts, err := redisrepo.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Error("failed to connect redis", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer attempts.Close()

	events, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to connect rabbitmq", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer events.Close()

	authService := auth.New(log, storage, storage, attempts, cfg.Tokens.Secret, cfg.Tokens.AccessTokenTTL, cfg.Tokens.RefreshTokenTTL)
	teamService := teams.New(log, storage, storage, storage, events)
	userService := users.New(log, storage, storage, storage)

	router := setupRouter(log, cfg, authService, teamService, userService, storage, events)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", slog.String("err", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", slog.String("err", err.Error()))
	} else {
		log.Info("Server stopped gracefully")
	}

	log.Info("Main service stopped")
}

func setupRouter(
	log *slog.Logger,
	cfg *config.Config,
	authService *auth.Auth,
	teamService *teams.Teams,
	userService *users.Users,
	storage *postgres.PostgresRepo,
	events *rabbitmq.RabbitMQClient,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	validate := validator.New()

	r.With(rateLimit.Register()).Post("/register",
		register.New(log, validate, authService, events),
	)
	r.With(rateLimit.Login()).Post("/login",
		login.New(log, authService),
	)
	r.With(rateLimit.Refresh(), authjwt.Verify(log, cfg.Tokens.Secret)).Post("/refresh",
		refresh.New(log, authService),
	)

	// Everything below requires a verified access token. Mutations on
	// teams, users, and app metadata additionally require the admin or
	// editor flag loaded from the stored credential.
	r.Group(func(r chi.Router) {
		r.Use(authjwt.Verify(log, cfg.Tokens.Secret))

		r.Get("/app", appname.Get(log, storage))
		r.Get("/teams", teamhandlers.NewList(log, teamService))
		r.Get("/users", userhandlers.NewList(log, userService))
		r.Get("/mailboxes/{userId}", mailbox.NewGet(log, userService))

		r.Group(func(r chi.Router) {
			r.Use(authjwt.RequireAdmin(log, storage))

			r.Put("/app", appname.Set(log, validate, storage))
			r.Post("/teams", teamhandlers.NewCreate(log, validate, teamService))
			r.Put("/teams/{teamId}", teamhandlers.NewUpdate(log, validate, teamService))
			r.Delete("/teams/{teamId}", teamhandlers.NewDelete(log, teamService))
			r.Post("/users", userhandlers.NewCreate(log, validate, userService))
			r.Delete("/users/{userId}", userhandlers.NewDelete(log, userService))
		})

		r.Group(func(r chi.Router) {
			r.Use(authjwt.RequireEditor(log, storage))

			r.Put("/users/{userId}", userhandlers.NewUpdate(log, validate, userService))
			r.Post("/mailboxes/{userId}/messages", mailbox.NewSend(log, validate, userService))
		})
	})

	return r
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
