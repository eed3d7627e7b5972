// Package server - HTTP-сервер Users API с graceful shutdown.
// Без TLS: он терминируется перед сервисом.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/Drim-Soft/planifika-users-api/internal/api/handlers"
	"github.com/Drim-Soft/planifika-users-api/internal/api/middleware"
	"github.com/Drim-Soft/planifika-users-api/internal/api/openapi"
	"github.com/Drim-Soft/planifika-users-api/internal/config"
)

// Server - HTTP-сервер Users API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт сервер с маршрутами и middleware.
// validator может быть nil - тогда валидация по OpenAPI отключена.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	handler *handlers.APIHandler,
	jwtAuth *middleware.JWTAuth,
	validator *middleware.RequestValidator,
) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(cfg, logger, handler, jwtAuth, validator),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi router.
//
// Health, метрики, OpenAPI-документ, auth endpoints и чтение тикетов
// публичны. /auth/me проверяется самим identity provider. Остальные
// маршруты требуют валидный JWT, /admin - ещё и одну из cfg.AdminRoles.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	h *handlers.APIHandler,
	jwtAuth *middleware.JWTAuth,
	validator *middleware.RequestValidator,
) http.Handler {
	router := chi.NewRouter()

	router.Use(corsHandler(cfg.CORSAllowedOrigins))
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Пробы без валидации и аутентификации.
	router.Get("/health/live", h.HealthLive)
	router.Get("/health/ready", h.HealthReady)
	router.Get("/metrics", h.GetMetrics)
	router.Get("/openapi.yaml", serveOpenAPI)

	validate := func(r chi.Router) {
		if validator != nil {
			r.Use(validator.Middleware())
		}
	}

	router.Group(func(r chi.Router) {
		validate(r)

		r.Post("/auth/signup", h.SignUp)
		r.Post("/auth/login", h.SignIn)
		r.Post("/auth/external-login", h.ExternalLogin)
		r.Get("/auth/me", h.GetProfile)
		r.Patch("/auth/me", h.UpdateProfile)

		r.Get("/tickets", h.ListTickets)
		r.Get("/tickets/statuses", h.ListTicketStatuses)
		r.Get("/tickets/{id}", h.GetTicket)
		r.Get("/tickets/user/{userId}", h.ListTicketsByUser)
		r.Get("/tickets/status/{statusId}", h.ListTicketsByStatus)
	})

	// Аутентификация до валидации: анонимный запрос получает 401,
	// а не ошибку схемы.
	router.Group(func(r chi.Router) {
		r.Use(jwtAuth.Middleware())
		validate(r)

		r.Post("/tickets", h.CreateTicket)
		r.Put("/tickets/{id}", h.UpdateTicket)
		r.Delete("/tickets/{id}", h.DeleteTicket)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
			r.Put("/{id}", h.ReplaceUser)
			r.Patch("/{id}", h.PatchUser)
			r.Delete("/{id}", h.DeleteUser)
			r.Patch("/{id}/status/{status}", h.UpdateUserStatus)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(cfg.AdminRoles...))
			r.Get("/users", h.AdminListUsers)
			r.Get("/staff", h.AdminListStaff)
		})
	})

	return router
}

// corsHandler разрешает настроенные origins. Credentials разрешены
// только для явного списка origins.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	allowCredentials := true
	for _, o := range origins {
		if o == "*" {
			allowCredentials = false
		}
	}

	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: allowCredentials,
		MaxAge:           300,
	}).Handler
}

func serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openapi.Document)
}

// Run запускает сервер и ждёт SIGINT/SIGTERM, затем выполняет
// graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
