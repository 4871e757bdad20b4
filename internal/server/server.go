// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer: it connects handlers, middleware, and
// routes, and owns the resources (database, media storage) they share.
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go: config.Load → server.New
//	server.New: sqlite.DB → UserService / RecipeService / AttributeService
//	                      → UserHandler / RecipeHandler / AttributeHandler
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/recipe-api/internal/auth"
	"github.com/sakif/recipe-api/internal/config"
	"github.com/sakif/recipe-api/internal/handler"
	"github.com/sakif/recipe-api/internal/middleware"
	sqliteRepo "github.com/sakif/recipe-api/internal/repository/sqlite"
	"github.com/sakif/recipe-api/internal/service"
	"github.com/sakif/recipe-api/internal/storage"
)

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection. Start closes it on shutdown;
// callers that never call Start (tests) must call Close.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	images storage.Storage
	media  *storage.Local // nil unless STORAGE_BACKEND=local
}

// New opens the database, builds the image storage backend and wires
// every route.
//
// IMPORT ALIAS:
// repository/sqlite is imported as sqliteRepo so it does not read like the
// driver package.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.DBPath != sqliteRepo.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqliteRepo.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupStorage(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up storage: %w", err)
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupStorage picks the image backend named by STORAGE_BACKEND.
func (s *Server) setupStorage(ctx context.Context) error {
	switch s.config.StorageBackend {
	case config.StorageS3:
		images, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:    s.config.S3Bucket,
			Region:    s.config.S3Region,
			Endpoint:  s.config.S3Endpoint,
			AccessKey: s.config.S3AccessKey,
			SecretKey: s.config.S3SecretKey,
			PublicURL: s.config.S3PublicURL,
		})
		if err != nil {
			return err
		}
		s.images = images
		s.logger.Info("image storage: s3", slog.String("bucket", s.config.S3Bucket))
	default:
		local, err := storage.NewLocal(s.config.MediaRoot, s.config.MediaURL)
		if err != nil {
			return err
		}
		s.images = local
		s.media = local
		s.logger.Info("image storage: local", slog.String("root", s.config.MediaRoot))
	}
	return nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz
//	GET    /media/*                             (local storage only)
//	POST   /api/user/create
//	POST   /api/user/token
//	POST   /api/user/logout
//	GET    /api/user/github/login               (GitHub configured only)
//	GET    /api/user/github/callback            (GitHub configured only)
//	GET    /api/user/me                         [auth]
//	PUT    /api/user/me, PATCH /api/user/me     [auth]
//	GET    /api/recipe/recipes                  [auth] ?tags=1,2&ingredients=3
//	POST   /api/recipe/recipes                  [auth]
//	GET    /api/recipe/recipes/{id}             [auth]
//	PUT    /api/recipe/recipes/{id}             [auth]
//	PATCH  /api/recipe/recipes/{id}             [auth]
//	DELETE /api/recipe/recipes/{id}             [auth]
//	POST   /api/recipe/recipes/{id}/upload-image [auth]
//	GET    /api/recipe/{tags,ingredients}       [auth] ?assigned_only=1
//	PUT    /api/recipe/{tags,ingredients}/{id}  [auth]
//	PATCH  /api/recipe/{tags,ingredients}/{id}  [auth]
//	DELETE /api/recipe/{tags,ingredients}/{id}  [auth]
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns unique ID to each request, read by Logger
//  2. RealIP: extracts real client IP from proxy headers
//  3. Logger: logs each request with timing info
//  4. Recoverer: catches panics and returns 500 instead of crashing
//  5. StripSlashes: /api/user/me/ and /api/user/me route the same
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(chimiddleware.StripSlashes)

	s.router.NotFound(handler.NotFound)
	s.router.MethodNotAllowed(handler.MethodNotAllowed)

	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	// === Services ===
	userService := service.NewUserService(s.db, tokens, auth.NewPasswordService(), s.logger)
	recipeService := service.NewRecipeService(s.db, s.images, s.config.MaxUploadBytes, s.logger)
	tagService := service.NewAttributeService(s.db.Tags(), s.logger)
	ingredientService := service.NewAttributeService(s.db.Ingredients(), s.logger)

	// === Handlers ===
	userHandler := handler.NewUserHandler(userService, s.logger)
	recipeHandler := handler.NewRecipeHandler(recipeService, s.logger)
	tagHandler := handler.NewAttributeHandler(tagService, s.logger)
	ingredientHandler := handler.NewAttributeHandler(ingredientService, s.logger)

	var github *auth.GitHubProvider
	if s.config.GitHubEnabled() {
		github = auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
	}
	authHandler := handler.NewAuthHandler(github, userService, int(s.config.TokenTTL.Seconds()), s.logger)

	s.router.Get("/healthz", s.handleHealth)

	if s.media != nil && strings.HasPrefix(s.config.MediaURL, "/") {
		prefix := strings.TrimSuffix(s.config.MediaURL, "/") + "/"
		fileServer := http.FileServer(http.Dir(s.media.Root()))
		s.router.Handle(prefix+"*", http.StripPrefix(prefix, fileServer))
	}

	requireAuth := auth.RequireAuth(tokens, userService, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		// === Public ===
		r.Post("/user/create", userHandler.HandleCreate)
		r.Post("/user/token", userHandler.HandleToken)
		r.Post("/user/logout", authHandler.HandleLogout)
		if github != nil {
			r.Get("/user/github/login", authHandler.HandleGitHubLogin)
			r.Get("/user/github/callback", authHandler.HandleGitHubCallback)
		}

		// === Authenticated ===
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/user/me", userHandler.HandleMe)
			r.Put("/user/me", userHandler.HandleUpdateMe)
			r.Patch("/user/me", userHandler.HandlePatchMe)

			r.Route("/recipe", func(r chi.Router) {
				r.Route("/recipes", func(r chi.Router) {
					r.Get("/", recipeHandler.HandleList)
					r.Post("/", recipeHandler.HandleCreate)
					r.Get("/{id}", recipeHandler.HandleGet)
					r.Put("/{id}", recipeHandler.HandleUpdate)
					r.Patch("/{id}", recipeHandler.HandlePatch)
					r.Delete("/{id}", recipeHandler.HandleDelete)
					r.Post("/{id}/upload-image", recipeHandler.HandleUploadImage)
				})
				mountAttributeRoutes(r, "/tags", tagHandler)
				mountAttributeRoutes(r, "/ingredients", ingredientHandler)
			})
		})
	})

	return nil
}

// mountAttributeRoutes registers list/update/delete for one attribute kind.
// There is no create route and no GET on a single attribute.
func mountAttributeRoutes(r chi.Router, pattern string, h *handler.AttributeHandler) {
	r.Route(pattern, func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Put("/{id}", h.HandleUpdate)
		r.Patch("/{id}", h.HandlePatch)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// handleHealth reports whether the database answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Handler returns the fully wired router. Used by tests with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database connection.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM or a
// listener error.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // image uploads
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.Bool("github_login", s.config.GitHubEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
