package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dealcart/deals-platform/pkg/config"
	"github.com/dealcart/deals-platform/pkg/database"
	"github.com/dealcart/deals-platform/pkg/events"
	"github.com/dealcart/deals-platform/pkg/logger"
	mw "github.com/dealcart/deals-platform/pkg/middleware"
	"github.com/dealcart/deals-platform/services/auth/internal/handlers"
	"github.com/dealcart/deals-platform/services/auth/internal/repository"
	"github.com/dealcart/deals-platform/services/auth/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.Load()

	// Connect to database
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(pool)

	// Initialize services
	authService := service.NewAuthService(userRepo, eventBus, cfg)

	// Initialize handlers
	h := handlers.New(authService, cfg)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("auth"))
	r.Use(mw.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(mw.Health)
	r.Use(mw.Metrics)

	// Routes
	r.Route("/", func(r chi.Router) {
		// Public auth
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Get("/verify_email", h.VerifyEmail)
		r.Post("/password_reset", h.RequestPasswordReset)

		// Signed-in user
		r.Group(func(r chi.Router) {
			r.Use(h.RequireJWT(""))
			r.Get("/me", h.Me)
		})

		// Admin routes (require admin JWT)
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireJWT("admin"))
			r.Get("/users", h.ListUsers)
			r.Get("/users/{id}", h.GetUser)
			r.Delete("/users/{id}", h.DeleteUser)
			r.Patch("/users/{id}/role", h.UpdateUserRole)
		})
	})

	// Start server
	srv := &http.Server{
		Addr:         ":8081",
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down auth service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Auth service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting auth service", "port", "8081")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Auth service error", "error", err)
		os.Exit(1)
	}
}
