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
	"github.com/dealcart/deals-platform/services/catalog/internal/handlers"
	"github.com/dealcart/deals-platform/services/catalog/internal/repository"
	"github.com/dealcart/deals-platform/services/catalog/internal/service"
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
	dealRepo := repository.NewDealRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)

	// Initialize services
	dealService := service.NewDealService(dealRepo, eventBus)
	categoryService := service.NewCategoryService(categoryRepo)

	// Initialize handlers
	h := handlers.New(dealService, categoryService, cfg)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("catalog"))
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
		// Public catalog
		r.Get("/categories", h.ListCategories)

		// Admin routes (require admin JWT)
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireJWT("admin"))
			r.Get("/deals", h.ListDeals)
			r.Post("/deals", h.CreateDeal)
			r.Get("/deals/{id}", h.GetDeal)
			r.Patch("/deals/{id}", h.UpdateDeal)
			r.Delete("/deals/{id}", h.DeleteDeal)
			r.Post("/deals/{id}/publish", h.PublishDeal)
			r.Post("/deals/{id}/unpublish", h.UnpublishDeal)
			r.Get("/deals/{id}/progress", h.DealProgress)
			r.Post("/categories", h.CreateCategory)
			r.Delete("/categories/{id}", h.DeleteCategory)
		})
	})

	// Start server
	srv := &http.Server{
		Addr:         ":8082",
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

		logger.Info("Shutting down catalog service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Catalog service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting catalog service", "port", "8082")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Catalog service error", "error", err)
		os.Exit(1)
	}
}
