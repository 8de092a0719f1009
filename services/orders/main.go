package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/dealcart/deals-platform/pkg/config"
	"github.com/dealcart/deals-platform/pkg/database"
	"github.com/dealcart/deals-platform/pkg/events"
	"github.com/dealcart/deals-platform/pkg/logger"
	mw "github.com/dealcart/deals-platform/pkg/middleware"
	"github.com/dealcart/deals-platform/services/orders/internal/handlers"
	"github.com/dealcart/deals-platform/services/orders/internal/repository"
	"github.com/dealcart/deals-platform/services/orders/internal/service"
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

	// Connect to Redis for cart sessions and idempotency keys
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("Invalid Redis URL", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Initialize repositories
	orderRepo := repository.NewOrderRepository(pool)
	lineItemRepo := repository.NewLineItemRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	dealReader := repository.NewDealReader(pool)
	sessionRepo := repository.NewCartSessionRepository(redisClient, cfg.Cart.SessionTTL)

	// Initialize services
	paymentService := service.NewPaymentService(orderRepo, eventBus, cfg)
	cartService := service.NewCartService(orderRepo, lineItemRepo, sessionRepo, dealReader)
	orderService := service.NewOrderService(orderRepo, couponRepo, dealReader, eventBus, paymentService)

	// Initialize handlers
	h := handlers.New(cartService, orderService, paymentService, cfg)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("orders"))
	r.Use(mw.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Cart-Token"},
		ExposedHeaders:   []string{"X-Cart-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(mw.Health)
	r.Use(mw.Metrics)

	idempotency := mw.Idempotency(repository.NewRedisIdempotencyStore(redisClient))

	// Routes
	r.Route("/", func(r chi.Router) {
		// Cart (guest friendly, addressed by X-Cart-Token)
		r.Get("/cart", h.GetCart)
		r.Post("/cart/items", h.AddCartItem)
		r.Post("/cart/items/{dealID}/decrement", h.DecrementCartItem)
		r.Delete("/cart/items/{dealID}", h.RemoveCartItem)

		// Checkout
		r.Group(func(r chi.Router) {
			r.Use(idempotency)
			r.Post("/checkout", h.Checkout)
			r.Post("/checkout/confirm", h.ConfirmPayment)
		})

		// Coupon redemption (signed-in customers)
		r.Group(func(r chi.Router) {
			r.Use(h.RequireJWT(""))
			r.Post("/coupons/redeem", h.RedeemCoupon)
		})

		// Admin routes (require admin JWT)
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireJWT("admin"))
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{id}", h.GetOrder)
			r.Get("/orders/{id}/coupons", h.ListOrderCoupons)
			r.Post("/orders/{id}/deliver", h.DeliverOrder)
			r.Post("/orders/{id}/cancel", h.CancelOrder)
			r.Post("/deals/{id}/finalize", h.FinalizeDeal)
			r.Post("/deals/finalize_expired", h.FinalizeExpired)
		})
	})

	// Start server
	srv := &http.Server{
		Addr:         ":8083",
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

		logger.Info("Shutting down orders service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Orders service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting orders service", "port", "8083")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Orders service error", "error", err)
		os.Exit(1)
	}
}
