package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/dealcart/deals-platform/pkg/config"
	"github.com/dealcart/deals-platform/pkg/events"
	"github.com/dealcart/deals-platform/pkg/logger"
	"github.com/dealcart/deals-platform/services/notify/internal/consumer"
	"github.com/dealcart/deals-platform/services/notify/internal/mailer"
)

func main() {
	cfg := config.Load()

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	var mail mailer.Service
	if cfg.Email.DevMode {
		logger.Info("Using dev mailer, emails go to the log")
		mail = mailer.NewDevMailer()
	} else {
		mail = mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}

	c := consumer.New(mail, cfg, uploadDir)
	if err := c.Start(eventBus); err != nil {
		logger.Error("Failed to start consumer", "error", err)
		os.Exit(1)
	}

	logger.Info("Notify service listening for events")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down notify service...")
}
