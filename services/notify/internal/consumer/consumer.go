package consumer

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/dealcart/deals-platform/pkg/config"
	"github.com/dealcart/deals-platform/pkg/events"
	"github.com/dealcart/deals-platform/pkg/logger"
	"github.com/dealcart/deals-platform/services/notify/internal/mailer"
)

// Consumer turns bus events into outbound email and housekeeping.
type Consumer struct {
	mailer    mailer.Service
	baseURL   string
	uploadDir string
}

func New(mail mailer.Service, cfg *config.Config, uploadDir string) *Consumer {
	return &Consumer{
		mailer:    mail,
		baseURL:   cfg.Email.BaseURL,
		uploadDir: uploadDir,
	}
}

// Start wires the consumer to the bus. The queue group keeps each
// event on exactly one notify instance.
func (c *Consumer) Start(bus events.Subscriber) error {
	subs := map[string]func(msg *events.Message){
		events.UserRegistered:         c.HandleUserRegistered,
		events.UserPasswordResetAsked: c.HandlePasswordResetAsked,
		events.CouponIssued:           c.HandleCouponIssued,
		events.DealImagePurge:         c.HandleImagePurge,
	}
	for subject, handler := range subs {
		if err := bus.QueueSubscribe(subject, "notify", handler); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
	}
	return nil
}

func (c *Consumer) HandleUserRegistered(msg *events.Message) {
	var event events.UserRegisteredEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Bad user registered payload", "error", err, "subject", msg.Subject)
		return
	}

	verifyURL := fmt.Sprintf("%s/verify_email?token=%s", c.baseURL, url.QueryEscape(event.VerificationToken))
	if err := c.mailer.SendVerificationEmail(event.Email, event.Name, verifyURL, event.VerificationToken); err != nil {
		logger.Error("Failed to send verification email", "error", err, "user_id", event.UserID)
		return
	}
	logger.Info("Sent verification email", "user_id", event.UserID, "email", event.Email)
}

func (c *Consumer) HandlePasswordResetAsked(msg *events.Message) {
	var event events.PasswordResetRequestedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Bad password reset payload", "error", err, "subject", msg.Subject)
		return
	}

	resetURL := fmt.Sprintf("%s/reset_password?token=%s", c.baseURL, url.QueryEscape(event.ResetToken))
	if err := c.mailer.SendPasswordResetEmail(event.Email, resetURL, event.ResetToken); err != nil {
		logger.Error("Failed to send password reset email", "error", err, "user_id", event.UserID)
		return
	}
	logger.Info("Sent password reset email", "user_id", event.UserID)
}

func (c *Consumer) HandleCouponIssued(msg *events.Message) {
	var event events.CouponIssuedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Bad coupon issued payload", "error", err, "subject", msg.Subject)
		return
	}
	if event.Email == "" {
		logger.Warn("Coupon issued for guest order, no email on file", "coupon_id", event.CouponID)
		return
	}

	if err := c.mailer.SendCouponEmail(event.Email, event.DealTitle, event.Code); err != nil {
		logger.Error("Failed to send coupon email", "error", err, "coupon_id", event.CouponID)
		return
	}
	logger.Info("Sent coupon email", "coupon_id", event.CouponID, "email", event.Email)
}

// HandleImagePurge removes discarded deal images from local storage.
func (c *Consumer) HandleImagePurge(msg *events.Message) {
	var event events.DealImagePurgeEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Bad image purge payload", "error", err, "subject", msg.Subject)
		return
	}

	path := filepath.Join(c.uploadDir, filepath.Base(event.Filename))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Error("Failed to purge deal image", "error", err, "path", path, "deal_id", event.DealID)
		return
	}
	logger.Info("Purged deal image", "deal_id", event.DealID, "image_id", event.ImageID, "filename", event.Filename)
}
