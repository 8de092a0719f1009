package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dealcart/deals-platform/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	// User events
	UserRegistered         = "user.registered"
	UserPasswordResetAsked = "user.password_reset.requested"

	// Deal events
	DealPublished   = "deal.published"
	DealUnpublished = "deal.unpublished"
	DealImagePurge  = "deal.image.purge"

	// Order events
	OrderCompleted = "order.completed"
	OrderDelivered = "order.delivered"
	OrderCanceled  = "order.canceled"

	// Coupon events
	CouponIssued = "coupon.issued"
)

// Event payloads
type UserRegisteredEvent struct {
	UserID            int64     `json:"user_id"`
	Email             string    `json:"email"`
	Name              string    `json:"name"`
	VerificationToken string    `json:"verification_token"`
	CreatedAt         time.Time `json:"created_at"`
}

type PasswordResetRequestedEvent struct {
	UserID     int64     `json:"user_id"`
	Email      string    `json:"email"`
	ResetToken string    `json:"reset_token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type DealPublishedEvent struct {
	DealID      int64     `json:"deal_id"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
}

type DealImagePurgeEvent struct {
	DealID   int64  `json:"deal_id"`
	ImageID  int64  `json:"image_id"`
	Filename string `json:"filename"`
}

type OrderCompletedEvent struct {
	OrderID     int64     `json:"order_id"`
	UserID      *int64    `json:"user_id,omitempty"`
	Total       float64   `json:"total"`
	CompletedAt time.Time `json:"completed_at"`
}

type OrderDeliveredEvent struct {
	OrderID     int64     `json:"order_id"`
	CouponCount int       `json:"coupon_count"`
	DeliveredAt time.Time `json:"delivered_at"`
}

type OrderCanceledEvent struct {
	OrderID    int64     `json:"order_id"`
	Reason     string    `json:"reason"`
	CanceledAt time.Time `json:"canceled_at"`
}

type CouponIssuedEvent struct {
	CouponID   int64     `json:"coupon_id"`
	Code       string    `json:"code"`
	LineItemID int64     `json:"line_item_id"`
	DealTitle  string    `json:"deal_title"`
	Email      string    `json:"email"`
	IssuedAt   time.Time `json:"issued_at"`
}
