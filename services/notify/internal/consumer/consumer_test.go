package consumer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dealcart/deals-platform/pkg/config"
	"github.com/dealcart/deals-platform/pkg/events"
)

type sentMail struct {
	kind, to, subjectDetail, token string
}

type mailRecorder struct {
	sent []sentMail
}

func (m *mailRecorder) SendVerificationEmail(toEmail, toName, verifyURL, token string) error {
	m.sent = append(m.sent, sentMail{kind: "verification", to: toEmail, subjectDetail: verifyURL, token: token})
	return nil
}

func (m *mailRecorder) SendPasswordResetEmail(toEmail, resetURL, token string) error {
	m.sent = append(m.sent, sentMail{kind: "password_reset", to: toEmail, subjectDetail: resetURL, token: token})
	return nil
}

func (m *mailRecorder) SendCouponEmail(toEmail, dealTitle, code string) error {
	m.sent = append(m.sent, sentMail{kind: "coupon", to: toEmail, subjectDetail: dealTitle, token: code})
	return nil
}

func testConsumer(t *testing.T, mail *mailRecorder) *Consumer {
	t.Helper()
	cfg := &config.Config{}
	cfg.Email.BaseURL = "http://localhost:5173"
	return New(mail, cfg, t.TempDir())
}

func message(t *testing.T, subject string, payload interface{}) *events.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &events.Message{Subject: subject, Data: data, Timestamp: time.Now()}
}

func TestHandleUserRegistered(t *testing.T) {
	mail := &mailRecorder{}
	c := testConsumer(t, mail)

	c.HandleUserRegistered(message(t, events.UserRegistered, events.UserRegisteredEvent{
		UserID:            1,
		Email:             "ada@example.com",
		Name:              "Ada",
		VerificationToken: "tok/with special",
	}))

	if len(mail.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(mail.sent))
	}
	got := mail.sent[0]
	if got.kind != "verification" || got.to != "ada@example.com" {
		t.Errorf("unexpected mail %+v", got)
	}
	if got.subjectDetail != "http://localhost:5173/verify_email?token=tok%2Fwith+special" {
		t.Errorf("verify URL = %q, token not escaped", got.subjectDetail)
	}
}

func TestHandleCouponIssued(t *testing.T) {
	mail := &mailRecorder{}
	c := testConsumer(t, mail)

	c.HandleCouponIssued(message(t, events.CouponIssued, events.CouponIssuedEvent{
		CouponID:  5,
		Code:      "SAVE-100",
		DealTitle: "Half-price spa day",
		Email:     "buyer@example.com",
	}))

	if len(mail.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(mail.sent))
	}
	got := mail.sent[0]
	if got.kind != "coupon" || got.subjectDetail != "Half-price spa day" || got.token != "SAVE-100" {
		t.Errorf("unexpected mail %+v", got)
	}
}

func TestHandleCouponIssuedGuestOrderSkipped(t *testing.T) {
	mail := &mailRecorder{}
	c := testConsumer(t, mail)

	c.HandleCouponIssued(message(t, events.CouponIssued, events.CouponIssuedEvent{
		CouponID: 6,
		Code:     "SAVE-101",
	}))

	if len(mail.sent) != 0 {
		t.Errorf("guest coupon should not send mail, sent %+v", mail.sent)
	}
}

func TestHandleBadPayloadIgnored(t *testing.T) {
	mail := &mailRecorder{}
	c := testConsumer(t, mail)

	c.HandleUserRegistered(&events.Message{Subject: events.UserRegistered, Data: []byte("{not json")})

	if len(mail.sent) != 0 {
		t.Errorf("broken payload should not send mail, sent %+v", mail.sent)
	}
}

func TestHandleImagePurge(t *testing.T) {
	mail := &mailRecorder{}
	dir := t.TempDir()
	cfg := &config.Config{}
	c := New(mail, cfg, dir)

	path := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(path, []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}

	c.HandleImagePurge(message(t, events.DealImagePurge, events.DealImagePurgeEvent{
		DealID:   1,
		ImageID:  2,
		Filename: "photo.jpg",
	}))

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("image file should be removed, stat err = %v", err)
	}

	// Purging an already-missing file is fine.
	c.HandleImagePurge(message(t, events.DealImagePurge, events.DealImagePurgeEvent{
		DealID:   1,
		ImageID:  3,
		Filename: "gone.jpg",
	}))
}
