package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendClient struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendClient {
	m := &MailerSendClient{
		enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}

	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}

	return m
}

func (m *MailerSendClient) SendVerificationEmail(toEmail, toName, verifyURL, token string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Confirm your Dealcart account"
	html := fmt.Sprintf(`
		<h2>Welcome to Dealcart!</h2>
		<p>Hi %s,</p>
		<p>Please confirm your email address by clicking the link below:</p>
		<p><a href="%s" style="background-color: #e8590c; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Confirm Email</a></p>
		<p>Or use this verification code: <strong>%s</strong></p>
		<p>If you didn't create an account with us, please ignore this email.</p>
	`, toName, verifyURL, token)

	text := fmt.Sprintf("Please confirm your email by clicking this link: %s\n\nOr use this verification code: %s", verifyURL, token)

	return m.sendEmail(toEmail, toName, subject, text, html)
}

func (m *MailerSendClient) SendPasswordResetEmail(toEmail, resetURL, token string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Reset your Dealcart password"
	html := fmt.Sprintf(`
		<h2>Password Reset</h2>
		<p>Someone asked to reset the password for this address. If that was you, click below:</p>
		<p><a href="%s" style="background-color: #e8590c; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Reset Password</a></p>
		<p>Or use this code: <strong>%s</strong></p>
		<p>This link will expire in 2 hours. If you didn't ask for a reset, ignore this email.</p>
	`, resetURL, token)

	text := fmt.Sprintf("Reset your password with this link: %s\n\nOr use this code: %s", resetURL, token)

	return m.sendEmail(toEmail, "", subject, text, html)
}

func (m *MailerSendClient) SendCouponEmail(toEmail, dealTitle, code string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := fmt.Sprintf("Your coupon for %s", dealTitle)
	html := fmt.Sprintf(`
		<h2>Your deal went through!</h2>
		<p>Here is your coupon for <strong>%s</strong>:</p>
		<p style="font-size: 24px; letter-spacing: 2px;"><strong>%s</strong></p>
		<p>Show this code at the venue to redeem your purchase.</p>
	`, dealTitle, code)

	text := fmt.Sprintf("Your coupon for %s: %s\n\nShow this code at the venue to redeem your purchase.", dealTitle, code)

	return m.sendEmail(toEmail, "", subject, text, html)
}

func (m *MailerSendClient) sendEmail(toEmail, toName, subject, text, html string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)

	if strings.TrimSpace(text) != "" {
		msg.SetText(text)
	}
	if strings.TrimSpace(html) != "" {
		msg.SetHTML(html)
	}

	_, err := m.client.Email.Send(ctx, msg)
	return err
}
