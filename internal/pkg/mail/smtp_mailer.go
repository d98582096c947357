package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/gofiber/fiber/v2/log"
	"github.com/jordan-wright/email"

	"github.com/ManuelReschke/CourseHaven/internal/pkg/env"
)

// SMTPMailer sends emails via SMTP. Without SMTP_HOST it only logs.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	sender   string
}

func NewSMTPMailerFromEnv() *SMTPMailer {
	m := &SMTPMailer{
		host:     env.GetEnv("SMTP_HOST", ""),
		port:     env.GetEnv("SMTP_PORT", "587"),
		username: env.GetEnv("SMTP_USERNAME", ""),
		password: env.GetEnv("SMTP_PASSWORD", ""),
		sender:   env.GetEnv("SMTP_SENDER", ""),
	}
	if m.sender == "" {
		m.sender = "CourseHaven <no-reply@localhost>"
		log.Warnf("SMTP_SENDER not set, using default sender: %s", m.sender)
	}
	return m
}

func (m *SMTPMailer) Enabled() bool {
	return m.host != ""
}

// SendReceipt mails a purchase receipt.
func (m *SMTPMailer) SendReceipt(ctx context.Context, r Receipt) error {
	if !m.Enabled() {
		log.Infof("[Mail] SMTP disabled, skipping receipt for payment %s", r.PaymentID)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, html, text, err := RenderReceipt(r)
	if err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = m.sender
	e.To = []string{r.To}
	e.Subject = subject
	e.Text = text
	e.HTML = html

	var auth smtp.Auth
	if m.username != "" && m.password != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	addr := fmt.Sprintf("%s:%s", m.host, m.port)
	if err := e.Send(addr, auth); err != nil {
		log.Errorf("[Mail] SMTP send error: %v", err)
		return err
	}
	log.Infof("[Mail] receipt for payment %s sent via %s", r.PaymentID, addr)
	return nil
}
