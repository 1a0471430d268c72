package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/smtp"
	"time"
)

// Sender delivers one rendered message to one recipient address.
type Sender interface {
	Send(ctx context.Context, recipient string, msg Message) error
}

// EmailSender delivers over plain SMTP. Recipient addressing uses the
// client id as the local part when no directory is wired in.
type EmailSender struct {
	addr string
	from string
	auth smtp.Auth
}

func NewEmailSender(host string, port int, from, username, password string) *EmailSender {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &EmailSender{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
		auth: auth,
	}
}

func (s *EmailSender) Send(_ context.Context, recipient string, msg Message) error {
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.from, recipient, msg.Subject, msg.Body)
	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{recipient}, []byte(body)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// WebhookSMSSender posts the message to an SMS gateway webhook.
type WebhookSMSSender struct {
	url    string
	apiKey string
	client *http.Client
}

func NewWebhookSMSSender(url, apiKey string) *WebhookSMSSender {
	return &WebhookSMSSender{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WebhookSMSSender) Send(ctx context.Context, recipient string, msg Message) error {
	payload, err := json.Marshal(map[string]string{
		"to":   recipient,
		"text": msg.Subject + ": " + msg.Body,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms webhook returned %d", resp.StatusCode)
	}
	return nil
}

// NoopSender logs instead of delivering, for local development.
type NoopSender struct {
	logger *slog.Logger
}

func NewNoopSender(logger *slog.Logger) *NoopSender {
	return &NoopSender{logger: logger}
}

func (s *NoopSender) Send(_ context.Context, recipient string, msg Message) error {
	s.logger.Info("notification (noop)", "recipient", recipient, "subject", msg.Subject)
	return nil
}
