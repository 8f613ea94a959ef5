// Package mail delivers contact form inquiries to the sales inbox.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/treefix50/estate/internal/content"
)

// Mailer sends one inquiry notification.
type Mailer interface {
	Send(ctx context.Context, inquiry content.Inquiry) error
}

var ErrNotConfigured = errors.New("mail: recipient not configured")

// Message is the rendered notification.
type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

var inquiryTemplate = template.Must(template.New("inquiry").Parse(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:20px;font-family:Arial,sans-serif;">
  <div style="max-width:600px;margin:40px auto;background:#fff;border-radius:12px;">
    <div style="background:#1e40af;color:#fff;text-align:center;padding:20px;">
      <h2 style="margin:0;font-size:20px;">New {{.Heading}} Request</h2>
    </div>
    <div style="padding:25px;">
      <p><strong>Full Name</strong><br>{{.Name}}</p>
      <p><strong>Email Address</strong><br><a href="mailto:{{.Email}}">{{.Email}}</a></p>
      <p><strong>Phone Number</strong><br><a href="tel:{{.Phone}}">{{.Phone}}</a></p>
      <p><strong>Request Type</strong><br>{{.Type}}</p>
    </div>
  </div>
</body>
</html>`))

// Render builds the notification for an inquiry.
func Render(from, to string, q content.Inquiry) (Message, error) {
	var body bytes.Buffer
	data := struct {
		content.Inquiry
		Heading string
	}{q, strings.Replace(q.Type, "-", " ", 1)}
	if err := inquiryTemplate.Execute(&body, data); err != nil {
		return Message{}, err
	}
	return Message{
		From:    from,
		To:      []string{to},
		Subject: fmt.Sprintf("New %s Request from %s", q.Type, q.Name),
		HTML:    body.String(),
		ReplyTo: q.Email,
	}, nil
}

// ResendMailer posts messages to the Resend email API.
type ResendMailer struct {
	endpoint string
	apiKey   string
	from     string
	to       string
	client   *http.Client
}

func NewResendMailer(endpoint, apiKey, from, to string, timeout time.Duration) *ResendMailer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ResendMailer{
		endpoint: endpoint,
		apiKey:   apiKey,
		from:     from,
		to:       to,
		client:   &http.Client{Timeout: timeout},
	}
}

func (m *ResendMailer) Send(ctx context.Context, q content.Inquiry) error {
	if m.to == "" {
		return ErrNotConfigured
	}
	msg, err := Render(m.from, m.to, q)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("mail: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var apiErr struct {
			Message string `json:"message"`
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("mail: resend returned %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("mail: resend returned %d", resp.StatusCode)
	}
	return nil
}

// LogMailer records inquiries in the log instead of sending them. It is used
// when no API key is configured.
type LogMailer struct {
	Logger *zap.Logger
}

func (m LogMailer) Send(_ context.Context, q content.Inquiry) error {
	m.Logger.Info("contact inquiry",
		zap.String("name", q.Name),
		zap.String("email", q.Email),
		zap.String("phone", q.Phone),
		zap.String("type", q.Type),
	)
	return nil
}
