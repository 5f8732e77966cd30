package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const brevoBaseURL = "https://api.brevo.com/v3"

type BrevoService struct {
	client      *resty.Client
	SenderEmail string
	SenderName  string
}

type brevoContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type brevoPayload struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

// NewBrevoService returns nil when the service is not configured; a nil
// *BrevoService drops every message.
func NewBrevoService(apiKey, senderEmail, senderName, baseURL string) *BrevoService {
	if apiKey == "" || senderEmail == "" || senderName == "" {
		return nil
	}
	if baseURL == "" {
		baseURL = brevoBaseURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10*time.Second).
		SetHeader("accept", "application/json").
		SetHeader("api-key", apiKey)

	return &BrevoService{client: client, SenderEmail: senderEmail, SenderName: senderName}
}

func (s *BrevoService) Send(ctx context.Context, toEmail, toName, subject, htmlContent string) error {
	if s == nil {
		return nil
	}
	at := strings.Index(toEmail, "@")
	if at <= 0 {
		return fmt.Errorf("invalid recipient email: %s", toEmail)
	}
	if toName == "" {
		toName = toEmail[:at]
	}

	payload := brevoPayload{
		Sender:      brevoContact{Name: s.SenderName, Email: s.SenderEmail},
		To:          []brevoContact{{Name: toName, Email: toEmail}},
		Subject:     subject,
		HTMLContent: htmlContent,
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/smtp/email")
	if err != nil {
		return fmt.Errorf("send email request: %w", err)
	}
	if resp.StatusCode() != 201 {
		return fmt.Errorf("brevo rejected email: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
