package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"marketplace-payments/internal/util"

	"go.uber.org/zap"
)

// Message is one outbound email
type Message struct {
	To      []string `json:"to"`
	From    string   `json:"from"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Client sends email through a Resend-style HTTP API. A missing API
// key turns sends into logged no-ops so notification failures can
// never fail a payment flow.
type Client struct {
	apiURL     string
	apiKey     string
	from       string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new mail API client
func NewClient(apiURL, apiKey, from string) *Client {
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		from:   from,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: util.GetLogger(),
	}
}

// Send dispatches one email
func (c *Client) Send(ctx context.Context, to, subject, html string) error {
	if c.apiKey == "" {
		c.logger.Warn("Mail API key not set, skipping email",
			zap.String("to", to),
			zap.String("subject", subject))
		return nil
	}

	msg := Message{
		To:      []string{to},
		From:    c.from,
		Subject: subject,
		HTML:    html,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mail request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Message != "" {
			return fmt.Errorf("mail API error: %s", apiErr.Message)
		}
		return fmt.Errorf("mail API returned status %d", resp.StatusCode)
	}

	c.logger.Info("Email sent",
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}
