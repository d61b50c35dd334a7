package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"vigil/internal/config"
)

const maxErrorBody = 512

// WebhookSender POSTs the message as JSON to the target URL.
type WebhookSender struct {
	client  *http.Client
	headers map[string]string
}

// NewWebhookSender creates a webhook sender from configuration.
func NewWebhookSender(cfg config.WebhookConfig) *WebhookSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{
		client:  &http.Client{Timeout: timeout},
		headers: cfg.Headers,
	}
}

// Send posts the message. Any non-2xx response is an error.
func (s *WebhookSender) Send(ctx context.Context, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, msg.Target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request to %s failed: %w", msg.Target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("webhook %s returned %d: %s", msg.Target, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
