package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// WebhookSink posts notifications as JSON to a push gateway.
type WebhookSink struct {
	client *resty.Client
	url    string
}

type webhookPayload struct {
	Tokens []string `json:"tokens"`
	Message
}

// NewWebhookSink creates a sink posting to url.
func NewWebhookSink(url, authToken string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	if authToken != "" {
		client.SetAuthToken(authToken)
	}
	return &WebhookSink{client: client, url: url}
}

func (w *WebhookSink) Name() string { return "webhook" }

func (w *WebhookSink) SendToDevices(ctx context.Context, tokens []string, msg Message) error {
	if len(tokens) == 0 {
		return nil
	}
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(webhookPayload{Tokens: tokens, Message: msg}).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
