package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
)

// webhookPayload is the body posted to incoming-webhook style channels
// (Slack, Teams) and to provider gateway APIs (email, SMS, push).
type webhookPayload struct {
	Channel string `json:"channel"`
	UserID  string `json:"user_id,omitempty"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// WebhookCapability posts messages to an incoming webhook URL taken from
// the channel configuration ("webhook_url"). Slack and Teams channels use
// this directly; there is no per-recipient addressing, the webhook itself
// identifies the target room.
type WebhookCapability struct {
	Client *http.Client
}

// NewWebhookCapability returns a webhook sender with a bounded client.
func NewWebhookCapability() *WebhookCapability {
	return &WebhookCapability{Client: &http.Client{Timeout: 10 * time.Second}}
}

// Send implements Capability.
func (w *WebhookCapability) Send(ctx context.Context, ch *domain.Channel, msg *domain.Message, _ domain.Recipient) error {
	url, _ := ch.Configuration["webhook_url"].(string)
	if url == "" {
		return fmt.Errorf("channel %s: configuration missing webhook_url", ch.ID)
	}
	return postJSON(ctx, w.Client, url, "", webhookPayload{
		Channel: ch.Type,
		Subject: msg.Subject,
		Content: msg.Content,
	})
}

// GatewayCapability delivers through an external provider's HTTP API
// (transactional email, SMS, push). The provider endpoint and API key come
// from the channel configuration; the provider resolves the recipient's
// address from the user id.
type GatewayCapability struct {
	Client *http.Client
}

// NewGatewayCapability returns a provider-API sender with a bounded client.
func NewGatewayCapability() *GatewayCapability {
	return &GatewayCapability{Client: &http.Client{Timeout: 10 * time.Second}}
}

// Send implements Capability.
func (g *GatewayCapability) Send(ctx context.Context, ch *domain.Channel, msg *domain.Message, rcpt domain.Recipient) error {
	endpoint, _ := ch.Configuration["endpoint"].(string)
	if endpoint == "" {
		return fmt.Errorf("channel %s: configuration missing endpoint", ch.ID)
	}
	apiKey, _ := ch.Configuration["api_key"].(string)
	return postJSON(ctx, g.Client, endpoint, apiKey, webhookPayload{
		Channel: ch.Type,
		UserID:  rcpt.UserID,
		Subject: msg.Subject,
		Content: msg.Content,
	})
}

func postJSON(ctx context.Context, client *http.Client, url, apiKey string, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook %s: unexpected status %d", url, resp.StatusCode)
	}
	return nil
}
