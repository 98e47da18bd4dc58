package channels

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	webhookKindDiscord = "discord"
	webhookKindSlack   = "slack"
	webhookKindCustom  = "custom"
)

// WebhookChannel posts JSON payloads to Discord, Slack, or a generic
// endpoint.
type WebhookChannel struct {
	kind     string
	url      string
	username string
}

func NewWebhookChannel(config map[string]string) (*WebhookChannel, error) {
	kind := config["kind"]
	if kind == "" {
		kind = webhookKindCustom
	}
	c := &WebhookChannel{kind: kind, url: config["url"], username: config["username"]}
	if err := c.ValidateConfig(config); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *WebhookChannel) ValidateConfig(config map[string]string) error {
	if c.url == "" {
		return fmt.Errorf("webhook channel: url is required")
	}
	switch c.kind {
	case webhookKindDiscord, webhookKindSlack, webhookKindCustom:
	default:
		return fmt.Errorf("webhook channel: unsupported kind %q", c.kind)
	}
	return nil
}

func (c *WebhookChannel) ConfigSchema() Schema {
	return Schema{
		{Name: "kind", Type: "string", Required: false, Default: webhookKindCustom, Options: []string{webhookKindDiscord, webhookKindSlack, webhookKindCustom}},
		{Name: "url", Type: "string", Required: true},
		{Name: "username", Type: "string", Required: false},
	}
}

func (c *WebhookChannel) Send(title, body string, level Level, timestamp time.Time) (bool, error) {
	payload, err := c.buildPayload(title, body, level, timestamp)
	if err != nil {
		return false, fmt.Errorf("webhook channel: failed to build payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("webhook channel: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		log.Warn().Str("kind", c.kind).Err(err).Msg("webhook send failed")
		return false, fmt.Errorf("webhook channel: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Str("kind", c.kind).Int("status", resp.StatusCode).Msg("webhook returned non-2xx")
		return false, fmt.Errorf("webhook channel: server returned status %d", resp.StatusCode)
	}

	log.Debug().Str("kind", c.kind).Str("level", string(level)).Msg("webhook sent")
	return true, nil
}

func (c *WebhookChannel) Test() (bool, error) {
	return c.Send("Test Notification", "This is a test notification from the UPS guardian.", LevelInfo, time.Now())
}

func (c *WebhookChannel) buildPayload(title, body string, level Level, timestamp time.Time) ([]byte, error) {
	switch c.kind {
	case webhookKindDiscord:
		return c.buildDiscordPayload(title, body, level, timestamp)
	case webhookKindSlack:
		return c.buildSlackPayload(title, body, level, timestamp)
	default:
		return c.buildCustomPayload(title, body, level, timestamp)
	}
}

func (c *WebhookChannel) buildDiscordPayload(title, body string, level Level, timestamp time.Time) ([]byte, error) {
	color := colorForLevel(level)
	username := c.username
	if username == "" {
		username = "UPS Guardian"
	}
	payload := map[string]interface{}{
		"username": username,
		"embeds": []map[string]interface{}{
			{
				"title":       title,
				"description": body,
				"color":       color,
				"timestamp":   timestamp.Format(time.RFC3339),
			},
		},
	}
	return json.Marshal(payload)
}

func (c *WebhookChannel) buildSlackPayload(title, body string, level Level, timestamp time.Time) ([]byte, error) {
	color := slackColorForLevel(level)
	username := c.username
	if username == "" {
		username = "UPS Guardian"
	}
	payload := map[string]interface{}{
		"username": username,
		"attachments": []map[string]interface{}{
			{
				"color":     color,
				"title":     title,
				"text":      body,
				"footer":    "UPS Guardian",
				"ts":        timestamp.Unix(),
			},
		},
	}
	return json.Marshal(payload)
}

func (c *WebhookChannel) buildCustomPayload(title, body string, level Level, timestamp time.Time) ([]byte, error) {
	payload := map[string]interface{}{
		"title":     title,
		"body":      body,
		"level":     string(level),
		"timestamp": timestamp.Unix(),
		"source":    "ups-guardian",
	}
	if c.username != "" {
		payload["username"] = c.username
	}
	return json.Marshal(payload)
}

func colorForLevel(level Level) int {
	switch level {
	case LevelWarning:
		return 0xF0B232
	case LevelError:
		return 0xED4245
	default:
		return 0x5865F2
	}
}

func slackColorForLevel(level Level) string {
	switch level {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "danger"
	default:
		return "good"
	}
}
