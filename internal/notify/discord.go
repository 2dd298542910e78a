// Package notify delivers custom-event notifications to external
// channels. Delivery is best-effort: failures are reported to the caller
// but never roll back the recorded event.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	discordAPIBase = "https://discord.com/api/v10"
	embedColor     = 0x0099ff
	requestTimeout = 10 * time.Second
)

// EmbedField is one field of a notification embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EventNotification is the rendered content of one custom-event
// notification.
type EventNotification struct {
	Title       string
	Description string
	Fields      []EmbedField
}

// Notifier delivers an event notification to the account identified by
// an external id.
type Notifier interface {
	NotifyEvent(ctx context.Context, externalID string, n EventNotification) error
}

// DiscordClient delivers notifications as direct-message embeds through
// the Discord bot API.
type DiscordClient struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewDiscordClient creates a client authenticating with the given bot
// token.
func NewDiscordClient(token string) *DiscordClient {
	return &DiscordClient{
		token:   token,
		baseURL: discordAPIBase,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// NewDiscordClientWithBaseURL is used by tests to point the client at a
// stub server.
func NewDiscordClientWithBaseURL(token, baseURL string) *DiscordClient {
	c := NewDiscordClient(token)
	c.baseURL = baseURL
	return c
}

type dmChannel struct {
	ID string `json:"id"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Timestamp   string       `json:"timestamp"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

// NotifyEvent opens (or reuses) the DM channel for the Discord user and
// sends the notification as an embed.
func (c *DiscordClient) NotifyEvent(ctx context.Context, discordID string, n EventNotification) error {
	channel, err := c.createDM(ctx, discordID)
	if err != nil {
		return fmt.Errorf("failed to open DM channel: %w", err)
	}

	payload := map[string]any{
		"embeds": []embed{{
			Title:       n.Title,
			Description: n.Description,
			Color:       embedColor,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			Fields:      n.Fields,
		}},
	}
	if err := c.post(ctx, "/channels/"+channel.ID+"/messages", payload, nil); err != nil {
		return fmt.Errorf("failed to send embed: %w", err)
	}
	return nil
}

func (c *DiscordClient) createDM(ctx context.Context, discordID string) (*dmChannel, error) {
	var channel dmChannel
	err := c.post(ctx, "/users/@me/channels", map[string]string{
		"recipient_id": discordID,
	}, &channel)
	if err != nil {
		return nil, err
	}
	if channel.ID == "" {
		return nil, fmt.Errorf("discord returned no channel id")
	}
	return &channel, nil
}

func (c *DiscordClient) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
