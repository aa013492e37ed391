package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"backend/pkg/logger"

	"github.com/sirupsen/logrus"
)

// Client talks to the Telegram Bot API. Notifications are best-effort: the
// caller decides whether to drop the error or log it, the client never
// retries on its own.
type Client struct {
	token     string
	channelID string
	baseURL   string
	http      *http.Client
	enabled   bool
	log       *logrus.Logger
}

// Config for the bot client. When Token or ChannelID is empty the client runs
// disabled and every call is a logged no-op.
type Config struct {
	Token     string
	ChannelID string
	Timeout   time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		token:     cfg.Token,
		channelID: cfg.ChannelID,
		baseURL:   "https://api.telegram.org",
		http:      &http.Client{Timeout: timeout},
		enabled:   cfg.Token != "" && cfg.ChannelID != "",
		log:       logger.Get(),
	}
}

// Enabled reports whether the client is configured to actually send.
func (c *Client) Enabled() bool {
	return c.enabled
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (c *Client) call(ctx context.Context, method string, body map[string]interface{}) (*apiResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: read response: %w", method, err)
	}

	var api apiResponse
	if err := json.Unmarshal(raw, &api); err != nil {
		return nil, fmt.Errorf("telegram %s: decode response: %w", method, err)
	}
	if !api.OK {
		return nil, fmt.Errorf("telegram %s: %s", method, api.Description)
	}
	return &api, nil
}

// SendChannelMessage posts an HTML-formatted message to the configured
// channel and returns the message id for later edits.
func (c *Client) SendChannelMessage(ctx context.Context, text string) (string, error) {
	if !c.enabled {
		c.log.Debug("telegram disabled, skipping sendMessage")
		return "", nil
	}

	api, err := c.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id":    c.channelID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return "", err
	}

	var result struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.Unmarshal(api.Result, &result); err != nil {
		return "", fmt.Errorf("telegram sendMessage: decode result: %w", err)
	}
	return fmt.Sprintf("%d", result.MessageID), nil
}

// UpdateChannelMessage edits a previously sent channel message in place.
func (c *Client) UpdateChannelMessage(ctx context.Context, messageID, text string) error {
	if !c.enabled {
		return nil
	}
	_, err := c.call(ctx, "editMessageText", map[string]interface{}{
		"chat_id":    c.channelID,
		"message_id": messageID,
		"text":       text,
		"parse_mode": "HTML",
	})
	return err
}

// DeleteChannelMessage removes a channel message, e.g. when the application
// it announced is deleted.
func (c *Client) DeleteChannelMessage(ctx context.Context, messageID string) error {
	if !c.enabled {
		return nil
	}
	_, err := c.call(ctx, "deleteMessage", map[string]interface{}{
		"chat_id":    c.channelID,
		"message_id": messageID,
	})
	return err
}

// SendDirectMessage sends a personal notification to a user by telegram id.
func (c *Client) SendDirectMessage(ctx context.Context, telegramID, text string) error {
	if c.token == "" {
		return nil
	}
	_, err := c.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id":    telegramID,
		"text":       text,
		"parse_mode": "HTML",
	})
	return err
}
