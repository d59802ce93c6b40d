package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/MarlonX-a/serverless/internal/config"
)

// TelegramClient posts messages to one chat through the Bot API.
type TelegramClient struct {
	endpoint string
	chatID   string
	client   *http.Client
	limiter  *rate.Limiter
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// NewTelegramClient builds a client for cfg. Sends to one chat are paced at
// one per second with a small burst.
func NewTelegramClient(cfg config.TelegramConfig) *TelegramClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TelegramClient{
		endpoint: fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(cfg.APIURL, "/"), cfg.BotToken),
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// Send posts text with Markdown parsing.
func (c *TelegramClient) Send(ctx context.Context, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limiter: %w", err)
	}

	payload, err := json.Marshal(sendMessageRequest{ChatID: c.chatID, Text: text, ParseMode: "Markdown"})
	if err != nil {
		return fmt.Errorf("failed to marshal telegram message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// The URL carries the bot token; do not surface it
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	var body apiResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !body.OK {
		return fmt.Errorf("telegram answered %d: %s", resp.StatusCode, body.Description)
	}
	return nil
}
