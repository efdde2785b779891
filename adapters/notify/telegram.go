package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nexx-gsm/internal/errors"
)

// Telegram posts messages to a chat through the Bot API
type Telegram struct {
	BaseURL string
	Token   string
	ChatID  string
	Client  *http.Client
}

// NewTelegram creates a Telegram channel
func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		BaseURL: "https://api.telegram.org",
		Token:   token,
		ChatID:  chatID,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Name implements Channel
func (t *Telegram) Name() string { return "telegram" }

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// Markdown renders m with a bold subject
func (m Message) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n\n", markdownEscaper.Replace(m.Subject))
	for _, l := range m.Lines {
		fmt.Fprintf(&b, "%s: %s\n", l.Label, markdownEscaper.Replace(l.Value))
	}
	return b.String()
}

// Notify implements Channel
func (t *Telegram) Notify(ctx context.Context, m Message) error {
	body, err := json.Marshal(map[string]string{
		"chat_id":    t.ChatID,
		"text":       m.Markdown(),
		"parse_mode": "Markdown",
	})
	if err != nil {
		return errors.Internal("failed to encode telegram message", err)
	}

	u := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.BaseURL, "/"), t.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return errors.Internal("failed to create telegram request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return errors.Network("telegram request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return errors.Newf(errors.TypeNetwork, "telegram returned %d", resp.StatusCode).WithContext("body", string(raw))
	}
	return nil
}
