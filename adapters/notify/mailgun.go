package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nexx-gsm/internal/errors"
)

// Mailgun sends plain-text e-mail through the Mailgun messages API
type Mailgun struct {
	BaseURL string
	APIKey  string
	Domain  string
	From    string
	To      string
	Client  *http.Client
}

// NewMailgun creates an e-mail channel
func NewMailgun(apiKey, domain, from, to string) *Mailgun {
	return &Mailgun{
		BaseURL: "https://api.mailgun.net/v3",
		APIKey:  apiKey,
		Domain:  domain,
		From:    from,
		To:      to,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Name implements Channel
func (g *Mailgun) Name() string { return "email" }

// Notify implements Channel
func (g *Mailgun) Notify(ctx context.Context, m Message) error {
	form := url.Values{
		"from":    {g.From},
		"to":      {g.To},
		"subject": {m.Subject},
		"text":    {m.Text()},
	}
	u := fmt.Sprintf("%s/%s/messages", strings.TrimRight(g.BaseURL, "/"), g.Domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Internal("failed to create mail request", err)
	}
	req.SetBasicAuth("api", g.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.Client.Do(req)
	if err != nil {
		return errors.Network("mail request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return errors.Newf(errors.TypeNetwork, "mailgun returned %d", resp.StatusCode).WithContext("body", string(raw))
	}
	return nil
}
