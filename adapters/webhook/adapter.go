// Package webhook delivers leads to a generic JSON endpoint.
//
// The receiving side acknowledges with a 2xx status and a body of
// {"success": true}; anything else is a failed delivery.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"nexx-gsm/core/lead"
	"nexx-gsm/internal/errors"
)

// Config configures webhook behavior
type Config struct {
	// Endpoint URL
	Endpoint string `json:"endpoint"`

	// Secret for request signing
	Secret string `json:"-"`

	// Headers to include
	Headers map[string]string `json:"headers"`

	// Timeout for requests
	Timeout time.Duration `json:"timeout"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig(endpoint string) *Config {
	return &Config{
		Endpoint: endpoint,
		Timeout:  10 * time.Second,
		Headers:  make(map[string]string),
	}
}

// Adapter is the webhook adapter
type Adapter struct {
	config     *Config
	httpClient *http.Client
}

// New creates a new webhook adapter
func New(config *Config) *Adapter {
	return &Adapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name identifies this sink in logs and metrics
func (a *Adapter) Name() string {
	return "webhook"
}

// ack is the acknowledgement body
type ack struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Send posts the lead once
func (a *Adapter) Send(ctx context.Context, l lead.Lead) error {
	if a.config.Endpoint == "" {
		return errors.Config("webhook endpoint not configured", nil)
	}
	body, err := json.Marshal(l)
	if err != nil {
		return errors.Internal("failed to encode lead", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Internal("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}
	if a.config.Secret != "" {
		req.Header.Set("X-Signature", "sha256="+Sign(body, a.config.Secret))
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return errors.Forwarding("request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return errors.Forwarding("read webhook reply", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Forwarding(fmt.Sprintf("webhook returned %d", resp.StatusCode), nil).
			WithContext("body", string(raw))
	}

	var reply ack
	if err := json.Unmarshal(raw, &reply); err != nil {
		return errors.Forwarding("webhook acknowledgement unreadable", err)
	}
	if !reply.Success {
		return errors.Forwarding("webhook did not acknowledge lead", nil).WithContext("error", reply.Error)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of payload
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
