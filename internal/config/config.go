// Package config provides configuration management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"nexx-gsm/internal/logging"
)

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version" yaml:"version"`

	// Server contains HTTP server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Catalog contains device catalog configuration
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`

	// Pricing contains pricing configuration
	Pricing PricingConfig `json:"pricing" yaml:"pricing"`

	// Forwarding contains lead forwarding configuration
	Forwarding ForwardingConfig `json:"forwarding" yaml:"forwarding"`

	// Remonline contains CRM configuration
	Remonline RemonlineConfig `json:"remonline" yaml:"remonline"`

	// Notify contains e-mail and Telegram configuration
	Notify NotifyConfig `json:"notify" yaml:"notify"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging" yaml:"logging"`
}

// ServerConfig contains HTTP settings
type ServerConfig struct {
	Address        string        `json:"address" yaml:"address"`
	ReadTimeout    time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout" yaml:"write_timeout"`
	MaxBodySize    int64         `json:"max_body_size" yaml:"max_body_size"`
	AllowedOrigins []string      `json:"allowed_origins" yaml:"allowed_origins"`

	// RateLimit is requests per second per client IP on POST endpoints
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `json:"rate_burst" yaml:"rate_burst"`

	// Tracing wraps the router with OpenTelemetry spans
	Tracing bool `json:"tracing" yaml:"tracing"`
}

// CatalogConfig contains catalog source settings
type CatalogConfig struct {
	// URL is fetched over HTTP when set, otherwise Path is read
	URL  string `json:"url" yaml:"url"`
	Path string `json:"path" yaml:"path"`

	// LoadTimeout bounds one load attempt
	LoadTimeout time.Duration `json:"load_timeout" yaml:"load_timeout"`

	// RetryInterval is the delay between background load attempts
	RetryInterval time.Duration `json:"retry_interval" yaml:"retry_interval"`
}

// PricingConfig contains pricing-related settings
type PricingConfig struct {
	// RulesPath is an optional HCL file overriding the built-in tables
	RulesPath string `json:"rules_path" yaml:"rules_path"`

	// USDToLocal overrides the manufacturer price conversion rate when > 0
	USDToLocal float64 `json:"usd_to_local" yaml:"usd_to_local"`

	// Currency overrides the display currency label when set
	Currency string `json:"currency" yaml:"currency"`
}

// ForwardingConfig controls fire-and-forget lead delivery
type ForwardingConfig struct {
	Enabled    bool          `json:"enabled" yaml:"enabled"`
	WebhookURL string        `json:"webhook_url" yaml:"webhook_url"`
	WebhookKey string        `json:"-" yaml:"-"`
	Retries    int           `json:"retries" yaml:"retries"`
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
}

// RemonlineConfig contains CRM credentials and identifiers
type RemonlineConfig struct {
	BaseURL   string        `json:"base_url" yaml:"base_url"`
	APIKey    string        `json:"-" yaml:"-"`
	BranchID  int64         `json:"branch_id" yaml:"branch_id"`
	OrderType int64         `json:"order_type" yaml:"order_type"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
}

// Enabled reports whether CRM calls can be made
func (r RemonlineConfig) Enabled() bool {
	return r.APIKey != ""
}

// NotifyConfig contains notification channels
type NotifyConfig struct {
	TelegramToken  string `json:"-" yaml:"-"`
	TelegramChatID string `json:"telegram_chat_id" yaml:"telegram_chat_id"`

	EmailAPIKey string `json:"-" yaml:"-"`
	EmailDomain string `json:"email_domain" yaml:"email_domain"`
	EmailFrom   string `json:"email_from" yaml:"email_from"`
	EmailTo     string `json:"email_to" yaml:"email_to"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Version: "1.0",
		Server: ServerConfig{
			Address:        ":8080",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxBodySize:    1 << 20,
			AllowedOrigins: []string{"*"},
			RateLimit:      2,
			RateBurst:      10,
		},
		Catalog: CatalogConfig{
			Path:          filepath.Join("data", "devices.json"),
			LoadTimeout:   20 * time.Second,
			RetryInterval: 30 * time.Second,
		},
		Forwarding: ForwardingConfig{
			Enabled:    true,
			Retries:    2,
			RetryDelay: 500 * time.Millisecond,
			Timeout:    10 * time.Second,
		},
		Remonline: RemonlineConfig{
			BaseURL: "https://api.remonline.app",
			Timeout: 15 * time.Second,
		},
		Notify: NotifyConfig{
			EmailDomain: "nexxgsm.com",
			EmailFrom:   "NEXX Service <noreply@nexxgsm.com>",
			EmailTo:     "info@nexx.ro",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file; .yaml/.yml files are decoded as YAML,
// anything else as JSON. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	config := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, err
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overlays secrets and endpoints from the environment.
// A .env file in the working directory is read first when present.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()

	c.Server.Address = getenv("HTTP_ADDR", c.Server.Address)
	c.Catalog.URL = getenv("CATALOG_URL", c.Catalog.URL)
	c.Catalog.Path = getenv("CATALOG_PATH", c.Catalog.Path)
	c.Pricing.RulesPath = getenv("PRICING_RULES", c.Pricing.RulesPath)
	c.Pricing.USDToLocal = getenvFloat("USD_TO_LOCAL", c.Pricing.USDToLocal)

	c.Forwarding.WebhookURL = getenv("LEAD_WEBHOOK_URL", c.Forwarding.WebhookURL)
	c.Forwarding.WebhookKey = strings.TrimSpace(getenv("LEAD_WEBHOOK_SECRET", c.Forwarding.WebhookKey))

	c.Remonline.APIKey = strings.TrimSpace(getenv("REMONLINE_API_KEY", c.Remonline.APIKey))
	c.Remonline.BaseURL = getenv("REMONLINE_BASE_URL", c.Remonline.BaseURL)
	c.Remonline.BranchID = getenvInt64("REMONLINE_BRANCH_ID", c.Remonline.BranchID)
	c.Remonline.OrderType = getenvInt64("REMONLINE_ORDER_TYPE", c.Remonline.OrderType)

	c.Notify.TelegramToken = strings.TrimSpace(getenv("TELEGRAM_BOT_TOKEN", c.Notify.TelegramToken))
	c.Notify.TelegramChatID = getenv("TELEGRAM_CHAT_ID", c.Notify.TelegramChatID)
	c.Notify.EmailAPIKey = strings.TrimSpace(getenv("EMAIL_API_KEY", c.Notify.EmailAPIKey))
	c.Notify.EmailDomain = getenv("EMAIL_DOMAIN", c.Notify.EmailDomain)
	c.Notify.EmailTo = getenv("EMAIL_TO", c.Notify.EmailTo)

	c.Logging.Level = getenv("LOG_LEVEL", c.Logging.Level)
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getenvInt64(key string, fallback int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback
	}
	return f
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}
