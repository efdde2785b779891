// Package bootstrap builds the runtime collaborators from configuration.
// Both the server and the CLI start from here.
package bootstrap

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"nexx-gsm/adapters/forwarder"
	"nexx-gsm/adapters/notify"
	"nexx-gsm/adapters/remonline"
	"nexx-gsm/adapters/webhook"
	"nexx-gsm/core/catalog"
	"nexx-gsm/core/pricing"
	"nexx-gsm/internal/config"
	"nexx-gsm/internal/logging"
	"nexx-gsm/internal/metrics"
)

// Rules loads the pricing tables: the built-in defaults, then the rules
// file, then the scalar overrides from config.
func Rules(cfg *config.Config) (*pricing.Rules, error) {
	rules := pricing.DefaultRules()
	if cfg.Pricing.RulesPath != "" {
		loaded, err := pricing.LoadRulesFile(cfg.Pricing.RulesPath)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	if cfg.Pricing.USDToLocal > 0 {
		rules.USDToLocal = decimal.NewFromFloat(cfg.Pricing.USDToLocal)
	}
	if cfg.Pricing.Currency != "" {
		rules.Currency = cfg.Pricing.Currency
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("pricing rules: %w", err)
	}
	return rules, nil
}

// Loader picks the HTTP catalog when a URL is configured, else the file.
func Loader(cfg *config.Config) catalog.Loader {
	if cfg.Catalog.URL != "" {
		return catalog.HTTPLoader{URL: cfg.Catalog.URL}
	}
	return catalog.FileLoader{Path: cfg.Catalog.Path}
}

// CatalogSource returns an unloaded source that reports loads to m.
func CatalogSource(cfg *config.Config, m *metrics.Metrics) *catalog.Source {
	src := catalog.NewSource(Loader(cfg))
	if m != nil {
		src.OnLoad = m.CatalogLoaded
		src.OnFail = m.CatalogFailed
	}
	return src
}

// CRM returns the Remonline client. It is always non-nil; callers check
// Configured before relying on it.
func CRM(cfg *config.Config) *remonline.Client {
	return remonline.New(&remonline.Config{
		BaseURL:   cfg.Remonline.BaseURL,
		APIKey:    cfg.Remonline.APIKey,
		BranchID:  cfg.Remonline.BranchID,
		OrderType: cfg.Remonline.OrderType,
		Timeout:   cfg.Remonline.Timeout,
	})
}

// Forwarder assembles the lead sinks: the CRM when configured and the
// webhook when a URL is set.
func Forwarder(cfg *config.Config, crm *remonline.Client, m *metrics.Metrics) *forwarder.Forwarder {
	fc := forwarder.DefaultConfig()
	if cfg.Forwarding.Retries >= 0 {
		fc.Retries = cfg.Forwarding.Retries
	}
	if cfg.Forwarding.RetryDelay > 0 {
		fc.RetryDelay = cfg.Forwarding.RetryDelay
	}
	if cfg.Forwarding.Timeout > 0 {
		fc.Timeout = cfg.Forwarding.Timeout
	}
	var recorder forwarder.Recorder
	if m != nil {
		recorder = m
	}
	if !cfg.Forwarding.Enabled {
		return forwarder.New(fc, recorder)
	}

	var senders []forwarder.Sender
	if crm != nil && crm.Configured() {
		senders = append(senders, crm)
	}
	if cfg.Forwarding.WebhookURL != "" {
		wc := webhook.DefaultConfig(cfg.Forwarding.WebhookURL)
		wc.Secret = cfg.Forwarding.WebhookKey
		if cfg.Forwarding.Timeout > 0 {
			wc.Timeout = cfg.Forwarding.Timeout
		}
		senders = append(senders, webhook.New(wc))
	}
	if len(senders) == 0 {
		logging.Named("bootstrap").Info("lead forwarding has no sinks configured")
	}
	return forwarder.New(fc, recorder, senders...)
}

// Notifier builds the staff notification channels that have credentials.
func Notifier(cfg *config.Config) *notify.Dispatcher {
	var channels []notify.Channel
	n := cfg.Notify
	if n.TelegramToken != "" && n.TelegramChatID != "" {
		channels = append(channels, notify.NewTelegram(n.TelegramToken, n.TelegramChatID))
	}
	if n.EmailAPIKey != "" && n.EmailDomain != "" && n.EmailTo != "" {
		channels = append(channels, notify.NewMailgun(n.EmailAPIKey, n.EmailDomain, n.EmailFrom, n.EmailTo))
	}
	d := notify.NewDispatcher(channels...)
	logging.Named("bootstrap").Debug("notification channels", zap.Int("channels", d.Len()))
	return d
}
