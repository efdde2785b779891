// Package http exposes the quote engine and the CRM proxy as a JSON API.
package http

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"nexx-gsm/adapters/notify"
	"nexx-gsm/adapters/remonline"
	"nexx-gsm/core/catalog"
	"nexx-gsm/core/lead"
	"nexx-gsm/core/quote"
	"nexx-gsm/internal/errors"
	"nexx-gsm/internal/logging"
	"nexx-gsm/internal/metrics"
)

// Config holds HTTP adapter configuration
type Config struct {
	// Address to listen on
	Address string `json:"address"`

	// ReadTimeout for requests
	ReadTimeout time.Duration `json:"read_timeout"`

	// WriteTimeout for responses
	WriteTimeout time.Duration `json:"write_timeout"`

	// MaxBodySize limits request body size
	MaxBodySize int64 `json:"max_body_size"`

	// EnableCORS enables CORS headers
	EnableCORS bool `json:"enable_cors"`

	// AllowedOrigins for CORS
	AllowedOrigins []string `json:"allowed_origins"`

	// RateLimit per IP for POST requests (requests per second)
	RateLimit float64 `json:"rate_limit"`

	// RateBurst is the per-IP burst
	RateBurst int `json:"rate_burst"`

	// TrustProxy takes the client IP from proxy headers
	TrustProxy bool `json:"trust_proxy"`

	// EnableMetrics serves /metrics
	EnableMetrics bool `json:"enable_metrics"`

	// EnableTracing wraps the handler with OpenTelemetry spans
	EnableTracing bool `json:"enable_tracing"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Address:        ":8080",
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxBodySize:    1 << 20,
		EnableCORS:     true,
		AllowedOrigins: []string{"*"},
		RateLimit:      2,
		RateBurst:      10,
		EnableMetrics:  true,
	}
}

// Catalog is the device catalog as seen by the API
type Catalog interface {
	Store() (*catalog.Store, error)
}

// Quoter produces quotes
type Quoter interface {
	Aggregate(ctx context.Context, sel quote.Selection) (*quote.Quote, error)
}

// CRM is the subset of the CRM client the API proxies
type CRM interface {
	Configured() bool
	CreateLead(ctx context.Context, l lead.Lead) (remonline.ID, error)
	CreateBookingOrder(ctx context.Context, b lead.Booking) (remonline.ID, error)
	OpenCallbackOrder(ctx context.Context, r remonline.CallbackRequest) (int64, error)
	GetOrder(ctx context.Context, id string) (json.RawMessage, error)
	Prices(ctx context.Context, deviceType, issueType string) (json.RawMessage, error)
}

// Notifier tells staff about bookings and callbacks
type Notifier interface {
	Notify(ctx context.Context, m notify.Message) error
}

// LeadForwarder hands calculator leads to the CRM in the background
type LeadForwarder interface {
	Forward(l lead.Lead)
}

// Deps are the collaborators behind the API. Catalog and Quotes are
// required; the rest may be nil.
type Deps struct {
	Catalog   Catalog
	Quotes    Quoter
	CRM       CRM
	Notifier  Notifier
	Forwarder LeadForwarder
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Adapter is the HTTP adapter
type Adapter struct {
	deps    Deps
	config  *Config
	server  *http.Server
	limiter *ipLimiter
	logger  *zap.Logger
}

// New creates a new HTTP adapter
func New(deps Deps, config *Config) *Adapter {
	if config == nil {
		config = DefaultConfig()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Adapter{
		deps:    deps,
		config:  config,
		limiter: newIPLimiter(config.RateLimit, config.RateBurst),
		logger:  logging.Named("http"),
	}
}

// Router returns the HTTP handler
func (a *Adapter) Router() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /ready", a.handleReady)

	// Catalog
	mux.HandleFunc("GET /api/devices", a.handleListDevices)
	mux.HandleFunc("GET /api/devices/popular", a.handlePopularDevices)
	mux.HandleFunc("GET /api/devices/match", a.handleMatchDevice)
	mux.HandleFunc("GET /api/devices/{slug}", a.handleGetDevice)
	mux.HandleFunc("GET /api/brands", a.handleBrands)

	// Quotes
	mux.HandleFunc("POST /api/quote", a.handleQuote)
	mux.HandleFunc("POST /api/quote/receipt", a.handleReceipt)

	// CRM proxy
	mux.HandleFunc("POST /api/leads", a.handleLead)
	mux.HandleFunc("POST /api/booking", a.handleBooking)
	mux.HandleFunc("POST /api/callback", a.handleCallback)
	mux.HandleFunc("GET /api/orders/{id}", a.handleGetOrder)
	mux.HandleFunc("GET /api/prices", a.handlePrices)

	if a.config.EnableMetrics {
		mux.Handle("GET /metrics", a.deps.Metrics.Handler())
	}

	// Outermost first
	mw := []Middleware{a.recoveryMiddleware}
	if a.config.EnableTracing {
		mw = append(mw, tracingMiddleware("nexx-gsm"))
	}
	mw = append(mw, a.requestIDMiddleware)
	if a.config.EnableCORS {
		mw = append(mw, a.corsMiddleware)
	}
	mw = append(mw, a.rateLimitMiddleware, a.loggingMiddleware)
	return Chain(mux, mw...)
}

// Start starts the HTTP server
func (a *Adapter) Start() error {
	a.server = &http.Server{
		Addr:         a.config.Address,
		Handler:      a.Router(),
		ReadTimeout:  a.config.ReadTimeout,
		WriteTimeout: a.config.WriteTimeout,
	}
	a.logger.Info("listening", zap.String("address", a.config.Address))
	return a.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (a *Adapter) Shutdown(ctx context.Context) error {
	if a.server != nil {
		return a.server.Shutdown(ctx)
	}
	return nil
}

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (a *Adapter) handleReady(w http.ResponseWriter, r *http.Request) {
	store, err := a.deps.Catalog.Store()
	if err != nil {
		w.Header().Set("Retry-After", retryAfter)
		a.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "loading",
			"catalog": false,
		})
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ready",
		"catalog": true,
		"devices": store.Len(),
	})
}

// Helpers

// Unresolvable quotes get one fixed customer-facing message
const msgUnresolvable = "could not calculate, please try again"

const retryAfter = "30"

func (a *Adapter) parseJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, a.config.MaxBodySize+1))
	if err != nil {
		return errors.Validation("could not read request body")
	}
	if int64(len(body)) > a.config.MaxBodySize {
		return errors.Validation("request body too large")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Validation("invalid JSON in request body")
	}
	return nil
}

func (a *Adapter) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Debug("response write failed", zap.Error(err))
	}
}

func (a *Adapter) writeError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// writeErr maps a domain error onto a status code and body
func (a *Adapter) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch errors.TypeOf(err) {
	case errors.TypeValidation:
		body := map[string]interface{}{"success": false, "error": messageOf(err)}
		if fields, ok := errors.ContextOf(err, "fields"); ok {
			body["fields"] = fields
		}
		a.writeJSON(w, http.StatusBadRequest, body)
	case errors.TypeUnresolvable:
		deviceType, _ := errors.ContextOf(err, "device_type")
		s, _ := deviceType.(string)
		a.deps.Metrics.Unresolvable(s)
		a.writeError(w, http.StatusUnprocessableEntity, msgUnresolvable)
	case errors.TypeDataUnavailable:
		w.Header().Set("Retry-After", retryAfter)
		a.writeError(w, http.StatusServiceUnavailable, "device catalog is loading, please try again")
	case errors.TypeConfig:
		a.writeError(w, http.StatusServiceUnavailable, "service not configured")
	case errors.TypeNotFound:
		a.writeError(w, http.StatusNotFound, messageOf(err))
	case errors.TypeNetwork, errors.TypeForwarding:
		a.writeError(w, http.StatusBadGateway, "upstream service unavailable")
	case errors.TypeInternal:
		a.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err))
		a.writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		a.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func messageOf(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
