// Package remonline is a client for the Remonline CRM API.
//
// Two authentication styles are in use against the same service: the
// leads/orders endpoints take the API key as a bearer token, while the
// clients and order endpoints used for callbacks need a short-lived token
// obtained from /token/new.
package remonline

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"nexx-gsm/core/lead"
	"nexx-gsm/internal/errors"
	"nexx-gsm/internal/logging"
)

// Config configures the CRM client
type Config struct {
	// BaseURL of the API
	BaseURL string `json:"base_url"`

	// APIKey used as bearer token and to request session tokens
	APIKey string `json:"-"`

	// BranchID of the service location
	BranchID int64 `json:"branch_id"`

	// OrderType for callback orders
	OrderType int64 `json:"order_type"`

	// Timeout per request
	Timeout time.Duration `json:"timeout"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		BaseURL: "https://api.remonline.app",
		Timeout: 15 * time.Second,
	}
}

// Client talks to the CRM
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a client. A nil config uses the defaults.
func New(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logging.Named("remonline"),
	}
}

// Configured reports whether an API key is present
func (c *Client) Configured() bool {
	return c != nil && c.config.APIKey != ""
}

// ID is a CRM identifier. The API returns ids as numbers or strings.
type ID string

// UnmarshalJSON accepts a JSON number, string or null
func (id *ID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*id = ID(str)
		return nil
	}
	*id = ID(s)
	return nil
}

// Int64 returns the numeric id, or 0 when it is not numeric
func (id ID) Int64() int64 {
	n, _ := strconv.ParseInt(string(id), 10, 64)
	return n
}

// envelope is the token-flow response shape
type envelope struct {
	Success bool            `json:"success"`
	Token   string          `json:"token,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Token requests a session token for the token-flow endpoints.
func (c *Client) Token(ctx context.Context) (string, error) {
	if !c.Configured() {
		return "", errors.Config("remonline API key not configured", nil)
	}
	form := url.Values{"api_key": {c.config.APIKey}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/token/new"), strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Internal("failed to create token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var env envelope
	if err := c.do(req, &env); err != nil {
		return "", err
	}
	if !env.Success || env.Token == "" {
		return "", errors.Network("token request rejected", nil).WithContext("message", env.Message)
	}
	return env.Token, nil
}

// CreateClient registers a customer and returns its id. A zero id with a
// nil error means the CRM did not create one, usually because the phone
// is already known.
func (c *Client) CreateClient(ctx context.Context, token, name, phone string) (int64, error) {
	body := map[string]interface{}{
		"name":  lead.OrDefault(name, "Client Website"),
		"phone": []string{phone},
	}
	var env envelope
	if err := c.postJSON(ctx, c.tokenEndpoint("/clients/", token, nil), "", body, &env); err != nil {
		return 0, err
	}
	var created struct {
		ID ID `json:"id"`
	}
	if err := decodeData(env.Data, &created); err != nil {
		return 0, err
	}
	return created.ID.Int64(), nil
}

// FindClientByPhone returns the first client with the phone, or 0.
func (c *Client) FindClientByPhone(ctx context.Context, token, phone string) (int64, error) {
	u := c.tokenEndpoint("/clients/", token, url.Values{"phones[]": {phone}})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, errors.Internal("failed to create search request", err)
	}
	var env envelope
	if err := c.do(req, &env); err != nil {
		return 0, err
	}
	var found []struct {
		ID ID `json:"id"`
	}
	if err := decodeData(env.Data, &found); err != nil {
		return 0, err
	}
	if len(found) == 0 {
		return 0, nil
	}
	return found[0].ID.Int64(), nil
}

// EnsureClient creates the client, falling back to a phone search.
func (c *Client) EnsureClient(ctx context.Context, token, name, phone string) (int64, error) {
	id, err := c.CreateClient(ctx, token, name, phone)
	if err != nil || id != 0 {
		return id, err
	}
	id, err = c.FindClientByPhone(ctx, token, phone)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, errors.NotFound("client", phone)
	}
	return id, nil
}

// Order is a repair order created through the token flow
type Order struct {
	BranchID     int64  `json:"branch_id"`
	OrderType    int64  `json:"order_type"`
	ClientID     int64  `json:"client_id"`
	KindOfGood   string `json:"kindof_good"`
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	Malfunction  string `json:"malfunction"`
	ManagerNotes string `json:"manager_notes"`
}

// CreateOrder creates a repair order and returns its id
func (c *Client) CreateOrder(ctx context.Context, token string, order Order) (int64, error) {
	if order.BranchID == 0 {
		order.BranchID = c.config.BranchID
	}
	if order.OrderType == 0 {
		order.OrderType = c.config.OrderType
	}
	var env envelope
	if err := c.postJSON(ctx, c.tokenEndpoint("/order/", token, nil), "", order, &env); err != nil {
		return 0, err
	}
	var created struct {
		ID ID `json:"id"`
	}
	if env.Success {
		if err := decodeData(env.Data, &created); err != nil {
			return 0, err
		}
	}
	if created.ID == "" {
		return 0, errors.Network("order not created", nil).WithContext("message", env.Message)
	}
	return created.ID.Int64(), nil
}

// CallbackRequest is what a callback order needs
type CallbackRequest struct {
	Name     string
	Phone    string
	Device   string
	Problem  string
	Estimate string
	Now      time.Time
}

// OpenCallbackOrder runs the token flow: session token, client create or
// lookup, then an order carrying the callback details.
func (c *Client) OpenCallbackOrder(ctx context.Context, r CallbackRequest) (int64, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return 0, err
	}
	clientID, err := c.EnsureClient(ctx, token, r.Name, r.Phone)
	if err != nil {
		return 0, err
	}
	return c.CreateOrder(ctx, token, Order{
		ClientID:     clientID,
		KindOfGood:   KindOfGood(r.Device),
		Brand:        BrandLabel(r.Device),
		Model:        r.Device,
		Malfunction:  lead.OrDefault(r.Problem, "Callback de pe website"),
		ManagerNotes: callbackNotes(r),
	})
}

func callbackNotes(r CallbackRequest) string {
	var b strings.Builder
	b.WriteString("CALLBACK WEBSITE\n")
	b.WriteString("BONUS: DIAGNOSTIC GRATUIT!\n")
	fmt.Fprintf(&b, "Dispozitiv: %s\n", lead.OrDefault(r.Device, "N/A"))
	fmt.Fprintf(&b, "Telefon: %s\n", r.Phone)
	fmt.Fprintf(&b, "Problemă: %s\n", lead.OrDefault(r.Problem, "N/A"))
	if r.Estimate != "" {
		fmt.Fprintf(&b, "Estimare: %s\n", r.Estimate)
	}
	fmt.Fprintf(&b, "Primit: %s", r.Now.UTC().Format(time.RFC3339))
	return b.String()
}

// leadBody is the bearer-flow lead shape
type leadBody struct {
	BranchID       int64  `json:"branch_id,omitempty"`
	DeviceInfo     string `json:"device_info"`
	Issue          string `json:"issue"`
	EstimatedPrice string `json:"estimated_price"`
	Source         string `json:"source"`
	Notes          string `json:"notes"`
	Name           string `json:"name,omitempty"`
	Phone          string `json:"phone,omitempty"`
}

// CreateLead posts a calculator lead and returns the CRM id, which may be
// empty when the CRM answers without one.
func (c *Client) CreateLead(ctx context.Context, l lead.Lead) (ID, error) {
	if !c.Configured() {
		return "", errors.Config("remonline API key not configured", nil)
	}
	body := leadBody{
		BranchID:       c.config.BranchID,
		DeviceInfo:     strings.TrimSpace(l.Device.Brand + " " + l.Device.Model),
		Issue:          l.Issue,
		EstimatedPrice: l.EstimatedPrice,
		Source:         "calculator",
		Notes: fmt.Sprintf("Calculated from website. Device: %s %s - %s. Issue: %s",
			l.Device.Brand, l.Device.Type, l.Device.Model, l.Issue),
		Name:  l.Name,
		Phone: l.Phone,
	}
	var created struct {
		ID ID `json:"id"`
	}
	if err := c.postJSON(ctx, c.endpoint("/leads/create"), c.config.APIKey, body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// Name identifies this sink in logs and metrics
func (c *Client) Name() string {
	return "remonline"
}

// Send delivers a lead; it lets the client act as a forwarding sink.
func (c *Client) Send(ctx context.Context, l lead.Lead) error {
	_, err := c.CreateLead(ctx, l)
	if err != nil {
		return errors.Forwarding("remonline lead rejected", err)
	}
	return nil
}

// bookingBody is the bearer-flow order shape
type bookingBody struct {
	BranchID int64             `json:"branch_id,omitempty"`
	Client   map[string]string `json:"client"`
	Device   map[string]string `json:"device"`
	Problem  string            `json:"problem"`
	Source   string            `json:"source"`
}

// CreateBookingOrder opens an order for a booking form submission
func (c *Client) CreateBookingOrder(ctx context.Context, b lead.Booking) (ID, error) {
	if !c.Configured() {
		return "", errors.Config("remonline API key not configured", nil)
	}
	device := lead.OrDefault(b.Device, "Nu specificat")
	body := bookingBody{
		BranchID: c.config.BranchID,
		Client:   map[string]string{"name": strings.TrimSpace(b.Name), "phone": strings.TrimSpace(b.Phone)},
		Device:   map[string]string{"type": device, "brand": BrandLabel(device), "model": device},
		Problem:  lead.OrDefault(b.Problem, "Nu specificat"),
		Source:   "website",
	}
	var created struct {
		ID ID `json:"id"`
	}
	if err := c.postJSON(ctx, c.endpoint("/orders/create"), c.config.APIKey, body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// GetOrder returns the CRM's order document as-is
func (c *Client) GetOrder(ctx context.Context, id string) (json.RawMessage, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.Validation("order id is required")
	}
	return c.getRaw(ctx, c.endpoint("/orders/"+url.PathEscape(id)), "order", id)
}

// Prices returns the CRM price list for a device and issue type
func (c *Client) Prices(ctx context.Context, deviceType, issueType string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("device_type", deviceType)
	q.Set("issue_type", issueType)
	return c.getRaw(ctx, c.endpoint("/prices")+"?"+q.Encode(), "prices", deviceType+"/"+issueType)
}

func (c *Client) getRaw(ctx context.Context, u, resource, key string) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, errors.Config("remonline API key not configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Internal("failed to create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	var raw json.RawMessage
	if err := c.do(req, &raw); err != nil {
		if StatusCode(err) == http.StatusNotFound {
			return nil, errors.NotFound(resource, key)
		}
		return nil, err
	}
	return raw, nil
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + path
}

func (c *Client) tokenEndpoint(path, token string, extra url.Values) string {
	q := url.Values{"token": {token}}
	for k, v := range extra {
		q[k] = v
	}
	return c.endpoint(path) + "?" + q.Encode()
}

func (c *Client) postJSON(ctx context.Context, u, bearer string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Internal("failed to encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return errors.Internal("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return c.do(req, out)
}

// statusError is a non-2xx answer
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("remonline returned %d: %s", e.code, e.body)
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var se *statusError
	if stderrors.As(err, &se) {
		return se.code
	}
	return 0
}

func (c *Client) do(req *http.Request, out interface{}) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("path", req.URL.Path), zap.Error(err))
		return errors.Network("remonline request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Network("failed to read remonline response", err)
	}
	c.logger.Debug("request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Network("remonline rejected request", &statusError{code: resp.StatusCode, body: truncate(string(body), 200)}).
			WithContext("status", resp.StatusCode)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Network("invalid remonline response", err)
	}
	return nil
}

// decodeData reads the envelope payload. An absent payload leaves out as is.
func decodeData(data json.RawMessage, out interface{}) error {
	if len(bytes.TrimSpace(data)) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Network("invalid remonline payload", err).WithContext("data", truncate(string(data), 200))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// KindOfGood is the CRM's device kind for an order
func KindOfGood(device string) string {
	if strings.Contains(strings.ToLower(device), "macbook") {
		return "Laptop"
	}
	return "Telefon"
}

var brandLabels = []struct {
	label    string
	keywords []string
}{
	{"Apple", []string{"iphone", "macbook", "ipad"}},
	{"Samsung", []string{"samsung", "galaxy"}},
	{"Xiaomi", []string{"xiaomi", "redmi", "poco"}},
	{"Huawei", []string{"huawei", "honor"}},
	{"OnePlus", []string{"oneplus"}},
	{"Google", []string{"google", "pixel"}},
	{"Dell", []string{"dell"}},
	{"HP", []string{"hp "}},
	{"Lenovo", []string{"lenovo", "thinkpad"}},
	{"Asus", []string{"asus", "zenbook"}},
	{"Acer", []string{"acer"}},
}

// BrandLabel returns the CRM brand label for a free-text device
func BrandLabel(device string) string {
	d := strings.ToLower(device) + " "
	for _, b := range brandLabels {
		for _, kw := range b.keywords {
			if strings.Contains(d, kw) {
				return b.label
			}
		}
	}
	return "Other"
}
