// Package lead models the contact records forwarded to the CRM: calculator
// leads produced by a quote, booking requests and callback requests.
package lead

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"nexx-gsm/core/catalog"
	"nexx-gsm/core/quote"
)

// Sources
const (
	SourceCalculator = "price_calculator"
	SourceBooking    = "website_booking_form"
	SourceCallback   = "website_callback"
)

// Device describes the customer's device as entered
type Device struct {
	Brand string `json:"brand"`
	Type  string `json:"type"`
	Model string `json:"model"`
}

// Lead is the record sent to the CRM
type Lead struct {
	ID             string    `json:"id"`
	Source         string    `json:"source"`
	Name           string    `json:"name,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Device         Device    `json:"device"`
	Issue          string    `json:"issue"`
	EstimatedPrice string    `json:"estimated_price"`
	Timestamp      time.Time `json:"timestamp"`
}

// Contact is optional contact info attached to a calculator lead
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// FromQuote builds the calculator lead for a successful quote.
func FromQuote(q *quote.Quote, c Contact, now time.Time) Lead {
	model := q.Device
	if model == "" {
		model = "Not specified"
	}
	brand := q.Brand
	if brand == "" && q.Device != "" {
		brand = catalog.GuessBrand(q.Device)
	}

	return Lead{
		ID:     uuid.NewString(),
		Source: SourceCalculator,
		Name:   strings.TrimSpace(c.Name),
		Phone:  CleanPhone(c.Phone),
		Device: Device{
			Brand: brand,
			Type:  string(q.DeviceType),
			Model: model,
		},
		Issue:          strings.Join(q.Defects, ", "),
		EstimatedPrice: fmt.Sprintf("%d-%d %s", q.Total.Min, q.Total.Max, q.Currency),
		Timestamp:      now.UTC(),
	}
}

// Booking is a repair booking from the website form
type Booking struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Device  string `json:"device"`
	Problem string `json:"problem"`

	// Honeypot is a hidden form field only bots fill in
	Honeypot string `json:"_honeypot"`
}

// IsBot reports whether the hidden field was filled in
func (b Booking) IsBot() bool {
	return strings.TrimSpace(b.Honeypot) != ""
}

// Callback is a "call me back" request
type Callback struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Device  string `json:"device"`
	Problem string `json:"problem"`
}

// OrDefault returns s, or fallback when s is blank
func OrDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return strings.TrimSpace(s)
}
