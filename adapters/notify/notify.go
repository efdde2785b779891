// Package notify sends staff notifications about new bookings and
// callback requests.
package notify

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"nexx-gsm/core/lead"
	"nexx-gsm/internal/logging"
)

// Line is one labelled value in a message
type Line struct {
	Label string
	Value string
}

// Message is a channel-neutral notification
type Message struct {
	Subject string
	Lines   []Line
}

// Text renders the message as plain text
func (m Message) Text() string {
	var b strings.Builder
	b.WriteString(m.Subject)
	b.WriteString("\n\n")
	for _, l := range m.Lines {
		fmt.Fprintf(&b, "%s: %s\n", l.Label, l.Value)
	}
	return b.String()
}

// Channel delivers messages somewhere staff will see them
type Channel interface {
	Name() string
	Notify(ctx context.Context, m Message) error
}

// Dispatcher sends a message to every channel
type Dispatcher struct {
	channels []Channel
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher over the given channels
func NewDispatcher(channels ...Channel) *Dispatcher {
	return &Dispatcher{
		channels: channels,
		logger:   logging.Named("notify"),
	}
}

// Len returns the number of channels
func (d *Dispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.channels)
}

// Notify sends m everywhere. Every channel is tried; errors are logged and
// joined.
func (d *Dispatcher) Notify(ctx context.Context, m Message) error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, c := range d.channels {
		if err := c.Notify(ctx, m); err != nil {
			d.logger.Warn("notification failed", zap.String("channel", c.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}
	return stderrors.Join(errs...)
}

// BookingMessage describes a new booking
func BookingMessage(b lead.Booking, now time.Time) Message {
	device := lead.OrDefault(b.Device, "Nu specificat")
	return Message{
		Subject: "Comandă nouă: " + device,
		Lines: []Line{
			{"Client", strings.TrimSpace(b.Name)},
			{"Telefon", strings.TrimSpace(b.Phone)},
			{"Dispozitiv", device},
			{"Problemă", lead.OrDefault(b.Problem, "Nu specificat")},
			{"Data", now.Format("02.01.2006 15:04")},
		},
	}
}

// CallbackMessage describes a callback request
func CallbackMessage(c lead.Callback, phone string, orderID int64, estimate string) Message {
	lines := []Line{
		{"Client", lead.OrDefault(c.Name, "Necunoscut")},
		{"Telefon", phone},
		{"Dispozitiv", lead.OrDefault(c.Device, "N/A")},
		{"Problemă", lead.OrDefault(c.Problem, "N/A")},
	}
	if estimate != "" {
		lines = append(lines, Line{"Estimare", estimate})
	}
	if orderID != 0 {
		lines = append(lines, Line{"Comandă", fmt.Sprintf("#%d", orderID)})
	}
	return Message{Subject: "Cerere de apel invers", Lines: lines}
}
