package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nexx-gsm/adapters/notify"
	"nexx-gsm/adapters/remonline"
	"nexx-gsm/core/catalog"
	"nexx-gsm/core/lead"
	"nexx-gsm/core/quote"
	"nexx-gsm/internal/errors"
)

// Customer-facing messages
const (
	msgLeadCreated     = "Lead created in Remonline"
	msgLeadOffline     = "Lead saved (Remonline offline)"
	msgLeadCaptured    = "Lead captured"
	msgBookingReceived = "Cerere primită"
	msgBookingThanks   = "Mulțumim! Te vom suna în curând."
	msgCallbackOrdered = "Mulțumim! Un specialist vă va suna în câteva minute!"
	msgCallbackQueued  = "Cererea a fost primită! Vă contactăm în curând."
)

// notifyTimeout bounds staff notifications
const notifyTimeout = 10 * time.Second

func (a *Adapter) crmReady() bool {
	return a.deps.CRM != nil && a.deps.CRM.Configured()
}

// LeadRequest is the body of POST /api/leads
type LeadRequest struct {
	Device         lead.Device `json:"device"`
	Issue          string      `json:"issue"`
	EstimatedPrice string      `json:"estimated_price"`
	lead.Contact
}

// handleLead proxies a calculator lead. A valid lead is always answered
// with success; CRM failures are only logged.
func (a *Adapter) handleLead(w http.ResponseWriter, r *http.Request) {
	var req LeadRequest
	if err := a.parseJSON(r, &req); err != nil {
		a.writeErr(w, r, err)
		return
	}
	if strings.TrimSpace(req.Device.Model) == "" && strings.TrimSpace(req.Issue) == "" {
		a.writeErr(w, r, errors.Validation("device or issue is required"))
		return
	}
	if err := lead.ValidateContact(req.Contact); err != nil {
		a.writeErr(w, r, err)
		return
	}

	l := lead.Lead{
		ID:             uuid.NewString(),
		Source:         lead.SourceCalculator,
		Name:           strings.TrimSpace(req.Name),
		Phone:          lead.CleanPhone(req.Phone),
		Device:         req.Device,
		Issue:          strings.TrimSpace(req.Issue),
		EstimatedPrice: strings.TrimSpace(req.EstimatedPrice),
		Timestamp:      a.deps.Now().UTC(),
	}
	if l.Device.Brand == "" && l.Device.Model != "" {
		l.Device.Brand = catalog.GuessBrand(l.Device.Model)
	}

	if !a.crmReady() {
		a.logger.Info("lead captured",
			zap.String("lead_id", l.ID),
			zap.String("device", l.Device.Model),
			zap.String("issue", l.Issue))
		a.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": msgLeadCaptured})
		return
	}

	id, err := a.deps.CRM.CreateLead(r.Context(), l)
	if err != nil {
		a.logger.Warn("crm lead failed", zap.String("lead_id", l.ID), zap.Error(err))
		a.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": msgLeadOffline})
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"lead_id": nullable(string(id)),
		"message": msgLeadCreated,
	})
}

// handleBooking validates the form, drops bots silently, opens a CRM
// order when one is configured and notifies staff.
func (a *Adapter) handleBooking(w http.ResponseWriter, r *http.Request) {
	var b lead.Booking
	if err := a.parseJSON(r, &b); err != nil {
		a.writeErr(w, r, err)
		return
	}
	if err := lead.ValidateBooking(b); err != nil {
		a.writeErr(w, r, err)
		return
	}
	if b.IsBot() {
		a.logger.Info("honeypot booking dropped", zap.String("request_id", requestIDFrom(r.Context())))
		a.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": msgBookingReceived})
		return
	}

	var orderID remonline.ID
	if a.crmReady() {
		id, err := a.deps.CRM.CreateBookingOrder(r.Context(), b)
		if err != nil {
			a.logger.Warn("crm booking failed", zap.Error(err))
		} else {
			orderID = id
		}
	}

	a.notify(r.Context(), notify.BookingMessage(b, a.deps.Now()))

	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  msgBookingThanks,
		"order_id": nullable(string(orderID)),
	})
}

// PriceEstimate is the rough figure attached to a callback
type PriceEstimate struct {
	Type  string `json:"type"`
	Price string `json:"price"`
}

// String renders the estimate for order notes
func (p *PriceEstimate) String() string {
	if p == nil {
		return ""
	}
	return p.Type + " - " + p.Price
}

var freeConsultation = &PriceEstimate{Type: "Consultație", Price: "GRATUIT pentru comenzi online"}

// callbackEstimate prices the problem the customer typed, when one is recognized.
func (a *Adapter) callbackEstimate(ctx context.Context, c lead.Callback) *PriceEstimate {
	if strings.TrimSpace(c.Device) == "" {
		return nil
	}
	defect, ok := lead.DetectDefect(c.Problem)
	if !ok {
		return freeConsultation
	}
	q, err := a.aggregate(ctx, quote.Selection{DeviceName: c.Device, Defects: []string{defect}})
	if err != nil || len(q.Items) == 0 {
		a.logger.Debug("callback estimate unavailable", zap.String("device", c.Device), zap.Error(err))
		return freeConsultation
	}
	item := q.Items[0]
	return &PriceEstimate{
		Type:  item.Name,
		Price: fmt.Sprintf("%d-%d %s", item.Min, item.Max, q.Currency),
	}
}

// handleCallback records a call-me-back request. The customer always gets
// success; the message tells whether the CRM order went through.
func (a *Adapter) handleCallback(w http.ResponseWriter, r *http.Request) {
	var c lead.Callback
	if err := a.parseJSON(r, &c); err != nil {
		a.writeErr(w, r, err)
		return
	}
	if err := lead.ValidateCallback(c); err != nil {
		a.writeErr(w, r, err)
		return
	}

	phone := lead.CleanPhone(c.Phone)
	estimate := a.callbackEstimate(r.Context(), c)

	var orderID int64
	if a.crmReady() {
		id, err := a.deps.CRM.OpenCallbackOrder(r.Context(), remonline.CallbackRequest{
			Name:     lead.OrDefault(c.Name, "Client Website"),
			Phone:    phone,
			Device:   strings.TrimSpace(c.Device),
			Problem:  strings.TrimSpace(c.Problem),
			Estimate: estimate.String(),
			Now:      a.deps.Now(),
		})
		if err != nil {
			a.logger.Warn("crm callback failed", zap.Error(err))
		} else {
			orderID = id
		}
	}

	a.notify(r.Context(), notify.CallbackMessage(c, lead.InternationalPhone(c.Phone), orderID, estimate.String()))

	message := msgCallbackQueued
	if orderID != 0 {
		message = msgCallbackOrdered
	}
	resp := map[string]interface{}{
		"success":        true,
		"message":        message,
		"order_id":       nil,
		"price_estimate": estimate,
	}
	if orderID != 0 {
		resp["order_id"] = orderID
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *Adapter) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	if !a.crmReady() {
		a.writeErr(w, r, errors.Config("remonline API not configured", nil))
		return
	}
	order, err := a.deps.CRM.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "order": order})
}

func (a *Adapter) handlePrices(w http.ResponseWriter, r *http.Request) {
	if !a.crmReady() {
		a.writeErr(w, r, errors.Config("remonline API not configured", nil))
		return
	}
	q := r.URL.Query()
	prices, err := a.deps.CRM.Prices(r.Context(), q.Get("device_type"), q.Get("issue_type"))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	a.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "prices": prices})
}

// notify reports to staff without failing the request
func (a *Adapter) notify(ctx context.Context, m notify.Message) {
	if a.deps.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := a.deps.Notifier.Notify(ctx, m); err != nil {
		a.logger.Warn("notification failed", zap.String("subject", m.Subject), zap.Error(err))
	}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
