package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"nexx-gsm/adapters/receipt"
	"nexx-gsm/core/catalog"
	"nexx-gsm/core/lead"
	"nexx-gsm/core/quote"
	"nexx-gsm/internal/errors"
)

// QuoteRequest is the body of POST /api/quote
type QuoteRequest struct {
	quote.Selection
	Contact lead.Contact `json:"contact"`
}

// QuoteResponse is the answer to POST /api/quote
type QuoteResponse struct {
	Success bool         `json:"success"`
	Quote   *quote.Quote `json:"quote"`
	LeadID  string       `json:"lead_id,omitempty"`
}

// aggregate runs the quoter and records the outcome
func (a *Adapter) aggregate(ctx context.Context, sel quote.Selection) (*quote.Quote, error) {
	sel.DeviceType = catalog.ParseDeviceType(string(sel.DeviceType))
	q, err := a.deps.Quotes.Aggregate(ctx, sel)
	if err != nil {
		a.deps.Metrics.Quote(strings.ToLower(string(errors.TypeOf(err))))
		return nil, err
	}
	a.deps.Metrics.Quote("ok")
	for _, item := range q.Items {
		a.deps.Metrics.QuoteItem(item.Tier.String())
	}
	return q, nil
}

func (a *Adapter) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := a.parseJSON(r, &req); err != nil {
		a.writeErr(w, r, err)
		return
	}
	if err := lead.ValidateContact(req.Contact); err != nil {
		a.writeErr(w, r, err)
		return
	}

	q, err := a.aggregate(r.Context(), req.Selection)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	resp := QuoteResponse{Success: true, Quote: q}
	if a.deps.Forwarder != nil {
		l := lead.FromQuote(q, req.Contact, a.deps.Now())
		a.deps.Forwarder.Forward(l)
		resp.LeadID = l.ID
	}
	a.writeJSON(w, http.StatusOK, resp)
}

// ReceiptRequest is the body of POST /api/quote/receipt
type ReceiptRequest struct {
	quote.Selection
	Customer string `json:"customer"`
}

func (a *Adapter) handleReceipt(w http.ResponseWriter, r *http.Request) {
	var req ReceiptRequest
	if err := a.parseJSON(r, &req); err != nil {
		a.writeErr(w, r, err)
		return
	}

	q, err := a.aggregate(r.Context(), req.Selection)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	opts := receipt.DefaultOptions()
	opts.Customer = strings.TrimSpace(req.Customer)
	opts.IssuedAt = a.deps.Now()
	pdf, err := receipt.Bytes(q, opts)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", receipt.Filename(q)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		a.logger.Debug("receipt write failed", zap.Error(err))
	}
}
