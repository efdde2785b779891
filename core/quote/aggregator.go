// Package quote bundles per-defect estimates into one customer quote.
package quote

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"nexx-gsm/core/catalog"
	"nexx-gsm/core/determinism"
	"nexx-gsm/core/pricing"
	"nexx-gsm/internal/errors"
	"nexx-gsm/internal/logging"
)

// MaxDefects bounds a single selection
const MaxDefects = 10

// Selection is what the customer picked, defects in selection order.
type Selection struct {
	// DeviceName is free text matched against the catalog
	DeviceName string `json:"device"`

	// DeviceSlug pins an exact catalog record and wins over DeviceName
	DeviceSlug string `json:"device_slug,omitempty"`

	DeviceType catalog.DeviceType `json:"device_type"`
	Brand      string             `json:"brand"`
	Defects    []string           `json:"defects"`
}

// LineItem is one defect's share of the quote
type LineItem struct {
	Defect string `json:"defect"`
	Name   string `json:"name"`

	// Band is the amount charged, after any bundle discount
	pricing.Band

	// Resolved is the estimate before discount
	Resolved   pricing.Band `json:"resolved"`
	Discounted bool         `json:"discounted"`
	Tier       pricing.Tier `json:"tier"`
	Formula    string       `json:"formula"`
}

// Quote is the aggregated, customer-facing estimate
type Quote struct {
	Fingerprint determinism.Fingerprint `json:"fingerprint"`

	// Device is the matched catalog name, or the free text when nothing matched
	Device     string             `json:"device,omitempty"`
	DeviceSlug string             `json:"device_slug,omitempty"`
	Matched    bool               `json:"matched"`
	DeviceType catalog.DeviceType `json:"device_type"`
	Brand      string             `json:"brand,omitempty"`

	Items      []LineItem   `json:"items"`
	Total      pricing.Band `json:"total"`
	Defects    []string     `json:"defects"`
	RepairTime string       `json:"repair_time"`
	Currency   string       `json:"currency"`

	// CatalogAvailable is false when device pricing was skipped
	CatalogAvailable bool `json:"catalog_available"`
}

// Catalog is where the aggregator finds device records
type Catalog interface {
	Store() (*catalog.Store, error)
}

// Aggregator turns selections into quotes
type Aggregator struct {
	resolver *pricing.Resolver
	catalog  Catalog
	logger   *zap.Logger
	ids      *determinism.FingerprintGenerator
}

// NewAggregator creates an aggregator. A nil catalog means category pricing only.
func NewAggregator(resolver *pricing.Resolver, c Catalog) *Aggregator {
	return &Aggregator{
		resolver: resolver,
		catalog:  c,
		logger:   logging.Named("quote"),
		ids:      determinism.NewFingerprintGenerator("nexx-quote"),
	}
}

// Aggregate prices every selected defect and sums the bands, discounting
// every item after the first. If any defect cannot be priced the whole
// quote fails.
func (a *Aggregator) Aggregate(ctx context.Context, sel Selection) (*Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rules := a.resolver.Rules()
	defects, err := canonicalDefects(rules.Aliases, sel.Defects)
	if err != nil {
		return nil, err
	}

	q := &Quote{
		DeviceType: sel.DeviceType,
		Brand:      catalog.Normalize(sel.Brand),
		Currency:   rules.Currency,
	}

	device, available := a.lookup(sel)
	q.CatalogAvailable = available
	if device != nil {
		q.Device = device.Name
		q.DeviceSlug = device.Slug
		q.Matched = true
		if q.DeviceType == catalog.Unknown {
			q.DeviceType = device.DeviceType
		}
		if q.Brand == "" {
			q.Brand = device.Brand
		}
	} else {
		q.Device = strings.TrimSpace(sel.DeviceName)
		if q.DeviceType == catalog.Unknown && q.Device != "" {
			q.DeviceType = catalog.InferDeviceType(q.Device)
		}
	}

	keep := decimal.NewFromInt(1).Sub(rules.BundleDiscount)
	for i, defect := range defects {
		est, err := a.resolver.Resolve(pricing.Request{
			Device:     device,
			Defect:     defect,
			DeviceType: q.DeviceType,
			Brand:      q.Brand,
		})
		if err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i+1, defect, err)
		}

		item := LineItem{
			Defect:   defect,
			Name:     rules.DisplayName(defect),
			Band:     est.Band,
			Resolved: est.Band,
			Tier:     est.Tier,
			Formula:  est.Formula,
		}
		if i > 0 {
			item.Band = discount(est.Band, keep)
			item.Discounted = true
		}

		q.Items = append(q.Items, item)
		q.Defects = append(q.Defects, item.Name)
		q.Total.Min += item.Min
		q.Total.Max += item.Max
		q.Total.Avg += item.Avg
	}

	q.RepairTime = RepairTime(q.DeviceType, defects)
	q.Fingerprint = a.ids.Generate(append([]string{
		catalog.Normalize(q.Device), string(q.DeviceType), q.Brand,
	}, defects...)...)

	a.logger.Debug("quote aggregated",
		zap.String("fingerprint", string(q.Fingerprint)),
		zap.String("device", q.Device),
		zap.Strings("defects", defects),
		zap.Int64("avg", q.Total.Avg))

	return q, nil
}

func discount(b pricing.Band, keep decimal.Decimal) pricing.Band {
	return pricing.Band{
		Min: determinism.RoundUnit(decimal.NewFromInt(b.Min).Mul(keep)),
		Max: determinism.RoundUnit(decimal.NewFromInt(b.Max).Mul(keep)),
		Avg: determinism.RoundUnit(decimal.NewFromInt(b.Avg).Mul(keep)),
	}
}

// lookup finds the selected device. It reports false when the catalog is
// not available so the caller can tell the customer device pricing was
// skipped.
func (a *Aggregator) lookup(sel Selection) (*catalog.DeviceRecord, bool) {
	if a.catalog == nil {
		return nil, false
	}
	if sel.DeviceSlug == "" && strings.TrimSpace(sel.DeviceName) == "" {
		return nil, true
	}

	store, err := a.catalog.Store()
	if err != nil {
		a.logger.Warn("catalog unavailable, using category pricing", zap.Error(err))
		return nil, false
	}

	if sel.DeviceSlug != "" {
		if d, ok := store.BySlug(sel.DeviceSlug); ok {
			return d, true
		}
	}
	if d, ok := store.FindDevice(sel.DeviceName); ok {
		return d, true
	}
	return nil, true
}

func canonicalDefects(aliases *pricing.AliasTable, raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, errors.Validation("select at least one defect").WithContext("field", "defects")
	}
	if len(raw) > MaxDefects {
		return nil, errors.Validation(fmt.Sprintf("at most %d defects per quote", MaxDefects)).
			WithContext("field", "defects")
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		id := aliases.Canonical(r)
		if id == "" {
			return nil, errors.Validation("defect id must not be empty").WithContext("field", "defects")
		}
		if seen[id] {
			return nil, errors.Validation(fmt.Sprintf("defect %q selected twice", id)).
				WithContext("field", "defects")
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}
