// Package pricing resolves a price band for one (device, defect) pair by
// trying four sources in strict order: the curated lei price, the
// manufacturer USD price, a computed category estimate and finally the raw
// category table.
package pricing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"nexx-gsm/core/catalog"
	"nexx-gsm/core/determinism"
	"nexx-gsm/internal/errors"
)

// Tier identifies which price source produced an estimate
type Tier int

const (
	TierCurated Tier = iota + 1
	TierManufacturer
	TierComputed
	TierCategory
)

// String returns string representation
func (t Tier) String() string {
	switch t {
	case TierCurated:
		return "curated"
	case TierManufacturer:
		return "manufacturer"
	case TierComputed:
		return "computed"
	case TierCategory:
		return "category"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *Tier) UnmarshalText(b []byte) error {
	for c := TierCurated; c <= TierCategory; c++ {
		if c.String() == string(b) {
			*t = c
			return nil
		}
	}
	return fmt.Errorf("unknown pricing tier %q", b)
}

// Request identifies what to price. Device may be nil when the customer did
// not pick a catalog model; DeviceType and Brand then come from the form.
type Request struct {
	Device     *catalog.DeviceRecord
	Defect     string
	DeviceType catalog.DeviceType
	Brand      string
}

// Estimate is one resolved price band
type Estimate struct {
	Defect string `json:"defect"`
	Band
	Tier Tier `json:"tier"`

	// Formula is a human-readable trace of how the avg was obtained
	Formula string `json:"formula"`
}

// Resolver produces estimates from a fixed set of rules
type Resolver struct {
	rules *Rules

	// Now is the clock used for age buckets
	Now func() time.Time
}

// NewResolver creates a resolver; nil rules means DefaultRules.
func NewResolver(rules *Rules) *Resolver {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Resolver{rules: rules, Now: time.Now}
}

// Rules returns the tables in use
func (r *Resolver) Rules() *Rules {
	return r.rules
}

// Resolve returns the first tier that yields a positive price. When every
// tier is exhausted the error is PRICE_UNRESOLVABLE; a zero estimate is
// never returned.
func (r *Resolver) Resolve(req Request) (Estimate, error) {
	defect := r.rules.Aliases.Canonical(req.Defect)
	if defect == "" {
		return Estimate{}, errors.Validation("defect is required")
	}

	deviceType := req.DeviceType
	brand := catalog.Normalize(req.Brand)
	year := 0
	if req.Device != nil {
		if deviceType == catalog.Unknown {
			deviceType = req.Device.DeviceType
		}
		if brand == "" {
			brand = catalog.Normalize(req.Device.Brand)
		}
		year = req.Device.Year
	}

	if req.Device != nil {
		keys := r.rules.Aliases.Keys(defect)
		if v, key, ok := req.Device.LocalPrices.Lookup(keys); ok {
			if avg := determinism.RoundUnit(v); avg > 0 {
				return r.deviceEstimate(defect, avg, TierCurated,
					fmt.Sprintf("curated %s[%s] = %s", req.Device.Name, key, v)), nil
			}
		}
		if v, key, ok := req.Device.ManufacturerPrices.Lookup(keys); ok {
			if avg := determinism.RoundUnit(v.Mul(r.rules.USDToLocal)); avg > 0 {
				return r.deviceEstimate(defect, avg, TierManufacturer,
					fmt.Sprintf("manufacturer %s[%s] = %s USD x %s", req.Device.Name, key, v, r.rules.USDToLocal)), nil
			}
		}
	}

	if base, ok := r.rules.Base[defect][deviceType]; ok && base.Avg > 0 {
		return r.computed(defect, base, brand, year), nil
	}

	if est, ok := r.category(defect, deviceType); ok {
		return est, nil
	}

	return Estimate{}, errors.Unresolvable(defect, displayType(deviceType))
}

func displayType(t catalog.DeviceType) string {
	if t == catalog.Unknown {
		return "unknown device type"
	}
	return string(t)
}

func (r *Resolver) deviceEstimate(defect string, avg int64, tier Tier, formula string) Estimate {
	a := decimal.NewFromInt(avg)
	return Estimate{
		Defect: defect,
		Band: Band{
			Min: determinism.RoundUnit(a.Mul(r.rules.DeviceSpread.Low)),
			Max: determinism.RoundUnit(a.Mul(r.rules.DeviceSpread.High)),
			Avg: avg,
		},
		Tier:    tier,
		Formula: formula,
	}
}

func (r *Resolver) computed(defect string, base Band, brand string, year int) Estimate {
	complexity := r.rules.ComplexityFactor(defect)
	bucket := AgeBucketFor(year, r.Now())
	age := r.rules.AgeFactor(bucket)
	brandFactor, brandKey := r.rules.BrandFactor(brand)

	floor := decimal.NewFromInt(r.rules.Floor)
	raw := decimal.NewFromInt(base.Avg).Mul(complexity).Mul(age).Mul(brandFactor)
	avg := determinism.RoundTen(decimal.Max(raw, floor))
	if avg < r.rules.Floor {
		avg = r.rules.Floor
	}

	a := decimal.NewFromInt(avg)
	low := determinism.RoundUnit(a.Mul(r.rules.ComputedSpread.Low))
	if low < r.rules.Floor {
		low = r.rules.Floor
	}

	return Estimate{
		Defect: defect,
		Band: Band{
			Min: low,
			Max: determinism.RoundUnit(a.Mul(r.rules.ComputedSpread.High)),
			Avg: avg,
		},
		Tier: TierComputed,
		Formula: strings.Join([]string{
			fmt.Sprintf("%d", base.Avg),
			fmt.Sprintf("%s (complexity)", complexity),
			fmt.Sprintf("%s (age %s)", age, bucket),
			fmt.Sprintf("%s (brand %s)", brandFactor, brandKey),
		}, " x ") + fmt.Sprintf(" = %s -> %d", raw, avg),
	}
}

// category is the coarse last resort: the first category entry for the
// device type in canonical defect order, lifted to the floor.
func (r *Resolver) category(defect string, deviceType catalog.DeviceType) (Estimate, bool) {
	if deviceType == catalog.Unknown {
		return Estimate{}, false
	}
	for _, id := range r.rules.ScanOrder() {
		b, ok := r.rules.Base[id][deviceType]
		if !ok || b.Avg <= 0 {
			continue
		}
		if b.Min < r.rules.Floor {
			b.Min = r.rules.Floor
		}
		if b.Avg < b.Min {
			b.Avg = b.Min
		}
		if b.Max < b.Avg {
			b.Max = b.Avg
		}
		return Estimate{
			Defect:  defect,
			Band:    b,
			Tier:    TierCategory,
			Formula: fmt.Sprintf("category %s/%s", id, deviceType),
		}, true
	}
	return Estimate{}, false
}
