package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"nexx-gsm/core/catalog"
	"nexx-gsm/core/determinism"
)

// Canonical defect ids
const (
	DefectScreen      = "screen"
	DefectBattery     = "battery"
	DefectCharging    = "charging"
	DefectCamera      = "camera"
	DefectMotherboard = "motherboard"
	DefectKeyboard    = "keyboard"
	DefectWater       = "water"
)

// DefectOrder is the canonical order used when scanning category tables
var DefectOrder = []string{
	DefectScreen, DefectBattery, DefectCharging, DefectCamera,
	DefectMotherboard, DefectKeyboard, DefectWater,
}

// BoardLevel reports whether a defect needs board-level work
func BoardLevel(defect string) bool {
	return defect == DefectMotherboard || defect == DefectWater
}

var defectNames = map[string]string{
	DefectScreen:      "Ecran / display",
	DefectBattery:     "Baterie",
	DefectCharging:    "Port încărcare",
	DefectCamera:      "Cameră",
	DefectMotherboard: "Placă de bază",
	DefectKeyboard:    "Tastatură",
	DefectWater:       "Contact cu lichide",
}

// DefaultUSDToLocal converts manufacturer USD list prices into lei
const DefaultUSDToLocal = "4.6"

// AgeBucket groups devices by years since release
type AgeBucket string

const (
	AgeCurrent AgeBucket = "current"
	AgeRecent  AgeBucket = "recent"
	AgeOld     AgeBucket = "old"
	AgeVeryOld AgeBucket = "veryOld"
)

// AgeBucketFor returns the bucket for a model year. An unknown or future
// year counts as current.
func AgeBucketFor(year int, now time.Time) AgeBucket {
	if year <= 0 {
		return AgeCurrent
	}
	age := now.Year() - year
	switch {
	case age <= 1:
		return AgeCurrent
	case age <= 3:
		return AgeRecent
	case age <= 6:
		return AgeOld
	default:
		return AgeVeryOld
	}
}

// Band is a {min, max, avg} estimate in whole lei
type Band struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
	Avg int64 `json:"avg"`
}

// Valid reports min <= avg <= max with a positive avg
func (b Band) Valid() bool {
	return b.Avg > 0 && b.Min <= b.Avg && b.Avg <= b.Max
}

// Spread is the multiplier pair used to derive min and max from avg
type Spread struct {
	Low  decimal.Decimal
	High decimal.Decimal
}

// Rules holds every table the resolver reads. A Rules value must not be
// mutated once handed to a Resolver.
type Rules struct {
	Currency   string
	USDToLocal decimal.Decimal
	Floor      int64

	// BundleDiscount applies to every quote item after the first
	BundleDiscount decimal.Decimal

	// DeviceSpread derives the band for curated and manufacturer prices
	DeviceSpread Spread

	// ComputedSpread derives the band for computed category prices
	ComputedSpread Spread

	// Base is keyed by defect, then device type
	Base       map[string]map[catalog.DeviceType]Band
	Complexity map[string]decimal.Decimal
	Brand      map[string]decimal.Decimal
	Age        map[AgeBucket]decimal.Decimal
	Aliases    *AliasTable
	Names      map[string]string
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DefaultRules returns the built-in lei tables
func DefaultRules() *Rules {
	return &Rules{
		Currency:       "lei",
		USDToLocal:     dec(DefaultUSDToLocal),
		Floor:          30,
		BundleDiscount: dec("0.10"),
		DeviceSpread:   Spread{Low: dec("0.8"), High: dec("1.2")},
		ComputedSpread: Spread{Low: dec("0.75"), High: dec("1.35")},
		Base: map[string]map[catalog.DeviceType]Band{
			DefectScreen: {
				catalog.Phone:  {Min: 200, Max: 900, Avg: 450},
				catalog.Tablet: {Min: 300, Max: 1200, Avg: 650},
				catalog.Laptop: {Min: 500, Max: 2500, Avg: 1200},
				catalog.Watch:  {Min: 250, Max: 900, Avg: 500},
			},
			DefectBattery: {
				catalog.Phone:  {Min: 120, Max: 300, Avg: 180},
				catalog.Tablet: {Min: 180, Max: 450, Avg: 280},
				catalog.Laptop: {Min: 300, Max: 800, Avg: 500},
				catalog.Watch:  {Min: 150, Max: 350, Avg: 220},
			},
			DefectCharging: {
				catalog.Phone:  {Min: 100, Max: 300, Avg: 170},
				catalog.Tablet: {Min: 130, Max: 350, Avg: 220},
				catalog.Laptop: {Min: 150, Max: 450, Avg: 280},
			},
			DefectCamera: {
				catalog.Phone:  {Min: 150, Max: 600, Avg: 320},
				catalog.Tablet: {Min: 180, Max: 500, Avg: 300},
			},
			DefectMotherboard: {
				catalog.Phone:  {Min: 300, Max: 1500, Avg: 700},
				catalog.Tablet: {Min: 400, Max: 1600, Avg: 800},
				catalog.Laptop: {Min: 600, Max: 2500, Avg: 1300},
			},
			DefectKeyboard: {
				catalog.Laptop: {Min: 250, Max: 900, Avg: 450},
			},
			DefectWater: {
				catalog.Phone:  {Min: 250, Max: 800, Avg: 400},
				catalog.Tablet: {Min: 300, Max: 900, Avg: 450},
				catalog.Laptop: {Min: 400, Max: 1500, Avg: 700},
			},
		},
		Complexity: map[string]decimal.Decimal{
			DefectScreen:      dec("1.0"),
			DefectBattery:     dec("1.0"),
			DefectCharging:    dec("1.05"),
			DefectCamera:      dec("1.1"),
			DefectMotherboard: dec("1.5"),
			DefectKeyboard:    dec("1.2"),
			DefectWater:       dec("1.3"),
		},
		Brand: map[string]decimal.Decimal{
			"apple":   dec("1.15"),
			"samsung": dec("1.1"),
			"google":  dec("1.05"),
			"huawei":  dec("1.0"),
			"xiaomi":  dec("0.95"),
			"other":   dec("1.0"),
		},
		Age: map[AgeBucket]decimal.Decimal{
			AgeCurrent: dec("1.0"),
			AgeRecent:  dec("1.05"),
			AgeOld:     dec("1.15"),
			AgeVeryOld: dec("1.25"),
		},
		Aliases: DefaultAliases(),
		Names:   copyNames(defectNames),
	}
}

func copyNames(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// DisplayName returns the customer-facing name of a defect
func (r *Rules) DisplayName(defect string) string {
	if n, ok := r.Names[defect]; ok {
		return n
	}
	return defect
}

// ScanOrder returns the defects in canonical order followed by any extra
// defects from a rules file, sorted.
func (r *Rules) ScanOrder() []string {
	known := make(map[string]bool, len(DefectOrder))
	order := make([]string, 0, len(r.Base))
	for _, id := range DefectOrder {
		known[id] = true
		if _, ok := r.Base[id]; ok {
			order = append(order, id)
		}
	}
	for _, id := range determinism.SortedKeys(r.Base) {
		if !known[id] {
			order = append(order, id)
		}
	}
	return order
}

// BrandFactor returns the factor for brand, falling back to "other"
func (r *Rules) BrandFactor(brand string) (decimal.Decimal, string) {
	if f, ok := r.Brand[brand]; ok {
		return f, brand
	}
	if f, ok := r.Brand["other"]; ok {
		return f, "other"
	}
	return decimal.NewFromInt(1), "other"
}

// ComplexityFactor returns the factor for defect, default 1.0
func (r *Rules) ComplexityFactor(defect string) decimal.Decimal {
	if f, ok := r.Complexity[defect]; ok {
		return f
	}
	return decimal.NewFromInt(1)
}

// AgeFactor returns the coefficient for a bucket, default 1.0
func (r *Rules) AgeFactor(b AgeBucket) decimal.Decimal {
	if f, ok := r.Age[b]; ok {
		return f
	}
	return decimal.NewFromInt(1)
}

// Validate checks the tables for values the resolver cannot honor
func (r *Rules) Validate() error {
	if !r.USDToLocal.IsPositive() {
		return fmt.Errorf("usd_to_local must be positive, got %s", r.USDToLocal)
	}
	if r.Floor < 0 {
		return fmt.Errorf("floor must not be negative, got %d", r.Floor)
	}
	if r.BundleDiscount.IsNegative() || r.BundleDiscount.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("bundle_discount must be in [0,1), got %s", r.BundleDiscount)
	}
	for _, s := range []Spread{r.DeviceSpread, r.ComputedSpread} {
		if s.Low.GreaterThan(decimal.NewFromInt(1)) || s.High.LessThan(decimal.NewFromInt(1)) || s.Low.IsNegative() {
			return fmt.Errorf("spread %s..%s must bracket 1", s.Low, s.High)
		}
	}
	for _, defect := range determinism.SortedKeys(r.Base) {
		for dt, b := range r.Base[defect] {
			if !b.Valid() {
				return fmt.Errorf("base %s/%s: need 0 < avg and min <= avg <= max, got %d/%d/%d",
					defect, dt, b.Min, b.Avg, b.Max)
			}
		}
	}
	for name, f := range r.Complexity {
		if !f.IsPositive() {
			return fmt.Errorf("complexity %s must be positive", name)
		}
	}
	for name, f := range r.Brand {
		if !f.IsPositive() {
			return fmt.Errorf("brand %s must be positive", name)
		}
	}
	for name, f := range r.Age {
		if !f.IsPositive() {
			return fmt.Errorf("age %s must be positive", name)
		}
	}
	return nil
}
