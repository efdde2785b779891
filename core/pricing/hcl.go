package pricing

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/shopspring/decimal"

	"nexx-gsm/core/catalog"
	"nexx-gsm/internal/errors"
)

// rulesFile is the HCL shape of a pricing rules file. Every attribute is
// optional; anything left out keeps the built-in value.
//
//	usd_to_local    = 4.6
//	floor           = 30
//	bundle_discount = 0.1
//
//	base "battery" "phone" {
//	  min = 120
//	  max = 300
//	  avg = 180
//	}
//
//	complexity = { battery = 1.0 }
//	brand      = { apple = 1.15, other = 1.0 }
//	age        = { current = 1.0, recent = 1.05 }
//
//	alias "screen" {
//	  keys = ["display", "ecran"]
//	}
type rulesFile struct {
	USDToLocal     *float64           `hcl:"usd_to_local,optional"`
	Floor          *int64             `hcl:"floor,optional"`
	BundleDiscount *float64           `hcl:"bundle_discount,optional"`
	Currency       *string            `hcl:"currency,optional"`
	Complexity     map[string]float64 `hcl:"complexity,optional"`
	Brand          map[string]float64 `hcl:"brand,optional"`
	Age            map[string]float64 `hcl:"age,optional"`
	Names          map[string]string  `hcl:"names,optional"`
	Bases          []baseBlock        `hcl:"base,block"`
	Aliases        []aliasBlock       `hcl:"alias,block"`
}

type baseBlock struct {
	Defect     string `hcl:"defect,label"`
	DeviceType string `hcl:"device_type,label"`
	Min        int64  `hcl:"min"`
	Max        int64  `hcl:"max"`
	Avg        int64  `hcl:"avg"`
}

type aliasBlock struct {
	Canonical string   `hcl:"canonical,label"`
	Keys      []string `hcl:"keys"`
}

// LoadRulesFile reads an HCL rules file on top of DefaultRules.
func LoadRulesFile(path string) (*Rules, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Config("read pricing rules", err).WithContext("path", path)
	}
	return ParseRules(src, path)
}

// ParseRules parses HCL source on top of DefaultRules and validates the result.
func ParseRules(src []byte, filename string) (*Rules, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.Config("parse pricing rules", diagError(diags))
	}

	var rf rulesFile
	if diags := gohcl.DecodeBody(file.Body, nil, &rf); diags.HasErrors() {
		return nil, errors.Config("decode pricing rules", diagError(diags))
	}

	rules := DefaultRules()
	if err := rf.apply(rules); err != nil {
		return nil, errors.Config("pricing rules", err)
	}
	if err := rules.Validate(); err != nil {
		return nil, errors.Config("pricing rules", err)
	}
	return rules, nil
}

func (rf *rulesFile) apply(r *Rules) error {
	if rf.USDToLocal != nil {
		r.USDToLocal = decimal.NewFromFloat(*rf.USDToLocal)
	}
	if rf.Floor != nil {
		r.Floor = *rf.Floor
	}
	if rf.BundleDiscount != nil {
		r.BundleDiscount = decimal.NewFromFloat(*rf.BundleDiscount)
	}
	if rf.Currency != nil {
		r.Currency = *rf.Currency
	}

	for _, a := range rf.Aliases {
		r.Aliases.Add(a.Canonical, a.Keys...)
	}

	for _, b := range rf.Bases {
		defect := r.Aliases.Canonical(b.Defect)
		dt := catalog.ParseDeviceType(b.DeviceType)
		if dt == catalog.Unknown {
			return fmt.Errorf("base %q: unknown device type %q", b.Defect, b.DeviceType)
		}
		if r.Base[defect] == nil {
			r.Base[defect] = make(map[catalog.DeviceType]Band)
		}
		r.Base[defect][dt] = Band{Min: b.Min, Max: b.Max, Avg: b.Avg}
	}

	for k, v := range rf.Complexity {
		r.Complexity[r.Aliases.Canonical(k)] = decimal.NewFromFloat(v)
	}
	for k, v := range rf.Brand {
		r.Brand[strings.ToLower(k)] = decimal.NewFromFloat(v)
	}
	for k, v := range rf.Age {
		bucket := AgeBucket(k)
		switch bucket {
		case AgeCurrent, AgeRecent, AgeOld, AgeVeryOld:
		default:
			return fmt.Errorf("age: unknown bucket %q", k)
		}
		r.Age[bucket] = decimal.NewFromFloat(v)
	}
	for k, v := range rf.Names {
		r.Names[r.Aliases.Canonical(k)] = v
	}
	return nil
}

func diagError(diags hcl.Diagnostics) error {
	var msgs []string
	for _, diag := range diags {
		if diag.Severity != hcl.DiagError {
			continue
		}
		line := 0
		if diag.Subject != nil {
			line = diag.Subject.Start.Line
		}
		msgs = append(msgs, fmt.Sprintf("line %d: %s: %s", line, diag.Summary, diag.Detail))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
