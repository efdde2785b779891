package pricing

import (
	"os"
	"path/filepath"
	"testing"

	"nexx-gsm/core/catalog"
	"nexx-gsm/internal/errors"
)

const rulesSrc = `
usd_to_local    = 5
bundle_discount = 0.15
currency        = "RON"

base "battery" "phone" {
  min = 150
  max = 350
  avg = 200
}

base "speaker" "phone" {
  min = 80
  max = 200
  avg = 120
}

complexity = {
  speaker = 1.1
}

brand = {
  Oppo = 0.95
}

alias "speaker" {
  keys = ["difuzor", "speaker_mic"]
}

names = {
  speaker = "Difuzor"
}
`

func TestParseRulesOverridesDefaults(t *testing.T) {
	rules, err := ParseRules([]byte(rulesSrc), "rules.hcl")
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}

	if rules.USDToLocal.String() != "5" || rules.BundleDiscount.String() != "0.15" || rules.Currency != "RON" {
		t.Errorf("scalars = %s %s %s", rules.USDToLocal, rules.BundleDiscount, rules.Currency)
	}
	if rules.Floor != 30 {
		t.Errorf("floor lost its default: %d", rules.Floor)
	}
	if got := rules.Base[DefectBattery][catalog.Phone]; got != (Band{Min: 150, Max: 350, Avg: 200}) {
		t.Errorf("battery/phone = %+v", got)
	}
	if got := rules.Base[DefectBattery][catalog.Tablet]; got.Avg != 280 {
		t.Errorf("battery/tablet default lost: %+v", got)
	}
	if rules.Aliases.Canonical("difuzor") != "speaker" {
		t.Error("alias block not applied")
	}
	if f, _ := rules.BrandFactor("oppo"); f.String() != "0.95" {
		t.Errorf("brand oppo = %s", f)
	}
	if rules.DisplayName("speaker") != "Difuzor" {
		t.Errorf("name = %s", rules.DisplayName("speaker"))
	}

	order := rules.ScanOrder()
	if order[0] != DefectScreen || order[len(order)-1] != "speaker" {
		t.Errorf("scan order = %v", order)
	}

	r := NewResolver(rules)
	r.Now = fixedClock(2025)
	est, err := r.Resolve(Request{Defect: "difuzor", DeviceType: catalog.Phone, Brand: "oppo"})
	if err != nil {
		t.Fatal(err)
	}
	// 120 x 1.1 x 1.0 x 0.95 = 125.4
	if est.Tier != TierComputed || est.Avg != 130 {
		t.Errorf("speaker estimate = %s %+v", est.Tier, est.Band)
	}
}

func TestParseRulesRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `usd_to_local = `},
		{"unknown attribute", `exchange = 4`},
		{"unknown device type", "base \"screen\" \"console\" {\n min = 1\n max = 2\n avg = 1\n}"},
		{"inverted band", "base \"screen\" \"phone\" {\n min = 500\n max = 400\n avg = 450\n}"},
		{"unknown age bucket", `age = { ancient = 2 }`},
		{"discount out of range", `bundle_discount = 1.5`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.src), "bad.hcl")
			if !errors.IsType(err, errors.TypeConfig) {
				t.Errorf("err = %v, want %s", err, errors.TypeConfig)
			}
		})
	}
}

func TestLoadRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.hcl")
	if err := os.WriteFile(path, []byte(`floor = 50`), 0644); err != nil {
		t.Fatal(err)
	}
	rules, err := LoadRulesFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if rules.Floor != 50 {
		t.Errorf("floor = %d", rules.Floor)
	}

	if _, err := LoadRulesFile(filepath.Join(t.TempDir(), "missing.hcl")); !errors.IsType(err, errors.TypeConfig) {
		t.Errorf("missing file err = %v", err)
	}
}

func TestDefaultRulesValidate(t *testing.T) {
	if err := DefaultRules().Validate(); err != nil {
		t.Fatal(err)
	}
}
