package pricing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"nexx-gsm/core/catalog"
	"nexx-gsm/internal/errors"
)

func fixedClock(year int) func() time.Time {
	return func() time.Time { return time.Date(year, time.June, 1, 12, 0, 0, 0, time.UTC) }
}

func newResolver() *Resolver {
	r := NewResolver(nil)
	r.Now = fixedClock(2025)
	return r
}

func table(kv map[string]string) catalog.PriceTable {
	t := make(catalog.PriceTable, len(kv))
	for k, v := range kv {
		t[k] = decimal.RequireFromString(v)
	}
	return t
}

func iphone15Pro() *catalog.DeviceRecord {
	return &catalog.DeviceRecord{
		Name:               "iPhone 15 Pro",
		Brand:              "apple",
		DeviceType:         catalog.Phone,
		Year:               2023,
		ManufacturerPrices: table(map[string]string{"display": "379", "battery": "99"}),
		LocalPrices:        table(map[string]string{"display": "1450"}),
	}
}

func TestCuratedPriceWins(t *testing.T) {
	est, err := newResolver().Resolve(Request{Device: iphone15Pro(), Defect: "screen"})
	if err != nil {
		t.Fatal(err)
	}
	if est.Tier != TierCurated {
		t.Fatalf("tier = %s, want curated", est.Tier)
	}
	want := Band{Min: 1160, Max: 1740, Avg: 1450}
	if est.Band != want {
		t.Errorf("band = %+v, want %+v", est.Band, want)
	}
}

func TestFallbackIsMonotonic(t *testing.T) {
	r := newResolver()
	device := iphone15Pro()

	device.LocalPrices = nil
	est, err := r.Resolve(Request{Device: device, Defect: "screen"})
	if err != nil {
		t.Fatal(err)
	}
	// 379 USD x 4.6 = 1743.4
	if est.Tier != TierManufacturer || est.Band != (Band{Min: 1394, Max: 2092, Avg: 1743}) {
		t.Errorf("manufacturer tier: %s %+v", est.Tier, est.Band)
	}

	device.ManufacturerPrices = nil
	est, err = r.Resolve(Request{Device: device, Defect: "screen"})
	if err != nil {
		t.Fatal(err)
	}
	// 450 x 1.0 x 1.05 (recent) x 1.15 (apple) = 543.375
	if est.Tier != TierComputed || est.Band != (Band{Min: 405, Max: 729, Avg: 540}) {
		t.Errorf("computed tier: %s %+v", est.Tier, est.Band)
	}
}

func TestIPhone14BatteryExample(t *testing.T) {
	device := &catalog.DeviceRecord{Name: "iPhone 14", Brand: "Apple", DeviceType: catalog.Phone, Year: 2022}
	est, err := newResolver().Resolve(Request{Device: device, Defect: "battery", DeviceType: catalog.Phone})
	if err != nil {
		t.Fatal(err)
	}
	if est.Tier != TierComputed {
		t.Fatalf("tier = %s", est.Tier)
	}
	want := Band{Min: 165, Max: 297, Avg: 220}
	if est.Band != want {
		t.Errorf("band = %+v, want %+v (formula %s)", est.Band, want, est.Formula)
	}
}

func TestAliasesProbeDeviceTables(t *testing.T) {
	device := &catalog.DeviceRecord{
		Name:        "Galaxy S21",
		Brand:       "samsung",
		DeviceType:  catalog.Phone,
		LocalPrices: table(map[string]string{"charging_port": "250", "logic_board": "0"}),
	}
	r := newResolver()

	est, err := r.Resolve(Request{Device: device, Defect: "charging"})
	if err != nil || est.Tier != TierCurated || est.Avg != 250 {
		t.Errorf("charging: %+v, %v", est, err)
	}

	// incoming aliases are canonicalized once
	est, err = r.Resolve(Request{Device: device, Defect: "Charging-Port"})
	if err != nil || est.Defect != DefectCharging || est.Avg != 250 {
		t.Errorf("charging-port: %+v, %v", est, err)
	}

	// a zero curated price is not usable
	est, err = r.Resolve(Request{Device: device, Defect: "board"})
	if err != nil || est.Tier != TierComputed {
		t.Errorf("board: %+v, %v", est, err)
	}
}

func TestCategoryFallback(t *testing.T) {
	est, err := newResolver().Resolve(Request{Defect: "speaker", DeviceType: catalog.Phone})
	if err != nil {
		t.Fatal(err)
	}
	if est.Tier != TierCategory || est.Band != (Band{Min: 200, Max: 900, Avg: 450}) {
		t.Errorf("got %s %+v, want raw screen/phone", est.Tier, est.Band)
	}
	if est.Defect != "speaker" {
		t.Errorf("defect = %s", est.Defect)
	}
}

func TestCategoryFallbackLiftsToFloor(t *testing.T) {
	rules := DefaultRules()
	rules.Base = map[string]map[catalog.DeviceType]Band{
		DefectScreen: {catalog.Watch: {Min: 10, Max: 25, Avg: 20}},
	}
	r := NewResolver(rules)
	est, err := r.Resolve(Request{Defect: "battery", DeviceType: catalog.Watch})
	if err != nil {
		t.Fatal(err)
	}
	if est.Band != (Band{Min: 30, Max: 30, Avg: 30}) {
		t.Errorf("band = %+v", est.Band)
	}
}

func TestComputedKeepsOddFloor(t *testing.T) {
	rules := DefaultRules()
	rules.Floor = 34
	rules.Base = map[string]map[catalog.DeviceType]Band{
		DefectBattery: {catalog.Watch: {Min: 10, Max: 40, Avg: 20}},
	}
	r := NewResolver(rules)
	r.Now = fixedClock(2025)

	est, err := r.Resolve(Request{Defect: "battery", DeviceType: catalog.Watch, Brand: "Nokia"})
	if err != nil {
		t.Fatal(err)
	}
	if est.Tier != TierComputed {
		t.Fatalf("tier = %s, want computed", est.Tier)
	}
	if !est.Valid() || est.Min < 34 {
		t.Errorf("band = %+v", est.Band)
	}
	if est.Band != (Band{Min: 34, Max: 46, Avg: 34}) {
		t.Errorf("band = %+v, want 34/34/46", est.Band)
	}
}

func TestUnresolvable(t *testing.T) {
	rules := DefaultRules()
	rules.Base = map[string]map[catalog.DeviceType]Band{
		DefectBattery: {catalog.Phone: {Min: 120, Max: 300, Avg: 180}},
	}
	r := NewResolver(rules)

	tests := []struct {
		name string
		req  Request
	}{
		{"type absent everywhere", Request{Defect: "screen", DeviceType: catalog.Tablet}},
		{"no device type", Request{Defect: "battery"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, err := r.Resolve(tt.req)
			if !errors.IsType(err, errors.TypeUnresolvable) {
				t.Fatalf("err = %v, est = %+v", err, est)
			}
			if est != (Estimate{}) {
				t.Errorf("estimate returned alongside error: %+v", est)
			}
		})
	}

	if _, err := r.Resolve(Request{Defect: "  "}); !errors.IsType(err, errors.TypeValidation) {
		t.Errorf("empty defect err = %v", err)
	}
}

func TestBandsHoldEverywhere(t *testing.T) {
	r := newResolver()
	devices := []*catalog.DeviceRecord{
		nil,
		iphone15Pro(),
		{Name: "Redmi 4", Brand: "xiaomi", DeviceType: catalog.Phone, Year: 2016},
		{Name: "Tiny", Brand: "other", DeviceType: catalog.Watch, LocalPrices: table(map[string]string{"battery": "1"})},
		{Name: "Cheap", Brand: "other", DeviceType: catalog.Phone, ManufacturerPrices: table(map[string]string{"screen": "0.2"})},
	}
	defects := append(append([]string{}, DefectOrder...), "speaker", "display")

	for _, device := range devices {
		for _, dt := range catalog.DeviceTypes {
			for _, defect := range defects {
				est, err := r.Resolve(Request{Device: device, Defect: defect, DeviceType: dt, Brand: "apple"})
				if err != nil {
					t.Errorf("%v %s %s: %v", device, dt, defect, err)
					continue
				}
				if !est.Valid() {
					t.Errorf("%s/%s: invalid band %+v", dt, defect, est.Band)
				}
				if est.Tier >= TierComputed && est.Min < r.Rules().Floor {
					t.Errorf("%s/%s: min %d below floor", dt, defect, est.Min)
				}
			}
		}
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	r := newResolver()
	req := Request{Device: iphone15Pro(), Defect: "camera"}

	a, errA := r.Resolve(req)
	b, errB := r.Resolve(req)
	if errA != nil || errB != nil {
		t.Fatal(errA, errB)
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Errorf("outputs differ:\n%s\n%s", ja, jb)
	}
}

func TestAgeBuckets(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		year int
		want AgeBucket
	}{
		{0, AgeCurrent},
		{2026, AgeCurrent},
		{2025, AgeCurrent},
		{2024, AgeCurrent},
		{2023, AgeRecent},
		{2022, AgeRecent},
		{2021, AgeOld},
		{2019, AgeOld},
		{2018, AgeVeryOld},
	}
	for _, tt := range tests {
		if got := AgeBucketFor(tt.year, now); got != tt.want {
			t.Errorf("AgeBucketFor(%d) = %s, want %s", tt.year, got, tt.want)
		}
	}
}

func TestUnknownBrandUsesOther(t *testing.T) {
	r := newResolver()
	est, err := r.Resolve(Request{Defect: "battery", DeviceType: catalog.Phone, Brand: "Nokia"})
	if err != nil {
		t.Fatal(err)
	}
	// 180 x 1.0 x 1.0 x 1.0
	if est.Avg != 180 || est.Min != 135 || est.Max != 243 {
		t.Errorf("band = %+v", est.Band)
	}
}
