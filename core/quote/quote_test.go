package quote

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"nexx-gsm/core/catalog"
	"nexx-gsm/core/pricing"
	"nexx-gsm/internal/errors"
)

func testCatalog() *catalog.Source {
	return staticSource(catalog.NewStore([]catalog.DeviceRecord{
		{
			Name: "iPhone 14", Brand: "Apple", DeviceType: catalog.Phone, Year: 2022,
			LocalPrices: catalog.PriceTable{
				"display":       decimal.NewFromInt(100),
				"charging_port": decimal.NewFromInt(100),
				"rear_camera":   decimal.NewFromInt(100),
			},
		},
		{Name: "MacBook Pro 14", Brand: "Apple", DeviceType: catalog.Laptop, Year: 2021},
	}))
}

func newAggregator(c Catalog) *Aggregator {
	r := pricing.NewResolver(nil)
	r.Now = func() time.Time { return time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC) }
	return NewAggregator(r, c)
}

func TestBundleDiscount(t *testing.T) {
	q, err := newAggregator(testCatalog()).Aggregate(context.Background(), Selection{
		DeviceName: "iphone 14",
		Defects:    []string{"screen", "charging", "camera"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if q.Total.Avg != 280 {
		t.Errorf("total avg = %d, want 280", q.Total.Avg)
	}
	// 80+72+72 and 120+108+108
	if q.Total.Min != 224 || q.Total.Max != 336 {
		t.Errorf("total band = %+v", q.Total)
	}
	if q.Items[0].Discounted || !q.Items[1].Discounted || q.Items[1].Resolved.Avg != 100 {
		t.Errorf("items = %+v", q.Items)
	}
	if !q.Matched || q.Device != "iPhone 14" || q.DeviceType != catalog.Phone {
		t.Errorf("device = %s matched=%v type=%s", q.Device, q.Matched, q.DeviceType)
	}
}

func TestSelectionOrderPreserved(t *testing.T) {
	q, err := newAggregator(nil).Aggregate(context.Background(), Selection{
		DeviceType: catalog.Laptop,
		Brand:      "Lenovo",
		Defects:    []string{"keyboard", "display", "battery"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{pricing.DefectKeyboard, pricing.DefectScreen, pricing.DefectBattery}
	for i, item := range q.Items {
		if item.Defect != want[i] {
			t.Errorf("item %d = %s, want %s", i, item.Defect, want[i])
		}
	}
	if len(q.Defects) != 3 || q.Defects[0] != "Tastatură" {
		t.Errorf("display names = %v", q.Defects)
	}
	if q.RepairTime != Time2To4Hours {
		t.Errorf("repair time = %s, want escalated laptop default", q.RepairTime)
	}
	if q.CatalogAvailable {
		t.Error("catalog reported available without a catalog")
	}
}

func TestAnyUnresolvableFailsTheQuote(t *testing.T) {
	rules := pricing.DefaultRules()
	rules.Base = map[string]map[catalog.DeviceType]pricing.Band{
		pricing.DefectBattery: {catalog.Phone: {Min: 120, Max: 300, Avg: 180}},
	}
	agg := NewAggregator(pricing.NewResolver(rules), nil)

	q, err := agg.Aggregate(context.Background(), Selection{
		DeviceType: catalog.Tablet,
		Defects:    []string{"battery"},
	})
	if q != nil || !errors.IsType(err, errors.TypeUnresolvable) {
		t.Fatalf("q = %v, err = %v", q, err)
	}
}

func TestSelectionValidation(t *testing.T) {
	agg := newAggregator(nil)
	tests := []struct {
		name    string
		defects []string
	}{
		{"empty", nil},
		{"duplicate via alias", []string{"screen", "display"}},
		{"blank id", []string{"battery", " "}},
		{"too many", []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := agg.Aggregate(context.Background(), Selection{DeviceType: catalog.Phone, Defects: tt.defects})
			if !errors.IsType(err, errors.TypeValidation) {
				t.Errorf("err = %v", err)
			}
		})
	}
}

type unavailable struct{}

func (unavailable) Store() (*catalog.Store, error) {
	return nil, errors.DataUnavailable("not loaded", nil)
}

func TestCatalogOutageFallsBackToCategory(t *testing.T) {
	q, err := newAggregator(unavailable{}).Aggregate(context.Background(), Selection{
		DeviceName: "iPhone 14",
		Brand:      "apple",
		Defects:    []string{"battery"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if q.CatalogAvailable || q.Matched {
		t.Errorf("available=%v matched=%v", q.CatalogAvailable, q.Matched)
	}
	if q.DeviceType != catalog.Phone || q.Items[0].Tier != pricing.TierComputed {
		t.Errorf("type=%s tier=%s", q.DeviceType, q.Items[0].Tier)
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	agg := newAggregator(testCatalog())
	sel := Selection{DeviceName: "MacBook Pro", Defects: []string{"motherboard", "battery"}}

	a, err := agg.Aggregate(context.Background(), sel)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := agg.Aggregate(context.Background(), sel)
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Errorf("quotes differ:\n%s\n%s", ja, jb)
	}
	if a.RepairTime != Time4To8Hours {
		t.Errorf("laptop board repair = %s", a.RepairTime)
	}

	other, _ := agg.Aggregate(context.Background(), Selection{DeviceName: "MacBook Pro", Defects: []string{"battery", "motherboard"}})
	if other.Fingerprint == a.Fingerprint {
		t.Error("fingerprint ignores selection order")
	}
}

func TestRepairTime(t *testing.T) {
	tests := []struct {
		name    string
		typ     catalog.DeviceType
		defects []string
		want    string
	}{
		{"phone default", catalog.Phone, []string{"screen"}, Time30To60Min},
		{"watch default", catalog.Watch, []string{"battery", "screen"}, Time30To60Min},
		{"tablet default", catalog.Tablet, []string{"screen"}, Time1To2Hours},
		{"laptop default", catalog.Laptop, []string{"keyboard"}, Time1To2Hours},
		{"unknown default", catalog.Unknown, []string{"screen"}, Time1To2Hours},
		{"phone three defects", catalog.Phone, []string{"screen", "battery", "camera"}, Time1To2Hours},
		{"tablet three defects", catalog.Tablet, []string{"screen", "battery", "camera"}, Time2To4Hours},
		{"phone board", catalog.Phone, []string{"screen", "motherboard"}, Time2To4Hours},
		{"tablet water", catalog.Tablet, []string{"water"}, Time2To4Hours},
		{"laptop board", catalog.Laptop, []string{"motherboard"}, Time4To8Hours},
		{"unknown board", catalog.Unknown, []string{"motherboard"}, Time2To8Hours},
		{"board beats count", catalog.Phone, []string{"screen", "battery", "camera", "water"}, Time2To4Hours},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RepairTime(tt.typ, tt.defects); got != tt.want {
				t.Errorf("RepairTime = %s, want %s", got, tt.want)
			}
		})
	}
}

func staticSource(store *catalog.Store) *catalog.Source {
	src := catalog.NewSource(nil)
	src.Install(store)
	return src
}
