package determinism

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"watch": 4, "laptop": 3, "phone": 1, "tablet": 2}
	got := SortedKeys(m)
	want := []string{"laptop", "phone", "tablet", "watch"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortedKeys = %v, want %v", got, want)
		}
	}
}

func TestFingerprintIsStable(t *testing.T) {
	g := NewFingerprintGenerator("quote")
	a := g.Generate("iphone 14", "battery")
	b := g.Generate("iphone 14", "battery")
	if a != b {
		t.Fatalf("fingerprints differ: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Errorf("len = %d", len(a))
	}
	if g.Generate("iphone 14battery") == a {
		t.Error("separator not applied")
	}
	if NewFingerprintGenerator("lead").Generate("iphone 14", "battery") == a {
		t.Error("namespace ignored")
	}
}

func TestRounding(t *testing.T) {
	tests := []struct {
		in   string
		unit int64
		ten  int64
	}{
		{"217.35", 217, 220},
		{"165", 165, 170},
		{"297.5", 298, 300},
		{"214.5", 215, 210},
		{"215", 215, 220},
		{"29.4", 29, 30},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d := decimal.RequireFromString(tt.in)
			if got := RoundUnit(d); got != tt.unit {
				t.Errorf("RoundUnit(%s) = %d, want %d", tt.in, got, tt.unit)
			}
			if got := RoundTen(d); got != tt.ten {
				t.Errorf("RoundTen(%s) = %d, want %d", tt.in, got, tt.ten)
			}
		})
	}
}
