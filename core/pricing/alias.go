package pricing

import (
	"strings"
)

// AliasTable is the single place where defect keys are canonicalized.
// Device price tables in the catalog use several spellings for the same
// repair ("display", "charging_port", "logic_board"), so every lookup goes
// through Canonical once and then probes Keys in order.
type AliasTable struct {
	toCanonical map[string]string
	aliases     map[string][]string
}

// NewAliasTable creates an empty table
func NewAliasTable() *AliasTable {
	return &AliasTable{
		toCanonical: make(map[string]string),
		aliases:     make(map[string][]string),
	}
}

// DefaultAliases returns the aliases found in the shop's price sheets
func DefaultAliases() *AliasTable {
	a := NewAliasTable()
	a.Add(DefectScreen, "display", "ecran", "lcd")
	a.Add(DefectBattery, "baterie")
	a.Add(DefectCharging, "charging_port", "port", "incarcare")
	a.Add(DefectCamera, "rear_camera", "cameras", "front_camera")
	a.Add(DefectMotherboard, "logic_board", "board", "placa")
	a.Add(DefectKeyboard, "tastatura")
	a.Add(DefectWater, "liquid", "water_damage")
	return a
}

// Add registers keys as aliases of canonical
func (a *AliasTable) Add(canonical string, keys ...string) {
	canonical = normalizeKey(canonical)
	a.toCanonical[canonical] = canonical
	for _, k := range keys {
		k = normalizeKey(k)
		if k == "" || k == canonical {
			continue
		}
		if _, exists := a.toCanonical[k]; exists {
			continue
		}
		a.toCanonical[k] = canonical
		a.aliases[canonical] = append(a.aliases[canonical], k)
	}
}

// Canonical maps any known spelling to its canonical id. Unknown ids are
// returned normalized but otherwise unchanged.
func (a *AliasTable) Canonical(id string) string {
	id = normalizeKey(id)
	if c, ok := a.toCanonical[id]; ok {
		return c
	}
	return id
}

// Keys returns canonical followed by its aliases, the probe order used
// against device price tables.
func (a *AliasTable) Keys(canonical string) []string {
	keys := make([]string, 0, 1+len(a.aliases[canonical]))
	keys = append(keys, canonical)
	return append(keys, a.aliases[canonical]...)
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}
