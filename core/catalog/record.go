// Package catalog holds the device catalog: the read-only list of device
// records that the price resolver consults before falling back to category
// pricing.
package catalog

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DeviceType is the coarse device category used by the category tables
type DeviceType string

const (
	Phone   DeviceType = "phone"
	Tablet  DeviceType = "tablet"
	Laptop  DeviceType = "laptop"
	Watch   DeviceType = "watch"
	Unknown DeviceType = ""
)

// DeviceTypes lists the known device types in display order
var DeviceTypes = []DeviceType{Phone, Tablet, Laptop, Watch}

// ParseDeviceType maps user input onto a DeviceType; unknown input yields Unknown.
func ParseDeviceType(s string) DeviceType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "phone", "smartphone", "telefon":
		return Phone
	case "tablet", "tableta", "tabletă":
		return Tablet
	case "laptop", "notebook", "macbook":
		return Laptop
	case "watch", "smartwatch", "ceas":
		return Watch
	default:
		return Unknown
	}
}

// InferDeviceType guesses the category from a device name.
func InferDeviceType(name string) DeviceType {
	n := Normalize(name)
	switch {
	case strings.Contains(n, "watch"):
		return Watch
	case strings.Contains(n, "ipad"), strings.Contains(n, "tab "), strings.HasSuffix(n, " tab"),
		strings.Contains(n, "tablet"), strings.Contains(n, "galaxy tab"):
		return Tablet
	case strings.Contains(n, "macbook"), strings.Contains(n, "laptop"), strings.Contains(n, "notebook"),
		strings.Contains(n, "thinkpad"), strings.Contains(n, "zenbook"):
		return Laptop
	case n != "":
		return Phone
	default:
		return Unknown
	}
}

// PriceTable maps a defect key to a price. Only JSON numbers are kept;
// strings, nulls and nested objects are dropped on decode.
type PriceTable map[string]decimal.Decimal

// UnmarshalJSON implements json.Unmarshaler
func (p *PriceTable) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = nil
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	table := make(PriceTable, len(raw))
	for key, value := range raw {
		value = bytes.TrimSpace(value)
		if len(value) == 0 || (value[0] != '-' && (value[0] < '0' || value[0] > '9')) {
			continue
		}
		d, err := decimal.NewFromString(string(value))
		if err != nil {
			continue
		}
		table[strings.ToLower(key)] = d
	}
	*p = table
	return nil
}

// MarshalJSON writes prices as bare JSON numbers so the table survives a
// decode round trip.
func (p PriceTable) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	out := make(map[string]json.Number, len(p))
	for k, v := range p {
		out[k] = json.Number(v.String())
	}
	return json.Marshal(out)
}

// Lookup returns the first strictly positive price among keys, in order.
func (p PriceTable) Lookup(keys []string) (decimal.Decimal, string, bool) {
	for _, k := range keys {
		if v, ok := p[k]; ok && v.IsPositive() {
			return v, k, true
		}
	}
	return decimal.Zero, "", false
}

// DeviceRecord is one catalog entry
type DeviceRecord struct {
	Name       string     `json:"name"`
	Brand      string     `json:"brand"`
	DeviceType DeviceType `json:"device_type"`
	Year       int        `json:"year,omitempty"`
	Model      string     `json:"model,omitempty"`
	Category   string     `json:"category,omitempty"`
	Slug       string     `json:"slug,omitempty"`

	// ManufacturerPrices is the official service price list in USD
	ManufacturerPrices PriceTable `json:"official_service_prices,omitempty"`

	// LocalPrices is the curated price list in lei
	LocalPrices PriceTable `json:"service_prices_ron,omitempty"`
}

// UnmarshalJSON tolerates a year given as a string or left empty.
func (d *DeviceRecord) UnmarshalJSON(data []byte) error {
	type plain DeviceRecord
	aux := struct {
		*plain
		Year json.RawMessage `json:"year"`
	}{plain: (*plain)(d)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.Year = parseYear(aux.Year)
	return nil
}

func parseYear(raw json.RawMessage) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < 0 {
		return 0
	}
	return y
}
