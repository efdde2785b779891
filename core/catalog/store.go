package catalog

import (
	"sort"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
)

// Store is an immutable, indexed view over a loaded catalog. It is safe for
// concurrent readers.
type Store struct {
	devices    []DeviceRecord
	normalized []string
	bySlug     map[string]int
}

// NewStore copies devices in catalog order, filling in slugs and inferring
// missing device types.
func NewStore(devices []DeviceRecord) *Store {
	s := &Store{
		devices:    make([]DeviceRecord, 0, len(devices)),
		normalized: make([]string, 0, len(devices)),
		bySlug:     make(map[string]int, len(devices)),
	}

	for _, d := range devices {
		d.Name = strings.TrimSpace(d.Name)
		if d.Name == "" {
			continue
		}
		d.Brand = strings.ToLower(strings.TrimSpace(d.Brand))
		if d.Brand == "" {
			d.Brand = GuessBrand(d.Name)
		}
		if dt := ParseDeviceType(string(d.DeviceType)); dt != Unknown {
			d.DeviceType = dt
		} else {
			d.DeviceType = InferDeviceType(d.Name)
		}

		d.Slug = s.uniqueSlug(d.Slug, d.Name)
		s.bySlug[d.Slug] = len(s.devices)
		s.devices = append(s.devices, d)
		s.normalized = append(s.normalized, Normalize(d.Name))
	}

	return s
}

func (s *Store) uniqueSlug(given, name string) string {
	base := slug.Make(given)
	if base == "" {
		base = slug.Make(name)
	}
	candidate := base
	for n := 2; ; n++ {
		if _, taken := s.bySlug[candidate]; !taken {
			return candidate
		}
		candidate = base + "-" + strconv.Itoa(n)
	}
}

// Len returns the number of devices
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.devices)
}

// All returns a copy of every record in catalog order
func (s *Store) All() []DeviceRecord {
	out := make([]DeviceRecord, len(s.devices))
	copy(out, s.devices)
	return out
}

// BySlug returns the record with the given slug
func (s *Store) BySlug(sl string) (*DeviceRecord, bool) {
	i, ok := s.bySlug[strings.ToLower(sl)]
	if !ok {
		return nil, false
	}
	d := s.devices[i]
	return &d, true
}

// brandKeywords mirrors how the shop groups its catalog on the website:
// sub-brands are listed under their parent.
var brandKeywords = map[string][]string{
	"apple":   {"iphone", "ipad", "macbook", "imac", "mac", "apple watch", "airpods"},
	"samsung": {"samsung", "galaxy"},
	"xiaomi":  {"xiaomi", "redmi", "poco"},
	"huawei":  {"huawei", "honor"},
	"google":  {"pixel", "google"},
}

// GuessBrand derives a brand from a device name, or "other".
func GuessBrand(name string) string {
	n := Normalize(name)
	for _, brand := range []string{"apple", "samsung", "xiaomi", "huawei", "google"} {
		for _, kw := range brandKeywords[brand] {
			if strings.Contains(n, kw) {
				return brand
			}
		}
	}
	return "other"
}

func (s *Store) matchesBrand(i int, brand string) bool {
	d := &s.devices[i]
	if d.Brand == brand {
		return true
	}
	kws, ok := brandKeywords[brand]
	if !ok {
		return strings.Contains(s.normalized[i], brand)
	}
	for _, kw := range kws {
		if strings.Contains(s.normalized[i], kw) {
			return true
		}
	}
	return false
}

// ByBrand filters by brand and, when deviceType is not Unknown, by type.
// Catalog order is kept.
func (s *Store) ByBrand(brand string, deviceType DeviceType) []DeviceRecord {
	brand = Normalize(brand)
	var out []DeviceRecord
	for i := range s.devices {
		if brand != "" && !s.matchesBrand(i, brand) {
			continue
		}
		if deviceType != Unknown && s.devices[i].DeviceType != deviceType {
			continue
		}
		out = append(out, s.devices[i])
	}
	return out
}

// Search returns up to limit devices whose name contains every word of q.
func (s *Store) Search(q string, limit int) []DeviceRecord {
	words := strings.Fields(Normalize(q))
	var out []DeviceRecord
	for i, n := range s.normalized {
		if limit > 0 && len(out) >= limit {
			break
		}
		if containsAll(n, words) {
			out = append(out, s.devices[i])
		}
	}
	return out
}

func containsAll(s string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(s, w) {
			return false
		}
	}
	return true
}

// PopularSince is the first model year listed as popular
const PopularSince = 2020

// Popular returns devices released since PopularSince, newest first.
func (s *Store) Popular(limit int) []DeviceRecord {
	var out []DeviceRecord
	for _, d := range s.devices {
		if d.Year >= PopularSince {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Year > out[j].Year
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Brands returns the distinct brands in the catalog, sorted
func (s *Store) Brands() []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range s.devices {
		if !seen[d.Brand] {
			seen[d.Brand] = true
			out = append(out, d.Brand)
		}
	}
	sort.Strings(out)
	return out
}
