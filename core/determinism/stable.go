// Package determinism provides ordering, fingerprint and rounding primitives
// shared by the catalog, resolver and aggregator so identical inputs always
// produce byte-identical outputs.
package determinism

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/shopspring/decimal"
)

// SortedKeys returns the keys of a string-keyed map in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortSlice sorts a slice in a stable, deterministic manner
func SortSlice[T any](slice []T, less func(a, b T) bool) {
	sort.SliceStable(slice, func(i, j int) bool {
		return less(slice[i], slice[j])
	})
}

// Fingerprint is a short content hash over an ordered list of parts.
type Fingerprint string

// FingerprintGenerator produces namespaced, deterministic fingerprints
type FingerprintGenerator struct {
	namespace string
}

// NewFingerprintGenerator creates a generator with a namespace
func NewFingerprintGenerator(namespace string) *FingerprintGenerator {
	return &FingerprintGenerator{namespace: namespace}
}

// Generate hashes the namespace and parts, NUL-separated.
func (g *FingerprintGenerator) Generate(parts ...string) Fingerprint {
	h := sha256.New()
	h.Write([]byte(g.namespace))
	h.Write([]byte{0})
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil))[:16])
}

// RoundUnit rounds to the nearest integer, halves away from zero.
func RoundUnit(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// RoundTen rounds to the nearest multiple of ten, halves away from zero.
func RoundTen(d decimal.Decimal) int64 {
	return d.Round(-1).IntPart()
}
