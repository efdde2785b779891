package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devices.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"name": "iPhone 14", "brand": "apple", "device_type": "phone", "year": 2022,
		 "service_prices_ron": {"battery": 400}},
		{"name": "Galaxy S23", "brand": "samsung", "device_type": "phone", "year": 2023}
	]`), 0o644))
	return path
}

func TestQuoteCommandJSON(t *testing.T) {
	out, err := execute(t, "quote", "--catalog", writeCatalog(t), "--device", "iphone 14", "--defect", "battery", "--format", "json")
	require.NoError(t, err)

	var q struct {
		Device string `json:"device"`
		Total  struct {
			Avg int64 `json:"avg"`
		} `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &q))
	assert.Equal(t, "iPhone 14", q.Device)
	assert.Equal(t, int64(400), q.Total.Avg)
}

func TestCatalogSearchCommand(t *testing.T) {
	out, err := execute(t, "catalog", "search", "--catalog", writeCatalog(t), "galaxy")
	require.NoError(t, err)
	assert.Contains(t, out, "Galaxy S23")
	assert.NotContains(t, out, "iPhone 14")
}

func TestRulesCheckCommand(t *testing.T) {
	out, err := execute(t, "rules", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Rules OK (built-in defaults)")
	assert.Contains(t, out, "battery")

	bad := filepath.Join(t.TempDir(), "bad.hcl")
	require.NoError(t, os.WriteFile(bad, []byte("bundle_discount = 2\n"), 0o644))
	_, err = execute(t, "rules", "check", bad)
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "nexx version "+Version+"\n", out)
}
