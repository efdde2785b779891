package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexx-gsm/core/catalog"
	"nexx-gsm/core/pricing"
	"nexx-gsm/core/quote"
)

func testAdapter(t *testing.T) *CLIAdapter {
	t.Helper()
	store := catalog.NewStore([]catalog.DeviceRecord{
		{Name: "iPhone 14", Brand: "apple", DeviceType: catalog.Phone, Year: 2022},
	})
	agg := quote.NewAggregator(pricing.NewResolver(nil), staticSource(store))
	return NewCLIAdapter(agg)
}

func TestRunFormats(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   []string
	}{
		{FormatTable, []string{"REPAIR ESTIMATE", "Device:       iPhone 14", "TOTAL", "bundle discount"}},
		{FormatMarkdown, []string{"# Repair estimate: iPhone 14", "| **Total** |"}},
	}
	for _, tt := range tests {
		a := testAdapter(t)
		var buf bytes.Buffer
		a.SetOutput(&buf)
		a.SetFormat(tt.format)

		_, err := a.Run(context.Background(), &CLIRequest{Device: "iphone 14", Defects: []string{"battery", "screen"}})
		require.NoError(t, err)
		for _, w := range tt.want {
			assert.Contains(t, buf.String(), w)
		}
	}
}

func TestRunJSON(t *testing.T) {
	a := testAdapter(t)
	var buf bytes.Buffer
	a.SetOutput(&buf)
	a.SetFormat(FormatJSON)

	q, err := a.Run(context.Background(), &CLIRequest{Device: "iphone 14", Defects: []string{"battery"}})
	require.NoError(t, err)

	var decoded quote.Quote
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, q.Total, decoded.Total)
	assert.Equal(t, q.Fingerprint, decoded.Fingerprint)
}

func TestRunPropagatesErrors(t *testing.T) {
	a := testAdapter(t)
	a.SetOutput(&bytes.Buffer{})
	_, err := a.Run(context.Background(), &CLIRequest{Device: "iphone 14"})
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": FormatTable, "JSON": FormatJSON, "md": FormatMarkdown} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestPrintDevices(t *testing.T) {
	a := NewCLIAdapter(nil)
	var buf bytes.Buffer
	a.SetOutput(&buf)

	require.NoError(t, a.PrintDevices([]catalog.DeviceRecord{
		{Name: "Galaxy S23", Brand: "samsung", DeviceType: catalog.Phone, Year: 2023},
	}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[2], "Galaxy S23"))
	assert.Contains(t, lines[2], "2023")
}

func staticSource(store *catalog.Store) *catalog.Source {
	src := catalog.NewSource(nil)
	src.Install(store)
	return src
}
