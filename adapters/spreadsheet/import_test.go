package spreadsheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"nexx-gsm/core/catalog"
	"nexx-gsm/internal/errors"
)

func workbook(t *testing.T) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "iphone_price"))
	rows := [][]interface{}{
		{"Model", "Ecran", "Baterie", "Port încărcare", "Cameră față", "Note"},
		{"iPhone 14", "995-1800", 449, "499", "", "-"},
		{"iPhone 14 Pro", "1.145", "449 lei", "", "350", ""},
		{"Nokia 3310", "100", "", "", "", ""},
		{"", "1", "1", "", "", ""},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("iphone_price", cell, &r))
	}

	_, err := f.NewSheet("empty")
	require.NoError(t, err)

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func TestRead(t *testing.T) {
	rows, err := Read(workbook(t))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "iPhone 14", rows[0].Model)
	assert.Equal(t, map[string]int64{"display": 995, "battery": 449, "charging_port": 499}, rows[0].Prices)
	assert.Equal(t, map[string]int64{"display": 1145, "battery": 449, "front_camera": 350}, rows[1].Prices)
	assert.Equal(t, "iphone_price", rows[2].Sheet)
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := Read(strings.NewReader("not a zip"))
	assert.True(t, errors.IsType(err, errors.TypeValidation))
}

func TestHeaderKey(t *testing.T) {
	tests := map[string]string{
		"Display":        "display",
		"ECRANE":         "display",
		"Camera spate":   "rear_camera",
		"Camera fata":    "front_camera",
		"Placă de bază":  "logic_board",
		"Tastatură":      "keyboard",
		"Motor vibrații": "taptic_engine",
	}
	for header, want := range tests {
		got, ok := HeaderKey(header)
		assert.True(t, ok, header)
		assert.Equal(t, want, got, header)
	}
	_, ok := HeaderKey("Observatii")
	assert.False(t, ok)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"1450", 1450, true},
		{"995-1800", 995, true},
		{"1.145", 1145, true},
		{"2,499 lei", 2499, true},
		{"449.99", 449, true},
		{"de la 300", 300, true},
		{"GRATUIT", 0, false},
		{"0", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseAmount(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestApply(t *testing.T) {
	devices := []catalog.DeviceRecord{
		{Name: "iPhone 14", DeviceType: catalog.Phone},
		{Name: "iPhone 14 Pro", DeviceType: catalog.Phone, LocalPrices: catalog.PriceTable{"battery": decimal.NewFromInt(500), "speaker": decimal.NewFromInt(200)}},
	}
	rows, err := Read(workbook(t))
	require.NoError(t, err)

	report := Apply(devices, rows)
	assert.Equal(t, 3, report.Rows)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, []string{"Nokia 3310"}, report.Unmatched)

	assert.True(t, devices[0].LocalPrices["display"].Equal(decimal.NewFromInt(995)))
	assert.True(t, devices[1].LocalPrices["battery"].Equal(decimal.NewFromInt(449)))
	assert.True(t, devices[1].LocalPrices["speaker"].Equal(decimal.NewFromInt(200)), "existing keys are kept")
}

func TestApplyLeavesStoreTablesAlone(t *testing.T) {
	store := catalog.NewStore([]catalog.DeviceRecord{
		{Name: "iPhone 14 Pro", DeviceType: catalog.Phone, LocalPrices: catalog.PriceTable{"battery": decimal.NewFromInt(500)}},
	})
	rows, err := Read(workbook(t))
	require.NoError(t, err)

	devices := store.All()
	Apply(devices, rows)

	assert.True(t, devices[0].LocalPrices["battery"].Equal(decimal.NewFromInt(449)))
	live, ok := store.FindDevice("iPhone 14 Pro")
	require.True(t, ok)
	assert.True(t, live.LocalPrices["battery"].Equal(decimal.NewFromInt(500)))
}
