// Package spreadsheet imports curated lei prices from .xlsx price sheets
// into the device catalog.
//
// Each sheet has a header row. One column holds the model name; the other
// columns are mapped to price-table keys by their header text. A cell may
// hold a single amount or a range ("995-1800"); the lower bound is kept.
package spreadsheet

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"nexx-gsm/core/catalog"
	"nexx-gsm/internal/errors"
	"nexx-gsm/internal/logging"
)

// Row is one priced model from a sheet
type Row struct {
	Sheet  string
	Model  string
	Prices map[string]int64
}

var modelHeaders = []string{"model name", "modelul", "model", "dispozitiv", "device", "nume", "name"}

// columnKeys maps header text to price-table keys. More specific entries
// come first: "camera fata" must not land on the rear camera.
var columnKeys = []struct {
	key     string
	headers []string
}{
	{"front_camera", []string{"front_camera", "front camera", "camera fata", "fata"}},
	{"rear_camera", []string{"rear_camera", "rear camera", "camera spate", "camera"}},
	{"charging_port", []string{"charging_port", "port incarcare", "incarcare", "charging", "port"}},
	{"battery", []string{"battery", "baterie", "baterii"}},
	{"display", []string{"display", "ecran", "ecrane", "screen"}},
	{"speaker", []string{"speaker", "difuzor"}},
	{"taptic_engine", []string{"taptic_engine", "taptic", "motor vibratii"}},
	{"logic_board", []string{"logic_board", "logic board", "placa de baza", "placa", "motherboard"}},
	{"keyboard", []string{"keyboard", "tastatura"}},
}

// HeaderKey maps a column header to a price-table key
func HeaderKey(header string) (string, bool) {
	h := catalog.Normalize(header)
	if h == "" {
		return "", false
	}
	for _, c := range columnKeys {
		for _, alias := range c.headers {
			if strings.Contains(h, alias) {
				return c.key, true
			}
		}
	}
	return "", false
}

func isModelHeader(header string) bool {
	h := catalog.Normalize(header)
	for _, m := range modelHeaders {
		if strings.Contains(h, m) {
			return true
		}
	}
	return false
}

// ParseAmount returns the first whole number in a cell. A '.' or ','
// followed by exactly three digits is read as a thousands separator.
func ParseAmount(cell string) (int64, bool) {
	s := strings.TrimSpace(cell)
	i := strings.IndexAny(s, "0123456789")
	if i < 0 {
		return 0, false
	}
	var digits strings.Builder
scan:
	for i < len(s) {
		c := s[i]
		switch {
		case isDigit(c):
			digits.WriteByte(c)
		case (c == '.' || c == ',') && thousandsGroup(s[i+1:]):
		default:
			break scan
		}
		i++
	}
	n, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func thousandsGroup(rest string) bool {
	if len(rest) < 3 || !isDigit(rest[0]) || !isDigit(rest[1]) || !isDigit(rest[2]) {
		return false
	}
	return len(rest) == 3 || !isDigit(rest[3])
}

// Read parses every sheet of the workbook in r
func Read(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Validation("not a readable .xlsx workbook").WithContext("cause", err.Error())
	}
	defer f.Close()

	var rows []Row
	for _, sheet := range f.GetSheetList() {
		cells, err := f.GetRows(sheet)
		if err != nil {
			return nil, errors.Wrapf(errors.TypeValidation, err, "sheet %q unreadable", sheet)
		}
		rows = append(rows, readSheet(sheet, cells)...)
	}
	return rows, nil
}

// ReadFile parses the workbook at path
func ReadFile(path string) ([]Row, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.TypeNotFound, err, "price sheet %s", path)
	}
	defer fh.Close()
	return Read(fh)
}

func readSheet(sheet string, cells [][]string) []Row {
	if len(cells) < 2 {
		return nil
	}
	header := cells[0]
	modelCol := 0
	for i, h := range header {
		if isModelHeader(h) {
			modelCol = i
			break
		}
	}
	keyByCol := make(map[int]string)
	for i, h := range header {
		if i == modelCol {
			continue
		}
		if k, ok := HeaderKey(h); ok {
			keyByCol[i] = k
		}
	}

	var rows []Row
	for _, line := range cells[1:] {
		if modelCol >= len(line) || strings.TrimSpace(line[modelCol]) == "" {
			continue
		}
		row := Row{Sheet: sheet, Model: strings.TrimSpace(line[modelCol]), Prices: make(map[string]int64)}
		for col, key := range keyByCol {
			if col >= len(line) {
				continue
			}
			if v, ok := ParseAmount(line[col]); ok {
				row.Prices[key] = v
			}
		}
		if len(row.Prices) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

// Report summarizes an import
type Report struct {
	Rows      int      `json:"rows"`
	Updated   int      `json:"updated"`
	Unmatched []string `json:"unmatched,omitempty"`
}

// Apply merges rows into the curated price tables of devices. Records are
// updated in place but each touched table is copied first, so maps shared
// with a live store are left alone. Rows are matched with the catalog's
// ranked matcher.
func Apply(devices []catalog.DeviceRecord, rows []Row) Report {
	logger := logging.Named("spreadsheet")
	store := catalog.NewStore(devices)

	byName := make(map[string]int, len(devices))
	for i, d := range devices {
		n := catalog.Normalize(d.Name)
		if _, seen := byName[n]; !seen {
			byName[n] = i
		}
	}

	report := Report{Rows: len(rows)}
	updated := make(map[int]bool)
	for _, row := range rows {
		match, ok := store.FindDevice(row.Model)
		if !ok {
			report.Unmatched = append(report.Unmatched, row.Model)
			continue
		}
		i, ok := byName[catalog.Normalize(match.Name)]
		if !ok {
			report.Unmatched = append(report.Unmatched, row.Model)
			continue
		}
		if !updated[i] {
			devices[i].LocalPrices = clonePrices(devices[i].LocalPrices)
		}
		for k, v := range row.Prices {
			devices[i].LocalPrices[k] = decimal.NewFromInt(v)
		}
		updated[i] = true
		logger.Debug("prices merged", zap.String("sheet", row.Sheet), zap.String("model", row.Model), zap.String("device", match.Name))
	}
	report.Updated = len(updated)
	return report
}

func clonePrices(t catalog.PriceTable) catalog.PriceTable {
	out := make(catalog.PriceTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
