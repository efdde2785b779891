// Package adapter provides the CLI adapter over the quote aggregator.
// It handles input and output only; all pricing logic lives in core.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"nexx-gsm/core/catalog"
	"nexx-gsm/core/quote"
)

// Quoter produces quotes
type Quoter interface {
	Aggregate(ctx context.Context, sel quote.Selection) (*quote.Quote, error)
}

// CLIAdapter is a thin wrapper around the aggregator.
type CLIAdapter struct {
	quoter Quoter
	output io.Writer
	format OutputFormat
}

// OutputFormat specifies the output format
type OutputFormat int

const (
	FormatTable OutputFormat = iota
	FormatJSON
	FormatMarkdown
)

// ParseFormat maps a flag value to an OutputFormat
func ParseFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return FormatTable, fmt.Errorf("unknown output format %q (table, json, markdown)", s)
	}
}

// NewCLIAdapter creates a new CLI adapter
func NewCLIAdapter(q Quoter) *CLIAdapter {
	return &CLIAdapter{
		quoter: q,
		output: os.Stdout,
		format: FormatTable,
	}
}

// SetOutput sets the output writer
func (a *CLIAdapter) SetOutput(w io.Writer) {
	a.output = w
}

// SetFormat sets the output format
func (a *CLIAdapter) SetFormat(f OutputFormat) {
	a.format = f
}

// CLIRequest is the CLI input
type CLIRequest struct {
	Device     string
	DeviceType string
	Brand      string
	Defects    []string
}

// Run builds the quote and prints it
func (a *CLIAdapter) Run(ctx context.Context, req *CLIRequest) (*quote.Quote, error) {
	q, err := a.quoter.Aggregate(ctx, quote.Selection{
		DeviceName: req.Device,
		DeviceType: catalog.ParseDeviceType(req.DeviceType),
		Brand:      req.Brand,
		Defects:    req.Defects,
	})
	if err != nil {
		return nil, fmt.Errorf("quote failed: %w", err)
	}
	return q, a.Print(q)
}

// Print renders q in the configured format
func (a *CLIAdapter) Print(q *quote.Quote) error {
	switch a.format {
	case FormatJSON:
		return a.outputJSON(q)
	case FormatMarkdown:
		return a.outputMarkdown(q)
	default:
		return a.outputTable(q)
	}
}

const rule = "──────────────────────────────────────────────────────────────────────"

func (a *CLIAdapter) outputTable(q *quote.Quote) error {
	fmt.Fprintln(a.output, "")
	fmt.Fprintln(a.output, "╔══════════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(a.output, "║                        REPAIR ESTIMATE                            ║")
	fmt.Fprintln(a.output, "╚══════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(a.output, "")

	device := q.Device
	if !q.Matched {
		device += " (not in catalog)"
	}
	fmt.Fprintf(a.output, "Device:       %s\n", device)
	fmt.Fprintf(a.output, "Type/Brand:   %s / %s\n", q.DeviceType, orDash(q.Brand))
	fmt.Fprintf(a.output, "Repair time:  %s\n", q.RepairTime)
	fmt.Fprintf(a.output, "Reference:    %s\n", q.Fingerprint)
	if !q.CatalogAvailable {
		fmt.Fprintln(a.output, "⚠ catalog unavailable, category pricing only")
	}
	fmt.Fprintln(a.output, "")

	fmt.Fprintln(a.output, rule)
	fmt.Fprintf(a.output, "%-26s %-12s %8s %8s %8s\n", "REPAIR", "TIER", "MIN", "MAX", "AVG")
	fmt.Fprintln(a.output, rule)
	for _, item := range q.Items {
		name := item.Name
		if item.Discounted {
			name += " *"
		}
		fmt.Fprintf(a.output, "%-26s %-12s %8d %8d %8d\n",
			truncate(name, 26), item.Tier, item.Min, item.Max, item.Avg)
	}
	fmt.Fprintln(a.output, rule)
	fmt.Fprintf(a.output, "%-26s %-12s %8d %8d %8d  %s\n",
		"TOTAL", "", q.Total.Min, q.Total.Max, q.Total.Avg, q.Currency)
	fmt.Fprintln(a.output, "")
	if len(q.Items) > 1 {
		fmt.Fprintln(a.output, "* bundle discount applied")
		fmt.Fprintln(a.output, "")
	}
	return nil
}

func (a *CLIAdapter) outputJSON(q *quote.Quote) error {
	encoder := json.NewEncoder(a.output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(q)
}

func (a *CLIAdapter) outputMarkdown(q *quote.Quote) error {
	fmt.Fprintf(a.output, "# Repair estimate: %s\n", q.Device)
	fmt.Fprintln(a.output, "")
	fmt.Fprintf(a.output, "**Total:** %d-%d %s (about %d)\n", q.Total.Min, q.Total.Max, q.Currency, q.Total.Avg)
	fmt.Fprintf(a.output, "**Repair time:** %s\n", q.RepairTime)
	fmt.Fprintln(a.output, "")

	fmt.Fprintln(a.output, "| Repair | Tier | Min | Max | Avg |")
	fmt.Fprintln(a.output, "|--------|------|-----|-----|-----|")
	for _, item := range q.Items {
		fmt.Fprintf(a.output, "| %s | %s | %d | %d | %d |\n",
			item.Name, item.Tier, item.Min, item.Max, item.Avg)
	}
	fmt.Fprintln(a.output, "")
	fmt.Fprintf(a.output, "| **Total** | | **%d** | **%d** | **%d** |\n",
		q.Total.Min, q.Total.Max, q.Total.Avg)

	return nil
}

// PrintDevices lists catalog records
func (a *CLIAdapter) PrintDevices(devices []catalog.DeviceRecord) error {
	if a.format == FormatJSON {
		encoder := json.NewEncoder(a.output)
		encoder.SetIndent("", "  ")
		return encoder.Encode(devices)
	}
	fmt.Fprintf(a.output, "%-36s %-10s %-8s %6s  %s\n", "DEVICE", "BRAND", "TYPE", "YEAR", "PRICES")
	fmt.Fprintln(a.output, rule)
	for _, d := range devices {
		prices := "-"
		switch {
		case len(d.LocalPrices) > 0:
			prices = "curated"
		case len(d.ManufacturerPrices) > 0:
			prices = "manufacturer"
		}
		year := "-"
		if d.Year > 0 {
			year = fmt.Sprint(d.Year)
		}
		fmt.Fprintf(a.output, "%-36s %-10s %-8s %6s  %s\n",
			truncate(d.Name, 36), d.Brand, d.DeviceType, year, prices)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
