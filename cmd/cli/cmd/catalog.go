package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	adapter "nexx-gsm/adapters/cli"
	"nexx-gsm/adapters/spreadsheet"
	"nexx-gsm/core/catalog"
	"nexx-gsm/internal/config"
)

var (
	catalogSource string
	catalogFormat string
	catalogLimit  int
	catalogBrand  string
	catalogType   string

	importXLSX string
	importOut  string
)

// catalogCmd groups catalog commands
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and maintain the device catalog",
}

var catalogSearchCmd = &cobra.Command{
	Use:   "search [words...]",
	Short: "Search devices by name, brand or type",
	Long: `List catalog devices whose name contains every word given.
With no words, --brand and --type filter the whole catalog.

Examples:
  nexx catalog search iphone 14
  nexx catalog search --brand samsung --type tablet`,
	RunE: runCatalogSearch,
}

var catalogImportCmd = &cobra.Command{
	Use:   "import-prices",
	Short: "Merge curated lei prices from a spreadsheet into the catalog",
	Long: `Read the price workbook (one row per model, one column per repair) and
merge the prices into each matching device's curated price list.

Rows whose model does not match any device are reported and skipped.
Existing prices for repairs missing from the workbook are kept.

Example:
  nexx catalog import-prices --xlsx preturi.xlsx --catalog data/devices.json --out data/devices.json`,
	RunE: runCatalogImport,
}

func init() {
	catalogCmd.PersistentFlags().StringVar(&catalogSource, "catalog", "", "catalog file or URL (overrides config)")

	catalogSearchCmd.Flags().StringVarP(&catalogFormat, "format", "f", "table", "output format (table, json)")
	catalogSearchCmd.Flags().IntVarP(&catalogLimit, "limit", "n", 25, "maximum devices to list")
	catalogSearchCmd.Flags().StringVar(&catalogBrand, "brand", "", "filter by brand")
	catalogSearchCmd.Flags().StringVar(&catalogType, "type", "", "filter by device type")

	catalogImportCmd.Flags().StringVar(&importXLSX, "xlsx", "", "price workbook [REQUIRED]")
	catalogImportCmd.Flags().StringVarP(&importOut, "out", "o", "", "where to write the updated catalog (default stdout)")
	_ = catalogImportCmd.MarkFlagRequired("xlsx")

	catalogCmd.AddCommand(catalogSearchCmd)
	catalogCmd.AddCommand(catalogImportCmd)
	rootCmd.AddCommand(catalogCmd)
}

func runCatalogSearch(cmd *cobra.Command, args []string) error {
	format, err := adapter.ParseFormat(catalogFormat)
	if err != nil {
		return err
	}
	store, err := loadCatalog(cmd.Context(), config.Get(), catalogSource).Store()
	if err != nil {
		return err
	}

	var devices []catalog.DeviceRecord
	if len(args) > 0 {
		devices = store.Search(strings.Join(args, " "), 0)
	} else {
		devices = store.ByBrand(catalogBrand, catalog.ParseDeviceType(catalogType))
	}
	if catalogLimit > 0 && len(devices) > catalogLimit {
		devices = devices[:catalogLimit]
	}

	cli := adapter.NewCLIAdapter(nil)
	cli.SetOutput(cmd.OutOrStdout())
	cli.SetFormat(format)
	return cli.PrintDevices(devices)
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	store, err := loadCatalog(cmd.Context(), config.Get(), catalogSource).Store()
	if err != nil {
		return err
	}
	rows, err := spreadsheet.ReadFile(importXLSX)
	if err != nil {
		return err
	}

	devices := store.All()
	report := spreadsheet.Apply(devices, rows)

	out := cmd.OutOrStdout()
	if importOut != "" {
		f, err := os.Create(importOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", importOut, err)
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(devices); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}

	log := cmd.ErrOrStderr()
	fmt.Fprintf(log, "Rows read:       %d\n", report.Rows)
	fmt.Fprintf(log, "Devices updated: %d\n", report.Updated)
	if len(report.Unmatched) > 0 {
		fmt.Fprintf(log, "Unmatched (%d):\n", len(report.Unmatched))
		for _, m := range report.Unmatched {
			fmt.Fprintf(log, "  - %s\n", m)
		}
	}
	return nil
}
