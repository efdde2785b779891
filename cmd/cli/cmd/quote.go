package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	adapter "nexx-gsm/adapters/cli"
	"nexx-gsm/adapters/receipt"
	"nexx-gsm/core/catalog"
	"nexx-gsm/core/pricing"
	"nexx-gsm/core/quote"
	"nexx-gsm/internal/bootstrap"
	"nexx-gsm/internal/config"
	"nexx-gsm/internal/logging"
)

var (
	quoteDevice   string
	quoteType     string
	quoteBrand    string
	quoteDefects  []string
	quoteFormat   string
	quoteCatalog  string
	quoteReceipt  string
	quoteCustomer string
)

// quoteCmd prices a device and a list of defects
var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Estimate the price of one or more repairs",
	Long: `Price the selected repairs for a device.

The device is matched against the catalog by name. Without a catalog match
the price falls back to the category tables for --type and --brand.

Examples:
  nexx quote --device "iPhone 14" --defect battery
  nexx quote --device "Galaxy S23" --defect screen --defect camera --format markdown
  nexx quote --type laptop --brand dell --defect keyboard
  nexx quote --device "iPhone 14" --defect screen --receipt estimare.pdf`,
	RunE: runQuote,
}

func init() {
	quoteCmd.Flags().StringVarP(&quoteDevice, "device", "d", "", "device name as the customer typed it")
	quoteCmd.Flags().StringVarP(&quoteType, "type", "t", "", "device type (phone, tablet, laptop, watch)")
	quoteCmd.Flags().StringVarP(&quoteBrand, "brand", "b", "", "device brand")
	quoteCmd.Flags().StringArrayVarP(&quoteDefects, "defect", "D", nil, "defect to repair, repeatable, in selection order")
	quoteCmd.Flags().StringVarP(&quoteFormat, "format", "f", "table", "output format (table, json, markdown)")
	quoteCmd.Flags().StringVar(&quoteCatalog, "catalog", "", "catalog file or URL (overrides config)")
	quoteCmd.Flags().StringVar(&quoteReceipt, "receipt", "", "also write a PDF receipt to this path")
	quoteCmd.Flags().StringVar(&quoteCustomer, "customer", "", "customer name printed on the receipt")
	_ = quoteCmd.MarkFlagRequired("defect")

	rootCmd.AddCommand(quoteCmd)
}

// loadCatalog loads the catalog once. A failure is reported and leaves the
// source empty, so quotes fall back to category pricing.
func loadCatalog(ctx context.Context, cfg *config.Config, override string) *catalog.Source {
	c := *cfg
	if override != "" {
		if isURL(override) {
			c.Catalog.URL = override
		} else {
			c.Catalog.URL = ""
			c.Catalog.Path = override
		}
	}
	src := bootstrap.CatalogSource(&c, nil)

	timeout := c.Catalog.LoadTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := src.Load(loadCtx); err != nil {
		logging.Named("cli").Warn("catalog unavailable, using category pricing", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Warning: device catalog unavailable, category pricing only")
	}
	return src
}

func isURL(s string) bool {
	return len(s) > 8 && (s[:7] == "http://" || s[:8] == "https://")
}

func runQuote(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.Get()

	format, err := adapter.ParseFormat(quoteFormat)
	if err != nil {
		return err
	}
	rules, err := bootstrap.Rules(cfg)
	if err != nil {
		return err
	}

	src := loadCatalog(ctx, cfg, quoteCatalog)
	cli := adapter.NewCLIAdapter(quote.NewAggregator(pricing.NewResolver(rules), src))
	cli.SetOutput(cmd.OutOrStdout())
	cli.SetFormat(format)

	q, err := cli.Run(ctx, &adapter.CLIRequest{
		Device:     quoteDevice,
		DeviceType: quoteType,
		Brand:      quoteBrand,
		Defects:    quoteDefects,
	})
	if err != nil {
		return err
	}

	if quoteReceipt != "" {
		opts := receipt.DefaultOptions()
		opts.Customer = quoteCustomer
		opts.IssuedAt = time.Now()
		pdf, err := receipt.Bytes(q, opts)
		if err != nil {
			return err
		}
		if err := os.WriteFile(quoteReceipt, pdf, 0o644); err != nil {
			return fmt.Errorf("write receipt: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Receipt written to %s\n", quoteReceipt)
	}
	return nil
}
