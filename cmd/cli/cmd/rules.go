package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"nexx-gsm/core/catalog"
	"nexx-gsm/core/pricing"
	"nexx-gsm/internal/bootstrap"
	"nexx-gsm/internal/config"
)

// rulesCmd groups pricing rules commands
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the pricing rules",
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check [file.hcl]",
	Short: "Validate a pricing rules file",
	Long: `Parse an HCL rules file on top of the built-in tables and validate it.
Without an argument the rules configured for the server are checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRulesCheck,
}

func init() {
	rulesCmd.AddCommand(rulesCheckCmd)
	rootCmd.AddCommand(rulesCmd)
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	cfg := *config.Get()
	if len(args) == 1 {
		cfg.Pricing.RulesPath = args[0]
	}
	rules, err := bootstrap.Rules(&cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	source := "built-in defaults"
	if cfg.Pricing.RulesPath != "" {
		source = cfg.Pricing.RulesPath
	}
	fmt.Fprintf(out, "Rules OK (%s)\n", source)
	fmt.Fprintf(out, "  currency:        %s\n", rules.Currency)
	fmt.Fprintf(out, "  usd_to_local:    %s\n", rules.USDToLocal)
	fmt.Fprintf(out, "  floor:           %d\n", rules.Floor)
	fmt.Fprintf(out, "  bundle_discount: %s\n", rules.BundleDiscount)
	fmt.Fprintln(out, "")
	fmt.Fprintf(out, "%-14s %s\n", "DEFECT", "DEVICE TYPES")
	for _, defect := range pricing.DefectOrder {
		types := make([]string, 0, len(rules.Base[defect]))
		for _, t := range catalog.DeviceTypes {
			if b, ok := rules.Base[defect][t]; ok {
				types = append(types, fmt.Sprintf("%s %d-%d", t, b.Min, b.Max))
			}
		}
		fmt.Fprintf(out, "%-14s %v\n", defect, types)
	}
	return nil
}
