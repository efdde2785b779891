// Package cmd provides the CLI commands for nexx.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nexx-gsm/internal/config"
	"nexx-gsm/internal/logging"
)

// Version is set at build time
var Version = "1.0.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "nexx",
	Short: "Repair price estimates for the NEXX GSM service",
	Long: `nexx prices phone, tablet, laptop and watch repairs from the device
catalog and the pricing rules, the same way the website calculator does.

Examples:
  nexx quote --device "iPhone 14" --defect battery --defect screen
  nexx quote --type laptop --brand dell --defect keyboard --format json
  nexx catalog search galaxy s23
  nexx catalog import-prices --xlsx prices.xlsx --out devices.json
  nexx rules check pricing.hcl`,
	SilenceUsage: true,
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file, JSON or YAML (default nexx.yaml when present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	path := cfgFile
	if path == "" {
		path = "nexx.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	config.Set(cfg)

	// Initialize logging
	cfg.Logging.Format = "console"
	if verbose {
		cfg.Logging.Level = "debug"
	} else {
		cfg.Logging.Level = "warn"
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "nexx version %s\n", Version)
	},
}
