// Package cmd provides the commands of quotectl.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"greenquote/internal/pricing"
	"greenquote/internal/types"
)

const (
	formatText = "text"
	formatJSON = "json"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configFile string
	format     string
	verbose    bool
}

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "quotectl",
		Short: "Price lawn-care quotes from a pricing configuration",
		Long: `quotectl runs the GreenQuote pricing engine locally.

Without --config the documented default schedule is used: up to 5,000 sq ft
at 0.012, up to 20,000 at 0.008, and 0.005 above that.

Examples:
  quotectl price --area 10000
  quotectl quote --area 12000 --frequency bi_weekly --addons edging
  quotectl compare --area 25000 --config pricing.json
  quotectl validate --config pricing.json
  quotectl defaults > pricing.json`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != formatText && opts.format != formatJSON {
				return fmt.Errorf("unknown format %q (want text or json)", opts.format)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "pricing configuration JSON file (default: built-in defaults)")
	root.PersistentFlags().StringVarP(&opts.format, "format", "f", formatText, "output format (text, json)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newPriceCmd(opts),
		newQuoteCmd(opts),
		newCompareCmd(opts),
		newValidateCmd(opts),
		newDefaultsCmd(),
		newArchiveCmd(opts),
	)
	return root
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfiguration reads the pricing document at path, or returns the
// defaults when path is empty. The result is validated.
func loadConfiguration(path string) (types.PricingConfiguration, error) {
	if path == "" {
		return pricing.DefaultConfiguration(), nil
	}
	cfg, err := readConfiguration(path)
	if err != nil {
		return cfg, err
	}
	if err := pricing.ValidateConfiguration(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func readConfiguration(path string) (types.PricingConfiguration, error) {
	var cfg types.PricingConfiguration
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// parseArea accepts a non-negative decimal area.
func parseArea(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, fmt.Errorf("--area is required")
	}
	area, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid area %q: %w", raw, err)
	}
	if area.IsNegative() {
		return decimal.Zero, fmt.Errorf("area must not be negative")
	}
	return area, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}
