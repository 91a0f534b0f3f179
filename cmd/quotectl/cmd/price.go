package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"greenquote/internal/pricing"
	"greenquote/internal/types"
)

// priceOutput is the JSON shape of quotectl price.
type priceOutput struct {
	Mode          types.PricingMode   `json:"pricing_mode"`
	Area          decimal.Decimal     `json:"area"`
	Price         pricing.PriceResult `json:"price"`
	EffectiveRate decimal.Decimal     `json:"effective_rate"`
}

func newPriceCmd(opts *rootOptions) *cobra.Command {
	var area string
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price an area under the configured schedule",
		Long: `Price an area with the configuration's active mode and show how it was
banded. Minimums, fees, add-ons and frequency are not applied; use quote for
the full customer price.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseArea(area)
			if err != nil {
				return err
			}
			cfg, err := loadConfiguration(opts.configFile)
			if err != nil {
				return err
			}
			res, err := pricing.Compute(cfg, a)
			if err != nil {
				return err
			}

			out := priceOutput{Mode: cfg.Mode(), Area: a, Price: res, EffectiveRate: cfg.FlatRatePerUnitArea}
			if cfg.UseTieredPricing {
				out.EffectiveRate = pricing.EffectiveRate(a, cfg.Tiers)
			}
			if opts.format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			return printPrice(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVarP(&area, "area", "a", "", "property area in square feet")
	return cmd
}

func printPrice(w io.Writer, out priceOutput) error {
	fmt.Fprintf(w, "Pricing mode: %s\n", out.Mode)
	fmt.Fprintf(w, "Area: %s\n\n", out.Area)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "BAND\tAREA\tRATE\tPRICE\t")
	for _, b := range out.Price.Breakdown {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", bandLabel(b), b.AreaInBand, b.Rate, b.Price.StringFixed(2))
	}
	fmt.Fprintf(tw, "TOTAL\t\t\t%s\t\n", out.Price.TotalPrice.StringFixed(2))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nEffective rate: %s per sq ft\n", out.EffectiveRate)
	return nil
}

func bandLabel(b types.BandResult) string {
	if b.RangeEnd == nil {
		return b.RangeStart.String() + "+"
	}
	return b.RangeStart.String() + "-" + b.RangeEnd.String()
}

func newQuoteCmd(opts *rootOptions) *cobra.Command {
	var (
		area      string
		frequency string
		service   string
		addOns    []string
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Assemble a full quote with fees, minimum, add-ons and frequency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseArea(area)
			if err != nil {
				return err
			}
			freq := types.Frequency(frequency)
			if !freq.IsValid() {
				return fmt.Errorf("unknown frequency %q (want one_time, weekly, bi_weekly or monthly)", frequency)
			}
			cfg, err := loadConfiguration(opts.configFile)
			if err != nil {
				return err
			}
			res, err := pricing.AssembleQuote(cfg, pricing.QuoteInput{
				Area:       a,
				AreaSource: types.AreaSourceMeasured,
				Service:    service,
				AddOnIDs:   addOns,
				Frequency:  freq,
			})
			if err != nil {
				return err
			}
			if opts.format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			return printQuote(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&area, "area", "a", "", "property area in square feet")
	cmd.Flags().StringVar(&frequency, "frequency", string(types.FrequencyWeekly), "visit frequency (one_time, weekly, bi_weekly, monthly)")
	cmd.Flags().StringVar(&service, "service", "", "service label")
	cmd.Flags().StringSliceVar(&addOns, "addons", nil, "comma-separated add-on IDs")
	return cmd
}

func printQuote(w io.Writer, res pricing.QuoteResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Pricing mode\t%s\n", res.PricingMode)
	fmt.Fprintf(tw, "Area\t%s\n", res.Area)
	fmt.Fprintf(tw, "Area price\t%s\n", res.AreaPrice.TotalPrice.StringFixed(2))
	fmt.Fprintf(tw, "Base fee\t%s\n", res.BaseFee.StringFixed(2))
	base := res.BasePrice.StringFixed(2)
	if res.FloorApplied {
		base += " (minimum applied)"
	}
	fmt.Fprintf(tw, "Base price\t%s\n", base)
	for _, a := range res.AddOns {
		fmt.Fprintf(tw, "  + %s\t%s\n", a.Label, a.PricePerVisit.StringFixed(2))
	}
	fmt.Fprintf(tw, "Add-ons\t%s\n", res.AddOnsTotal.StringFixed(2))
	fmt.Fprintf(tw, "Frequency\t%s (x%s)\n", res.Frequency, res.Multiplier)
	fmt.Fprintf(tw, "Price per visit\t%s\n", res.PricePerVisit.StringFixed(2))
	if res.HasMonthlyEstimate() {
		fmt.Fprintf(tw, "Monthly estimate\t%s\n", res.MonthlyEstimate.StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(res.IgnoredAddOns) > 0 {
		fmt.Fprintf(w, "\nIgnored add-ons: %s\n", strings.Join(res.IgnoredAddOns, ", "))
	}
	return nil
}

func newCompareCmd(opts *rootOptions) *cobra.Command {
	var area string
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare tiered and flat pricing for an area",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseArea(area)
			if err != nil {
				return err
			}
			cfg, err := loadConfiguration(opts.configFile)
			if err != nil {
				return err
			}
			c, err := pricing.ComparePricing(a, cfg)
			if err != nil {
				return err
			}
			if opts.format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), c)
			}

			w := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Area\t%s\n", c.Area)
			fmt.Fprintf(tw, "Tiered\t%s\t(%s per sq ft)\n", c.TieredPrice.StringFixed(2), c.EffectiveRate)
			fmt.Fprintf(tw, "Flat\t%s\t(%s per sq ft)\n", c.FlatPrice.StringFixed(2), c.FlatRate)
			fmt.Fprintf(tw, "Difference\t%s\t(%s%%)\n", c.Difference.StringFixed(2), c.SavingsPct.StringFixed(2))
			fmt.Fprintf(tw, "Cheaper\t%s\n", c.Cheaper)
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&area, "area", "a", "", "property area in square feet")
	return cmd
}
