package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"greenquote/internal/pricing"
)

// errInvalidConfiguration is returned after the issues have been printed, so
// the process exits non-zero without repeating them.
var errInvalidConfiguration = errors.New("configuration is invalid")

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a pricing configuration file",
		Long: `Validate reports every problem in a pricing configuration: tier
structure, coverage of large areas, negative amounts, frequency multipliers
and add-ons. It exits non-zero when any problem is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.configFile == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := readConfiguration(opts.configFile)
			if err != nil {
				return err
			}

			verr := pricing.ValidateConfiguration(cfg)
			var cfgErr *pricing.ConfigurationError
			if verr != nil && !errors.As(verr, &cfgErr) {
				return verr
			}

			w := cmd.OutOrStdout()
			if opts.format == formatJSON {
				out := struct {
					Valid  bool            `json:"valid"`
					Issues []pricing.Issue `json:"issues"`
				}{Valid: verr == nil, Issues: []pricing.Issue{}}
				if cfgErr != nil {
					out.Issues = cfgErr.Issues
				}
				if err := writeJSON(w, out); err != nil {
					return err
				}
			} else if cfgErr == nil {
				fmt.Fprintf(w, "%s: valid (%s pricing, %d tiers)\n", opts.configFile, cfg.Mode(), len(cfg.Tiers))
			} else {
				fmt.Fprintf(w, "%s: %d problem(s)\n", opts.configFile, len(cfgErr.Issues))
				for _, is := range cfgErr.Issues {
					fmt.Fprintf(w, "  %s [%s]: %s\n", is.Field, is.Kind, is.Message)
				}
			}

			if verr != nil {
				cmd.SilenceErrors = true
				return errInvalidConfiguration
			}
			return nil
		},
	}
}

func newDefaultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Print the default pricing configuration as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), pricing.DefaultConfiguration())
		},
	}
}
