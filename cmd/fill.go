// File: cmd/fill.go
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/videx-autofill/internal/observability"
)

// newFillCmd creates the `fill` command: one complete application fill from
// a data file.
func newFillCmd() *cobra.Command {
	fillCmd := &cobra.Command{
		Use:   "fill <data-file.json>",
		Short: "Fills the visa application form with data from a JSON file",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("fill.submit", cmd.Flags().Lookup("submit")); err != nil {
				return err
			}
			if err := viper.BindPFlag("fill.save_pdf", cmd.Flags().Lookup("save-pdf")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			return viper.BindPFlag("output.dir", cmd.Flags().Lookup("output"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := currentConfig()
			if err != nil {
				return err
			}

			comps, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("initializing components: %w", err)
			}
			defer comps.Shutdown(ctx)

			data, err := comps.Loader.Load(args[0])
			if err != nil {
				return err
			}
			if ok, missing := comps.Loader.Validate(data); !ok {
				logger.Warn("Required fields are missing from the data file",
					zap.Strings("missing", missing))
			}

			result, err := comps.RunFill(ctx, data)
			if result != nil && comps.History != nil {
				if histErr := comps.History.RecordRun(ctx, result); histErr != nil {
					logger.Warn("Could not persist run history", zap.Error(histErr))
				}
			}
			if err != nil {
				return fmt.Errorf("fill run: %w", err)
			}

			fmt.Printf("\nFill complete. Run ID: %s\n", result.RunID)
			fmt.Printf("Fields filled: %d, failed: %d\n", result.SuccessCount, result.FailCount)
			if result.ArtifactPath != "" {
				fmt.Printf("Application PDF: %s\n", result.ArtifactPath)
			} else if cfg.Fill.SavePDF {
				return errors.New("the application PDF could not be captured")
			}
			if result.Submitted {
				fmt.Println("Form was submitted.")
			}
			return nil
		},
	}

	fillCmd.Flags().Bool("submit", false, "Actually submit the form after filling (default is fill only)")
	fillCmd.Flags().Bool("save-pdf", true, "Export the filled application as PDF")
	fillCmd.Flags().Bool("headless", true, "Run the browser headless; set to false to watch the fill")
	fillCmd.Flags().StringP("output", "o", "output", "Directory for the exported PDF")
	return fillCmd
}
