// File: cmd/validate.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/videx-autofill/internal/loader"
	"github.com/xkilldash9x/videx-autofill/internal/observability"
	"github.com/xkilldash9x/videx-autofill/internal/schema"
	"github.com/xkilldash9x/videx-autofill/internal/translate"
)

// newValidateCmd creates the `validate` command: check a data file against
// the scraped schema without touching the browser.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <data-file.json>",
		Short: "Validates an applicant data file against the scraped schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			cfg, err := currentConfig()
			if err != nil {
				return err
			}

			idx, err := schema.LoadOrEmpty(cfg.Output.SchemaPath)
			if err != nil {
				return err
			}
			translator, err := translate.NewWithDefaults(cfg.Output.DefaultsPath)
			if err != nil {
				return err
			}

			l := loader.New(translator, idx, logger)
			data, err := l.Load(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Loaded %d values (%d fillable)\n", len(data), len(data.CountableFields()))

			ok, missing := l.Validate(data)
			if !ok {
				fmt.Printf("Missing %d required fields:\n", len(missing))
				for _, id := range missing {
					fmt.Printf("  - %s\n", id)
				}
				return fmt.Errorf("%d required fields missing", len(missing))
			}
			fmt.Println("Data file is valid.")
			return nil
		},
	}
}
