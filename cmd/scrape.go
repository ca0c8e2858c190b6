// File: cmd/scrape.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/videx-autofill/internal/browser"
	"github.com/xkilldash9x/videx-autofill/internal/observability"
	"github.com/xkilldash9x/videx-autofill/internal/schema"
	"github.com/xkilldash9x/videx-autofill/internal/scraper"
)

// newScrapeCmd creates the `scrape` command: discover the form's field
// inventory and write it as a schema file.
func newScrapeCmd() *cobra.Command {
	scrapeCmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrapes the form's field definitions into a schema file",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("scrape.output_schema", cmd.Flags().Lookup("output")); err != nil {
				return err
			}
			if err := viper.BindPFlag("scrape.language", cmd.Flags().Lookup("language")); err != nil {
				return err
			}
			return viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := currentConfig()
			if err != nil {
				return err
			}

			manager, err := browser.NewManager(ctx, cfg.Browser, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := manager.Shutdown(ctx); err != nil {
					logger.Warn("Browser manager shutdown error", zap.Error(err))
				}
			}()

			session, err := manager.NewSession(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			page := browser.NewPage(session, logger)
			s := scraper.New(page, cfg.Form, cfg.Scrape, logger)
			formSchema, err := s.Scrape(ctx)
			if err != nil {
				return fmt.Errorf("scraping form: %w", err)
			}

			outPath := cfg.Scrape.OutputSchema
			if err := schema.Save(formSchema, outPath); err != nil {
				return err
			}

			fmt.Printf("\nScrape complete: %d sections, %d fields\n",
				len(formSchema.Sections), formSchema.FieldCount())
			fmt.Printf("Schema written to %s\n", outPath)

			if templatePath, _ := cmd.Flags().GetString("template"); templatePath != "" {
				idx := schema.FromSchema(formSchema)
				if err := idx.WriteFlatTemplate(templatePath); err != nil {
					return err
				}
				fmt.Printf("Data template written to %s\n", templatePath)
			}
			return nil
		},
	}

	scrapeCmd.Flags().StringP("output", "o", "output/fields_schema.json", "Path for the schema JSON")
	scrapeCmd.Flags().String("template", "", "Also write a flat data template to this path")
	scrapeCmd.Flags().String("language", "en", "Form language to scrape (en or de)")
	scrapeCmd.Flags().Bool("headless", true, "Run the browser headless")
	return scrapeCmd
}
