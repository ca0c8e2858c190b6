// File: cmd/serve.go
package cmd

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/videx-autofill/internal/observability"
	"github.com/xkilldash9x/videx-autofill/internal/service"
)

// newServeCmd creates the `serve` command: the HTTP fill service.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP service that fills applications on demand",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr")); err != nil {
				return err
			}
			return viper.BindPFlag("server.max_concurrent", cmd.Flags().Lookup("max-concurrent"))
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

			var history service.History
			if comps.History != nil {
				history = comps.History
			}
			srv := service.New(cfg.Server, comps, comps.Loader, history, logger)
			if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().Int("max-concurrent", 2, "Maximum concurrent fill runs")
	return serveCmd
}
