// File: cmd/components.go
// Shared dependency wiring for the fill and serve commands.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/videx-autofill/api/schemas"
	"github.com/xkilldash9x/videx-autofill/internal/browser"
	"github.com/xkilldash9x/videx-autofill/internal/config"
	"github.com/xkilldash9x/videx-autofill/internal/formdriver"
	"github.com/xkilldash9x/videx-autofill/internal/loader"
	"github.com/xkilldash9x/videx-autofill/internal/observability"
	"github.com/xkilldash9x/videx-autofill/internal/orchestrator"
	"github.com/xkilldash9x/videx-autofill/internal/schema"
	"github.com/xkilldash9x/videx-autofill/internal/store"
	"github.com/xkilldash9x/videx-autofill/internal/translate"
)

// currentConfig resolves the final configuration after flag binding.
func currentConfig() (*config.Config, error) {
	return config.NewConfigFromViper(viper.GetViper())
}

// components holds the wired services behind one fill pipeline.
type components struct {
	Config    *config.Config
	Manager   *browser.Manager
	SchemaIdx *schema.Index
	Loader    *loader.Loader
	History   *store.Store
	DBPool    *pgxpool.Pool
	Logger    *zap.Logger
}

// initializeComponents builds everything a fill run needs: browser process,
// schema index, translator-backed loader, and the optional run history.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	c := &components{Config: cfg, Logger: logger}

	idx, err := schema.LoadOrEmpty(cfg.Output.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("loading schema %s: %w", cfg.Output.SchemaPath, err)
	}
	if idx.Schema().FieldCount() == 0 {
		logger.Warn("No scraped schema found, falling back to id-derived selectors",
			zap.String("path", cfg.Output.SchemaPath))
	}
	c.SchemaIdx = idx

	translator, err := translate.NewWithDefaults(cfg.Output.DefaultsPath)
	if err != nil {
		return nil, fmt.Errorf("loading defaults %s: %w", cfg.Output.DefaultsPath, err)
	}
	c.Loader = loader.New(translator, idx, logger)

	manager, err := browser.NewManager(ctx, cfg.Browser, logger)
	if err != nil {
		return nil, err
	}
	c.Manager = manager

	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			c.Shutdown(ctx)
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		c.DBPool = pool
		history, err := store.New(ctx, pool, logger)
		if err != nil {
			c.Shutdown(ctx)
			return nil, err
		}
		c.History = history
	}

	return c, nil
}

// Shutdown closes everything in reverse dependency order.
func (c *components) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if c.Manager != nil {
		if err := c.Manager.Shutdown(shutdownCtx); err != nil {
			observability.GetLogger().Warn("Browser manager shutdown error", zap.Error(err))
		}
	}
	if c.DBPool != nil {
		c.DBPool.Close()
	}
}

// RunFill opens a fresh browser session and runs one complete fill. The
// session is torn down by the orchestrator on every path.
func (c *components) RunFill(ctx context.Context, data schemas.ApplicantData) (*schemas.FillResult, error) {
	session, err := c.Manager.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening browser session: %w", err)
	}

	page := browser.NewPage(session, c.Logger)
	strategies := []formdriver.CaptureStrategy{
		browser.NewDownloadEventStrategy(session, c.Config.Fill.DownloadTimeout, c.Logger),
		browser.NewNewTabBlobStrategy(session, c.Config.Fill.DownloadTimeout, c.Logger),
		formdriver.NewDirectoryPollStrategy(session.DownloadDir(), c.Logger),
	}
	driver := formdriver.New(page, c.SchemaIdx, c.Config.Form, c.Config.Fill, strategies, c.Logger)

	orch := orchestrator.New(driver, session.Close, c.Config.Fill, c.Config.Output, c.Logger)
	return orch.Run(ctx, data)
}
