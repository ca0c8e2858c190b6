// File: internal/orchestrator/orchestrator.go
// Package orchestrator runs one application fill end to end: open the form,
// converge over pages and passes until every supplied value has been
// attempted, optionally submit, and always try to walk away with the
// exported document.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/videx-autofill/api/schemas"
	"github.com/xkilldash9x/videx-autofill/internal/config"
)

// Driver is the per-session form surface the orchestrator steers.
// Implemented by formdriver.Driver; faked in tests.
type Driver interface {
	Open(ctx context.Context) error
	FillField(ctx context.Context, fieldID string, value schemas.ApplicantValue) bool
	VisibleFields(ctx context.Context, candidates []string) []string
	DismissPopups(ctx context.Context) bool
	AdvancePage(ctx context.Context) bool
	Submit(ctx context.Context) bool
	ExtractArtifact(ctx context.Context) []byte
	Screenshot(ctx context.Context) ([]byte, error)
}

// Orchestrator drives one fill run. One instance per run; the teardown
// callback is invoked exactly once no matter how the run ends.
type Orchestrator struct {
	driver   Driver
	teardown func()
	fill     config.FillConfig
	output   config.OutputConfig
	logger   *zap.Logger

	now   func() time.Time
	sleep func(time.Duration)
}

// New creates an Orchestrator. teardown releases the underlying browser
// session and may be nil.
func New(driver Driver, teardown func(), fill config.FillConfig, output config.OutputConfig, logger *zap.Logger) *Orchestrator {
	if teardown == nil {
		teardown = func() {}
	}
	return &Orchestrator{
		driver:   driver,
		teardown: teardown,
		fill:     fill,
		output:   output,
		logger:   logger.Named("orchestrator"),
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Run fills the form with data and returns the per-field outcome. The result
// is non-nil even on error so callers can report partial progress. The
// session is torn down before Run returns, on every path.
func (o *Orchestrator) Run(ctx context.Context, data schemas.ApplicantData) (result *schemas.FillResult, err error) {
	result = &schemas.FillResult{
		RunID:  uuid.New().String(),
		Fields: make(map[string]bool),
	}
	log := o.logger.With(zap.String("run_id", result.RunID))

	defer o.teardown()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fill run panicked: %v", r)
			log.Error("Fill run panicked", zap.Any("panic", r))
			// The page may still be alive; grab diagnostics before teardown.
			o.saveErrorScreenshot(ctx, log, result.RunID)
		}
	}()

	countable := data.CountableFields()
	log.Info("Starting fill run", zap.Int("fields", len(countable)))

	if err := o.driver.Open(ctx); err != nil {
		o.saveErrorScreenshot(ctx, log, result.RunID)
		return result, fmt.Errorf("opening form: %w", err)
	}

	attempted := o.converge(ctx, log, data, countable, result)

	// Fields never seen on any page count as failures.
	for _, id := range countable {
		if !attempted[id] {
			result.Record(id, false)
		}
	}

	log.Info("Fill pass complete",
		zap.Int("filled", result.SuccessCount),
		zap.Int("failed", result.FailCount),
	)

	if o.fill.Submit {
		result.Submitted = o.driver.Submit(ctx)
	}

	if o.fill.SavePDF {
		o.captureArtifact(ctx, log, data, result)
	}

	return result, ctx.Err()
}

// converge loops pages and passes until every countable field has been
// attempted or the form runs out of pages. Multiple passes per page pick up
// fields revealed by earlier fills on the same page.
func (o *Orchestrator) converge(ctx context.Context, log *zap.Logger, data schemas.ApplicantData, countable []string, result *schemas.FillResult) map[string]bool {
	attempted := make(map[string]bool, len(countable))

	for pageNum := 1; pageNum <= o.fill.MaxPages; pageNum++ {
		if ctx.Err() != nil {
			return attempted
		}
		pageLog := log.With(zap.Int("page", pageNum))
		o.driver.DismissPopups(ctx)

		for pass := 0; pass < o.fill.MaxPasses; pass++ {
			remaining := notAttempted(countable, attempted)
			if len(remaining) == 0 {
				break
			}
			visible := o.driver.VisibleFields(ctx, remaining)
			if len(visible) == 0 {
				break
			}
			pageLog.Debug("Filling visible fields",
				zap.Int("pass", pass+1), zap.Int("count", len(visible)))

			for _, id := range visible {
				if ctx.Err() != nil {
					return attempted
				}
				ok := o.driver.FillField(ctx, id, data[id])
				attempted[id] = true
				result.Record(id, ok)
			}
			o.sleep(o.fill.SettleShort)
		}

		if len(attempted) >= len(countable) {
			pageLog.Debug("All fields attempted, stopping pagination")
			break
		}
		if !o.driver.AdvancePage(ctx) {
			pageLog.Debug("No further pages")
			break
		}
		o.sleep(o.fill.SettleLong / 2)
	}
	return attempted
}

// captureArtifact extracts the document and writes it to the output
// directory. A miss degrades the result, never fails the run.
func (o *Orchestrator) captureArtifact(ctx context.Context, log *zap.Logger, data schemas.ApplicantData, result *schemas.FillResult) {
	artifact := o.driver.ExtractArtifact(ctx)
	if len(artifact) == 0 {
		log.Warn("No document could be captured")
		return
	}
	result.Artifact = artifact

	name := artifactFileName(data, o.now())
	path := filepath.Join(o.output.Dir, name)
	if err := os.MkdirAll(o.output.Dir, 0o755); err != nil {
		log.Error("Could not create output directory", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, artifact, 0o644); err != nil {
		log.Error("Could not write document", zap.String("path", path), zap.Error(err))
		return
	}
	result.ArtifactPath = path
	log.Info("Document saved", zap.String("path", path), zap.Int("bytes", len(artifact)))
}

func (o *Orchestrator) saveErrorScreenshot(ctx context.Context, log *zap.Logger, runID string) {
	dir := o.output.ScreenshotDir
	if dir == "" {
		dir = o.output.Dir
	}
	shot, err := o.driver.Screenshot(ctx)
	if err != nil || len(shot) == 0 {
		log.Debug("No error screenshot available", zap.Error(err))
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	path := filepath.Join(dir, "error_"+runID+".png")
	if err := os.WriteFile(path, shot, 0o644); err != nil {
		log.Debug("Could not write error screenshot", zap.Error(err))
		return
	}
	log.Info("Error screenshot saved", zap.String("path", path))
}

// artifactFileName builds the export name from the applicant surname and a
// timestamp, with anything unsafe for a filename folded to underscores.
func artifactFileName(data schemas.ApplicantData, now time.Time) string {
	surname, _ := data["antragsteller.familienname"].(string)
	return fmt.Sprintf("videx_application_%s_%s.pdf",
		sanitizeName(surname), now.Format("20060102_150405"))
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "applicant"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func notAttempted(ids []string, attempted map[string]bool) []string {
	var out []string
	for _, id := range ids {
		if !attempted[id] {
			out = append(out, id)
		}
	}
	return out
}
