// File: internal/service/server.go
// Package service exposes the fill pipeline over HTTP. One POST runs one
// complete fill and answers with the exported document; everything else is
// introspection.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/videx-autofill/api/schemas"
	"github.com/xkilldash9x/videx-autofill/internal/config"
	"github.com/xkilldash9x/videx-autofill/internal/loader"
	"github.com/xkilldash9x/videx-autofill/internal/store"
)

// FillRunner executes one complete fill run against a fresh browser session.
type FillRunner interface {
	RunFill(ctx context.Context, data schemas.ApplicantData) (*schemas.FillResult, error)
}

// History records run outcomes. Implemented by store.Store; nil-able.
type History interface {
	RecordRun(ctx context.Context, result *schemas.FillResult) error
	RecentRuns(ctx context.Context, limit int) ([]store.RunRecord, error)
}

// Server is the HTTP adapter. Concurrency is capped independently of the
// browser pool so queued requests fail fast instead of piling up.
type Server struct {
	cfg     config.ServerConfig
	runner  FillRunner
	loader  *loader.Loader
	history History
	logger  *zap.Logger

	slots   *semaphore.Weighted
	limiter *rate.Limiter

	httpServer *http.Server
}

// New builds the server. history may be nil when persistence is disabled.
func New(cfg config.ServerConfig, runner FillRunner, l *loader.Loader, history History, logger *zap.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		runner:  runner,
		loader:  l,
		history: history,
		logger:  logger.Named("service"),
		slots:   semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerMin/60.0), cfg.MaxConcurrent),
	}
	return s
}

// Router assembles the gin handler tree.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/", s.handleUsage)
	router.GET("/health", s.handleHealth)
	router.GET("/runs", s.handleRuns)
	router.POST("/fill", s.handleFill)
	return router
}

// Run serves until ctx is cancelled, then drains within the shutdown budget.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP service listening", zap.String("addr", s.cfg.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("draining HTTP server: %w", err)
	}
	s.logger.Info("HTTP service stopped")
	return nil
}

func (s *Server) handleUsage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "videx-autofill",
		"endpoints": gin.H{
			"POST /fill":  "fill the application form; body is applicant data JSON, response is the PDF",
			"GET /health": "liveness probe",
			"GET /runs":   "recent fill run history",
		},
		"data_format": "flat JSON object; keys are English names or internal field ids",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRuns(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run history is not enabled"})
		return
	}
	records, err := s.history.RecentRuns(c.Request.Context(), 20)
	if err != nil {
		s.logger.Error("Run history query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read run history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": records})
}

// handleFill is the main endpoint: assemble applicant data, run the fill,
// stream the document back. Per-field failures with a usable document are
// still a success; only an artifact-less run is an error.
func (s *Server) handleFill(c *gin.Context) {
	if !s.limiter.Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, retry later"})
		return
	}
	if !s.slots.TryAcquire(1) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "all fill slots are busy, retry later"})
		return
	}
	defer s.slots.Release(1)

	var doc map[string]any
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	data := s.loader.Assemble(doc)
	if len(data.CountableFields()) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fillable values in request body"})
		return
	}

	result, err := s.runner.RunFill(c.Request.Context(), data)
	if result != nil {
		s.recordRun(c.Request.Context(), result)
	}
	if err != nil && (result == nil || !result.HasArtifact()) {
		s.logger.Error("Fill run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, s.errorPayload(err, result))
		return
	}
	if result == nil || len(result.Artifact) == 0 {
		c.JSON(http.StatusInternalServerError, s.errorPayload(errors.New("no document was produced"), result))
		return
	}

	filename := "videx_application.pdf"
	if result.ArtifactPath != "" {
		filename = filepath.Base(result.ArtifactPath)
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("X-Run-ID", result.RunID)
	c.Data(http.StatusOK, "application/pdf", result.Artifact)
}

func (s *Server) errorPayload(err error, result *schemas.FillResult) schemas.FillErrorPayload {
	payload := schemas.FillErrorPayload{Error: err.Error()}
	if result != nil {
		payload.FieldsFilled = result.SuccessCount
		payload.FieldsFailed = result.FailCount
	}
	return payload
}

func (s *Server) recordRun(ctx context.Context, result *schemas.FillResult) {
	if s.history == nil {
		return
	}
	if err := s.history.RecordRun(ctx, result); err != nil {
		s.logger.Warn("Could not persist run history", zap.String("run_id", result.RunID), zap.Error(err))
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
