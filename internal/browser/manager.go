// File: internal/browser/manager.go
// Package browser owns the headless Chrome process and hands out isolated
// per-run sessions over it.
package browser

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/videx-autofill/internal/config"
)

// Manager handles the lifecycle of the browser process. Sessions are capped
// by a semaphore so concurrent fill runs cannot exhaust the host.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	sem *semaphore.Weighted

	// wg tracks open sessions for a graceful shutdown.
	wg sync.WaitGroup
}

// NewManager launches the browser process and verifies it responds.
func NewManager(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.Concurrency)),
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, m.buildAllocatorOptions()...)
	m.allocatorCtx = allocCtx
	m.allocatorCancel = cancel

	testCtx, cancelTest := context.WithTimeout(allocCtx, 30*time.Second)
	defer cancelTest()
	testCtx, cancelTestCtx := chromedp.NewContext(testCtx)
	defer cancelTestCtx()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		m.allocatorCancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched", zap.Bool("headless", cfg.Headless))
	return m, nil
}

func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		// False boolean flags are dropped at launch, which strips the
		// enable-automation default.
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", m.cfg.IgnoreTLSErrors),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", m.cfg.Headless),
		chromedp.Flag("lang", "de-DE,de,en-US,en"),
	)

	for _, arg := range m.cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(name, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	// Container-friendly flags.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}
	return opts
}

// Session is one isolated browser tab plus its private download directory.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc

	downloadDir string
	logger      *zap.Logger

	closeOnce sync.Once
	release   func()
}

// NewSession opens a tab, blocking while the concurrency cap is saturated.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a free browser slot: %w", err)
	}

	base := m.cfg.DownloadDir
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			m.sem.Release(1)
			return nil, fmt.Errorf("creating download base directory: %w", err)
		}
	}
	downloadDir, err := os.MkdirTemp(base, "videx-downloads-*")
	if err != nil {
		m.sem.Release(1)
		return nil, fmt.Errorf("creating download directory: %w", err)
	}

	sessionCtx, cancel := chromedp.NewContext(m.allocatorCtx)
	if err := chromedp.Run(sessionCtx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		m.sem.Release(1)
		os.RemoveAll(downloadDir)
		return nil, fmt.Errorf("opening browser tab: %w", err)
	}

	m.wg.Add(1)
	s := &Session{
		ctx:         sessionCtx,
		cancel:      cancel,
		downloadDir: downloadDir,
		logger:      m.logger,
	}
	s.release = func() {
		m.sem.Release(1)
		m.wg.Done()
	}
	m.logger.Debug("Browser session opened", zap.String("download_dir", downloadDir))
	return s, nil
}

// Context returns the chromedp context backing this tab.
func (s *Session) Context() context.Context { return s.ctx }

// DownloadDir is where the browser lands files for this session.
func (s *Session) DownloadDir() string { return s.downloadDir }

// Close tears the tab down and frees its concurrency slot. Safe to call more
// than once; only the first call does work.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		if err := os.RemoveAll(s.downloadDir); err != nil {
			s.logger.Debug("Could not remove download directory", zap.Error(err))
		}
		s.release()
		s.logger.Debug("Browser session closed")
	})
}

// Shutdown waits for open sessions to finish, bounded by ctx, then kills the
// browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Browser manager shutting down, waiting for active sessions")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline reached with sessions still active")
	}

	m.allocatorCancel()
	return nil
}
