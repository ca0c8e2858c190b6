// File: internal/formdriver/capture.go
package formdriver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// ErrNotCaptured reports that a capture strategy ran to completion without
// producing an artifact. Distinct from transport errors so callers can tell
// "nothing there" from "something broke".
var ErrNotCaptured = errors.New("artifact not captured")

// CaptureStrategy is one way to obtain the exported document. The trigger
// callback fires the page action that starts the export (clicking the
// download control); strategies that need to arm listeners first call it at
// the right moment.
type CaptureStrategy interface {
	Name() string
	Capture(ctx context.Context, trigger func(context.Context) error) ([]byte, error)
}

// DirectoryPollStrategy is the capture of last resort: fire the trigger and
// watch the browser's download directory for a fresh PDF. It catches the case
// where the browser saved the file without surfacing any event this process
// could observe.
type DirectoryPollStrategy struct {
	Dir      string
	Attempts int
	Interval time.Duration
	// MaxAge bounds how old a file may be and still count as ours.
	MaxAge time.Duration
	Logger *zap.Logger

	sleep func(time.Duration)
}

// NewDirectoryPollStrategy polls dir five times a second apart, accepting
// PDFs modified within the last thirty seconds.
func NewDirectoryPollStrategy(dir string, logger *zap.Logger) *DirectoryPollStrategy {
	return &DirectoryPollStrategy{
		Dir:      dir,
		Attempts: 5,
		Interval: time.Second,
		MaxAge:   30 * time.Second,
		Logger:   logger.Named("capture.dirpoll"),
		sleep:    time.Sleep,
	}
}

func (s *DirectoryPollStrategy) Name() string { return "directory-poll" }

func (s *DirectoryPollStrategy) Capture(ctx context.Context, trigger func(context.Context) error) ([]byte, error) {
	// The trigger may already have fired under an earlier strategy; a
	// failure here does not preclude the file having landed on disk.
	if err := trigger(ctx); err != nil {
		s.Logger.Debug("Trigger failed before polling, checking the directory anyway", zap.Error(err))
	}

	for attempt := 0; attempt < s.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if path, ok := s.newestPDF(); ok {
			s.Logger.Info("Found downloaded file", zap.String("path", path))
			return os.ReadFile(path)
		}
		s.sleep(s.Interval)
	}
	return nil, ErrNotCaptured
}

// newestPDF returns the most recently modified PDF in Dir that is younger
// than MaxAge.
func (s *DirectoryPollStrategy) newestPDF() (string, bool) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return "", false
	}

	var (
		newest     string
		newestTime time.Time
	)
	cutoff := time.Now().Add(-s.MaxAge)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".pdf" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			continue
		}
		if info.ModTime().After(newestTime) {
			newest = filepath.Join(s.Dir, entry.Name())
			newestTime = info.ModTime()
		}
	}
	return newest, newest != ""
}
