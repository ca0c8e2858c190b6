package formdriver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func noopTrigger(context.Context) error { return nil }

func newPollStrategy(t *testing.T, dir string) *DirectoryPollStrategy {
	t.Helper()
	s := NewDirectoryPollStrategy(dir, zap.NewNop())
	s.Attempts = 2
	s.Interval = 0
	s.sleep = func(time.Duration) {}
	return s
}

func TestDirectoryPollFindsFreshPDF(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "export.pdf"), []byte("%PDF-1.7"), 0o644))

	s := newPollStrategy(t, dir)
	data, err := s.Capture(context.Background(), noopTrigger)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), data)
}

func TestDirectoryPollPicksNewest(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "older.pdf")
	require.NoError(t, os.WriteFile(older, []byte("old"), 0o644))
	past := time.Now().Add(-10 * time.Second)
	require.NoError(t, os.Chtimes(older, past, past))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "newer.pdf"), []byte("new"), 0o644))

	s := newPollStrategy(t, dir)
	data, err := s.Capture(context.Background(), noopTrigger)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)
}

func TestDirectoryPollIgnoresStaleFiles(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "stale.pdf")
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale, past, past))

	s := newPollStrategy(t, dir)
	_, err := s.Capture(context.Background(), noopTrigger)
	assert.ErrorIs(t, err, ErrNotCaptured)
}

func TestDirectoryPollIgnoresNonPDF(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	s := newPollStrategy(t, dir)
	_, err := s.Capture(context.Background(), noopTrigger)
	assert.ErrorIs(t, err, ErrNotCaptured)
}

func TestDirectoryPollChecksEvenAfterTriggerError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "landed.pdf"), []byte("landed"), 0o644))

	s := newPollStrategy(t, dir)
	data, err := s.Capture(context.Background(), func(context.Context) error {
		return errors.New("click failed")
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("landed"), data)
}

func TestDirectoryPollHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newPollStrategy(t, t.TempDir())
	_, err := s.Capture(ctx, noopTrigger)
	assert.ErrorIs(t, err, context.Canceled)
}
