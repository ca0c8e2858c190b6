package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/videx-autofill/api/schemas"
	"github.com/xkilldash9x/videx-autofill/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeDriver simulates a paginated form. pages[i] lists the fields that are
// visible once page i is reached; reveal maps a field to further fields that
// appear on the same page after it is filled.
type fakeDriver struct {
	pages      [][]string
	reveal     map[string][]string
	failFields map[string]bool
	openErr    error
	artifact   []byte
	screenshot []byte

	alwaysAdvance  bool
	panicOnExtract bool

	page         int
	visibleNow   map[string]bool
	filled       []string
	advanceCalls int
	submitCalls  int
}

func newFakeDriver(pages ...[]string) *fakeDriver {
	d := &fakeDriver{pages: pages, visibleNow: map[string]bool{}}
	if len(pages) > 0 {
		for _, id := range pages[0] {
			d.visibleNow[id] = true
		}
	}
	return d
}

func (d *fakeDriver) Open(context.Context) error { return d.openErr }

func (d *fakeDriver) FillField(_ context.Context, fieldID string, _ schemas.ApplicantValue) bool {
	d.filled = append(d.filled, fieldID)
	for _, revealed := range d.reveal[fieldID] {
		d.visibleNow[revealed] = true
	}
	return !d.failFields[fieldID]
}

func (d *fakeDriver) VisibleFields(_ context.Context, candidates []string) []string {
	var out []string
	for _, id := range candidates {
		if d.visibleNow[id] {
			out = append(out, id)
		}
	}
	return out
}

func (d *fakeDriver) DismissPopups(context.Context) bool { return false }

func (d *fakeDriver) AdvancePage(context.Context) bool {
	d.advanceCalls++
	if d.alwaysAdvance {
		return true
	}
	d.page++
	if d.page >= len(d.pages) {
		return false
	}
	d.visibleNow = map[string]bool{}
	for _, id := range d.pages[d.page] {
		d.visibleNow[id] = true
	}
	return true
}

func (d *fakeDriver) Submit(context.Context) bool {
	d.submitCalls++
	return true
}

func (d *fakeDriver) ExtractArtifact(context.Context) []byte {
	if d.panicOnExtract {
		panic("export dialog vanished")
	}
	return d.artifact
}

func (d *fakeDriver) Screenshot(context.Context) ([]byte, error) {
	if d.screenshot == nil {
		return nil, errors.New("no page")
	}
	return d.screenshot, nil
}

type teardownCounter struct{ calls int }

func (c *teardownCounter) fn() func() {
	return func() { c.calls++ }
}

func newTestOrchestrator(t *testing.T, d Driver, teardown func(), fill config.FillConfig) *Orchestrator {
	t.Helper()
	o := New(d, teardown, fill, config.OutputConfig{Dir: t.TempDir()}, zap.NewNop())
	o.sleep = func(time.Duration) {}
	o.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	return o
}

func smallFill() config.FillConfig {
	return config.FillConfig{MaxPages: 5, MaxPasses: 3, SettleShort: 0, SettleLong: 0}
}

func TestRunFillsAcrossPages(t *testing.T) {
	driver := newFakeDriver(
		[]string{"antragsteller.familienname", "antragsteller.vorname"},
		[]string{"reisedaten.visumart"},
	)
	tc := &teardownCounter{}
	o := newTestOrchestrator(t, driver, tc.fn(), smallFill())

	result, err := o.Run(context.Background(), schemas.ApplicantData{
		"antragsteller.familienname": "Smith",
		"antragsteller.vorname":      "John",
		"reisedaten.visumart":        "Single entry",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.SuccessCount)
	assert.Zero(t, result.FailCount)
	assert.Len(t, driver.filled, 3)
	assert.Equal(t, 1, tc.calls)
	assert.NotEmpty(t, result.RunID)
}

func TestRunSecondPassPicksUpRevealedFields(t *testing.T) {
	driver := newFakeDriver([]string{"trigger.checkbox"})
	driver.reveal = map[string][]string{"trigger.checkbox": {"revealed.detail"}}
	o := newTestOrchestrator(t, driver, nil, smallFill())

	result, err := o.Run(context.Background(), schemas.ApplicantData{
		"trigger.checkbox": true,
		"revealed.detail":  "now visible",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.SuccessCount)
	// Both fills happened without a page advance.
	assert.Equal(t, []string{"trigger.checkbox", "revealed.detail"}, driver.filled)
}

func TestRunCountsEveryCountableField(t *testing.T) {
	driver := newFakeDriver([]string{"present"})
	driver.failFields = map[string]bool{"present": true}
	o := newTestOrchestrator(t, driver, nil, smallFill())

	result, err := o.Run(context.Background(), schemas.ApplicantData{
		"present":    "value",
		"never.seen": "value",
		"":           "",
	})
	require.NoError(t, err)

	// One attempted and failed, one never visible: both count as failures.
	assert.Zero(t, result.SuccessCount)
	assert.Equal(t, 2, result.FailCount)
	assert.False(t, result.Fields["present"])
	assert.False(t, result.Fields["never.seen"])
}

func TestRunStopsAtPageBound(t *testing.T) {
	driver := newFakeDriver([]string{})
	driver.alwaysAdvance = true
	fill := smallFill()
	fill.MaxPages = 4
	o := newTestOrchestrator(t, driver, nil, fill)

	_, err := o.Run(context.Background(), schemas.ApplicantData{"never.rendered": "x"})
	require.NoError(t, err)
	assert.LessOrEqual(t, driver.advanceCalls, fill.MaxPages)
}

func TestRunTeardownOnOpenError(t *testing.T) {
	driver := newFakeDriver()
	driver.openErr = errors.New("anchor never rendered")
	driver.screenshot = []byte("png-bytes")
	tc := &teardownCounter{}
	dir := t.TempDir()
	o := New(driver, tc.fn(), smallFill(), config.OutputConfig{Dir: dir}, zap.NewNop())
	o.sleep = func(time.Duration) {}

	result, err := o.Run(context.Background(), schemas.ApplicantData{"a": "b"})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, tc.calls)

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "error_"+result.RunID)
}

func TestRunTeardownExactlyOnceOnPanic(t *testing.T) {
	driver := newFakeDriver([]string{"a"})
	driver.panicOnExtract = true
	driver.screenshot = []byte("png-bytes")
	tc := &teardownCounter{}
	fill := smallFill()
	fill.SavePDF = true
	dir := t.TempDir()
	o := New(driver, tc.fn(), fill, config.OutputConfig{Dir: dir}, zap.NewNop())
	o.sleep = func(time.Duration) {}

	result, err := o.Run(context.Background(), schemas.ApplicantData{"a": "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Equal(t, 1, tc.calls)

	// The panic path leaves a diagnostic screenshot behind.
	require.NotNil(t, result)
	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "error_"+result.RunID)
}

func TestRunSavesArtifact(t *testing.T) {
	driver := newFakeDriver([]string{"antragsteller.familienname"})
	driver.artifact = []byte("%PDF-1.4 content")
	fill := smallFill()
	fill.SavePDF = true
	o := newTestOrchestrator(t, driver, nil, fill)

	result, err := o.Run(context.Background(), schemas.ApplicantData{
		"antragsteller.familienname": "Smith-Jones",
	})
	require.NoError(t, err)

	require.True(t, result.HasArtifact())
	assert.Equal(t, "videx_application_Smith_Jones_20260314_093000.pdf", filepath.Base(result.ArtifactPath))
	saved, readErr := os.ReadFile(result.ArtifactPath)
	require.NoError(t, readErr)
	assert.Equal(t, driver.artifact, saved)
}

func TestRunArtifactMissIsNotAnError(t *testing.T) {
	driver := newFakeDriver([]string{"a"})
	fill := smallFill()
	fill.SavePDF = true
	o := newTestOrchestrator(t, driver, nil, fill)

	result, err := o.Run(context.Background(), schemas.ApplicantData{"a": "b"})
	require.NoError(t, err)
	assert.False(t, result.HasArtifact())
	assert.Equal(t, 1, result.SuccessCount)
}

func TestRunSubmitOnlyWhenConfigured(t *testing.T) {
	driver := newFakeDriver([]string{"a"})
	o := newTestOrchestrator(t, driver, nil, smallFill())

	result, err := o.Run(context.Background(), schemas.ApplicantData{"a": "b"})
	require.NoError(t, err)
	assert.False(t, result.Submitted)
	assert.Zero(t, driver.submitCalls)

	driver = newFakeDriver([]string{"a"})
	fill := smallFill()
	fill.Submit = true
	o = newTestOrchestrator(t, driver, nil, fill)

	result, err = o.Run(context.Background(), schemas.ApplicantData{"a": "b"})
	require.NoError(t, err)
	assert.True(t, result.Submitted)
	assert.Equal(t, 1, driver.submitCalls)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "M_ller", sanitizeName("Müller"))
	assert.Equal(t, "applicant", sanitizeName("  "))
	assert.Equal(t, "OBrien", sanitizeName("OBrien"))
}
