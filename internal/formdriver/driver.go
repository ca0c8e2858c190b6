// File: internal/formdriver/driver.go
// Package formdriver owns one live session against the external form and
// exposes type-aware fill primitives for it. Every operation is bounded by a
// timeout and converts recoverable failures into boolean outcomes: the target
// surface is third-party markup that this system does not control, so probing
// that misses is an expected result, not an error.
package formdriver

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/videx-autofill/api/schemas"
	"github.com/xkilldash9x/videx-autofill/internal/config"
	"github.com/xkilldash9x/videx-autofill/internal/schema"
)

// Page is the minimal surface the driver needs from a live browser page.
// The production implementation sits in internal/browser; tests fake it.
type Page interface {
	// Navigate loads the url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until the first element matching selector is
	// visible, or the timeout expires (returned as an error).
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// IsVisible reports element visibility within a short bounded wait.
	IsVisible(ctx context.Context, selector string, timeout time.Duration) bool
	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error
	// SetText replaces the value of a text-like control.
	SetText(ctx context.Context, selector, value string) error
	// SetChecked drives a checkbox or radio to the requested state.
	SetChecked(ctx context.Context, selector string, checked bool) error
	// SelectByLabel picks a select option by its display label.
	SelectByLabel(ctx context.Context, selector, label string) error
	// SelectByValue picks a select option by its value code.
	SelectByValue(ctx context.Context, selector, value string) error
	// LiveOptions returns the option elements currently in the DOM.
	LiveOptions(ctx context.Context, selector string) ([]schemas.Option, error)
	// ElementKind probes the live element's tag name and input type.
	ElementKind(ctx context.Context, selector string) (tag string, inputType string, err error)
	// ClickButtonByText clicks the first visible, enabled button-like
	// element whose text contains label (case-insensitive). scope narrows
	// the search to a container selector; empty means the whole document.
	ClickButtonByText(ctx context.Context, scope, label string) (bool, error)
	// SelectFirstOptionByLabel targets the page's first select element.
	SelectFirstOptionByLabel(ctx context.Context, label string) error
	// WaitIdle waits for network quiescence, bounded by timeout.
	WaitIdle(ctx context.Context, timeout time.Duration) error
	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
}

// dialogScopes are containers that hold blocking modal dialogs. Probed in
// priority order together with dismissTexts.
var dialogScopes = []string{"[role='dialog']", "[role='alertdialog']", ".modal"}

var dismissTexts = []string{"OK", "Schließen", "Close"}

// cookieProbes accept cookie-consent banners.
var cookieProbes = []struct{ scope, label string }{
	{"", "Accept all"},
	{"", "Alle akzeptieren"},
	{"", "Akzeptieren"},
	{"", "Accept"},
	{"[class*='cookie']", ""},
}

// advanceTexts move to the next form page, across both UI languages.
var advanceTexts = []string{"Continue", "Weiter", "Further", "Next", "Fortfahren"}

var submitTexts = []string{"Submit", "Absenden"}

const downloadButtonText = "Download PDF"

// Driver drives the external form through a Page. One Driver per session;
// never shared across runs.
type Driver struct {
	page       Page
	schemaIdx  *schema.Index
	form       config.FormConfig
	fill       config.FillConfig
	logger     *zap.Logger
	strategies []CaptureStrategy

	// sleep is replaceable so tests do not pay real settle delays.
	sleep func(time.Duration)
}

// New creates a Driver over an open page. strategies is the ordered artifact
// capture chain; an empty chain means ExtractArtifact always misses.
func New(page Page, idx *schema.Index, form config.FormConfig, fill config.FillConfig, strategies []CaptureStrategy, logger *zap.Logger) *Driver {
	if idx == nil {
		idx = schema.Empty()
	}
	return &Driver{
		page:       page,
		schemaIdx:  idx,
		form:       form,
		fill:       fill,
		logger:     logger.Named("formdriver"),
		strategies: strategies,
		sleep:      time.Sleep,
	}
}

// Open navigates to the form and waits for it to render. The anchor field is
// the signal that the client-side app has finished booting; if it never
// appears a longer idle wait is tried before giving up. Language switching
// and popup dismissal are best-effort.
func (d *Driver) Open(ctx context.Context) error {
	d.logger.Info("Opening form", zap.String("url", d.form.URL))
	if err := d.page.Navigate(ctx, d.form.URL); err != nil {
		return err
	}

	if err := d.page.WaitVisible(ctx, d.form.AnchorSelector, d.form.AnchorTimeout); err != nil {
		d.logger.Warn("Anchor field not visible yet, waiting for the app to settle", zap.Error(err))
		if idleErr := d.page.WaitIdle(ctx, d.form.RenderTimeout); idleErr != nil {
			d.logger.Warn("Idle wait expired while the form was still rendering", zap.Error(idleErr))
		}
		if err := d.page.WaitVisible(ctx, d.form.AnchorSelector, d.form.AnchorTimeout); err != nil {
			return err
		}
	}

	d.DismissPopups(ctx)
	d.switchLanguage(ctx)
	d.sleep(d.fill.SettleLong / 2)
	return nil
}

// switchLanguage selects the target language from the form's language
// dropdown, which is the first select element on the page. Failure is logged
// and swallowed: the page may already be in the right language.
func (d *Driver) switchLanguage(ctx context.Context) {
	if d.form.Language == "" {
		return
	}
	if err := d.page.SelectFirstOptionByLabel(ctx, d.form.Language); err != nil {
		d.logger.Debug("Language switch skipped", zap.String("language", d.form.Language), zap.Error(err))
		return
	}
	d.logger.Info("Switched form language", zap.String("language", d.form.Language))
	d.sleep(d.fill.SettleShort)
}

// FillField writes one value into one field and reports whether it stuck.
// Recoverable failures return false, never an error: a single bad field must
// not abort the batch. Boolean values always take the checkbox path because
// the declared type can be wrong for dynamically rendered controls.
func (d *Driver) FillField(ctx context.Context, fieldID string, value schemas.ApplicantValue) bool {
	declared := d.schemaIdx.TypeOf(fieldID)

	if b, isBool := value.(bool); isBool || declared == schemas.FieldTypeCheckbox {
		if !isBool {
			b = truthy(value)
		}
		return d.fillCheckbox(ctx, fieldID, b)
	}

	text := stringValue(value)
	if strings.TrimSpace(text) == "" {
		// Nothing to write; treat as satisfied.
		return true
	}

	switch declared {
	case schemas.FieldTypeSelect:
		return d.fillSelect(ctx, fieldID, text)
	case schemas.FieldTypeRadio:
		return d.fillRadio(ctx, fieldID, text)
	case schemas.FieldTypeDate:
		return d.fillDate(ctx, fieldID, text)
	default:
		return d.fillText(ctx, fieldID, text)
	}
}

// fillText handles text inputs and textareas. The live element's kind is
// probed first: schema metadata can be stale, the DOM cannot.
func (d *Driver) fillText(ctx context.Context, fieldID, value string) bool {
	selector := d.schemaIdx.SelectorFor(fieldID)
	if err := d.page.WaitVisible(ctx, selector, d.fill.FieldTimeout); err != nil {
		d.logger.Warn("Field not found", zap.String("field", fieldID), zap.String("selector", selector))
		return false
	}

	tag, inputType, err := d.page.ElementKind(ctx, selector)
	if err == nil {
		switch {
		case tag == "select":
			return d.fillSelect(ctx, fieldID, value)
		case inputType == "checkbox" || inputType == "radio":
			return d.fillCheckbox(ctx, fieldID, truthy(value))
		}
	}

	if err := d.page.SetText(ctx, selector, value); err != nil {
		d.logger.Warn("Text fill failed", zap.String("field", fieldID), zap.Error(err))
		return false
	}
	d.logger.Debug("Filled text field", zap.String("field", fieldID))
	return true
}

func (d *Driver) fillDate(ctx context.Context, fieldID, value string) bool {
	selector := d.schemaIdx.SelectorFor(fieldID)
	if err := d.page.WaitVisible(ctx, selector, d.fill.FieldTimeout); err != nil {
		d.logger.Warn("Date field not found", zap.String("field", fieldID))
		return false
	}
	if err := d.page.SetText(ctx, selector, value); err != nil {
		d.logger.Warn("Date fill failed", zap.String("field", fieldID), zap.Error(err))
		return false
	}
	d.logger.Debug("Set date field", zap.String("field", fieldID))
	return true
}

// fillSelect resolves the target value against the schema's options, then
// attempts selection by label, by value code, and finally by scanning the
// live DOM options. Label selection goes first: the backend's value codes
// are dynamic indices in this app, labels are stable.
func (d *Driver) fillSelect(ctx context.Context, fieldID, value string) bool {
	selector := d.schemaIdx.SelectorFor(fieldID)
	if err := d.page.WaitVisible(ctx, selector, d.fill.FieldTimeout); err != nil {
		d.logger.Warn("Select field not found", zap.String("field", fieldID))
		return false
	}

	var options []schemas.Option
	if f := d.schemaIdx.Field(fieldID); f != nil {
		options = f.Options
	}

	valueCode, matchedLabel, found := MatchOption(options, value)
	if !found {
		// Schema gave no answer; treat the raw input as the value code.
		valueCode = value
	}

	label := matchedLabel
	if label == "" {
		label = value
	}
	if err := d.page.SelectByLabel(ctx, selector, label); err == nil {
		d.settleAfterSelect(fieldID, label)
		return true
	}
	if err := d.page.SelectByValue(ctx, selector, valueCode); err == nil {
		d.settleAfterSelect(fieldID, valueCode)
		return true
	}

	// Last resort: the live DOM is ground truth for what is selectable.
	live, err := d.page.LiveOptions(ctx, selector)
	if err != nil {
		d.logger.Warn("Could not enumerate live options", zap.String("field", fieldID), zap.Error(err))
		return false
	}
	if code, liveLabel, ok := MatchOption(live, value); ok && code != "" {
		if err := d.page.SelectByValue(ctx, selector, code); err == nil {
			d.settleAfterSelect(fieldID, liveLabel)
			return true
		}
	}

	d.logger.Warn("No matching option", zap.String("field", fieldID), zap.String("value", value))
	return false
}

func (d *Driver) settleAfterSelect(fieldID, chosen string) {
	d.logger.Debug("Selected option", zap.String("field", fieldID), zap.String("option", chosen))
	// Selections can trigger conditional re-rendering.
	d.sleep(d.fill.SettleShort)
}

// fillRadio checks a radio by its value attribute, falling back to the
// field's own selector when the value-qualified probe misses.
func (d *Driver) fillRadio(ctx context.Context, fieldID, value string) bool {
	selector := `input[name='` + fieldID + `'][value='` + value + `']`
	if !d.page.IsVisible(ctx, selector, d.fill.VisibilityTimeout) {
		selector = d.schemaIdx.SelectorFor(fieldID)
		if err := d.page.WaitVisible(ctx, selector, d.fill.FieldTimeout); err != nil {
			d.logger.Warn("Radio field not found", zap.String("field", fieldID))
			return false
		}
	}
	if err := d.page.SetChecked(ctx, selector, true); err != nil {
		d.logger.Warn("Radio check failed", zap.String("field", fieldID), zap.Error(err))
		return false
	}
	d.logger.Debug("Checked radio", zap.String("field", fieldID), zap.String("value", value))
	return true
}

// fillCheckbox drives a checkbox to the requested state. A checkbox that is
// absent from the DOM while the requested state is unchecked counts as
// success: conditional checkboxes simply do not exist until their branch is
// taken.
func (d *Driver) fillCheckbox(ctx context.Context, fieldID string, checked bool) bool {
	selector := d.schemaIdx.SelectorFor(fieldID)
	if err := d.page.WaitVisible(ctx, selector, d.fill.FieldTimeout); err != nil {
		if !checked {
			return true
		}
		d.logger.Warn("Checkbox not found", zap.String("field", fieldID))
		return false
	}
	if err := d.page.SetChecked(ctx, selector, checked); err != nil {
		d.logger.Warn("Checkbox toggle failed", zap.String("field", fieldID), zap.Error(err))
		return false
	}
	d.logger.Debug("Set checkbox", zap.String("field", fieldID), zap.Bool("checked", checked))
	// Toggling may reveal conditional fields.
	d.sleep(d.fill.SettleShort)
	return true
}

// VisibleFields filters candidate ids down to those whose element is
// currently visible, each within a short bounded wait.
func (d *Driver) VisibleFields(ctx context.Context, candidates []string) []string {
	var visible []string
	for _, id := range candidates {
		if ctx.Err() != nil {
			return visible
		}
		if d.page.IsVisible(ctx, d.schemaIdx.SelectorFor(id), d.fill.VisibilityTimeout) {
			visible = append(visible, id)
		}
	}
	return visible
}

// DismissPopups probes for modal dialogs and cookie banners and closes the
// first of each it finds. Never raises; reports whether anything was closed.
func (d *Driver) DismissPopups(ctx context.Context) bool {
	dismissed := false

	for _, scope := range dialogScopes {
		for _, label := range dismissTexts {
			ok, err := d.page.ClickButtonByText(ctx, scope, label)
			if err != nil {
				continue
			}
			if ok {
				d.logger.Info("Dismissed dialog", zap.String("scope", scope), zap.String("button", label))
				dismissed = true
				d.sleep(d.fill.SettleShort)
				break
			}
		}
	}

	for _, probe := range cookieProbes {
		ok, err := d.page.ClickButtonByText(ctx, probe.scope, probe.label)
		if err != nil {
			continue
		}
		if ok {
			d.logger.Info("Accepted cookie banner")
			dismissed = true
			d.sleep(d.fill.SettleShort)
			break
		}
	}
	return dismissed
}

// AdvancePage clicks the continue control and waits for the next page to
// settle. A missing control means there are no more pages, which is a normal
// terminal condition, not an error.
func (d *Driver) AdvancePage(ctx context.Context) bool {
	d.DismissPopups(ctx)

	for _, label := range advanceTexts {
		ok, err := d.page.ClickButtonByText(ctx, "", label)
		if err != nil || !ok {
			continue
		}
		d.logger.Info("Advancing to next page", zap.String("button", label))
		d.sleep(d.fill.SettleLong / 2)
		// Client-side validation may object to the page we just left.
		d.DismissPopups(ctx)
		if err := d.page.WaitIdle(ctx, d.fill.NavigationTimeout); err != nil {
			d.logger.Debug("Network idle wait expired after advance", zap.Error(err))
		}
		return true
	}
	return false
}

// Submit clicks the submit control, distinct from the advance control.
func (d *Driver) Submit(ctx context.Context) bool {
	for _, label := range submitTexts {
		ok, err := d.page.ClickButtonByText(ctx, "", label)
		if err != nil || !ok {
			continue
		}
		d.logger.Info("Form submitted", zap.String("button", label))
		if err := d.page.WaitIdle(ctx, d.fill.NavigationTimeout); err != nil {
			d.logger.Debug("Network idle wait expired after submit", zap.Error(err))
		}
		return true
	}
	d.logger.Warn("Submit control not found")
	return false
}

// ExtractArtifact drives the export flow: continue into the export dialog,
// then trigger the download control under each capture strategy in order.
// Returns nil when every strategy misses so the caller can report partial
// success instead of aborting.
func (d *Driver) ExtractArtifact(ctx context.Context) []byte {
	for _, label := range advanceTexts[:3] {
		if ok, _ := d.page.ClickButtonByText(ctx, "", label); ok {
			d.logger.Debug("Opened export dialog", zap.String("button", label))
			break
		}
	}
	d.sleep(d.fill.SettleLong)
	d.DismissPopups(ctx)

	trigger := func(tctx context.Context) error {
		ok, err := d.page.ClickButtonByText(tctx, "", downloadButtonText)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotCaptured
		}
		return nil
	}

	for _, strategy := range d.strategies {
		if ctx.Err() != nil {
			return nil
		}
		data, err := strategy.Capture(ctx, trigger)
		if err != nil {
			d.logger.Debug("Capture strategy missed",
				zap.String("strategy", strategy.Name()), zap.Error(err))
			continue
		}
		if len(data) > 0 {
			d.logger.Info("Artifact captured",
				zap.String("strategy", strategy.Name()), zap.Int("bytes", len(data)))
			return data
		}
	}
	d.logger.Warn("All capture strategies failed")
	return nil
}

// Screenshot captures the page for diagnostics.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	return d.page.Screenshot(ctx)
}

// MatchOption resolves a target value against an option list. An exact
// case-insensitive trimmed label match wins outright; otherwise the first
// containment match (either direction) is kept as a candidate while the scan
// continues, so a later exact match still overrides it.
func MatchOption(options []schemas.Option, target string) (valueCode, label string, found bool) {
	want := strings.ToLower(strings.TrimSpace(target))
	for _, opt := range options {
		optLabel := strings.ToLower(strings.TrimSpace(opt.Label))
		if optLabel == want {
			return opt.Value, opt.Label, true
		}
		if !found && optLabel != "" && (strings.Contains(want, optLabel) || strings.Contains(optLabel, want)) {
			valueCode, label, found = opt.Value, opt.Label, true
		}
	}
	return valueCode, label, found
}

func stringValue(v schemas.ApplicantValue) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		// Numeric values arrive from JSON as float64.
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(t)
	}
}

func truthy(v schemas.ApplicantValue) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s != "" && s != "false" && s != "0" && s != "no"
	case nil:
		return false
	default:
		return true
	}
}
