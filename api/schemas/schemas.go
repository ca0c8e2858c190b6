package schemas

import (
	"fmt"
	"strings"
)

// -- Field Model --

// FieldType classifies a form control. The declared type from a schema file
// is advisory only; the live element's tag wins when the two disagree.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeSelect   FieldType = "select"
	FieldTypeRadio    FieldType = "radio"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeDate     FieldType = "date"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeFile     FieldType = "file"
	FieldTypeUnknown  FieldType = "unknown"
)

// Option is one entry of a select or radio group: the backend value code and
// the display label in the currently active language.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldDescriptor describes one known form field. Immutable once loaded.
type FieldDescriptor struct {
	ID        string    `json:"id"`
	Selector  string    `json:"selector"`
	Type      FieldType `json:"field_type"`
	Label     string    `json:"label"`
	Required  bool      `json:"required"`
	Options   []Option  `json:"options,omitempty"`
	Section   string    `json:"section"`
	MaxLength int       `json:"max_length,omitempty"`
}

// FallbackSelector derives a locator directly from a field id. Used whenever
// no schema entry exists for the id, so a missing or stale schema degrades to
// id/name matching instead of failing the fill.
func FallbackSelector(fieldID string) string {
	return fmt.Sprintf(`[id=%q], [name=%q]`, fieldID, fieldID)
}

// -- Schema (scraper output, filler input) --

// FormSection is one tab of the multi-page form with its fields in display order.
type FormSection struct {
	Name   string            `json:"name"`
	Index  int               `json:"index"`
	Fields []FieldDescriptor `json:"fields"`
}

// FormSchema is the ordered list of sections discovered by a scrape run. It
// is the authoritative source of field descriptors at fill time.
type FormSchema struct {
	URL      string        `json:"url"`
	Language string        `json:"language"`
	Sections []FormSection `json:"sections"`
}

// FieldCount returns the total number of fields across all sections. Safe on
// a nil receiver: an absent schema simply has no fields.
func (s *FormSchema) FieldCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, sec := range s.Sections {
		n += len(sec.Fields)
	}
	return n
}

// ScrapedControl is a form control as lifted out of the live DOM by the
// scraper's injected extraction script, before it is normalized into a
// FieldDescriptor. JSON tags mirror the script's output shape.
type ScrapedControl struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Label     string   `json:"label"`
	FieldType string   `json:"fieldType"`
	Required  bool     `json:"required"`
	Options   []Option `json:"options"`
	MaxLength int      `json:"maxLength"`
	Visible   bool     `json:"isVisible"`
	Tag       string   `json:"tagName"`
}

// UniqueID is the control's identity for de-duplication across sections.
func (c ScrapedControl) UniqueID() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Name
}

// Selector builds the locator the fill run will use for this control.
func (c ScrapedControl) Selector() string {
	switch {
	case c.ID != "":
		return fmt.Sprintf(`[id=%q]`, c.ID)
	case c.Name != "":
		return fmt.Sprintf(`%s[name=%q]`, c.Tag, c.Name)
	default:
		return ""
	}
}

// -- Applicant Data --

// ApplicantValue is a scalar field value: a string, a bool, or nil (absent).
type ApplicantValue any

// ApplicantData maps internal field ids to their values. It is assembled by
// the loader before a run starts and treated as read-only afterwards.
type ApplicantData map[string]ApplicantValue

// Countable reports whether a value participates in the success/failure
// accounting of a run. Empty strings and nils are skipped entirely; booleans
// always count, including false (an explicit uncheck).
func Countable(v ApplicantValue) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case bool:
		return true
	default:
		return true
	}
}

// CountableFields returns the ids in data whose values are countable.
func (d ApplicantData) CountableFields() []string {
	ids := make([]string, 0, len(d))
	for id, v := range d {
		if Countable(v) {
			ids = append(ids, id)
		}
	}
	return ids
}

// -- Fill Results --

// FillResult is the auditable outcome of one fill run. Created fresh per run
// and never mutated after the run completes.
type FillResult struct {
	RunID        string          `json:"run_id"`
	Fields       map[string]bool `json:"fields"`
	ArtifactPath string          `json:"artifact_path,omitempty"`
	Artifact     []byte          `json:"-"`
	SuccessCount int             `json:"success_count"`
	FailCount    int             `json:"fail_count"`
	Submitted    bool            `json:"submitted"`
}

// Record stores a per-field outcome and keeps the counters consistent with
// the Fields map.
func (r *FillResult) Record(fieldID string, ok bool) {
	if r.Fields == nil {
		r.Fields = make(map[string]bool)
	}
	if prev, seen := r.Fields[fieldID]; seen {
		// Re-recording the same field replaces the prior outcome.
		if prev {
			r.SuccessCount--
		} else {
			r.FailCount--
		}
	}
	r.Fields[fieldID] = ok
	if ok {
		r.SuccessCount++
	} else {
		r.FailCount++
	}
}

// HasArtifact reports whether the run produced the exported document.
func (r *FillResult) HasArtifact() bool {
	return len(r.Artifact) > 0 || r.ArtifactPath != ""
}

// -- Service Payloads --

// FillErrorPayload is returned by the HTTP surface when no artifact could be
// produced at all. Per-field failures alongside a usable artifact are not an
// error; this payload is only for the artifact-less case.
type FillErrorPayload struct {
	Error        string `json:"error"`
	FieldsFilled int    `json:"fields_filled"`
	FieldsFailed int    `json:"fields_failed"`
}
