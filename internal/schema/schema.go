// File: internal/schema/schema.go
// Package schema loads the scraped form schema and answers field lookups for
// the filler. A missing schema is not fatal: lookups degrade to selectors
// derived from the field id alone.
package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/videx-autofill/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Index is the loaded field schema with O(1) id lookup. Immutable after Load.
type Index struct {
	schema *schemas.FormSchema
	byID   map[string]*schemas.FieldDescriptor
}

// Empty returns an Index with no schema backing. Every lookup misses and
// SelectorFor falls back to id-derived selectors.
func Empty() *Index {
	return &Index{byID: make(map[string]*schemas.FieldDescriptor)}
}

// Load reads a schema JSON file produced by a scrape run.
func Load(path string) (*Index, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	var s schemas.FormSchema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing schema file %s: %w", path, err)
	}
	return FromSchema(&s), nil
}

// LoadOrEmpty loads the schema at path, or returns an empty Index when the
// file does not exist. Parse errors are still reported.
func LoadOrEmpty(path string) (*Index, error) {
	if path == "" {
		return Empty(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Empty(), nil
	}
	return Load(path)
}

// FromSchema builds an Index from an in-memory schema. Later duplicates of an
// id are ignored; the first occurrence wins, matching section order.
func FromSchema(s *schemas.FormSchema) *Index {
	idx := &Index{schema: s, byID: make(map[string]*schemas.FieldDescriptor)}
	for si := range s.Sections {
		for fi := range s.Sections[si].Fields {
			f := &s.Sections[si].Fields[fi]
			if _, dup := idx.byID[f.ID]; !dup {
				idx.byID[f.ID] = f
			}
		}
	}
	return idx
}

// Field returns the descriptor for id, or nil when unknown.
func (i *Index) Field(id string) *schemas.FieldDescriptor {
	return i.byID[id]
}

// SelectorFor returns the locator for a field id: the scraped selector when
// known, otherwise one derived from the id.
func (i *Index) SelectorFor(id string) string {
	if f := i.byID[id]; f != nil && f.Selector != "" {
		return f.Selector
	}
	return schemas.FallbackSelector(id)
}

// TypeOf returns the declared field type, or FieldTypeUnknown when the id is
// not in the schema.
func (i *Index) TypeOf(id string) schemas.FieldType {
	if f := i.byID[id]; f != nil {
		return f.Type
	}
	return schemas.FieldTypeUnknown
}

// RequiredIDs returns the ids of all required fields in schema order.
func (i *Index) RequiredIDs() []string {
	if i.schema == nil {
		return nil
	}
	var ids []string
	for _, sec := range i.schema.Sections {
		for _, f := range sec.Fields {
			if f.Required {
				ids = append(ids, f.ID)
			}
		}
	}
	return ids
}

// AllIDs returns every known field id, sorted for deterministic output.
func (i *Index) AllIDs() []string {
	ids := make([]string, 0, len(i.byID))
	for id := range i.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Schema exposes the underlying schema, which may be nil for an empty Index.
func (i *Index) Schema() *schemas.FormSchema {
	return i.schema
}

// Save writes a schema to disk as indented JSON, creating parent directories.
func Save(s *schemas.FormSchema, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating schema directory: %w", err)
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding schema: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing schema file: %w", err)
	}
	return nil
}

// FlatTemplate produces an id -> empty value map covering every schema field,
// usable as a starting point for applicant data files. Checkbox fields get a
// false default so their type is obvious in the template.
func (i *Index) FlatTemplate() map[string]any {
	tpl := make(map[string]any, len(i.byID))
	for id, f := range i.byID {
		if f.Type == schemas.FieldTypeCheckbox {
			tpl[id] = false
		} else {
			tpl[id] = ""
		}
	}
	return tpl
}

// WriteFlatTemplate writes the flat template as indented JSON.
func (i *Index) WriteFlatTemplate(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating template directory: %w", err)
	}
	raw, err := json.MarshalIndent(i.FlatTemplate(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding template: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}
