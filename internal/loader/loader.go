// File: internal/loader/loader.go
// Package loader turns applicant JSON files into the flat internal-id value
// map consumed by the fill run: load, flatten, cross-derive, validate.
package loader

import (
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/videx-autofill/api/schemas"
	"github.com/xkilldash9x/videx-autofill/internal/schema"
	"github.com/xkilldash9x/videx-autofill/internal/translate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Loader assembles applicant data for a fill run. Derivations embed visa
// product policy (sponsor defaulting, support-means text) and can be turned
// off by callers that supply fully explicit data.
type Loader struct {
	translator  *translate.Translator
	schemaIndex *schema.Index
	logger      *zap.Logger

	// DisableDerivations skips the employer-to-sponsor copy and the
	// support-means auto-fill.
	DisableDerivations bool
}

// New creates a Loader. translator must not be nil; schemaIndex may be an
// empty index when no schema has been scraped yet.
func New(translator *translate.Translator, schemaIndex *schema.Index, logger *zap.Logger) *Loader {
	if schemaIndex == nil {
		schemaIndex = schema.Empty()
	}
	return &Loader{
		translator:  translator,
		schemaIndex: schemaIndex,
		logger:      logger.Named("loader"),
	}
}

// Load reads an applicant data file and produces the flat internal-id map.
func (l *Loader) Load(path string) (schemas.ApplicantData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading applicant data: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing applicant data %s: %w", path, err)
	}
	return l.Assemble(doc), nil
}

// Assemble flattens, derives, and translates an already parsed document.
func (l *Loader) Assemble(doc map[string]any) schemas.ApplicantData {
	flat := Flatten(doc)

	if !l.DisableDerivations {
		if _, ok := flat["other_means_specify"]; !ok {
			if info := buildEmployerInfo(flat); info != "" {
				flat["other_means_specify"] = info
			}
		}
	}

	data := l.translator.TranslateData(flat)

	if !l.DisableDerivations {
		l.copyEmployerToSponsor(data)
	}

	l.logger.Debug("Applicant data assembled",
		zap.Int("fields", len(data)),
		zap.Int("countable", len(data.CountableFields())),
	)
	return data
}

// Flatten reduces either the nested {"pages": {...}} layout or a plain map
// into field-id keyed values. Keys prefixed with "_" carry comments and are
// dropped.
func Flatten(doc map[string]any) map[string]any {
	flat := make(map[string]any)

	pages, nested := doc["pages"].(map[string]any)
	if !nested {
		for key, value := range doc {
			if !strings.HasPrefix(key, "_") {
				flat[key] = value
			}
		}
		return flat
	}

	for _, pageAny := range pages {
		page, ok := pageAny.(map[string]any)
		if !ok {
			continue
		}
		fields, ok := page["fields"].(map[string]any)
		if !ok {
			continue
		}
		for fieldID, info := range fields {
			if entry, ok := info.(map[string]any); ok {
				if v, has := entry["value"]; has {
					flat[fieldID] = v
					continue
				}
			}
			flat[fieldID] = info
		}
	}
	return flat
}

// buildEmployerInfo composes a one-line employer summary for the "other means
// of support" free-text field from English-keyed input.
func buildEmployerInfo(flat map[string]any) string {
	str := func(key string) string {
		s, _ := flat[key].(string)
		return strings.TrimSpace(s)
	}

	var parts []string
	if employer := str("employer"); employer != "" {
		parts = append(parts, employer)
	}

	var addr []string
	if street := str("employer_street"); street != "" {
		line := street
		if num := str("employer_house_number"); num != "" {
			line += " " + num
		}
		addr = append(addr, line)
	}
	postal, city := str("employer_postal_code"), str("employer_city")
	if postal != "" || city != "" {
		addr = append(addr, strings.TrimSpace(postal+" "+city))
	}
	if country := str("employer_country"); country != "" {
		addr = append(addr, country)
	}
	if len(addr) > 0 {
		parts = append(parts, strings.Join(addr, ", "))
	}

	if phone := str("phone"); phone != "" {
		parts = append(parts, "Tel: "+phone)
	}
	return strings.Join(parts, ", ")
}

// employerToSponsor maps employer fields onto the sponsor block filled when
// an organisation covers the travel costs.
var employerToSponsor = map[string]string{
	"antragsteller.personendaten.berufdaten.firmenname":                  "verpflichtungserklaerungsgeber.ansprechpartner.familienname",
	"antragsteller.personendaten.berufdaten.strasse":                     "verpflichtungserklaerungsgeber.ansprechpartner.anschrift.strasse",
	"antragsteller.personendaten.berufdaten.hausnummer":                  "verpflichtungserklaerungsgeber.ansprechpartner.anschrift.hausnummer",
	"antragsteller.personendaten.berufdaten.plz":                         "verpflichtungserklaerungsgeber.ansprechpartner.anschrift.plz",
	"antragsteller.personendaten.berufdaten.ort":                         "verpflichtungserklaerungsgeber.ansprechpartner.anschrift.ort",
	"antragsteller.personendaten.berufdaten.land":                        "verpflichtungserklaerungsgeber.ansprechpartner.anschrift.land",
	"antragsteller.personendaten.staendigeAnschrift.kontaktdaten.telefon": "verpflichtungserklaerungsgeber.ansprechpartner.kontaktdaten.telefon",
	"antragsteller.personendaten.staendigeAnschrift.kontaktdaten.email":   "verpflichtungserklaerungsgeber.ansprechpartner.kontaktdaten.email",
}

// copyEmployerToSponsor fills missing sponsor fields from employer data when
// the organisation pays. The sponsor type falls back to "Company"; explicit
// values always win.
func (l *Loader) copyEmployerToSponsor(data schemas.ApplicantData) {
	pays, _ := data["reisedaten.reisekostenUebernahme.organisation"].(bool)
	if !pays {
		return
	}

	copied := 0
	for src, dst := range employerToSponsor {
		if existing, ok := data[dst]; ok && !isEmpty(existing) {
			continue
		}
		if v, ok := data[src]; ok && !isEmpty(v) {
			data[dst] = v
			copied++
		}
	}

	if v, ok := data["verpflichtungserklaerungsgeber.art"]; !ok || isEmpty(v) {
		data["verpflichtungserklaerungsgeber.art"] = "Company"
	}
	if copied > 0 {
		l.logger.Debug("Sponsor fields derived from employer data", zap.Int("copied", copied))
	}
}

func isEmpty(v any) bool {
	s, ok := v.(string)
	return v == nil || (ok && strings.TrimSpace(s) == "")
}

// Validate checks the data against the schema's required fields. Boolean
// values satisfy a requirement either way; empty strings and nils do not.
func (l *Loader) Validate(data schemas.ApplicantData) (bool, []string) {
	required := l.schemaIndex.RequiredIDs()
	if len(required) == 0 {
		l.logger.Debug("No required fields known, skipping validation")
		return true, nil
	}

	var missing []string
	for _, id := range required {
		v, ok := data[id]
		if !ok || v == nil {
			missing = append(missing, id)
			continue
		}
		if _, isBool := v.(bool); isBool {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			missing = append(missing, id)
		}
	}
	return len(missing) == 0, missing
}
