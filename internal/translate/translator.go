// File: internal/translate/translator.go
// Package translate maps human-friendly English field names onto the form's
// internal dotted identifiers and overlays shared default values.
package translate

import (
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/videx-autofill/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fieldAliases maps normalized English names to internal field ids.
var fieldAliases = map[string]string{
	// Personal details
	"surname":              "antragsteller.familienname",
	"family_name":          "antragsteller.familienname",
	"birth_name":           "antragsteller.geburtsname",
	"maiden_name":          "antragsteller.geburtsname",
	"first_name":           "antragsteller.vorname",
	"given_names":          "antragsteller.vorname",
	"date_of_birth":        "antragsteller.geburtsdatum",
	"birth_date":           "antragsteller.geburtsdatum",
	"place_of_birth":       "antragsteller.geburtsort",
	"birth_place":          "antragsteller.geburtsort",
	"country_of_birth":     "antragsteller.geburtsland",
	"birth_country":        "antragsteller.geburtsland",
	"gender":               "antragsteller.geschlecht",
	"sex":                  "antragsteller.geschlecht",
	"marital_status":       "antragsteller.familienstand",
	"nationality":          "antragsteller.staatsangehoerigkeitListe[0]",
	"current_nationality":  "antragsteller.staatsangehoerigkeitListe[0]",
	"nationality_at_birth": "antragsteller.staatsangehoerigkeitBeiGeburtListe[0]",
	"birth_nationality":    "antragsteller.staatsangehoerigkeitBeiGeburtListe[0]",

	// Occupation
	"occupation":             "antragsteller.personendaten.berufdaten.berufAuswahl",
	"profession":             "antragsteller.personendaten.berufdaten.berufAuswahl",
	"employer":               "antragsteller.personendaten.berufdaten.firmenname",
	"company_name":           "antragsteller.personendaten.berufdaten.firmenname",
	"client_name":            "antragsteller.personendaten.berufdaten.firmenname",
	"employer_street":        "antragsteller.personendaten.berufdaten.strasse",
	"employer_house_number":  "antragsteller.personendaten.berufdaten.hausnummer",
	"employer_address_extra": "antragsteller.personendaten.berufdaten.sonstigeAdressangaben",
	"employer_postal_code":   "antragsteller.personendaten.berufdaten.plz",
	"employer_city":          "antragsteller.personendaten.berufdaten.ort",
	"employer_country":       "antragsteller.personendaten.berufdaten.land",

	// Home address
	"street":            "antragsteller.personendaten.staendigeAnschrift.strasse",
	"home_street":       "antragsteller.personendaten.staendigeAnschrift.strasse",
	"house_number":      "antragsteller.personendaten.staendigeAnschrift.hausnummer",
	"home_house_number": "antragsteller.personendaten.staendigeAnschrift.hausnummer",
	"address_extra":     "antragsteller.personendaten.staendigeAnschrift.sonstigeAdressangaben",
	"apartment":         "antragsteller.personendaten.staendigeAnschrift.sonstigeAdressangaben",
	"postal_code":       "antragsteller.personendaten.staendigeAnschrift.plz",
	"zip_code":          "antragsteller.personendaten.staendigeAnschrift.plz",
	"city":              "antragsteller.personendaten.staendigeAnschrift.ort",
	"home_city":         "antragsteller.personendaten.staendigeAnschrift.ort",
	"country":           "antragsteller.personendaten.staendigeAnschrift.land",
	"home_country":      "antragsteller.personendaten.staendigeAnschrift.land",
	"phone":             "antragsteller.personendaten.staendigeAnschrift.kontaktdaten.telefon",
	"telephone":         "antragsteller.personendaten.staendigeAnschrift.kontaktdaten.telefon",
	"mobile":            "antragsteller.personendaten.staendigeAnschrift.kontaktdaten.telefon",
	"maid_phone_number": "antragsteller.personendaten.staendigeAnschrift.kontaktdaten.telefon",
	"email":             "antragsteller.personendaten.staendigeAnschrift.kontaktdaten.email",
	"maid_email":        "antragsteller.personendaten.staendigeAnschrift.kontaktdaten.email",

	// Passport
	"passport_type":              "antragsteller.pass.passArt",
	"passport_number":            "antragsteller.pass.passnummer",
	"national_id":                "antragsteller.nationaleIdentNr",
	"national_id_number":         "antragsteller.nationaleIdentNr",
	"passport_issue_date":        "antragsteller.pass.gueltigVon",
	"passport_valid_from":        "antragsteller.pass.gueltigVon",
	"passport_expiry_date":       "antragsteller.pass.gueltigBis",
	"passport_valid_until":       "antragsteller.pass.gueltigBis",
	"passport_issuing_country":   "antragsteller.pass.ausstellenderStaat",
	"passport_issued_by":         "antragsteller.pass.ausgestelltVon",
	"passport_issuing_authority": "antragsteller.pass.ausgestelltVon",
	"passport_issue_place":       "antragsteller.pass.ausgestelltIn",
	"passport_issued_in":         "antragsteller.pass.ausgestelltIn",

	// Travel details
	"purpose_of_visit":    "reisedaten.aufenthaltszweckListe[0]",
	"travel_purpose":      "reisedaten.aufenthaltszweckListe[0]",
	"purpose_description": "reisedaten.angegebenerReisezweck",
	"additional_info":     "reisedaten.weitereInformationen",
	"first_entry_country": "reisedaten.ersteinreiseStaat",
	"entry_country":       "reisedaten.ersteinreiseStaat",
	"main_destination":    "reisedaten.hauptzielListe[0]",
	"destination_country": "reisedaten.hauptzielListe[0]",
	"number_of_entries":   "visumdaten.anzahlEinreisen",
	"entries":             "visumdaten.anzahlEinreisen",
	"visa_start_date":     "visumdaten.gueltigkeit.von",
	"travel_start_date":   "visumdaten.gueltigkeit.von",
	"visa_end_date":       "visumdaten.gueltigkeit.bisGenau.value",
	"travel_end_date":     "visumdaten.gueltigkeit.bisGenau.value",

	// Reference / inviting person
	"reference_type":       "referenz.referenzArt",
	"inviter_type":         "referenz.referenzArt",
	"client_surname":       "referenz.ansprechpartner.familienname",
	"client_first_name":    "referenz.ansprechpartner.vorname",
	"client_gender":        "referenz.ansprechpartner.geschlecht",
	"client_date_of_birth": "referenz.ansprechpartner.geburtsdatum",
	"client_birth_place":   "referenz.ansprechpartner.geburtsort",
	"client_nationality":   "referenz.ansprechpartner.staatsangehoerigkeit",
	"client_street":        "referenz.ansprechpartner.anschrift.strasse",
	"client_house_number":  "referenz.ansprechpartner.anschrift.hausnummer",
	"client_postal_code":   "referenz.ansprechpartner.anschrift.plz",
	"client_city":          "referenz.ansprechpartner.anschrift.ort",
	"client_country":       "referenz.ansprechpartner.anschrift.land",
	"client_phone":         "referenz.ansprechpartner.kontaktdaten.telefon",
	"client_email":         "referenz.ansprechpartner.kontaktdaten.email",
	"hotel_street":         "referenz.ansprechpartner.anschrift.strasse",
	"hotel_house_number":   "referenz.ansprechpartner.anschrift.hausnummer",
	"hotel_postal_code":    "referenz.ansprechpartner.anschrift.plz",
	"hotel_city":           "referenz.ansprechpartner.anschrift.ort",
	"hotel_country":        "referenz.ansprechpartner.anschrift.land",
	"hotel_phone":          "referenz.ansprechpartner.kontaktdaten.telefon",
	"hotel_email":          "referenz.ansprechpartner.kontaktdaten.email",
	// Legacy inviter aliases kept for older data files.
	"inviter_surname":       "referenz.ansprechpartner.familienname",
	"inviter_family_name":   "referenz.ansprechpartner.familienname",
	"inviter_first_name":    "referenz.ansprechpartner.vorname",
	"inviter_given_name":    "referenz.ansprechpartner.vorname",
	"inviter_gender":        "referenz.ansprechpartner.geschlecht",
	"inviter_date_of_birth": "referenz.ansprechpartner.geburtsdatum",
	"inviter_birth_date":    "referenz.ansprechpartner.geburtsdatum",
	"inviter_birth_place":   "referenz.ansprechpartner.geburtsort",
	"inviter_nationality":   "referenz.ansprechpartner.staatsangehoerigkeit",
	"inviter_street":        "referenz.ansprechpartner.anschrift.strasse",
	"inviter_house_number":  "referenz.ansprechpartner.anschrift.hausnummer",
	"inviter_postal_code":   "referenz.ansprechpartner.anschrift.plz",
	"inviter_city":          "referenz.ansprechpartner.anschrift.ort",
	"inviter_country":       "referenz.ansprechpartner.anschrift.land",
	"inviter_phone":         "referenz.ansprechpartner.kontaktdaten.telefon",
	"inviter_email":         "referenz.ansprechpartner.kontaktdaten.email",

	// Cost coverage
	"applicant_pays":     "reisedaten.reisekostenUebernahme.antragsteller",
	"self_funded":        "reisedaten.reisekostenUebernahme.antragsteller",
	"third_party_pays":   "reisedaten.reisekostenUebernahme.dritte",
	"sponsor_pays":       "reisedaten.reisekostenUebernahme.dritte",
	"inviter_pays":       "reisedaten.reisekostenUebernahme.einlader",
	"host_pays":          "reisedaten.reisekostenUebernahme.einlader",
	"other_sponsor_pays": "reisedaten.reisekostenUebernahme.organisation",
	"organisation_pays":  "reisedaten.reisekostenUebernahme.organisation",

	// Sponsor section, used when an organisation covers the costs.
	"sponsor_type":             "verpflichtungserklaerungsgeber.art",
	"sponsor_company_name":     "verpflichtungserklaerungsgeber.firmenname",
	"sponsor_institution_name": "verpflichtungserklaerungsgeber.firmenname",
	"sponsor_surname":          "verpflichtungserklaerungsgeber.ansprechpartner.familienname",
	"sponsor_first_name":       "verpflichtungserklaerungsgeber.ansprechpartner.vorname",
	"sponsor_date_of_birth":    "verpflichtungserklaerungsgeber.ansprechpartner.geburtsdatum",
	"sponsor_birth_place":      "verpflichtungserklaerungsgeber.ansprechpartner.geburtsort",
	"sponsor_gender":           "verpflichtungserklaerungsgeber.ansprechpartner.geschlecht",
	"sponsor_nationality":      "verpflichtungserklaerungsgeber.ansprechpartner.staatsangehoerigkeit",
	"sponsor_street":           "verpflichtungserklaerungsgeber.ansprechpartner.anschrift.strasse",
	"sponsor_house_number":     "verpflichtungserklaerungsgeber.ansprechpartner.anschrift.hausnummer",
	"sponsor_postal_code":      "verpflichtungserklaerungsgeber.ansprechpartner.anschrift.plz",
	"sponsor_city":             "verpflichtungserklaerungsgeber.ansprechpartner.anschrift.ort",
	"sponsor_country":          "verpflichtungserklaerungsgeber.ansprechpartner.anschrift.land",
	"sponsor_phone":            "verpflichtungserklaerungsgeber.ansprechpartner.kontaktdaten.telefon",
	"sponsor_email":            "verpflichtungserklaerungsgeber.ansprechpartner.kontaktdaten.email",

	// Means of support
	"has_cash":               "reisedaten.lebensunterhalt.bar",
	"cash":                   "reisedaten.lebensunterhalt.bar",
	"has_travellers_cheques": "reisedaten.lebensunterhalt.reiseschecks",
	"travellers_cheques":     "reisedaten.lebensunterhalt.reiseschecks",
	"has_credit_cards":       "reisedaten.lebensunterhalt.kreditkarten",
	"credit_cards":           "reisedaten.lebensunterhalt.kreditkarten",
	"accommodation_prepaid":  "reisedaten.lebensunterhalt.unterkunft",
	"prepaid_accommodation":  "reisedaten.lebensunterhalt.unterkunft",
	"all_expenses_covered":   "reisedaten.lebensunterhalt.vollstaendigeKostenuebernahme",
	"transport_prepaid":      "reisedaten.lebensunterhalt.befoerderung",
	"prepaid_transport":      "reisedaten.lebensunterhalt.befoerderung",
	"other_means":            "reisedaten.lebensunterhalt.sonstiges",
	"other_means_specify":    "reisedaten.lebensunterhalt.sonstigesAngabe",

	// Biometrics
	"fingerprints_collected": "antragsteller.biometrie.fingerabdrueckeErfassungsDatum_vorhanden",
	"has_fingerprints":       "antragsteller.biometrie.fingerabdrueckeErfassungsDatum_vorhanden",

	// EU free movement
	"eu_family_member":       "rechtAufFreizuegigkeit",
	"right_of_free_movement": "rechtAufFreizuegigkeit",

	// Residence permit
	"has_residence_permit": "antragsteller.aufenthaltsberechtigung",
	"residence_permit":     "antragsteller.aufenthaltsberechtigung",

	// Previous visa
	"previous_visa_number": "reisedaten.letzteVisumStickernummer",
	"last_visa_sticker":    "reisedaten.letzteVisumStickernummer",

	// Entry permit (transit)
	"entry_permit_number":       "antragsteller.einreisegenehmigung.einreisegenehmigungsNr",
	"entry_permit_issued_by":    "antragsteller.einreisegenehmigung.ausgestelltVon",
	"entry_permit_valid_from":   "antragsteller.einreisegenehmigung.gueltigVon",
	"entry_permit_valid_until":  "antragsteller.einreisegenehmigung.gueltigBis",
	"entry_permit_type":         "antragsteller.einreisegenehmigung.artDerEinreisegenehmigungAuswahl",
	"final_destination_country": "antragsteller.einreisegenehmigung.endzielStaat",

	// Inviter alternative spellings
	"inviter_surname_alt":    "referenz.ansprechpartner.abweichendeSchreibweiseNachname",
	"inviter_first_name_alt": "referenz.ansprechpartner.abweichendeSchreibweiseVorname",
	"inviter_other_names":    "referenz.ansprechpartner.andereNamen",
	"inviter_previous_names": "referenz.ansprechpartner.fruehereNamen",
}

// multiAliases expands one English name onto several internal fields.
var multiAliases = map[string][]string{
	"destination": {"reisedaten.ersteinreiseStaat", "reisedaten.hauptzielListe[0]"},
}

// Translator maps English field names to internal ids and overlays defaults.
// Input data always wins over defaults.
type Translator struct {
	defaults schemas.ApplicantData
}

// New creates a Translator with no defaults loaded.
func New() *Translator {
	return &Translator{defaults: make(schemas.ApplicantData)}
}

// NewWithDefaults creates a Translator and loads the defaults file when it
// exists. A missing file is not an error.
func NewWithDefaults(defaultsPath string) (*Translator, error) {
	t := New()
	if defaultsPath == "" {
		return t, nil
	}
	if _, err := os.Stat(defaultsPath); os.IsNotExist(err) {
		return t, nil
	}
	if err := t.LoadDefaults(defaultsPath); err != nil {
		return nil, err
	}
	return t, nil
}

// normalize lowercases a name and folds spaces and hyphens into underscores.
func normalize(name string) string {
	n := strings.ToLower(name)
	n = strings.ReplaceAll(n, " ", "_")
	return strings.ReplaceAll(n, "-", "_")
}

// TranslateName resolves one field name to its internal id. Names already in
// the internal dotted space pass through untouched; unknown names also pass
// through so the filler can report them instead of dropping them silently.
func TranslateName(name string) string {
	if strings.Contains(name, ".") {
		if _, known := fieldAliases[name]; !known {
			return name
		}
	}
	if id, ok := fieldAliases[normalize(name)]; ok {
		return id
	}
	return name
}

// TranslateData converts an English-keyed map into the internal id space,
// expanding one-to-many aliases and overlaying defaults. Keys prefixed with
// "_" are comment/metadata keys and are skipped.
func (t *Translator) TranslateData(english map[string]any) schemas.ApplicantData {
	out := make(schemas.ApplicantData, len(english)+len(t.defaults))
	for id, v := range t.defaults {
		out[id] = v
	}
	for key, value := range english {
		if strings.HasPrefix(key, "_") {
			continue
		}
		if targets, ok := multiAliases[normalize(key)]; ok {
			for _, id := range targets {
				out[id] = value
			}
			continue
		}
		out[TranslateName(key)] = value
	}
	return out
}

// SetDefaults merges defaults given with English or internal field names.
func (t *Translator) SetDefaults(defaults map[string]any) {
	for key, value := range defaults {
		if strings.HasPrefix(key, "_") {
			continue
		}
		t.defaults[TranslateName(key)] = value
	}
}

// LoadDefaults reads a defaults JSON file and translates its keys.
func (t *Translator) LoadDefaults(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading defaults file: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("parsing defaults file %s: %w", path, err)
	}
	t.defaults = make(schemas.ApplicantData, len(m))
	t.SetDefaults(m)
	return nil
}

// Defaults exposes the currently loaded defaults, keyed by internal id.
func (t *Translator) Defaults() schemas.ApplicantData {
	return t.defaults
}
