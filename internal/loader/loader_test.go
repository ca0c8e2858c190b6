package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/videx-autofill/api/schemas"
	"github.com/xkilldash9x/videx-autofill/internal/schema"
	"github.com/xkilldash9x/videx-autofill/internal/translate"
)

func newLoader(t *testing.T, idx *schema.Index) *Loader {
	t.Helper()
	return New(translate.New(), idx, zap.NewNop())
}

func TestFlattenPlainMapDropsComments(t *testing.T) {
	flat := Flatten(map[string]any{
		"_instructions": "ignore",
		"surname":       "Smith",
		"cash":          true,
	})
	assert.Equal(t, map[string]any{"surname": "Smith", "cash": true}, flat)
}

func TestFlattenNestedPagesFormat(t *testing.T) {
	flat := Flatten(map[string]any{
		"pages": map[string]any{
			"page1": map[string]any{
				"fields": map[string]any{
					"antragsteller.familienname": map[string]any{"value": "Smith", "label": "Surname"},
					"antragsteller.vorname":      "John",
				},
			},
		},
	})
	assert.Equal(t, "Smith", flat["antragsteller.familienname"])
	assert.Equal(t, "John", flat["antragsteller.vorname"])
}

func TestAssembleTranslatesToInternalIDs(t *testing.T) {
	l := newLoader(t, nil)
	data := l.Assemble(map[string]any{"surname": "Smith", "destination": "Germany"})

	assert.Equal(t, "Smith", data["antragsteller.familienname"])
	assert.Equal(t, "Germany", data["reisedaten.ersteinreiseStaat"])
	assert.Equal(t, "Germany", data["reisedaten.hauptzielListe[0]"])
}

func TestAssembleDerivesOtherMeansFromEmployer(t *testing.T) {
	l := newLoader(t, nil)
	data := l.Assemble(map[string]any{
		"employer":              "ACME GmbH",
		"employer_street":       "Hauptstrasse",
		"employer_house_number": "12",
		"employer_postal_code":  "10115",
		"employer_city":         "Berlin",
		"employer_country":      "Germany",
		"phone":                 "+49 30 1234",
	})

	assert.Equal(t,
		"ACME GmbH, Hauptstrasse 12, 10115 Berlin, Germany, Tel: +49 30 1234",
		data["reisedaten.lebensunterhalt.sonstigesAngabe"])
}

func TestAssembleKeepsExplicitOtherMeans(t *testing.T) {
	l := newLoader(t, nil)
	data := l.Assemble(map[string]any{
		"employer":            "ACME GmbH",
		"other_means_specify": "private savings",
	})
	assert.Equal(t, "private savings", data["reisedaten.lebensunterhalt.sonstigesAngabe"])
}

func TestAssembleCopiesEmployerToSponsorWhenOrganisationPays(t *testing.T) {
	l := newLoader(t, nil)
	data := l.Assemble(map[string]any{
		"other_sponsor_pays": true,
		"employer":           "ACME GmbH",
		"employer_city":      "Berlin",
		"email":              "john@example.com",
	})

	assert.Equal(t, "ACME GmbH", data["verpflichtungserklaerungsgeber.ansprechpartner.familienname"])
	assert.Equal(t, "Berlin", data["verpflichtungserklaerungsgeber.ansprechpartner.anschrift.ort"])
	assert.Equal(t, "john@example.com", data["verpflichtungserklaerungsgeber.ansprechpartner.kontaktdaten.email"])
	assert.Equal(t, "Company", data["verpflichtungserklaerungsgeber.art"])
}

func TestAssembleSponsorCopySkippedWithoutOrganisation(t *testing.T) {
	l := newLoader(t, nil)
	data := l.Assemble(map[string]any{
		"employer": "ACME GmbH",
	})
	assert.NotContains(t, data, "verpflichtungserklaerungsgeber.ansprechpartner.familienname")
	assert.NotContains(t, data, "verpflichtungserklaerungsgeber.art")
}

func TestAssembleExplicitSponsorWins(t *testing.T) {
	l := newLoader(t, nil)
	data := l.Assemble(map[string]any{
		"other_sponsor_pays": true,
		"employer":           "ACME GmbH",
		"sponsor_surname":    "Example Foundation",
		"sponsor_type":       "Other institution",
	})
	assert.Equal(t, "Example Foundation", data["verpflichtungserklaerungsgeber.ansprechpartner.familienname"])
	assert.Equal(t, "Other institution", data["verpflichtungserklaerungsgeber.art"])
}

func TestDisableDerivations(t *testing.T) {
	l := newLoader(t, nil)
	l.DisableDerivations = true
	data := l.Assemble(map[string]any{
		"other_sponsor_pays": true,
		"employer":           "ACME GmbH",
	})
	assert.NotContains(t, data, "verpflichtungserklaerungsgeber.art")
	assert.NotContains(t, data, "reisedaten.lebensunterhalt.sonstigesAngabe")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "applicant.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"surname": "Smith", "cash": true}`), 0o644))

	l := newLoader(t, nil)
	data, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Smith", data["antragsteller.familienname"])
	assert.Equal(t, true, data["reisedaten.lebensunterhalt.bar"])
}

func TestLoadMissingFile(t *testing.T) {
	l := newLoader(t, nil)
	_, err := l.Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestValidateAgainstSchema(t *testing.T) {
	idx := schema.FromSchema(&schemas.FormSchema{Sections: []schemas.FormSection{{
		Name: "Personal Data",
		Fields: []schemas.FieldDescriptor{
			{ID: "antragsteller.familienname", Required: true},
			{ID: "antragsteller.vorname", Required: true},
			{ID: "reisedaten.lebensunterhalt.bar", Required: true, Type: schemas.FieldTypeCheckbox},
		},
	}}})
	l := newLoader(t, idx)

	ok, missing := l.Validate(schemas.ApplicantData{
		"antragsteller.familienname":     "Smith",
		"antragsteller.vorname":          "  ",
		"reisedaten.lebensunterhalt.bar": false,
	})
	assert.False(t, ok)
	// A false checkbox satisfies the requirement; the blank string does not.
	assert.Equal(t, []string{"antragsteller.vorname"}, missing)
}

func TestValidateWithoutSchemaPasses(t *testing.T) {
	l := newLoader(t, nil)
	ok, missing := l.Validate(schemas.ApplicantData{})
	assert.True(t, ok)
	assert.Empty(t, missing)
}
