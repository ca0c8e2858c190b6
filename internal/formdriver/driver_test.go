package formdriver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/videx-autofill/api/schemas"
	"github.com/xkilldash9x/videx-autofill/internal/config"
	"github.com/xkilldash9x/videx-autofill/internal/schema"
)

type elementKind struct {
	tag       string
	inputType string
}

// fakePage is an in-memory Page. Behavior is driven by the maps; every
// mutation is recorded for assertions.
type fakePage struct {
	visible      map[string]bool
	kinds        map[string]elementKind
	liveOptions  map[string][]schemas.Option
	selectLabels map[string]map[string]bool
	selectValues map[string]map[string]bool
	buttons      map[string]bool

	navigated  []string
	texts      map[string]string
	checked    map[string]bool
	selected   map[string]string
	clicked    []string
	idleCalls  int
	navigateErr error
	screenshot []byte
}

func newFakePage() *fakePage {
	return &fakePage{
		visible:      map[string]bool{},
		kinds:        map[string]elementKind{},
		liveOptions:  map[string][]schemas.Option{},
		selectLabels: map[string]map[string]bool{},
		selectValues: map[string]map[string]bool{},
		buttons:      map[string]bool{},
		texts:        map[string]string{},
		checked:      map[string]bool{},
		selected:     map[string]string{},
	}
}

func (f *fakePage) Navigate(_ context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	return f.navigateErr
}

func (f *fakePage) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	if f.visible[selector] {
		return nil
	}
	return errors.New("not visible: " + selector)
}

func (f *fakePage) IsVisible(_ context.Context, selector string, _ time.Duration) bool {
	return f.visible[selector]
}

func (f *fakePage) Click(_ context.Context, selector string) error {
	f.clicked = append(f.clicked, selector)
	return nil
}

func (f *fakePage) SetText(_ context.Context, selector, value string) error {
	f.texts[selector] = value
	return nil
}

func (f *fakePage) SetChecked(_ context.Context, selector string, checked bool) error {
	f.checked[selector] = checked
	return nil
}

func (f *fakePage) SelectByLabel(_ context.Context, selector, label string) error {
	if f.selectLabels[selector][label] {
		f.selected[selector] = label
		return nil
	}
	return errors.New("no option with label " + label)
}

func (f *fakePage) SelectByValue(_ context.Context, selector, value string) error {
	if f.selectValues[selector][value] {
		f.selected[selector] = value
		return nil
	}
	return errors.New("no option with value " + value)
}

func (f *fakePage) LiveOptions(_ context.Context, selector string) ([]schemas.Option, error) {
	return f.liveOptions[selector], nil
}

func (f *fakePage) ElementKind(_ context.Context, selector string) (string, string, error) {
	k, ok := f.kinds[selector]
	if !ok {
		return "input", "text", nil
	}
	return k.tag, k.inputType, nil
}

func (f *fakePage) ClickButtonByText(_ context.Context, scope, label string) (bool, error) {
	key := scope + "|" + label
	if f.buttons[key] {
		f.clicked = append(f.clicked, key)
		return true, nil
	}
	return false, nil
}

func (f *fakePage) SelectFirstOptionByLabel(_ context.Context, label string) error {
	f.selected["<first-select>"] = label
	return nil
}

func (f *fakePage) WaitIdle(_ context.Context, _ time.Duration) error {
	f.idleCalls++
	return nil
}

func (f *fakePage) Screenshot(_ context.Context) ([]byte, error) {
	return f.screenshot, nil
}

func testConfigs() (config.FormConfig, config.FillConfig) {
	form := config.FormConfig{
		URL:            "https://forms.example/apply",
		AnchorSelector: `input[id="antragsteller.familienname"]`,
		AnchorTimeout:  10 * time.Millisecond,
		RenderTimeout:  10 * time.Millisecond,
		Language:       "English",
	}
	fill := config.FillConfig{
		MaxPages:          20,
		MaxPasses:         3,
		FieldTimeout:      10 * time.Millisecond,
		VisibilityTimeout: time.Millisecond,
		SettleShort:       0,
		SettleLong:        0,
		NavigationTimeout: 10 * time.Millisecond,
	}
	return form, fill
}

func newTestDriver(t *testing.T, page Page, idx *schema.Index, strategies ...CaptureStrategy) *Driver {
	t.Helper()
	form, fill := testConfigs()
	d := New(page, idx, form, fill, strategies, zap.NewNop())
	d.sleep = func(time.Duration) {}
	return d
}

func indexWith(fields ...schemas.FieldDescriptor) *schema.Index {
	return schema.FromSchema(&schemas.FormSchema{
		Sections: []schemas.FormSection{{Name: "Personal Data", Fields: fields}},
	})
}

func TestMatchOption(t *testing.T) {
	options := []schemas.Option{
		{Value: "1", Label: "Germany (Federal Republic)"},
		{Value: "2", Label: "Georgia"},
		{Value: "3", Label: "Germany"},
	}

	testCases := []struct {
		name      string
		target    string
		wantValue string
		wantFound bool
	}{
		{"later exact match beats earlier containment", "germany", "3", true},
		{"exact match with padding", "  Georgia ", "2", true},
		{"containment keeps first candidate", "Federal Republic", "1", true},
		{"no match", "Atlantis", "", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			value, _, found := MatchOption(options, tc.target)
			assert.Equal(t, tc.wantFound, found)
			assert.Equal(t, tc.wantValue, value)
		})
	}
}

func TestOpenWaitsForAnchor(t *testing.T) {
	page := newFakePage()
	page.visible[`input[id="antragsteller.familienname"]`] = true
	d := newTestDriver(t, page, nil)

	require.NoError(t, d.Open(context.Background()))
	assert.Equal(t, []string{"https://forms.example/apply"}, page.navigated)
	assert.Equal(t, "English", page.selected["<first-select>"])
}

func TestOpenFailsWhenAnchorNeverRenders(t *testing.T) {
	page := newFakePage()
	d := newTestDriver(t, page, nil)

	err := d.Open(context.Background())
	require.Error(t, err)
	// The long idle wait was tried before giving up.
	assert.Equal(t, 1, page.idleCalls)
}

func TestFillFieldBoolAlwaysTakesCheckboxPath(t *testing.T) {
	idx := indexWith(schemas.FieldDescriptor{ID: "reisedaten.lebensunterhalt.bar", Type: schemas.FieldTypeText})
	page := newFakePage()
	selector := idx.SelectorFor("reisedaten.lebensunterhalt.bar")
	page.visible[selector] = true
	d := newTestDriver(t, page, idx)

	assert.True(t, d.FillField(context.Background(), "reisedaten.lebensunterhalt.bar", true))
	assert.True(t, page.checked[selector])
	assert.Empty(t, page.texts)
}

func TestFillFieldEmptyValueIsSatisfied(t *testing.T) {
	d := newTestDriver(t, newFakePage(), nil)
	assert.True(t, d.FillField(context.Background(), "antragsteller.vorname", "   "))
}

func TestFillCheckboxMissingElement(t *testing.T) {
	idx := indexWith(schemas.FieldDescriptor{ID: "opt.in", Type: schemas.FieldTypeCheckbox})
	d := newTestDriver(t, newFakePage(), idx)

	// Unchecked against a missing conditional checkbox is a no-op success.
	assert.True(t, d.FillField(context.Background(), "opt.in", false))
	assert.False(t, d.FillField(context.Background(), "opt.in", true))
}

func TestFillTextProbesLiveElementKind(t *testing.T) {
	idx := indexWith(schemas.FieldDescriptor{ID: "antragsteller.familienstand", Type: schemas.FieldTypeText})
	selector := idx.SelectorFor("antragsteller.familienstand")
	page := newFakePage()
	page.visible[selector] = true
	page.kinds[selector] = elementKind{tag: "select"}
	page.selectLabels[selector] = map[string]bool{"Single": true}
	d := newTestDriver(t, page, idx)

	assert.True(t, d.FillField(context.Background(), "antragsteller.familienstand", "Single"))
	assert.Equal(t, "Single", page.selected[selector])
	assert.Empty(t, page.texts)
}

func TestFillTextWritesValue(t *testing.T) {
	idx := indexWith(schemas.FieldDescriptor{ID: "antragsteller.vorname", Type: schemas.FieldTypeText})
	selector := idx.SelectorFor("antragsteller.vorname")
	page := newFakePage()
	page.visible[selector] = true
	d := newTestDriver(t, page, idx)

	assert.True(t, d.FillField(context.Background(), "antragsteller.vorname", "John"))
	assert.Equal(t, "John", page.texts[selector])
}

func TestFillSelectPrefersLabelOverValue(t *testing.T) {
	idx := indexWith(schemas.FieldDescriptor{
		ID:   "antragsteller.staatsangehoerigkeitListe[0]",
		Type: schemas.FieldTypeSelect,
		Options: []schemas.Option{
			{Value: "17", Label: "United States of America"},
		},
	})
	selector := idx.SelectorFor("antragsteller.staatsangehoerigkeitListe[0]")
	page := newFakePage()
	page.visible[selector] = true
	page.selectLabels[selector] = map[string]bool{"United States of America": true}
	page.selectValues[selector] = map[string]bool{"17": true}
	d := newTestDriver(t, page, idx)

	assert.True(t, d.FillField(context.Background(), "antragsteller.staatsangehoerigkeitListe[0]", "united states of america"))
	assert.Equal(t, "United States of America", page.selected[selector])
}

func TestFillSelectFallsBackToValueCode(t *testing.T) {
	idx := indexWith(schemas.FieldDescriptor{
		ID:      "antragsteller.geschlecht",
		Type:    schemas.FieldTypeSelect,
		Options: []schemas.Option{{Value: "m", Label: "Male"}},
	})
	selector := idx.SelectorFor("antragsteller.geschlecht")
	page := newFakePage()
	page.visible[selector] = true
	// Label selection misses; value selection works.
	page.selectValues[selector] = map[string]bool{"m": true}
	d := newTestDriver(t, page, idx)

	assert.True(t, d.FillField(context.Background(), "antragsteller.geschlecht", "Male"))
	assert.Equal(t, "m", page.selected[selector])
}

func TestFillSelectScansLiveOptionsLast(t *testing.T) {
	idx := indexWith(schemas.FieldDescriptor{ID: "reisedaten.visumart", Type: schemas.FieldTypeSelect})
	selector := idx.SelectorFor("reisedaten.visumart")
	page := newFakePage()
	page.visible[selector] = true
	page.liveOptions[selector] = []schemas.Option{
		{Value: "", Label: "Please select"},
		{Value: "42", Label: "Single entry"},
	}
	page.selectValues[selector] = map[string]bool{"42": true}
	d := newTestDriver(t, page, idx)

	assert.True(t, d.FillField(context.Background(), "reisedaten.visumart", "Single entry"))
	assert.Equal(t, "42", page.selected[selector])
}

func TestFillSelectNoMatchAnywhere(t *testing.T) {
	idx := indexWith(schemas.FieldDescriptor{ID: "reisedaten.visumart", Type: schemas.FieldTypeSelect})
	selector := idx.SelectorFor("reisedaten.visumart")
	page := newFakePage()
	page.visible[selector] = true
	d := newTestDriver(t, page, idx)

	assert.False(t, d.FillField(context.Background(), "reisedaten.visumart", "Nonexistent"))
}

func TestFillRadioPrefersValueQualifiedSelector(t *testing.T) {
	idx := indexWith(schemas.FieldDescriptor{ID: "antragsteller.geschlecht", Type: schemas.FieldTypeRadio})
	page := newFakePage()
	qualified := `input[name='antragsteller.geschlecht'][value='M']`
	page.visible[qualified] = true
	d := newTestDriver(t, page, idx)

	assert.True(t, d.FillField(context.Background(), "antragsteller.geschlecht", "M"))
	assert.True(t, page.checked[qualified])
}

func TestFillRadioFallsBackToFieldSelector(t *testing.T) {
	idx := indexWith(schemas.FieldDescriptor{ID: "antragsteller.geschlecht", Type: schemas.FieldTypeRadio})
	selector := idx.SelectorFor("antragsteller.geschlecht")
	page := newFakePage()
	page.visible[selector] = true
	d := newTestDriver(t, page, idx)

	assert.True(t, d.FillField(context.Background(), "antragsteller.geschlecht", "M"))
	assert.True(t, page.checked[selector])
}

func TestVisibleFieldsFilters(t *testing.T) {
	idx := indexWith(
		schemas.FieldDescriptor{ID: "a"},
		schemas.FieldDescriptor{ID: "b"},
	)
	page := newFakePage()
	page.visible[idx.SelectorFor("a")] = true
	d := newTestDriver(t, page, idx)

	assert.Equal(t, []string{"a"}, d.VisibleFields(context.Background(), []string{"a", "b"}))
}

func TestDismissPopups(t *testing.T) {
	page := newFakePage()
	page.buttons["[role='dialog']|OK"] = true
	page.buttons["|Accept all"] = true
	d := newTestDriver(t, page, nil)

	assert.True(t, d.DismissPopups(context.Background()))
	assert.Contains(t, page.clicked, "[role='dialog']|OK")
	assert.Contains(t, page.clicked, "|Accept all")
}

func TestDismissPopupsNothingToClose(t *testing.T) {
	d := newTestDriver(t, newFakePage(), nil)
	assert.False(t, d.DismissPopups(context.Background()))
}

func TestAdvancePage(t *testing.T) {
	page := newFakePage()
	page.buttons["|Weiter"] = true
	d := newTestDriver(t, page, nil)

	assert.True(t, d.AdvancePage(context.Background()))
	assert.Equal(t, 1, page.idleCalls)
}

func TestAdvancePageNoControl(t *testing.T) {
	d := newTestDriver(t, newFakePage(), nil)
	assert.False(t, d.AdvancePage(context.Background()))
}

func TestSubmit(t *testing.T) {
	page := newFakePage()
	page.buttons["|Absenden"] = true
	d := newTestDriver(t, page, nil)

	assert.True(t, d.Submit(context.Background()))
	assert.Contains(t, page.clicked, "|Absenden")
}

type stubStrategy struct {
	name string
	data []byte
	err  error
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Capture(ctx context.Context, trigger func(context.Context) error) ([]byte, error) {
	if err := trigger(ctx); err != nil {
		return nil, err
	}
	return s.data, s.err
}

func TestExtractArtifactFirstStrategyWins(t *testing.T) {
	page := newFakePage()
	page.buttons["|Download PDF"] = true
	d := newTestDriver(t, page, nil,
		&stubStrategy{name: "miss", err: ErrNotCaptured},
		&stubStrategy{name: "hit", data: []byte("%PDF-1.4")},
		&stubStrategy{name: "never", data: []byte("unreached")},
	)

	assert.Equal(t, []byte("%PDF-1.4"), d.ExtractArtifact(context.Background()))
}

func TestExtractArtifactAllStrategiesMiss(t *testing.T) {
	page := newFakePage()
	page.buttons["|Download PDF"] = true
	d := newTestDriver(t, page, nil,
		&stubStrategy{name: "a", err: ErrNotCaptured},
		&stubStrategy{name: "b", err: errors.New("tab never opened")},
	)

	assert.Nil(t, d.ExtractArtifact(context.Background()))
}

func TestExtractArtifactMissingDownloadControl(t *testing.T) {
	d := newTestDriver(t, newFakePage(), nil,
		&stubStrategy{name: "hit", data: []byte("unreached")},
	)
	// Trigger cannot find the control, so the strategy never yields data.
	assert.Nil(t, d.ExtractArtifact(context.Background()))
}

func TestStringValue(t *testing.T) {
	assert.Equal(t, "Smith", stringValue("Smith"))
	assert.Equal(t, "true", stringValue(true))
	assert.Equal(t, "3", stringValue(float64(3)))
	assert.Equal(t, "", stringValue(nil))
}

func TestTruthy(t *testing.T) {
	assert.True(t, truthy(true))
	assert.True(t, truthy("yes"))
	assert.False(t, truthy("false"))
	assert.False(t, truthy(" "))
	assert.False(t, truthy(nil))
}
