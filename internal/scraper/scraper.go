// File: internal/scraper/scraper.go
// Package scraper walks the form's section tabs and lifts every fillable
// control into a schema file that later fill runs consume.
package scraper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/videx-autofill/api/schemas"
	"github.com/xkilldash9x/videx-autofill/internal/config"
)

// Tab is one section of the form, addressable by its label in either UI
// language or by position in the tab bar.
type Tab struct {
	German  string
	English string
	Index   int
}

// FormTabs lists the form's six sections in display order.
var FormTabs = []Tab{
	{German: "Angaben zur Person", English: "Personal Data", Index: 0},
	{German: "Kontaktdaten", English: "Contact Details", Index: 1},
	{German: "Unterlagen", English: "Documents", Index: 2},
	{German: "Reisedaten", English: "Travel Data", Index: 3},
	{German: "Referenz", English: "Reference", Index: 4},
	{German: "Kostenübernahme", English: "Cost Coverage", Index: 5},
}

// Page is the browser surface the scraper needs. *browser.Page satisfies it.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitIdle(ctx context.Context, timeout time.Duration) error
	ClickButtonByText(ctx context.Context, scope, label string) (bool, error)
	SelectFirstOptionByLabel(ctx context.Context, label string) error
	ClickText(ctx context.Context, label string) (bool, error)
	ClickTabIndex(ctx context.Context, index int) (bool, error)
	ExpandCollapsed(ctx context.Context) error
	ScrollThrough(ctx context.Context) error
	ExtractControls(ctx context.Context) ([]schemas.ScrapedControl, error)
}

var popupTexts = []string{"OK", "Accept", "Close"}

// Scraper discovers the form's field inventory. One instance per run.
type Scraper struct {
	page   Page
	form   config.FormConfig
	cfg    config.ScrapeConfig
	logger *zap.Logger

	// seen de-duplicates controls that render on more than one tab.
	seen map[string]bool

	sleep func(time.Duration)
}

func New(page Page, form config.FormConfig, cfg config.ScrapeConfig, logger *zap.Logger) *Scraper {
	return &Scraper{
		page:   page,
		form:   form,
		cfg:    cfg,
		logger: logger.Named("scraper"),
		seen:   make(map[string]bool),
		sleep:  time.Sleep,
	}
}

// Scrape visits every tab and returns the assembled schema.
func (s *Scraper) Scrape(ctx context.Context) (*schemas.FormSchema, error) {
	s.logger.Info("Starting schema scrape", zap.String("url", s.form.URL), zap.Int("tabs", len(FormTabs)))

	if err := s.page.Navigate(ctx, s.form.URL); err != nil {
		return nil, fmt.Errorf("opening form: %w", err)
	}
	if err := s.page.WaitIdle(ctx, s.form.RenderTimeout); err != nil {
		s.logger.Warn("Form still loading after render timeout", zap.Error(err))
	}
	s.sleep(s.cfg.SettleDelay)
	s.dismissPopups(ctx)
	s.switchLanguage(ctx)

	schema := &schemas.FormSchema{
		URL:      s.form.URL,
		Language: s.cfg.Language,
	}

	for _, tab := range FormTabs {
		if err := ctx.Err(); err != nil {
			return schema, err
		}
		if !s.openTab(ctx, tab) {
			s.logger.Warn("Could not open tab, scraping current view", zap.String("tab", tab.English))
		}
		s.sleep(s.cfg.SettleDelay)
		s.dismissPopups(ctx)

		fields, err := s.scrapeSection(ctx, tab.English)
		if err != nil {
			s.logger.Error("Section scrape failed", zap.String("tab", tab.English), zap.Error(err))
			continue
		}
		schema.Sections = append(schema.Sections, schemas.FormSection{
			Name:   tab.English,
			Index:  tab.Index,
			Fields: fields,
		})
		s.logger.Info("Section scraped", zap.String("tab", tab.English), zap.Int("fields", len(fields)))
	}

	s.logger.Info("Scrape complete",
		zap.Int("sections", len(schema.Sections)),
		zap.Int("fields", schema.FieldCount()),
	)
	return schema, nil
}

// openTab tries the tab's label in both languages, then its position.
func (s *Scraper) openTab(ctx context.Context, tab Tab) bool {
	for _, label := range []string{tab.English, tab.German} {
		ok, err := s.page.ClickText(ctx, label)
		if err != nil {
			continue
		}
		if ok {
			s.waitForTab(ctx)
			return true
		}
	}
	ok, err := s.page.ClickTabIndex(ctx, tab.Index)
	if err != nil || !ok {
		return false
	}
	s.waitForTab(ctx)
	return true
}

func (s *Scraper) waitForTab(ctx context.Context) {
	s.sleep(s.cfg.SettleDelay)
	if err := s.page.WaitIdle(ctx, s.cfg.TabTimeout); err != nil {
		s.logger.Debug("Tab never went idle", zap.Error(err))
	}
}

// scrapeSection expands and scrolls the current view, then extracts and
// normalizes its controls. Hidden controls and ones already seen on earlier
// tabs are dropped.
func (s *Scraper) scrapeSection(ctx context.Context, sectionName string) ([]schemas.FieldDescriptor, error) {
	if err := s.page.ExpandCollapsed(ctx); err != nil {
		s.logger.Debug("Expanding collapsed sections failed", zap.Error(err))
	}
	if err := s.page.ScrollThrough(ctx); err != nil {
		s.logger.Debug("Scroll pass failed", zap.Error(err))
	}

	controls, err := s.page.ExtractControls(ctx)
	if err != nil {
		return nil, err
	}

	var fields []schemas.FieldDescriptor
	for _, control := range controls {
		if !control.Visible {
			continue
		}
		uniqueID := control.UniqueID()
		if uniqueID == "" {
			uniqueID = fmt.Sprintf("%s_field_%d", sectionName, len(fields))
		}
		if s.seen[uniqueID] {
			continue
		}
		s.seen[uniqueID] = true

		selector := control.Selector()
		if selector == "" {
			selector = schemas.FallbackSelector(uniqueID)
		}
		fields = append(fields, schemas.FieldDescriptor{
			ID:        uniqueID,
			Selector:  selector,
			Type:      normalizeType(control.FieldType),
			Label:     control.Label,
			Required:  control.Required,
			Options:   control.Options,
			Section:   sectionName,
			MaxLength: control.MaxLength,
		})
	}
	return fields, nil
}

func (s *Scraper) dismissPopups(ctx context.Context) {
	for _, label := range popupTexts {
		if ok, err := s.page.ClickButtonByText(ctx, "", label); err == nil && ok {
			s.logger.Debug("Dismissed popup", zap.String("button", label))
			s.sleep(s.cfg.SettleDelay / 2)
			return
		}
	}
	if ok, err := s.page.ClickButtonByText(ctx, "[class*='cookie']", ""); err == nil && ok {
		s.logger.Debug("Accepted cookie banner")
	}
}

func (s *Scraper) switchLanguage(ctx context.Context) {
	if s.cfg.Language != "en" {
		return
	}
	if err := s.page.SelectFirstOptionByLabel(ctx, "English"); err != nil {
		s.logger.Warn("Could not switch language, scraping current one", zap.Error(err))
		return
	}
	s.sleep(s.cfg.SettleDelay)
	if err := s.page.WaitIdle(ctx, s.cfg.TabTimeout); err != nil {
		s.logger.Debug("Idle wait after language switch expired", zap.Error(err))
	}
	s.dismissPopups(ctx)
}

// normalizeType folds the extraction script's type names onto the known set.
// Email, tel, and number inputs fill like plain text.
func normalizeType(raw string) schemas.FieldType {
	switch raw {
	case "select":
		return schemas.FieldTypeSelect
	case "textarea":
		return schemas.FieldTypeTextarea
	case "checkbox":
		return schemas.FieldTypeCheckbox
	case "radio":
		return schemas.FieldTypeRadio
	case "date":
		return schemas.FieldTypeDate
	case "file":
		return schemas.FieldTypeFile
	default:
		return schemas.FieldTypeText
	}
}
