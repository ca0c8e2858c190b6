// File: internal/browser/scrape_page.go
// Scraping primitives on Page: broad text clicking for tab navigation,
// accordion expansion, lazy-load scrolling, and bulk control extraction.
package browser

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/videx-autofill/api/schemas"
)

// ClickText clicks the first visible element of any tab-like tag whose text
// contains label. Wider net than ClickButtonByText: section tabs are often
// plain divs or list items.
func (p *Page) ClickText(ctx context.Context, label string) (bool, error) {
	js := fmt.Sprintf(`(() => {
		const want = %s.trim().toLowerCase();
		const candidates = document.querySelectorAll("a, button, li, span, div, [role='tab']");
		for (const el of candidates) {
			const text = (el.innerText || "").trim().toLowerCase();
			if (text !== want && !(text.includes(want) && text.length < want.length + 40)) continue;
			const rect = el.getBoundingClientRect();
			if (rect.width === 0 || rect.height === 0) continue;
			el.click();
			return true;
		}
		return false;
	})()`, strconv.Quote(label))

	runCtx, cancel := joinContext(p.ctx, ctx)
	defer cancel()
	var clicked bool
	if err := chromedp.Run(runCtx, chromedp.Evaluate(js, &clicked)); err != nil {
		return false, fmt.Errorf("probing for tab %q: %w", label, err)
	}
	return clicked, nil
}

// ClickTabIndex clicks the nth interactive child of the first tab bar on the
// page. Fallback for when no tab text matches.
func (p *Page) ClickTabIndex(ctx context.Context, index int) (bool, error) {
	js := fmt.Sprintf(`(() => {
		const bar = document.querySelector("[role='tablist'], [class*='tab'], [class*='nav']");
		if (!bar) return false;
		const tabs = bar.querySelectorAll("a, div, span, li, button");
		if (%d >= tabs.length) return false;
		tabs[%d].click();
		return true;
	})()`, index, index)

	runCtx, cancel := joinContext(p.ctx, ctx)
	defer cancel()
	var clicked bool
	if err := chromedp.Run(runCtx, chromedp.Evaluate(js, &clicked)); err != nil {
		return false, fmt.Errorf("clicking tab %d: %w", index, err)
	}
	return clicked, nil
}

// ExpandCollapsed opens accordions and collapsed sections so their fields
// enter the layout.
func (p *Page) ExpandCollapsed(ctx context.Context) error {
	js := `(() => {
		const probes = [
			"[class*='collapse'] button",
			"[class*='accordion'] button",
			"[aria-expanded='false']",
		];
		let clicked = 0;
		for (const probe of probes) {
			for (const el of document.querySelectorAll(probe)) {
				const rect = el.getBoundingClientRect();
				if (rect.width === 0 || rect.height === 0) continue;
				el.click();
				clicked++;
			}
		}
		return clicked;
	})()`

	runCtx, cancel := joinContext(p.ctx, ctx)
	defer cancel()
	var clicked int
	return chromedp.Run(runCtx, chromedp.Evaluate(js, &clicked))
}

// ScrollThrough scrolls to the bottom and back so lazy-rendered controls
// mount.
func (p *Page) ScrollThrough(ctx context.Context) error {
	runCtx, cancel := joinContext(p.ctx, ctx)
	defer cancel()
	var ignored any
	return chromedp.Run(runCtx,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, &ignored),
		chromedp.Sleep(300*time.Millisecond),
		chromedp.Evaluate(`window.scrollTo(0, 0)`, &ignored),
	)
}

// extractControlsJS lifts every fillable control out of the DOM with its
// label resolved through a cascade: label[for], enclosing label, preceding
// siblings, then nearby containers. The language switcher select is skipped.
const extractControlsJS = `(() => {
	const inputs = document.querySelectorAll('input:not([type="hidden"]):not([type="submit"]):not([type="button"])');
	const selects = document.querySelectorAll('select');
	const textareas = document.querySelectorAll('textarea');
	const all = [...inputs, ...selects, ...textareas];

	return all.map((el, index) => {
		const id = el.id || '';
		const name = el.name || '';

		if (id === '' && name === '' && el.tagName === 'SELECT') {
			const first = el.options[0];
			if (first && (first.text.includes('Deutsch') || first.text.includes('English'))) {
				return null;
			}
		}

		let label = '';
		if (id) {
			try {
				const labelEl = document.querySelector('label[for="' + CSS.escape(id) + '"]');
				if (labelEl) label = labelEl.textContent.trim();
			} catch (e) {}
		}
		if (!label) {
			const enclosing = el.closest('label');
			if (enclosing) label = enclosing.textContent.trim();
		}
		if (!label) {
			let prev = el.previousElementSibling;
			while (prev && !label) {
				if (['LABEL', 'SPAN', 'DIV'].includes(prev.tagName)) {
					const text = prev.textContent.trim();
					if (text && text.length < 200) label = text;
				}
				prev = prev.previousElementSibling;
			}
		}
		if (!label) {
			let parent = el.parentElement;
			for (let i = 0; i < 3 && parent && !label; i++) {
				for (const lbl of parent.querySelectorAll("label, [class*='label']")) {
					if (lbl.contains(el)) continue;
					const text = lbl.textContent.trim();
					if (text && text.length < 200) { label = text; break; }
				}
				parent = parent.parentElement;
			}
		}
		if (!label) label = el.placeholder || el.title || name || id || 'Field ' + index;

		let required = el.required || el.getAttribute('aria-required') === 'true';
		if (label.includes('*')) required = true;
		if ((el.className || '').toLowerCase().includes('required')) required = true;

		let options = [];
		if (el.tagName === 'SELECT') {
			options = Array.from(el.options)
				.map(o => ({value: o.value || '', label: o.text.trim()}))
				.filter(o => o.value || o.label);
		}

		let fieldType = 'text';
		if (el.tagName === 'SELECT') fieldType = 'select';
		else if (el.tagName === 'TEXTAREA') fieldType = 'textarea';
		else if (['checkbox', 'radio', 'date', 'file'].includes(el.type)) fieldType = el.type;

		const rect = el.getBoundingClientRect();

		return {
			id: id,
			name: name,
			label: label.replace(/\*/g, '').replace(/:/g, '').trim(),
			fieldType: fieldType,
			required: required,
			options: options,
			maxLength: el.maxLength > 0 ? el.maxLength : 0,
			isVisible: rect.width > 0 && rect.height > 0,
			tagName: el.tagName.toLowerCase()
		};
	}).filter(x => x !== null);
})()`

// ExtractControls returns every fillable control currently in the DOM.
func (p *Page) ExtractControls(ctx context.Context) ([]schemas.ScrapedControl, error) {
	runCtx, cancel := joinContext(p.ctx, ctx)
	defer cancel()
	var controls []schemas.ScrapedControl
	if err := chromedp.Run(runCtx, chromedp.Evaluate(extractControlsJS, &controls)); err != nil {
		return nil, fmt.Errorf("extracting controls: %w", err)
	}
	return controls, nil
}
