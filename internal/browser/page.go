// File: internal/browser/page.go
package browser

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/videx-autofill/api/schemas"
)

// Page adapts one browser session to the fill driver's page primitives.
// Angular re-renders aggressively, so mutations go through dispatched input
// and change events rather than bare property writes.
type Page struct {
	ctx    context.Context
	logger *zap.Logger
}

// NewPage wraps a session. The session stays owned by the caller.
func NewPage(session *Session, logger *zap.Logger) *Page {
	return &Page{ctx: session.Context(), logger: logger.Named("page")}
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := joinContext(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	runCtx, cancel := joinContext(p.ctx, ctx)
	defer cancel()
	runCtx, cancelTimeout := context.WithTimeout(runCtx, timeout)
	defer cancelTimeout()
	if err := chromedp.Run(runCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("waiting for %s: %w", selector, err)
	}
	return nil
}

func (p *Page) IsVisible(ctx context.Context, selector string, timeout time.Duration) bool {
	return p.WaitVisible(ctx, selector, timeout) == nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	runCtx, cancel := joinContext(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// SetText clears the control and types the value with real key events so the
// page's bindings observe the change.
func (p *Page) SetText(ctx context.Context, selector, value string) error {
	runCtx, cancel := joinContext(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (p *Page) SetChecked(ctx context.Context, selector string, checked bool) error {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		if (el.checked !== %t) el.click();
		return el.checked === %t;
	})()`, strconv.Quote(selector), checked, checked)
	return p.evalBool(ctx, js, "element not found or state did not stick: "+selector)
}

func (p *Page) SelectByLabel(ctx context.Context, selector, label string) error {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el || el.tagName !== 'SELECT') return false;
		const want = %s.trim().toLowerCase();
		for (const opt of el.options) {
			if (opt.label.trim().toLowerCase() === want || opt.text.trim().toLowerCase() === want) {
				el.value = opt.value;
				el.dispatchEvent(new Event('input', {bubbles: true}));
				el.dispatchEvent(new Event('change', {bubbles: true}));
				return true;
			}
		}
		return false;
	})()`, strconv.Quote(selector), strconv.Quote(label))
	return p.evalBool(ctx, js, "no option labeled "+label)
}

func (p *Page) SelectByValue(ctx context.Context, selector, value string) error {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el || el.tagName !== 'SELECT') return false;
		const want = %s;
		for (const opt of el.options) {
			if (opt.value === want) {
				el.value = want;
				el.dispatchEvent(new Event('input', {bubbles: true}));
				el.dispatchEvent(new Event('change', {bubbles: true}));
				return true;
			}
		}
		return false;
	})()`, strconv.Quote(selector), strconv.Quote(value))
	return p.evalBool(ctx, js, "no option valued "+value)
}

func (p *Page) LiveOptions(ctx context.Context, selector string) ([]schemas.Option, error) {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el || el.tagName !== 'SELECT') return [];
		return Array.from(el.options).map(o => ({value: o.value, label: o.text.trim()}));
	})()`, strconv.Quote(selector))

	runCtx, cancel := joinContext(p.ctx, ctx)
	defer cancel()
	var options []schemas.Option
	if err := chromedp.Run(runCtx, chromedp.Evaluate(js, &options)); err != nil {
		return nil, fmt.Errorf("reading options of %s: %w", selector, err)
	}
	return options, nil
}

func (p *Page) ElementKind(ctx context.Context, selector string) (string, string, error) {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return {tag: "", type: ""};
		return {tag: el.tagName.toLowerCase(), type: (el.type || "").toLowerCase()};
	})()`, strconv.Quote(selector))

	runCtx, cancel := joinContext(p.ctx, ctx)
	defer cancel()
	var kind struct {
		Tag  string `json:"tag"`
		Type string `json:"type"`
	}
	if err := chromedp.Run(runCtx, chromedp.Evaluate(js, &kind)); err != nil {
		return "", "", fmt.Errorf("probing %s: %w", selector, err)
	}
	if kind.Tag == "" {
		return "", "", fmt.Errorf("element not found: %s", selector)
	}
	return kind.Tag, kind.Type, nil
}

// ClickButtonByText clicks the first visible enabled button-like element
// whose text or value contains label, case-insensitive. scope narrows the
// search to a container; empty scope searches the whole document.
func (p *Page) ClickButtonByText(ctx context.Context, scope, label string) (bool, error) {
	js := fmt.Sprintf(`(() => {
		const scopeSel = %s;
		const want = %s.trim().toLowerCase();
		const root = scopeSel ? document.querySelector(scopeSel) : document;
		if (!root) return false;
		const candidates = root.querySelectorAll(
			"button, a, input[type='submit'], input[type='button'], [role='button']");
		for (const el of candidates) {
			const text = (el.innerText || el.value || "").trim().toLowerCase();
			if (want && !text.includes(want)) continue;
			if (el.disabled) continue;
			const rect = el.getBoundingClientRect();
			if (rect.width === 0 || rect.height === 0) continue;
			el.click();
			return true;
		}
		return false;
	})()`, strconv.Quote(scope), strconv.Quote(label))

	runCtx, cancel := joinContext(p.ctx, ctx)
	defer cancel()
	var clicked bool
	if err := chromedp.Run(runCtx, chromedp.Evaluate(js, &clicked)); err != nil {
		return false, fmt.Errorf("probing for button %q: %w", label, err)
	}
	return clicked, nil
}

// SelectFirstOptionByLabel targets the page's first select element, which is
// where the form keeps its language switcher.
func (p *Page) SelectFirstOptionByLabel(ctx context.Context, label string) error {
	return p.SelectByLabel(ctx, "select", label)
}

// WaitIdle polls for document readiness and a quiet network, bounded by
// timeout. Quiescence is approximated from the resource timing buffer since
// the protocol has no direct idle signal.
func (p *Page) WaitIdle(ctx context.Context, timeout time.Duration) error {
	runCtx, cancel := joinContext(p.ctx, ctx)
	defer cancel()
	runCtx, cancelTimeout := context.WithTimeout(runCtx, timeout)
	defer cancelTimeout()

	const quiet = 500 * time.Millisecond
	js := `(() => {
		if (document.readyState !== 'complete') return false;
		const entries = performance.getEntriesByType('resource');
		if (entries.length === 0) return true;
		const last = entries[entries.length - 1];
		return performance.now() - (last.responseEnd || last.startTime) > 500;
	})()`

	for {
		var idle bool
		if err := chromedp.Run(runCtx, chromedp.Evaluate(js, &idle)); err != nil {
			return fmt.Errorf("waiting for idle: %w", err)
		}
		if idle {
			return nil
		}
		select {
		case <-runCtx.Done():
			return runCtx.Err()
		case <-time.After(quiet / 2):
		}
	}
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	runCtx, cancel := joinContext(p.ctx, ctx)
	defer cancel()
	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

func (p *Page) evalBool(ctx context.Context, js, failure string) error {
	runCtx, cancel := joinContext(p.ctx, ctx)
	defer cancel()
	var ok bool
	if err := chromedp.Run(runCtx, chromedp.Evaluate(js, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s", failure)
	}
	return nil
}

// joinContext derives a chromedp-capable context that is also cancelled when
// the caller's context is. chromedp.Run needs the session context's browser
// handle, but cancellation must follow the per-operation context.
func joinContext(session, caller context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(session)
	stop := context.AfterFunc(caller, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
