// File: internal/browser/capture.go
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/videx-autofill/internal/formdriver"
)

// DownloadEventStrategy captures the exported document by arming the
// browser's download machinery before the trigger fires, then waiting for
// the completion event. This is the preferred path: it works regardless of
// how the page initiates the download.
type DownloadEventStrategy struct {
	session *Session
	timeout time.Duration
	logger  *zap.Logger
}

func NewDownloadEventStrategy(session *Session, timeout time.Duration, logger *zap.Logger) *DownloadEventStrategy {
	return &DownloadEventStrategy{
		session: session,
		timeout: timeout,
		logger:  logger.Named("capture.download"),
	}
}

func (s *DownloadEventStrategy) Name() string { return "download-event" }

func (s *DownloadEventStrategy) Capture(ctx context.Context, trigger func(context.Context) error) ([]byte, error) {
	dir := s.session.DownloadDir()

	completed := make(chan string, 1)
	chromedp.ListenTarget(s.session.Context(), func(ev any) {
		if p, ok := ev.(*cdpbrowser.EventDownloadProgress); ok && p.State == cdpbrowser.DownloadProgressStateCompleted {
			select {
			case completed <- p.GUID:
			default:
			}
		}
	})

	err := chromedp.Run(s.session.Context(),
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(dir).
			WithEventsEnabled(true),
	)
	if err != nil {
		return nil, fmt.Errorf("arming download behavior: %w", err)
	}

	if err := trigger(ctx); err != nil {
		return nil, err
	}

	select {
	case guid := <-completed:
		path := filepath.Join(dir, guid)
		s.logger.Debug("Download completed", zap.String("path", path))
		return os.ReadFile(path)
	case <-time.After(s.timeout):
		return nil, formdriver.ErrNotCaptured
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// NewTabBlobStrategy handles the page opening the document in a new tab as a
// blob or direct PDF URL: it attaches to the tab and pulls the bytes out with
// an injected fetch.
type NewTabBlobStrategy struct {
	session *Session
	timeout time.Duration
	logger  *zap.Logger
}

func NewNewTabBlobStrategy(session *Session, timeout time.Duration, logger *zap.Logger) *NewTabBlobStrategy {
	return &NewTabBlobStrategy{
		session: session,
		timeout: timeout,
		logger:  logger.Named("capture.newtab"),
	}
}

func (s *NewTabBlobStrategy) Name() string { return "new-tab-blob" }

// fetchBase64JS reads the tab's own URL and returns the body base64-encoded.
// Chunked so String.fromCharCode never sees an oversized argument list.
const fetchBase64JS = `fetch(window.location.href)
	.then(r => r.arrayBuffer())
	.then(buf => {
		const bytes = new Uint8Array(buf);
		let binary = '';
		const chunk = 0x8000;
		for (let i = 0; i < bytes.length; i += chunk) {
			binary += String.fromCharCode.apply(null, bytes.subarray(i, i + chunk));
		}
		return btoa(binary);
	})`

func (s *NewTabBlobStrategy) Capture(ctx context.Context, trigger func(context.Context) error) ([]byte, error) {
	newTab := chromedp.WaitNewTarget(s.session.Context(), func(info *target.Info) bool {
		return info.OpenerID != ""
	})

	if err := trigger(ctx); err != nil {
		return nil, err
	}

	var tabID target.ID
	select {
	case tabID = <-newTab:
	case <-time.After(s.timeout):
		return nil, formdriver.ErrNotCaptured
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	tabCtx, cancel := chromedp.NewContext(s.session.Context(), chromedp.WithTargetID(tabID))
	defer cancel()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, s.timeout)
	defer cancelTimeout()

	var url string
	if err := chromedp.Run(tabCtx, chromedp.Location(&url)); err != nil {
		return nil, fmt.Errorf("reading new tab location: %w", err)
	}
	if !strings.Contains(url, "blob:") && !strings.Contains(strings.ToLower(url), ".pdf") {
		s.logger.Debug("New tab does not look like a document", zap.String("url", url))
		return nil, formdriver.ErrNotCaptured
	}

	var encoded string
	err := chromedp.Run(tabCtx, chromedp.Evaluate(fetchBase64JS, &encoded,
		func(p *cdpruntime.EvaluateParams) *cdpruntime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
	if err != nil {
		return nil, fmt.Errorf("fetching document from new tab: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding document bytes: %w", err)
	}
	if len(data) == 0 {
		return nil, formdriver.ErrNotCaptured
	}
	s.logger.Debug("Captured document from new tab", zap.String("url", url), zap.Int("bytes", len(data)))
	return data, nil
}
