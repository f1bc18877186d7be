// Package render fetches rendered page text for destination URLs through a
// headless browsing session.
package render

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Page is the output of one render: the visible body text plus the raw
// markup after scripts have run.
type Page struct {
	BodyText string
	HTML     string
}

// Renderer drives a browsing session for a destination URL. Implementations
// must bound their own navigation waits; exceeding the caller's context
// deadline is a step failure, not a hang.
type Renderer interface {
	Render(ctx context.Context, destinationURL string) (*Page, error)
}

// ChromeRenderer renders pages with a headless Chrome instance. A fresh
// browser context is created per render so a crashed page cannot poison the
// next attempt.
type ChromeRenderer struct {
	logger *zap.Logger
	settle time.Duration
}

// NewChromeRenderer builds a ChromeRenderer. settle is how long to let
// network activity quiet down after the document is ready.
func NewChromeRenderer(logger *zap.Logger, settle time.Duration) *ChromeRenderer {
	if settle <= 0 {
		settle = 2 * time.Second
	}
	return &ChromeRenderer{
		logger: logger,
		settle: settle,
	}
}

// Render navigates to the destination, waits for the body and the settle
// window, and extracts visible text and markup.
func (r *ChromeRenderer) Render(ctx context.Context, destinationURL string) (*Page, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	start := time.Now()

	var bodyText, outerHTML string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(destinationURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(r.settle),
		chromedp.Text("body", &bodyText, chromedp.ByQuery),
		chromedp.OuterHTML("html", &outerHTML, chromedp.ByQuery),
	)
	if err != nil {
		r.logger.Warn("Page render failed",
			zap.String("destination_url", destinationURL),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	r.logger.Info("Page rendered",
		zap.String("destination_url", destinationURL),
		zap.Int("body_text_len", len(bodyText)),
		zap.Duration("elapsed", time.Since(start)))

	return &Page{
		BodyText: strings.TrimSpace(bodyText),
		HTML:     outerHTML,
	}, nil
}
