package core

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// CaptureOptions controls how an archived snapshot is rendered.
//
// Rendering goes through a real Chrome/Chromium so that archived pages that
// build themselves with JavaScript get a chance to do so.
type CaptureOptions struct {
	// ChromePath optionally overrides the Chrome/Chromium executable path.
	ChromePath string
	// Headless controls whether Chrome runs without a visible window.
	Headless bool
	// Timeout is the deadline for navigation, rendering and capture.
	// If <= 0, DefaultCaptureTimeout is used.
	Timeout time.Duration
	// WaitSelector optionally waits for a CSS selector to become visible.
	WaitSelector string
	Logger       *slog.Logger
}

// CaptureResult is the rendered state of a snapshot.
type CaptureResult struct {
	// FinalURL is the browser's URL after redirects.
	FinalURL string
	Title    string
	// HTML is the outerHTML of <html>.
	HTML string
}

// CaptureSnapshot loads archiveURL in Chrome and returns the rendered page.
//
// It waits for the network to go idle and for <body> to be ready, then
// reads the final URL, document.title and the <html> outerHTML. A blank
// document.title falls back to the <title> element.
func CaptureSnapshot(ctx context.Context, archiveURL string, opts CaptureOptions) (CaptureResult, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCaptureTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("capturing snapshot", "url", archiveURL, "headless", opts.Headless, "timeout", opts.Timeout)

	allocatorOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocatorOpts = append(allocatorOpts,
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.UserAgent(UserAgent),
	)
	if opts.ChromePath != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ExecPath(opts.ChromePath))
	}
	if opts.Headless {
		allocatorOpts = append(allocatorOpts, chromedp.Headless)
	} else {
		allocatorOpts = append(allocatorOpts, chromedp.Flag("headless", false))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, opts.Timeout)
	defer cancelRun()

	var html, title, finalURL string

	navigateIdle := func(ctx context.Context) error {
		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return err
		}
		idle := make(chan struct{}, 1)
		chromedp.ListenTarget(ctx, func(ev interface{}) {
			if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
				select {
				case idle <- struct{}{}:
				default:
				}
			}
		})
		if err := chromedp.Navigate(archiveURL).Do(ctx); err != nil {
			return err
		}
		select {
		case <-idle:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	actions := []chromedp.Action{
		chromedp.ActionFunc(navigateIdle),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if strings.TrimSpace(opts.WaitSelector) != "" {
		actions = append(actions, chromedp.WaitVisible(opts.WaitSelector, chromedp.ByQuery))
	}
	actions = append(actions,
		chromedp.Sleep(DefaultNetworkIdleDelay),
		chromedp.Location(&finalURL),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return CaptureResult{}, Upstream(MsgUpstreamFailure, err)
	}

	if strings.TrimSpace(title) == "" && strings.TrimSpace(html) != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
			title = strings.TrimSpace(doc.Find("title").First().Text())
		}
	}

	return CaptureResult{FinalURL: finalURL, Title: title, HTML: html}, nil
}
