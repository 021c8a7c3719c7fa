package browser

import (
	"context"
	"time"

	"github.com/ternarybob/herald/internal/common"
)

// Browser is the narrow headless-browser capability the pipeline depends on.
// Implementations are scoped to one extraction batch and closed
// deterministically; browsers are never pooled across jobs.
type Browser interface {
	// NewTab opens a tab with resource blocking and the configured user agent
	// applied.
	NewTab(ctx context.Context) (Tab, error)
	Close() error
}

// Tab is a single page within a browser.
type Tab interface {
	// Navigate loads the URL, waiting up to timeout for the DOM to be ready.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// WaitNetworkIdle blocks until network activity quiets down or timeout.
	WaitNetworkIdle(ctx context.Context, timeout time.Duration) error
	// FinalURL returns the page's current location after any JS redirects.
	FinalURL(ctx context.Context) (string, error)
	// HTML returns the rendered document markup.
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Launcher creates browsers. The chromedp implementation is the production
// path; tests inject fakes.
type Launcher interface {
	Launch(ctx context.Context, config common.BrowserConfig) (Browser, error)
}
