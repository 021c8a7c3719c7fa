package browser

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/herald/internal/common"
)

// blockedResourceTypes are never fetched in crawl tabs. Skipping images,
// styles and fonts cuts page weight without affecting redirects or markup.
var blockedResourceTypes = map[network.ResourceType]bool{
	network.ResourceTypeImage:      true,
	network.ResourceTypeStylesheet: true,
	network.ResourceTypeFont:       true,
	network.ResourceTypeMedia:      true,
}

// blockedExtensions backstops the resource-type filter for mistyped assets.
var blockedExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".css",
	".woff", ".woff2", ".ttf", ".eot", ".ico",
}

// ChromeLauncher launches headless Chrome instances via chromedp.
type ChromeLauncher struct {
	logger arbor.ILogger
}

func NewChromeLauncher(logger arbor.ILogger) *ChromeLauncher {
	return &ChromeLauncher{logger: logger}
}

// Launch starts one browser process. The caller owns the returned Browser and
// must Close it on every exit path.
func (l *ChromeLauncher) Launch(ctx context.Context, config common.BrowserConfig) (Browser, error) {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(config.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Startup probe so a broken Chrome install fails fast.
	probeCtx, probeCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer probeCancel()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser failed startup probe: %w", err)
	}

	l.logger.Debug().
		Bool("headless", config.Headless).
		Str("user_agent", config.UserAgent).
		Msg("Browser launched")

	return &chromeBrowser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		config:      config,
		logger:      l.logger,
	}, nil
}

type chromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	config      common.BrowserConfig
	logger      arbor.ILogger
	closed      atomic.Bool
}

func (b *chromeBrowser) NewTab(ctx context.Context) (Tab, error) {
	if b.closed.Load() {
		return nil, fmt.Errorf("browser already closed")
	}

	tabCtx, tabCancel := chromedp.NewContext(b.ctx)

	tab := &chromeTab{
		ctx:     tabCtx,
		cancel:  tabCancel,
		logger:  b.logger,
		quietCh: make(chan struct{}, 1),
	}

	if err := chromedp.Run(tabCtx,
		fetch.Enable(),
		emulation.SetUserAgentOverride(b.config.UserAgent),
	); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to prepare tab: %w", err)
	}

	tab.installInterceptor()
	return tab, nil
}

func (b *chromeBrowser) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.cancel()
	b.allocCancel()
	b.logger.Debug().Msg("Browser closed")
	return nil
}

type chromeTab struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   arbor.ILogger
	inflight atomic.Int64
	quietCh  chan struct{}
}

// installInterceptor blocks asset requests and tracks in-flight request
// counts for WaitNetworkIdle.
func (t *chromeTab) installInterceptor() {
	chromedp.ListenTarget(t.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *fetch.EventRequestPaused:
			go t.handlePaused(e)
		case *network.EventRequestWillBeSent:
			t.inflight.Add(1)
		case *network.EventLoadingFinished:
			t.requestDone()
		case *network.EventLoadingFailed:
			t.requestDone()
		}
	})
}

func (t *chromeTab) requestDone() {
	if t.inflight.Add(-1) <= 0 {
		select {
		case t.quietCh <- struct{}{}:
		default:
		}
	}
}

func (t *chromeTab) handlePaused(ev *fetch.EventRequestPaused) {
	c := chromedp.FromContext(t.ctx)
	ectx := cdp.WithExecutor(t.ctx, c.Target)

	if t.shouldBlock(ev) {
		_ = fetch.FailRequest(ev.RequestID, network.ErrorReasonBlockedByClient).Do(ectx)
		return
	}
	_ = fetch.ContinueRequest(ev.RequestID).Do(ectx)
}

func (t *chromeTab) shouldBlock(ev *fetch.EventRequestPaused) bool {
	if blockedResourceTypes[ev.ResourceType] {
		return true
	}
	lower := strings.ToLower(ev.Request.URL)
	if idx := strings.IndexAny(lower, "?#"); idx >= 0 {
		lower = lower[:idx]
	}
	for _, ext := range blockedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func (t *chromeTab) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(navCtx, chromedp.Navigate(url))
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// WaitNetworkIdle waits until outstanding requests drain and stay quiet for
// half a second, or until timeout. Best effort: a noisy page simply times out.
func (t *chromeTab) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if t.inflight.Load() <= 0 {
			quiet := time.NewTimer(500 * time.Millisecond)
			select {
			case <-quiet.C:
				return nil
			case <-t.quietCh:
				quiet.Stop()
			case <-deadline.C:
				quiet.Stop()
				return nil
			case <-ctx.Done():
				quiet.Stop()
				return ctx.Err()
			}
			continue
		}

		select {
		case <-t.quietCh:
		case <-deadline.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (t *chromeTab) FinalURL(ctx context.Context) (string, error) {
	var location string
	runCtx, cancel := context.WithTimeout(t.ctx, 5*time.Second)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Location(&location)); err != nil {
		return "", err
	}
	return location, nil
}

func (t *chromeTab) HTML(ctx context.Context) (string, error) {
	var html string
	runCtx, cancel := context.WithTimeout(t.ctx, 10*time.Second)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", err
	}
	return html, nil
}

func (t *chromeTab) Close() error {
	t.cancel()
	return nil
}
