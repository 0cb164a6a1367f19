package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/amishk599/internradar/internal/model"
)

// Ensure BrowserFetcher implements model.Fetcher.
var _ model.Fetcher = (*BrowserFetcher)(nil)

// BrowserFetcher renders pages in a headless Chromium so script-populated
// listings are present in the returned HTML. The browser is started lazily on
// the first Fetch and shared by every source until Close.
type BrowserFetcher struct {
	mu         sync.Mutex
	browser    *rod.Browser
	process    browserProcess
	launch     func() (string, browserProcess, error)
	bin        string
	controlURL string
	headless   bool
	timeout    time.Duration
	settle     time.Duration
	logger     *slog.Logger
}

// browserProcess is a Chromium started by this fetcher.
type browserProcess interface {
	Kill()
	Cleanup()
}

// BrowserOptions configures a BrowserFetcher.
type BrowserOptions struct {
	Bin        string // chromium binary; empty lets the launcher find or download one
	ControlURL string // DevTools URL of an already running browser
	Headless   bool
	Timeout    time.Duration // per-call bound covering navigation, load and settle
	Settle     time.Duration // fixed wait after load for async content
}

// NewBrowserFetcher creates a rendering fetcher. No browser is started until
// the first Fetch.
func NewBrowserFetcher(opts BrowserOptions, logger *slog.Logger) *BrowserFetcher {
	f := &BrowserFetcher{
		bin:        opts.Bin,
		controlURL: opts.ControlURL,
		headless:   opts.Headless,
		timeout:    opts.Timeout,
		settle:     opts.Settle,
		logger:     logger,
	}
	f.launch = f.launchLocal
	return f
}

// Fetch navigates a fresh tab to url, waits for load plus the settle
// duration, and returns the rendered document.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (model.Page, error) {
	browser, err := f.connect()
	if err != nil {
		return model.Page{}, &model.FetchError{Kind: model.FetchPermanent, URL: url, Err: err}
	}

	reqCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	page, err := browser.Context(reqCtx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return model.Page{}, f.classify(ctx, url, fmt.Errorf("open tab: %w", err))
	}
	defer func() {
		if err := page.Context(context.Background()).Close(); err != nil {
			f.logger.Debug("closing tab failed", "url", url, "error", err)
		}
	}()

	var resp proto.NetworkResponseReceived
	waitResponse := page.WaitEvent(&resp)
	if err := page.Navigate(url); err != nil {
		return model.Page{}, f.classify(ctx, url, fmt.Errorf("navigate: %w", err))
	}
	waitResponse()

	if resp.Response != nil && resp.Response.Status >= 400 {
		status := resp.Response.Status
		return model.Page{}, &model.FetchError{
			Kind:       model.ClassifyStatus(status),
			URL:        url,
			StatusCode: status,
		}
	}

	if err := page.WaitLoad(); err != nil {
		return model.Page{}, f.classify(ctx, url, fmt.Errorf("wait load: %w", err))
	}
	if err := sleepCtx(reqCtx, f.settle); err != nil {
		return model.Page{}, f.classify(ctx, url, fmt.Errorf("settle: %w", err))
	}

	html, err := page.HTML()
	if err != nil {
		return model.Page{}, f.classify(ctx, url, fmt.Errorf("read document: %w", err))
	}

	finalURL := url
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	return model.Page{URL: finalURL, Body: []byte(html)}, nil
}

// Close shuts the shared browser down. Safe to call when it was never started.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	if f.browser != nil {
		err = f.browser.Close()
		f.browser = nil
	}
	if f.process != nil {
		f.process.Cleanup()
		f.process = nil
	}
	return err
}

func (f *BrowserFetcher) connect() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return f.browser, nil
	}

	controlURL := f.controlURL
	var proc browserProcess
	if controlURL == "" {
		u, p, err := f.launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL, proc = u, p
		f.logger.Info("browser launched", "headless", f.headless)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		// Nothing owns the process yet, so it is stopped here.
		if proc != nil {
			proc.Kill()
			proc.Cleanup()
		}
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	f.browser = browser
	f.process = proc
	return browser, nil
}

func (f *BrowserFetcher) launchLocal() (string, browserProcess, error) {
	l := launcher.New().Headless(f.headless)
	if f.bin != "" {
		l = l.Bin(f.bin)
	}
	u, err := l.Launch()
	if err != nil {
		return "", nil, err
	}
	return u, l, nil
}

// classify turns a rendering error into a transient FetchError unless the
// caller's own context ended, in which case the context error is returned.
func (f *BrowserFetcher) classify(ctx context.Context, url string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("fetch %s: %w", url, ctx.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w (timeout %v)", err, f.timeout)
	}
	return &model.FetchError{Kind: model.FetchTransient, URL: url, Err: err}
}
