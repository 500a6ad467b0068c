// Package scrape collects current offers from supermarket websites with a
// headless Chrome driven by Rod. Each store has its own Scraper; failures in
// one store never abort the others.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/mhaberkorn/sparfuchs/offer"
)

// Scraper collects the raw offer rows of one store for one region.
type Scraper interface {
	// Store returns the canonical store name the scraper writes into its rows.
	Store() string

	// Scrape navigates the store's offer pages for the given region code and
	// returns the raw rows it found. Rows are unvalidated; normalization
	// happens downstream.
	Scrape(ctx context.Context, region string) ([]offer.RawRow, error)
}

// Config configures the shared browser.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string `json:"remote_url" yaml:"remote_url"`

	// NavTimeout bounds a single page navigation. Default: 30s.
	NavTimeout time.Duration `json:"nav_timeout" yaml:"nav_timeout"`

	// CookieWait bounds the cookie-banner polling loop. Default: 10s.
	CookieWait time.Duration `json:"cookie_wait" yaml:"cookie_wait"`

	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.CookieWait <= 0 {
		c.CookieWait = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser owns one Chrome process shared by all scrapers. Chrome starts
// lazily on the first page request.
type Browser struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewBrowser creates a Browser. Chrome is not launched until the first use.
func NewBrowser(cfg Config) *Browser {
	cfg.defaults()
	return &Browser{cfg: cfg}
}

// Close shuts down Chrome if it was started.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.browser != nil {
		b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
	return nil
}

// open returns a fresh tab navigated to pageURL with the page fully loaded.
// The caller closes the tab.
func (b *Browser) open(ctx context.Context, pageURL string) (*rod.Page, error) {
	browser, err := b.connect()
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("scrape: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, b.cfg.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("scrape: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		b.cfg.Logger.Warn("scrape: wait load timeout", "url", pageURL, "error", err)
	}
	return page, nil
}

func (b *Browser) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("scrape: browser is closed")
	}
	if b.browser != nil {
		return b.browser, nil
	}

	wsURL := b.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("scrape: launch chrome: %w", err)
		}
		wsURL = u
		b.lnch = l
		b.cfg.Logger.Info("scrape: launched local chrome", "url", wsURL)
	} else {
		b.cfg.Logger.Info("scrape: connecting to remote chrome", "url", wsURL)
	}

	browser := rod.New().ControlURL(wsURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("scrape: connect: %w", err)
	}
	b.browser = browser
	return browser, nil
}

// cookieJS clicks the Usercentrics accept button, which lives inside a
// shadow root and is unreachable with plain CSS selectors.
const cookieJS = `() => {
	const root = document.querySelector('#usercentrics-root');
	if (root && root.shadowRoot) {
		const btn = root.shadowRoot.querySelector("button[data-testid='uc-accept-all-button']");
		if (btn) { btn.click(); return true; }
	}
	return false;
}`

// acceptCookies polls for the consent banner until it was dismissed or the
// wait budget runs out. The banner not appearing at all is fine.
func acceptCookies(ctx context.Context, page *rod.Page, wait time.Duration, logger *slog.Logger) {
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		res, err := page.Context(ctx).Eval(cookieJS)
		if err == nil && res.Value.Bool() {
			logger.Debug("scrape: cookie banner accepted")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(250 * time.Millisecond):
		}
	}
	logger.Debug("scrape: no cookie banner within wait budget")
}
