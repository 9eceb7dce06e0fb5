// Package browser implements a query.Driver on a headless Chrome tab
// driven through go-rod. It owns the browser lifecycle and a reusable page
// pool; each Acquire hands out a tab for exclusive use by one query run.
package browser

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/use-agent/pagequery/config"
	"github.com/use-agent/pagequery/query"
)

// Browser manages the global browser lifecycle and the page pool.
// It is safe for concurrent use.
type Browser struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	cfg         config.BrowserConfig
	runnerCfg   config.RunnerConfig
	activePages atomic.Int32
	startTime   time.Time
}

// PoolStats is a snapshot of page pool utilisation.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}

// New launches a headless browser and initialises the reusable page pool.
func New(cfg config.BrowserConfig, runnerCfg config.RunnerConfig) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, err
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, err
	}

	pool := rod.NewPagePool(cfg.MaxPages)
	slog.Info("page pool created", "maxPages", cfg.MaxPages)

	return &Browser{
		browser:   browser,
		pagePool:  pool,
		cfg:       cfg,
		runnerCfg: runnerCfg,
		startTime: time.Now(),
	}, nil
}

// Acquire borrows a tab from the pool, wraps it as a query.Driver, and
// returns a release func that resets the tab and hands it back. The
// returned driver is exclusively owned until release is called.
func (b *Browser) Acquire(ctx context.Context) (query.Driver, func(), error) {
	b.activePages.Add(1)

	page, err := b.pagePool.Get(func() (*rod.Page, error) {
		return b.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		b.activePages.Add(-1)
		return nil, nil, err
	}

	if b.cfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	drv := newPage(page.Context(ctx), b.runnerCfg)
	if err := drv.mountHijack(b.cfg.BlockedResourceTypes); err != nil {
		slog.Warn("hijack mount failed, continuing without interception", "error", err)
	}

	release := func() {
		drv.stopHijack()
		// The run's context may already be expired; use the original
		// page reference for cleanup.
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		b.pagePool.Put(page)
		b.activePages.Add(-1)
	}
	return drv, release, nil
}

// Stats returns a snapshot of the pool's current state.
func (b *Browser) Stats() PoolStats {
	return PoolStats{
		MaxPages:    b.cfg.MaxPages,
		ActivePages: int(b.activePages.Load()),
	}
}

// Close drains the page pool and kills the browser process. Call this on
// graceful shutdown to prevent zombie Chrome processes.
func (b *Browser) Close() {
	slog.Info("browser shutting down: draining page pool")
	b.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	slog.Info("browser shutting down: closing browser")
	b.browser.MustClose()
	slog.Info("browser shutdown complete")
}
