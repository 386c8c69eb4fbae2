package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

var (
	// ErrRenderingUnavailable is returned when no browser could be started.
	ErrRenderingUnavailable = errors.New("rendering engine unavailable")
	// ErrInvalidOptions is returned when page settings cannot be applied.
	ErrInvalidOptions = errors.New("invalid render options")
)

// Engine turns an HTML document into PDF bytes.
type Engine interface {
	RenderPDF(ctx context.Context, html string, settings PageSettings) ([]byte, error)
}

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// ChromeConfig configures the headless Chrome engine.
type ChromeConfig struct {
	// ExecPath overrides the browser binary; empty lets chromedp find one.
	ExecPath string
	// NoSandbox disables the Chrome sandbox, required when running as root
	// inside most containers.
	NoSandbox bool
	// Timeout bounds one render end to end. Zero means no extra bound.
	Timeout time.Duration
}

// networkQuiet is how long the page must go without requests before it
// counts as network idle.
const networkQuiet = 500 * time.Millisecond

// ChromeEngine renders with a headless Chrome started per call. Nothing is
// shared between renders.
type ChromeEngine struct {
	cfg    ChromeConfig
	logger Logger
}

// NewChromeEngine creates a new ChromeEngine.
func NewChromeEngine(cfg ChromeConfig, logger Logger) *ChromeEngine {
	return &ChromeEngine{cfg: cfg, logger: logger}
}

// RenderPDF launches a browser, opens one tab, loads html, waits for the
// requested readiness and prints. The tab is closed before the browser, and
// release failures are logged and otherwise ignored.
func (e *ChromeEngine) RenderPDF(ctx context.Context, html string, s PageSettings) (pdf []byte, err error) {
	paper, ok := paperSizes[s.Format]
	if !ok {
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidOptions, s.Format)
	}
	margins, err := marginsInInches(s.Margins)
	if err != nil {
		return nil, err
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if e.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox, chromedp.Flag("disable-setuid-sandbox", true))
	}
	if e.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(e.cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer func() {
		if cerr := chromedp.Cancel(browserCtx); cerr != nil {
			e.debug("browser close failed", cerr)
		}
		browserCancel()
	}()

	// An empty run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderingUnavailable, err)
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer func() {
		if cerr := chromedp.Cancel(tabCtx); cerr != nil {
			e.debug("tab close failed", cerr)
		}
		tabCancel()
	}()

	err = chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		setContent(html, s.WaitUntil),
		chromedp.ActionFunc(func(ctx context.Context) error {
			params := page.PrintToPDF().
				WithPaperWidth(paper[0]).
				WithPaperHeight(paper[1]).
				WithLandscape(s.Landscape).
				WithPrintBackground(s.PrintBackground).
				WithMarginTop(margins.top).
				WithMarginRight(margins.right).
				WithMarginBottom(margins.bottom).
				WithMarginLeft(margins.left)
			buf, _, err := params.Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return pdf, nil
}

func (e *ChromeEngine) debug(msg string, err error) {
	if e.logger != nil {
		e.logger.Debug(msg, "error", err)
	}
}

type inches struct {
	top, right, bottom, left float64
}

func marginsInInches(m Margins) (inches, error) {
	var out inches
	for _, f := range []struct {
		name string
		in   string
		out  *float64
	}{
		{"marginTop", m.Top, &out.top},
		{"marginRight", m.Right, &out.right},
		{"marginBottom", m.Bottom, &out.bottom},
		{"marginLeft", m.Left, &out.left},
	} {
		v, err := LengthToInches(f.in)
		if err != nil {
			return inches{}, fmt.Errorf("%w: %s: %v", ErrInvalidOptions, f.name, err)
		}
		*f.out = v
	}
	return out, nil
}

// setContent replaces the blank document with html and blocks until the
// readiness condition holds. Listeners are attached before the content is
// written so no event is missed.
func setContent(html string, until Readiness) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return err
		}
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}

		lctx, cancel := context.WithCancel(ctx)
		defer cancel()
		w := newPageWatcher()
		chromedp.ListenTarget(lctx, w.handle)

		if err := page.SetDocumentContent(tree.Frame.ID, html).Do(ctx); err != nil {
			return err
		}

		switch until {
		case ReadyCommit:
			return nil
		case ReadyDOMContentLoaded:
			return wait(ctx, w.domReady)
		case ReadyLoad:
			return wait(ctx, w.loaded)
		default:
			if err := wait(ctx, w.loaded); err != nil {
				return err
			}
			return w.waitNetworkIdle(ctx)
		}
	})
}

func wait(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pageWatcher follows page and network events for one tab.
type pageWatcher struct {
	domReady chan struct{}
	loaded   chan struct{}
	domOnce  sync.Once
	loadOnce sync.Once

	mu           sync.Mutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
}

func newPageWatcher() *pageWatcher {
	return &pageWatcher{
		domReady:     make(chan struct{}),
		loaded:       make(chan struct{}),
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: time.Now(),
	}
}

// handle runs on the chromedp event loop and must not block.
func (w *pageWatcher) handle(ev any) {
	switch ev := ev.(type) {
	case *page.EventDomContentEventFired:
		w.domOnce.Do(func() { close(w.domReady) })
	case *page.EventLoadEventFired:
		w.domOnce.Do(func() { close(w.domReady) })
		w.loadOnce.Do(func() { close(w.loaded) })
	case *network.EventRequestWillBeSent:
		w.mu.Lock()
		w.inflight[ev.RequestID] = struct{}{}
		w.lastActivity = time.Now()
		w.mu.Unlock()
	case *network.EventLoadingFinished:
		w.finish(ev.RequestID)
	case *network.EventLoadingFailed:
		w.finish(ev.RequestID)
	}
}

func (w *pageWatcher) finish(id network.RequestID) {
	w.mu.Lock()
	delete(w.inflight, id)
	w.lastActivity = time.Now()
	w.mu.Unlock()
}

func (w *pageWatcher) idle() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.inflight) == 0 && time.Since(w.lastActivity) >= networkQuiet
}

// waitNetworkIdle returns once no request has been in flight for networkQuiet.
func (w *pageWatcher) waitNetworkIdle(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if w.idle() {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
