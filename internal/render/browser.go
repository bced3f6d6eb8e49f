package render

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/yegors/radar-pi/pkg/logger"
)

// LoadedSelector matches once the page has drawn the record
const LoadedSelector = `body[data-loaded="true"]`

// Browser is a headless browser session
type Browser interface {
	// Load opens url in a width x height viewport and returns once the page
	// reports it is loaded and settle has passed
	Load(ctx context.Context, url string, width, height int, settle time.Duration) error
	// Capture returns a PNG of the current viewport
	Capture(ctx context.Context) ([]byte, error)
	Close() error
}

// BrowserFactory starts browser sessions
type BrowserFactory interface {
	NewBrowser(ctx context.Context) (Browser, error)
}

// ChromeFactory starts headless Chrome through chromedp
type ChromeFactory struct {
	execPath  string
	noSandbox bool
	logger    *logger.Logger
}

// NewChromeFactory creates a factory. An empty execPath lets chromedp find
// the browser.
func NewChromeFactory(execPath string, noSandbox bool, logger *logger.Logger) *ChromeFactory {
	return &ChromeFactory{
		execPath:  execPath,
		noSandbox: noSandbox,
		logger:    logger.Named("render-browser"),
	}
}

// NewBrowser launches the browser. The session outlives ctx; ctx only bounds
// the launch. Callers must Close it.
func (f *ChromeFactory) NewBrowser(ctx context.Context) (Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(Width, Height),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("disable-extensions", true),
	)
	if f.execPath != "" {
		opts = append(opts, chromedp.ExecPath(f.execPath))
	}
	if f.noSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			f.logger.Debug(fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			f.logger.Warn(fmt.Sprintf(format, args...))
		}),
	)

	b := &chromeBrowser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		logger:      f.logger,
	}

	// The first Run allocates the browser and binds its lifetime to the
	// context it is given, so it must be the session context itself
	stop := context.AfterFunc(ctx, browserCancel)
	err := chromedp.Run(browserCtx)
	if !stop() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return b, nil
}

type chromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *logger.Logger
}

// run executes actions on the browser while ctx is live. Cancelling ctx
// aborts the actions but leaves the browser for Close.
func (b *chromeBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(b.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}

func (b *chromeBrowser) Load(ctx context.Context, url string, width, height int, settle time.Duration) error {
	b.logger.Debug("Loading page", logger.String("url", url))
	return b.run(ctx,
		chromedp.EmulateViewport(int64(width), int64(height), chromedp.EmulateScale(1)),
		chromedp.Navigate(url),
		chromedp.WaitVisible(LoadedSelector, chromedp.ByQuery),
		chromedp.Sleep(settle),
	)
}

func (b *chromeBrowser) Capture(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := b.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithFromSurface(true).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Close shuts the browser down and waits for its process to exit
func (b *chromeBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	return err
}
