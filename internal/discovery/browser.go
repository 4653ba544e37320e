package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// ErrSessionClosed reports that the browser connection is gone and the
// session must be re-initialized.
var ErrSessionClosed = errors.New("browser session closed")

// Browser is the single-tab headless browser the engine drives.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	// Submit types text into the element matched by selector and presses Enter.
	Submit(ctx context.Context, selector, text string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Close() error
}

// LaunchOptions configures a new browser.
type LaunchOptions struct {
	Headless    bool
	UserAgent   string
	BlockImages bool
}

// Launcher starts a browser. LaunchRod is the production launcher.
type Launcher func(ctx context.Context, opts LaunchOptions) (Browser, error)

const (
	navigateTimeout  = 18 * time.Second
	searchBoxTimeout = 5 * time.Second
	acceptLanguage   = "vi-VN,vi;q=0.9,en-US;q=0.8,en;q=0.7"
)

type rodBrowser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
}

// LaunchRod starts a local Chromium with anti-detection flags and opens one
// stealth page.
func LaunchRod(_ context.Context, opts LaunchOptions) (Browser, error) {
	l := launcher.New().
		Headless(opts.Headless).
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-gpu").
		Set("lang", "vi-VN,vi,en-US,en").
		Set("disable-software-rasterizer").
		Set("disable-extensions").
		Set("disable-plugins").
		Set("disable-features", "Translate,ExtensionsToolbarMenu").
		Set("disable-background-networking").
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-notifications").
		Set("disable-default-apps").
		Set("blink-settings", "imagesEnabled=false")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect chromium: %w", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		_ = b.Close()
		l.Cleanup()
		return nil, fmt.Errorf("open stealth page: %w", err)
	}

	rb := &rodBrowser{launcher: l, browser: b, page: page}
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		override := &proto.NetworkSetUserAgentOverride{UserAgent: ua, AcceptLanguage: acceptLanguage}
		if err := page.SetUserAgent(override); err != nil {
			_ = rb.Close()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}
	if opts.BlockImages {
		rb.router = blockImages(page)
	}
	return rb, nil
}

// blockImages fails image and media requests at the network layer.
func blockImages(page *rod.Page) *rod.HijackRouter {
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		switch h.Request.Type() {
		case proto.NetworkResourceTypeImage, proto.NetworkResourceTypeMedia:
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}

func (r *rodBrowser) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, navigateTimeout)
	defer cancel()
	page := r.page.Context(navCtx)
	if err := page.Navigate(url); err != nil {
		return r.wrap("navigate", err)
	}
	if err := page.WaitLoad(); err != nil {
		return r.wrap("wait load", err)
	}
	return nil
}

func (r *rodBrowser) URL(ctx context.Context) (string, error) {
	info, err := r.page.Context(ctx).Info()
	if err != nil {
		return "", r.wrap("page info", err)
	}
	return info.URL, nil
}

func (r *rodBrowser) HTML(ctx context.Context) (string, error) {
	html, err := r.page.Context(ctx).HTML()
	if err != nil {
		return "", r.wrap("capture html", err)
	}
	return html, nil
}

func (r *rodBrowser) Submit(ctx context.Context, selector, text string) error {
	findCtx, cancel := context.WithTimeout(ctx, searchBoxTimeout)
	defer cancel()
	el, err := r.page.Context(findCtx).Element(selector)
	if err != nil {
		return r.wrap("find "+selector, err)
	}
	el = el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return r.wrap("select text", err)
	}
	if err := el.Input(text); err != nil {
		return r.wrap("input text", err)
	}
	if err := el.Type(input.Enter); err != nil {
		return r.wrap("press enter", err)
	}
	return nil
}

func (r *rodBrowser) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	el, err := r.page.Context(waitCtx).Element(selector)
	if err != nil {
		return r.wrap("wait "+selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return r.wrap("wait visible "+selector, err)
	}
	return nil
}

func (r *rodBrowser) Close() error {
	var errs []error
	if r.router != nil {
		errs = append(errs, r.router.Stop())
	}
	if r.browser != nil {
		errs = append(errs, r.browser.Close())
	}
	if r.launcher != nil {
		r.launcher.Cleanup()
	}
	return errors.Join(errs...)
}

func (r *rodBrowser) wrap(op string, err error) error {
	if isDisconnect(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrSessionClosed, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isDisconnect recognizes errors raised after Chromium or its websocket died.
func isDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"use of closed network connection", "connection reset", "websocket", "target closed", "session closed", "broken pipe"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
