package fetch

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

const (
	DefaultNavTimeout   = 30 * time.Second
	DefaultWaitTimeout  = 10 * time.Second
	DefaultWaitSelector = "#productTitle, h1"
)

// BrowserFetcher renders the page in headless Chromium. Every call launches
// its own browser and closes it before returning, on every path.
type BrowserFetcher struct {
	// Bin is the browser executable; empty lets rod find or download one.
	Bin          string
	NavTimeout   time.Duration
	WaitTimeout  time.Duration
	WaitSelector string
	// Human-ish pause between navigation steps.
	MinDelay time.Duration
	MaxDelay time.Duration
}

func NewBrowserFetcher(bin string) *BrowserFetcher {
	return &BrowserFetcher{
		Bin:          bin,
		NavTimeout:   DefaultNavTimeout,
		WaitTimeout:  DefaultWaitTimeout,
		WaitSelector: DefaultWaitSelector,
		MinDelay:     time.Second,
		MaxDelay:     3 * time.Second,
	}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	l := launcher.New().
		Context(ctx).
		Headless(true).
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-extensions")
	if f.Bin != "" {
		l = l.Bin(f.Bin)
	}

	// Cleanup waits for the browser to exit, so it is only safe once a
	// process is running.
	controlURL, err := l.Launch()
	if err != nil {
		if l.PID() != 0 {
			l.Kill()
		}
		_ = os.RemoveAll(l.Get(flags.UserDataDir))
		return "", fmt.Errorf("launch browser: %w", err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return "", fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			log.Printf("fetch: close browser: %v", err)
		}
	}()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      userAgent,
		AcceptLanguage: acceptLanguage,
	}); err != nil {
		log.Printf("fetch: set user agent: %v", err)
	}

	if err := sleepCtx(ctx, jitter(f.MinDelay, f.MaxDelay)); err != nil {
		return "", err
	}

	navCtx, cancel := context.WithTimeout(ctx, orDefault(f.NavTimeout, DefaultNavTimeout))
	defer cancel()
	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		return "", fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load %s: %w", pageURL, err)
	}

	if err := sleepCtx(ctx, jitter(f.MinDelay, f.MaxDelay)); err != nil {
		return "", err
	}

	// A missing product title is not fatal here: bot checks and odd layouts
	// are the parser's call.
	selector := f.WaitSelector
	if selector == "" {
		selector = DefaultWaitSelector
	}
	waitCtx, waitCancel := context.WithTimeout(ctx, orDefault(f.WaitTimeout, DefaultWaitTimeout))
	defer waitCancel()
	if _, err := page.Context(waitCtx).Element(selector); err != nil {
		log.Printf("fetch: %q not found on %s: %v", selector, pageURL, err)
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("read rendered html: %w", err)
	}
	return html, nil
}

// jitter returns a random duration in [lo, hi].
func jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo+1)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
