package extract

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// DefaultUserAgents is the pool a Browser draws from when none is configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
}

var windowSizes = [][2]int{{1920, 1080}, {1680, 1050}, {1536, 864}, {1440, 900}, {1366, 768}}

// blockSignatures are lower-case fragments of gateway, paywall and bot-check
// pages that stand in for the real document.
var blockSignatures = []string{
	"402 payment required",
	"payment required",
	"access denied",
	"request blocked",
	"cf-error-details",
	"attention required",
}

// Browser renders pages in a fresh headless Chrome per call.
type Browser struct {
	ContainerID string
	LoadTimeout time.Duration
	WaitTimeout time.Duration
	DelayMin    time.Duration
	DelayMax    time.Duration
	UserAgents  []string
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
	Headless bool
	Logger   *slog.Logger
}

// Render loads url, pauses like a reader would, and returns the document once
// the container is present. The browser process is torn down before Render
// returns on every path.
func (b *Browser) Render(ctx context.Context, url string) (string, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ua := pickUserAgent(b.UserAgents)
	size := windowSizes[rand.IntN(len(windowSizes))]

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.UserAgent(ua),
		chromedp.WindowSize(size[0], size[1]),
		chromedp.Flag("headless", b.Headless),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
	)
	if b.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))
	defer cancelTab()

	// Start the browser on the long-lived context. Running the first action
	// under a timeout context would tie the browser's lifetime to it, so the
	// bound cancels the allocator instead.
	if err := startWithin(b.LoadTimeout, cancelAlloc, func() error { return chromedp.Run(tabCtx) }); err != nil {
		return "", fmt.Errorf("start browser: %w", err)
	}

	loadCtx, cancelLoad := context.WithTimeout(tabCtx, b.LoadTimeout)
	err := chromedp.Run(loadCtx, chromedp.Navigate(url))
	cancelLoad()
	if err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}

	delay := humanDelay(b.DelayMin, b.DelayMax)
	logger.Debug("page loaded", "user_agent", ua, "delay", delay)
	if err := chromedp.Run(tabCtx, chromedp.Sleep(delay)); err != nil {
		return "", err
	}

	var page string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &page, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	if sig, blocked := detectBlock(page); blocked {
		return "", fmt.Errorf("%w: matched %q", ErrBlocked, sig)
	}

	waitCtx, cancelWait := context.WithTimeout(tabCtx, b.WaitTimeout)
	err = chromedp.Run(waitCtx, chromedp.WaitReady("#"+b.ContainerID, chromedp.ByQuery))
	cancelWait()
	if err != nil {
		return "", fmt.Errorf("%w: #%s: %v", ErrContainerTimeout, b.ContainerID, err)
	}

	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &page, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return page, nil
}

func pickUserAgent(pool []string) string {
	if len(pool) == 0 {
		pool = DefaultUserAgents
	}
	return pool[rand.IntN(len(pool))]
}

func humanDelay(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)))
}

// startWithin runs start and calls cancel if it has not returned after d.
// A zero d leaves start unbounded.
func startWithin(d time.Duration, cancel context.CancelFunc, start func() error) error {
	if d <= 0 {
		return start()
	}
	fired := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		close(fired)
		cancel()
	})
	err := start()
	if timer.Stop() {
		return err
	}
	<-fired
	if err == nil {
		err = context.Canceled
	}
	return fmt.Errorf("not started within %s: %w", d, err)
}

// detectBlock looks for a block signature in the document title and body.
// The rest of <head> is ignored so scripts and styles cannot match.
func detectBlock(page string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return matchSignature(page)
	}
	text := doc.Find("title").Text()
	if body, err := goquery.OuterHtml(doc.Find("body")); err == nil {
		text += "\n" + body
	}
	return matchSignature(text)
}

func matchSignature(s string) (string, bool) {
	s = strings.ToLower(s)
	for _, sig := range blockSignatures {
		if strings.Contains(s, sig) {
			return sig, true
		}
	}
	return "", false
}
