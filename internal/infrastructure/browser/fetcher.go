// Package browser implements the page fetcher on top of a headless Chrome
// session: it loads a social post, clears login overlays, expands truncated
// captions, scrolls comments into existence, and harvests text, metadata,
// comments, and a screenshot in one pass.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"RecipeSnap/internal/config"
	"RecipeSnap/internal/domain"
	"RecipeSnap/internal/infrastructure/credentials"
	"RecipeSnap/internal/platform"
	"RecipeSnap/internal/ports"
)

// removeOverlaysJS deletes dialog/backdrop elements whose text suggests a
// login wall. Overlays reappear after scrolling, so this runs repeatedly.
const removeOverlaysJS = `(() => {
	const hints = /log in|sign up|connectez|inscrivez|continue with|use the app/i;
	const selectors = '[role="dialog"], [role="presentation"], [class*="backdrop" i], [class*="overlay" i]';
	let removed = 0;
	for (const el of document.querySelectorAll(selectors)) {
		const text = (el.innerText || '').slice(0, 500);
		if (hints.test(text) || el.getAttribute('role') === 'presentation') {
			el.remove();
			removed++;
		}
	}
	document.body.style.overflow = 'auto';
	return removed;
})()`

// expandCaptionJS clicks "more"-style controls that unfold truncated captions.
const expandCaptionJS = `(() => {
	const labels = /^(more|…\s*more|plus|voir plus|see more|afficher plus)$/i;
	let clicked = 0;
	for (const el of document.querySelectorAll('button, span[role="button"], div[role="button"]')) {
		const text = (el.innerText || '').trim();
		if (labels.test(text)) {
			el.click();
			clicked++;
		}
	}
	return clicked;
})()`

const scrollDownJS = `window.scrollBy(0, window.innerHeight)`

const scrollTopJS = `window.scrollTo(0, 0)`

// harvestCommentsJS gathers candidate comment texts from containers the
// supported platforms use. Filtering happens on the Go side.
const harvestCommentsJS = `(() => {
	const selectors = [
		'[data-e2e="comment-level-1"]',
		'[data-e2e="comment-item"] p',
		'ul ul span[dir="auto"]',
		'ul li span[dir="auto"]',
	];
	const texts = [];
	for (const selector of selectors) {
		for (const el of document.querySelectorAll(selector)) {
			const text = (el.innerText || '').trim();
			if (text) {
				texts.push(text);
			}
		}
	}
	return texts;
})()`

// Fetcher drives one disposable browser context per request.
type Fetcher struct {
	cfg      config.ScraperConfig
	registry *platform.Registry
	creds    *credentials.Store
	oembed   *oembedClient
	logger   *slog.Logger
}

var _ ports.PageFetcher = (*Fetcher)(nil)

// NewFetcher wires the page fetcher. httpClient serves oEmbed lookups and is
// swappable in tests.
func NewFetcher(cfg config.ScraperConfig, registry *platform.Registry, creds *credentials.Store, httpClient *http.Client, logger *slog.Logger) *Fetcher {
	if registry == nil {
		registry = platform.NewRegistry()
	}
	return &Fetcher{
		cfg:      cfg,
		registry: registry,
		creds:    creds,
		oembed:   newOEmbedClient(httpClient),
		logger:   logger,
	}
}

// FetchPage loads the post and returns everything harvested from it. The
// browser context is released on every exit path.
func (f *Fetcher) FetchPage(ctx context.Context, url string) (*domain.ScrapedPage, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("lang", "en-US"),
		chromedp.WindowSize(1280, 900),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	timeout := f.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	runCtx, cancelTimeout := context.WithTimeout(browserCtx, timeout)
	defer cancelTimeout()

	var (
		html        string
		screenshot  []byte
		rawComments []string
	)

	tasks := chromedp.Tasks{
		f.setCookiesAction(url),
		chromedp.Navigate(url),
		chromedp.Sleep(2 * time.Second),
		chromedp.Evaluate(removeOverlaysJS, nil),
		chromedp.Evaluate(expandCaptionJS, nil),
	}

	iterations := f.cfg.ScrollIterations
	if iterations <= 0 {
		iterations = 3
	}
	for i := 0; i < iterations; i++ {
		tasks = append(tasks,
			chromedp.Evaluate(scrollDownJS, nil),
			chromedp.Sleep(time.Second),
			// Overlays come back once lazy content loads.
			chromedp.Evaluate(removeOverlaysJS, nil),
		)
	}

	tasks = append(tasks,
		chromedp.Evaluate(harvestCommentsJS, &rawComments),
		chromedp.Evaluate(scrollTopJS, nil),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.CaptureScreenshot(&screenshot),
		chromedp.OuterHTML("html", &html),
	)

	if err := chromedp.Run(runCtx, tasks); err != nil {
		return nil, domain.FetchError{URL: url, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, domain.FetchError{URL: url, Err: fmt.Errorf("parse harvested html: %w", err)}
	}

	oembedTitle := f.oembedTitle(ctx, url)

	page := &domain.ScrapedPage{
		RawText:    buildRawText(doc, oembedTitle),
		Comments:   sanitizeComments(rawComments, f.cfg.MaxComments),
		Screenshot: screenshot,
		SourceURL:  url,
		PageTitle:  pageTitle(doc),
	}

	f.debug("page harvested", "url", url,
		"text_len", len(page.RawText),
		"comments", len(page.Comments),
		"screenshot_bytes", len(page.Screenshot),
	)

	return page, nil
}

// setCookiesAction injects the platform's session cookies before navigation.
// Missing credentials are not an error; the page loads anonymously.
func (f *Fetcher) setCookiesAction(url string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if f.creds == nil {
			return nil
		}
		set, err := f.creds.CredentialsFor(url)
		if err != nil || set == nil {
			return nil
		}
		cookies, err := f.creds.Cookies(set)
		if err != nil {
			f.debug("cookie parse failed, continuing anonymously", "url", url, "error", err)
			return nil
		}

		for _, c := range cookies {
			expires := cdp.TimeSinceEpoch(time.Unix(c.Expires, 0))
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				WithExpires(&expires).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

func (f *Fetcher) oembedTitle(ctx context.Context, url string) string {
	p, ok := f.registry.Resolve(url)
	if !ok {
		return ""
	}
	title, err := f.oembed.Title(ctx, p, url)
	if err != nil {
		f.debug("oembed lookup failed", "url", url, "error", err)
		return ""
	}
	return title
}

func (f *Fetcher) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
