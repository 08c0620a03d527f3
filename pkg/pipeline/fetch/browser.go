package fetch

import (
	"context"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"

	"paperboy/pkg/serrors"
)

// browserFetcher drives a headless chromium page load for paywalled sources.
// The browser is started on first use and reused afterwards.
type browserFetcher struct {
	mu       sync.Mutex
	endpoint string

	pw      *playwright.Playwright
	browser playwright.Browser
}

func newBrowserFetcher(endpoint string) *browserFetcher {
	return &browserFetcher{endpoint: endpoint}
}

// connect starts (or connects to) the browser. Callers must hold mu.
func (b *browserFetcher) connect() error {
	if b.browser != nil && b.browser.IsConnected() {
		return nil
	}

	if b.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return serrors.Wrap(serrors.ErrUnavailable, err, "could not start playwright")
		}
		b.pw = pw
	}

	var (
		browser playwright.Browser
		err     error
	)
	if b.endpoint != "" {
		browser, err = b.pw.Chromium.Connect(b.endpoint)
	} else {
		browser, err = b.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(true),
		})
	}
	if err != nil {
		return serrors.Wrap(serrors.ErrUnavailable, err, "could not start browser")
	}
	b.browser = browser

	return nil
}

// fetch renders the URL and returns the resulting DOM serialization.
func (b *browserFetcher) fetch(ctx context.Context, url string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.connect(); err != nil {
		return "", err
	}

	page, err := b.browser.NewPage(playwright.BrowserNewPageOptions{
		UserAgent: playwright.String(defaultUserAgent),
	})
	if err != nil {
		return "", serrors.Wrap(serrors.ErrUnavailable, err, "could not open page")
	}
	defer func() {
		_ = page.Close()
	}()

	done := make(chan error, 1)
	var content string
	go func() {
		if _, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateNetworkidle,
		}); err != nil {
			done <- fmt.Errorf("could not load page: %w", err)

			return
		}
		c, err := page.Content()
		if err != nil {
			done <- fmt.Errorf("could not read page content: %w", err)

			return
		}
		content = c
		done <- nil
	}()

	// playwright calls are not context-aware; cancel by closing the page.
	select {
	case <-ctx.Done():
		return "", serrors.Wrap(serrors.ErrTimeout, ctx.Err(), "bypass fetch of %s canceled", url)
	case err := <-done:
		if err != nil {
			return "", serrors.Wrap(serrors.ErrUnavailable, err, "bypass fetch of %s failed", url)
		}
	}

	return content, nil
}

func (b *browserFetcher) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			return fmt.Errorf("could not close browser: %w", err)
		}
		b.browser = nil
	}
	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			return fmt.Errorf("could not stop playwright: %w", err)
		}
		b.pw = nil
	}

	return nil
}
