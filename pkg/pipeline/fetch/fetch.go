// Package fetch retrieves page source for the pipeline. The ordinary path is
// a plain HTTP GET; the paywall-bypass path renders the page in a headless
// browser and returns the resulting DOM.
package fetch

import (
	"context"
	"io"
	"net/http"
	"strings"

	"paperboy/pkg/serrors"
)

// defaultUserAgent mimics a desktop browser; several publishers refuse
// requests with obvious bot agents.
const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:122.0) Gecko/20100101 Firefox/122.0"

// Fetcher retrieves the HTML source of a URL. bypass selects the alternate
// headless-browser path.
type Fetcher interface {
	Fetch(ctx context.Context, url string, bypass bool) (string, error)
}

// Options configures the HTTP fetcher.
type Options struct {
	// UserAgent overrides the request user agent.
	UserAgent string
	// BrowserEndpoint is the playwright server websocket endpoint for the
	// bypass path; empty launches a local browser on demand.
	BrowserEndpoint string
}

// Client is the production Fetcher: HTTP for the plain path, a lazily started
// headless browser for the bypass path.
type Client struct {
	httpClient *http.Client
	opts       Options
	browser    *browserFetcher
}

// New constructs a Client using the provided http.Client.
func New(httpClient *http.Client, opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	return &Client{
		httpClient: httpClient,
		opts:       opts,
		browser:    newBrowserFetcher(opts.BrowserEndpoint),
	}
}

// Fetch implements Fetcher.
func (c *Client) Fetch(ctx context.Context, url string, bypass bool) (string, error) {
	if bypass {
		return c.browser.fetch(ctx, url)
	}

	return c.get(ctx, url)
}

func (c *Client) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", serrors.Wrap(serrors.ErrBadRequest, err, "could not create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", serrors.Wrap(serrors.ErrUnavailable, err, "could not fetch %s", url)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", serrors.With(serrors.ErrUnavailable, "fetch of %s failed: %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", serrors.Wrap(serrors.ErrUnavailable, err, "could not read %s", url)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "html") {
		return "", serrors.With(serrors.ErrBadRequest, "%s is not an HTML page", url)
	}

	return string(body), nil
}

// Close shuts down the headless browser if one was started.
func (c *Client) Close() error {
	return c.browser.close()
}

// Ensure Client conforms to Fetcher at compile time.
var _ Fetcher = (*Client)(nil)
