// Package youtube resolves video IDs, metadata and transcripts for youtube
// URLs without an API key, using the public oEmbed and timedtext endpoints.
package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"

	"paperboy/pkg/serrors"
)

// Hosts enumerates the host names routed to the video pipeline variant.
var Hosts = []string{"www.youtube.com", "youtube.com", "www.youtu.be", "youtu.be"} //nolint: gochecknoglobals

// IsVideoHost reports whether the host belongs to youtube.
func IsVideoHost(host string) bool {
	for _, h := range Hosts {
		if host == h {
			return true
		}
	}

	return false
}

// VideoID extracts the video identifier from the common youtube URL forms
// (watch, short link, embed, /v/). It returns an empty string when the URL
// carries no identifier.
func VideoID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	switch u.Host {
	case "youtu.be", "www.youtu.be":
		return strings.TrimPrefix(u.Path, "/")
	case "youtube.com", "www.youtube.com":
		switch {
		case u.Path == "/watch":
			return u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/embed/"), strings.HasPrefix(u.Path, "/v/"):
			parts := strings.Split(u.Path, "/")
			if len(parts) >= 3 {
				return parts[2]
			}
		}
	}

	return ""
}

// Video holds the metadata and transcript of one youtube video.
type Video struct {
	ID         string
	Title      string
	Author     string
	Transcript string
}

// Client fetches video metadata and transcripts.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New constructs a Client using the provided http.Client.
func New(httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient, baseURL: "https://www.youtube.com"}
}

// Resolve fetches metadata and the English transcript for the video in the
// given URL. A video without captions yields serrors.ErrNotFound.
func (c *Client) Resolve(ctx context.Context, rawURL string) (*Video, error) {
	id := VideoID(rawURL)
	if id == "" {
		return nil, serrors.With(serrors.ErrBadRequest, "no video id in %q", rawURL)
	}

	title, author, err := c.metadata(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	transcript, err := c.transcript(ctx, id)
	if err != nil {
		return nil, err
	}

	return &Video{ID: id, Title: title, Author: author, Transcript: transcript}, nil
}

// metadata resolves title and channel name through the oEmbed endpoint.
func (c *Client) metadata(ctx context.Context, rawURL string) (title, author string, err error) {
	endpoint := c.baseURL + "/oembed?format=json&url=" + url.QueryEscape(rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", fmt.Errorf("could not create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", serrors.Wrap(serrors.ErrUnavailable, err, "could not fetch video metadata")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", "", serrors.With(serrors.ErrUnavailable, "metadata request failed: %s", resp.Status)
	}

	var meta struct {
		Title      string `json:"title"`
		AuthorName string `json:"author_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", "", fmt.Errorf("could not decode metadata: %w", err)
	}

	return meta.Title, meta.AuthorName, nil
}

// timedText mirrors the caption XML returned by the timedtext endpoint.
type timedText struct {
	Texts []struct {
		Body string `xml:",chardata"`
	} `xml:"text"`
}

// transcript fetches the auto or manual English captions for the video.
func (c *Client) transcript(ctx context.Context, id string) (string, error) {
	endpoint := c.baseURL + "/api/timedtext?lang=en&v=" + url.QueryEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("could not create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", serrors.Wrap(serrors.ErrUnavailable, err, "could not fetch transcript")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", serrors.Wrap(serrors.ErrUnavailable, err, "could not read transcript")
	}
	if resp.StatusCode != http.StatusOK || len(body) == 0 {
		return "", serrors.With(serrors.ErrNotFound, "no transcript available for video %s", id)
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("could not parse transcript: %w", err)
	}

	var b strings.Builder
	for _, t := range tt.Texts {
		line := strings.TrimSpace(html.UnescapeString(t.Body))
		if line == "" || strings.HasPrefix(line, "[") {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(line)
	}
	if b.Len() == 0 {
		return "", serrors.With(serrors.ErrNotFound, "empty transcript for video %s", id)
	}

	return b.String(), nil
}
