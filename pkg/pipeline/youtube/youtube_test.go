package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"paperboy/pkg/serrors"
)

func TestIsVideoHost(t *testing.T) {
	require.True(t, IsVideoHost("www.youtube.com"))
	require.True(t, IsVideoHost("youtu.be"))
	require.False(t, IsVideoHost("example.com"))
	require.False(t, IsVideoHost("notyoutube.com"))
}

func TestVideoID(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ": "dQw4w9WgXcQ",
		"https://youtube.com/watch?v=abc123&t=42":     "abc123",
		"https://youtu.be/dQw4w9WgXcQ":                "dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ":   "dQw4w9WgXcQ",
		"https://www.youtube.com/v/dQw4w9WgXcQ":       "dQw4w9WgXcQ",
		"https://www.youtube.com/feed/subscriptions":  "",
		"https://example.com/watch?v=dQw4w9WgXcQ":     "",
		"https://www.youtube.com/watch":               "",
	}
	for raw, want := range cases {
		require.Equal(t, want, VideoID(raw), "url: %s", raw)
	}
}

func TestResolveRejectsNonVideoURL(t *testing.T) {
	c := New(http.DefaultClient)

	_, err := c.Resolve(context.Background(), "https://example.com/story")
	require.ErrorIs(t, err, serrors.ErrBadRequest)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(srv.Client())
	c.baseURL = srv.URL

	return c
}

func TestResolveAssemblesTranscript(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "oembed") {
			_, _ = w.Write([]byte(`{"title":"A Video","author_name":"A Channel"}`))

			return
		}
		_, _ = w.Write([]byte(`<?xml version="1.0"?><transcript>` +
			`<text start="0">[Music]</text>` +
			`<text start="1">hello &amp; welcome</text>` +
			`<text start="2">  to the show  </text>` +
			`</transcript>`))
	})

	v, err := c.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	require.Equal(t, "dQw4w9WgXcQ", v.ID)
	require.Equal(t, "A Video", v.Title)
	require.Equal(t, "A Channel", v.Author)
	require.Equal(t, "hello & welcome to the show", v.Transcript,
		"bracketed sound cues are dropped, entities unescaped, whitespace trimmed")
}

func TestResolveWithoutCaptions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "oembed") {
			_, _ = w.Write([]byte(`{"title":"A Video","author_name":"A Channel"}`))

			return
		}
		// youtube answers captionless videos with an empty 200 body
	})

	_, err := c.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.ErrorIs(t, err, serrors.ErrNotFound)
}
