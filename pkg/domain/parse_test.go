package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"paperboy/pkg/domain"
	"paperboy/pkg/serrors"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"example.com":      "example.com",
		"Example.COM":      "example.com",
		" example.com ":    "example.com",
		"www.example.com":  "example.com",
		"example.com.":     "example.com",
		"news.example.com": "news.example.com",
	}
	for in, want := range cases {
		got, err := domain.Normalize(in)
		require.NoError(t, err, "input: %q", in)
		require.Equal(t, want, got, "input: %q", in)
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "nodots", "two words.com", "a/b.com", "user@host.com"} {
		_, err := domain.Normalize(in)
		require.ErrorIs(t, err, serrors.ErrInvalidDomain, "input: %q", in)
	}
}

func TestFromURL(t *testing.T) {
	got, err := domain.FromURL("https://www.Example.com/story?x=1")
	require.NoError(t, err)
	require.Equal(t, "example.com", got)

	got, err = domain.FromURL("http://news.example.com:8080/a")
	require.NoError(t, err)
	require.Equal(t, "news.example.com", got)
}

func TestFromURLRejectsNonHTTP(t *testing.T) {
	for _, in := range []string{"ftp://example.com/x", "mailto:a@b.com", "example.com/story", "://bad"} {
		_, err := domain.FromURL(in)
		require.ErrorIs(t, err, serrors.ErrInvalidDomain, "input: %q", in)
	}
}

func TestResolve(t *testing.T) {
	cases := map[string]string{
		"example.com":                     "example.com",
		"Example.COM":                     "example.com",
		"https://www.example.com/a?x=1":   "example.com",
		"http://news.example.com:8080/b/": "news.example.com",
	}
	for in, want := range cases {
		got, err := domain.Resolve(in)
		require.NoError(t, err, "input: %q", in)
		require.Equal(t, want, got, "input: %q", in)
	}

	_, err := domain.Resolve("not_a_domain")
	require.ErrorIs(t, err, serrors.ErrInvalidDomain)
}

func TestNewProvisionalPolicy(t *testing.T) {
	p := domain.NewProvisionalPolicy("example.com")
	require.Equal(t, "example.com", p.Domain)
	require.False(t, p.Whitelisted)
	require.False(t, p.PaywallBypass)
	require.Zero(t, p.UsageCount)
}
