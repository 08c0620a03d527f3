package domain

import (
	"net/url"
	"strings"

	"paperboy/pkg/serrors"
)

// Normalize canonicalizes a user-supplied domain name: lower-cased, trimmed,
// "www." stripped. It returns ErrInvalidDomain when the result is not a
// plausible registrable name.
func Normalize(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimSuffix(name, ".")
	name = strings.TrimPrefix(name, "www.")

	if name == "" || !strings.Contains(name, ".") ||
		strings.ContainsAny(name, " /\\@:") {
		return "", serrors.With(serrors.ErrInvalidDomain, "%q is not a valid domain", name)
	}

	return name, nil
}

// FromURL extracts the normalized domain of a URL. Policies are keyed on this
// value, so every code path that touches the store goes through here.
func FromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", serrors.Wrap(serrors.ErrInvalidDomain, err, "could not parse %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", serrors.With(serrors.ErrInvalidDomain, "%q is not an http(s) URL", rawURL)
	}

	return Normalize(u.Hostname())
}

// Resolve accepts what a moderator typed, either an absolute URL or a bare
// domain name, and returns the normalized domain.
func Resolve(arg string) (string, error) {
	if dom, err := FromURL(arg); err == nil {
		return dom, nil
	}

	return Normalize(arg)
}
