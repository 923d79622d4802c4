// Package urlutil has the small URL predicates the adapters share.
package urlutil

import (
	"net/url"
	"strings"
)

// IsValid reports whether u is a usable absolute URL: parsed, with a
// scheme, and with at least a host, opaque part or path behind it.
func IsValid(u *url.URL) bool {
	if u == nil || u.Scheme == "" {
		return false
	}
	return u.Host != "" || u.Opaque != "" || u.Path != ""
}

// MatchesIgnoreScheme reports whether a and b address the same resource
// when the scheme is disregarded. Hosts compare case-insensitively,
// every other component must match exactly. Used to decide whether a
// certificate error belongs to the page itself rather than one of its
// subresources.
func MatchesIgnoreScheme(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	if !strings.EqualFold(a.Host, b.Host) {
		return false
	}
	if a.Path != b.Path || a.RawQuery != b.RawQuery || a.Fragment != b.Fragment {
		return false
	}
	return a.User.String() == b.User.String()
}
