package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultBlockedExtensions lists path suffixes that never lead to HTML pages.
var DefaultBlockedExtensions = []string{".jpg", ".jpeg", ".png", ".pdf", ".css", ".js"}

// URLFilter resolves discovered links and keeps only same-site HTML candidates.
// It holds no mutable state and is safe for concurrent use.
type URLFilter struct {
	baseDomain string
	blocked    []string
}

// NewURLFilter builds a filter for the given allowlist substring and extension blocklist.
// A nil blocklist selects DefaultBlockedExtensions.
func NewURLFilter(baseDomain string, blockedExtensions []string) *URLFilter {
	if blockedExtensions == nil {
		blockedExtensions = DefaultBlockedExtensions
	}
	blocked := make([]string, 0, len(blockedExtensions))
	for _, ext := range blockedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		blocked = append(blocked, ext)
	}
	return &URLFilter{
		baseDomain: strings.ToLower(strings.TrimSpace(baseDomain)),
		blocked:    blocked,
	}
}

// Normalize resolves raw against base and returns its canonical form.
// The second result is false when the link is rejected.
func (f *URLFilter) Normalize(raw, base string) (string, bool) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	resolved := canonicalize(baseURL.ResolveReference(ref))
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if host := resolved.Hostname(); host != "" && !strings.Contains(host, f.baseDomain) {
		return "", false
	}
	p := strings.ToLower(resolved.Path)
	for _, ext := range f.blocked {
		if strings.HasSuffix(p, ext) {
			return "", false
		}
	}
	return resolved.String(), true
}

// NormalizeURL canonicalizes an absolute seed URL.
// It lowercases the scheme and host, removes default ports, gives an empty path
// the root "/" and drops the fragment.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q must be absolute", rawURL)
	}
	return canonicalize(u).String(), nil
}

// BaseDomain derives an allowlist substring from a start URL ("www." is trimmed
// so sibling subdomains of the store stay in scope).
func BaseDomain(startURL string) (string, error) {
	u, err := url.Parse(startURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no host", startURL)
	}
	return strings.TrimPrefix(host, "www."), nil
}

func canonicalize(u *url.URL) *url.URL {
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	if u.Host != "" && u.Opaque == "" && u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u
}
