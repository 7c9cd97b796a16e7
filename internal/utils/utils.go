// Package utils holds URL helpers shared by the crawler, the providers and
// the campaign handlers.
package utils

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

var (
	ErrEmptyURL    = errors.New("empty url")
	ErrMissingHost = errors.New("missing host")
)

type URLTools struct {
	URL *url.URL
}

func NewURLTools(raw string) (*URLTools, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse url %s: %w", raw, err)
	}

	t := &URLTools{URL: u}
	t.normalize()
	return t, nil
}

func (u *URLTools) normalize() {
	u.URL.Fragment = ""
	u.URL.Scheme = strings.ToLower(u.URL.Scheme)
	u.URL.Host = strings.ToLower(u.URL.Host)

	if (u.URL.Scheme == "http" && strings.HasSuffix(u.URL.Host, ":80")) ||
		(u.URL.Scheme == "https" && strings.HasSuffix(u.URL.Host, ":443")) {
		u.URL.Host, _, _ = strings.Cut(u.URL.Host, ":")
	}

	u.URL.Path = strings.TrimRight(u.URL.Path, "/")
}

// SameSite reports whether target is on the same host, ignoring a leading
// "www." on either side.
func (u *URLTools) SameSite(target *URLTools) bool {
	return bareHost(u.URL.Hostname()) == bareHost(target.URL.Hostname())
}

// Resolve resolves ref against u and returns an absolute, normalized URL.
// Non-http(s) references (mailto:, javascript:, tel:) are rejected.
func (u *URLTools) Resolve(ref string) (*URLTools, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return nil, ErrEmptyURL
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse reference %s: %w", ref, err)
	}
	abs := u.URL.ResolveReference(parsed)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", abs.Scheme)
	}
	out := &URLTools{URL: abs}
	out.normalize()
	return out, nil
}

// String renders the URL, using "/" for an empty path on the site root.
func (u *URLTools) String() string {
	return u.URL.String()
}

// NormalizeDomain reduces user input such as "https://WWW.Example.com/path"
// to the host the audit provider expects ("www.example.com").
func NormalizeDomain(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("couldn't parse domain %s: %w", raw, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", ErrMissingHost
	}
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		host = puny
	}
	if port := u.Port(); port != "" && port != "80" && port != "443" {
		host = net.JoinHostPort(host, port)
	}
	return host, nil
}

// SiteRoot returns the crawl start URL for a domain. Input that already
// carries a scheme keeps it; bare hosts default to https.
func SiteRoot(domain string) (string, error) {
	domain = strings.TrimSpace(domain)
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		u, err := NewURLTools(domain)
		if err != nil {
			return "", err
		}
		if u.URL.Host == "" {
			return "", ErrMissingHost
		}
		return u.URL.Scheme + "://" + u.URL.Host + "/", nil
	}
	host, err := NormalizeDomain(domain)
	if err != nil {
		return "", err
	}
	return "https://" + host + "/", nil
}

func bareHost(h string) string {
	return strings.TrimPrefix(strings.ToLower(h), "www.")
}

// CanonicalizeOptions controls optional canonicalization policies.
type CanonicalizeOptions struct {
	DropTrackingParams bool   // remove utm_*, gclid, fbclid, mc_cid, mc_eid
	DefaultScheme      string // assumed for schemeless input; empty means scheme is required
}

var trackingParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "utm_term": {}, "utm_content": {},
	"gclid": {}, "fbclid": {}, "mc_cid": {}, "mc_eid": {},
}

// Canonicalize returns a deterministic key for a page URL. Two URLs that a
// crawler should treat as the same page map to the same string: /a and /a/
// are one page, query keys are sorted and the fragment is dropped.
func Canonicalize(raw string, opts CanonicalizeOptions) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyURL
	}
	if opts.DefaultScheme != "" && !strings.Contains(raw, "://") {
		raw = opts.DefaultScheme + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("canonicalize %q: %w", raw, ErrMissingHost)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		host = puny
	}
	port := u.Port()
	switch {
	case port == "", u.Scheme == "http" && port == "80", u.Scheme == "https" && port == "443":
		u.Host = host
	default:
		u.Host = net.JoinHostPort(host, port)
	}
	u.User = nil
	u.Fragment = ""

	p := path.Clean(u.Path)
	if p == "." {
		p = "/"
	}
	u.Path = p

	q := u.Query()
	if opts.DropTrackingParams {
		for k := range q {
			if _, ok := trackingParams[strings.ToLower(k)]; ok {
				q.Del(k)
			}
		}
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := url.Values{}
	for _, k := range keys {
		vs := q[k]
		sort.Strings(vs)
		for _, v := range vs {
			ordered.Add(k, v)
		}
	}
	u.RawQuery = ordered.Encode()

	return u.String(), nil
}
