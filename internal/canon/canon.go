// Package canon turns raw links and titles into stable deduplication keys and
// deterministic mention identifiers.
package canon

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
)

const (
	DefaultTag     = "m"
	maxUnwrapDepth = 3
)

var trackingQueryKeys = map[string]struct{}{
	"mc_cid":  {},
	"mc_eid":  {},
	"ref":     {},
	"ref_src": {},
	"fbclid":  {},
	"gclid":   {},
	"igshid":  {},
}

var hostNoisePrefixes = []string{"www.", "amp."}

// Canonicalize returns the canonical key for an item. A usable http(s) link is
// normalized; an empty link (or "#") falls back to the trimmed title; anything
// else degrades to the trimmed link. It never fails.
func Canonicalize(rawLink, rawTitle string) string {
	link := strings.TrimSpace(rawLink)
	if link == "" || link == "#" {
		return strings.TrimSpace(rawTitle)
	}

	if canonical, ok := normalizeURL(Unwrap(link)); ok {
		return canonical
	}
	return link
}

// Unwrap follows known click-through wrappers (Google Alerts, Meltwater
// notification links) to the article they point at.
func Unwrap(raw string) string {
	current := strings.TrimSpace(raw)
	for depth := 0; depth < maxUnwrapDepth; depth++ {
		next, ok := unwrapOnce(current)
		if !ok || next == current {
			return current
		}
		current = next
	}
	return current
}

func unwrapOnce(raw string) (string, bool) {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", false
	}
	host := strings.ToLower(parsed.Hostname())
	q := parsed.Query()

	var target string
	switch {
	case (host == "google.com" || strings.HasSuffix(host, ".google.com")) && parsed.Path == "/url":
		target = q.Get("q")
		if target == "" {
			target = q.Get("url")
		}
	case strings.EqualFold(host, "t.notifications.meltwater.com"):
		target = q.Get("u")
	default:
		return "", false
	}

	target = strings.TrimSpace(target)
	if target == "" {
		return "", false
	}
	if !hasHTTPScheme(target) {
		if decoded, err := url.QueryUnescape(target); err == nil && hasHTTPScheme(decoded) {
			target = decoded
		}
	}
	if !hasHTTPScheme(target) {
		return "", false
	}
	return target, true
}

func normalizeURL(raw string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	host := NormalizeHost(parsed.Hostname())
	if host == "" {
		return "", false
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	parsed.Scheme = scheme
	if port := parsed.Port(); port != "" {
		defaultPort := (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
		if !defaultPort {
			host = host + ":" + port
		}
	}
	parsed.Host = host
	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.ForceQuery = false

	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.RawPath = strings.TrimRight(parsed.RawPath, "/")

	parsed.RawQuery = cleanQuery(parsed.RawQuery)

	return parsed.String(), true
}

// cleanQuery drops tracking parameters and sorts what is left. Segments are
// kept verbatim, including ones url.ParseQuery would reject (";" separators,
// bad escapes), so distinct links never collapse onto one key.
func cleanQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	var kept []string
	for _, segment := range strings.Split(rawQuery, "&") {
		if segment == "" || isTrackingParam(segment) {
			continue
		}
		kept = append(kept, segment)
	}
	sort.Strings(kept)
	return strings.Join(kept, "&")
}

func isTrackingParam(segment string) bool {
	key, _, _ := strings.Cut(segment, "=")
	if unescaped, err := url.QueryUnescape(key); err == nil {
		key = unescaped
	}
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	_, ok := trackingQueryKeys[key]
	return ok
}

// NormalizeHost lower-cases a host and strips "www." / "amp." prefixes.
func NormalizeHost(host string) string {
	h := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	for {
		stripped := false
		for _, prefix := range hostNoisePrefixes {
			rest, ok := strings.CutPrefix(h, prefix)
			if ok && strings.Contains(rest, ".") {
				h = rest
				stripped = true
			}
		}
		if !stripped {
			return h
		}
	}
}

// Host returns the normalized host of a URL-shaped key, or "" when the key is
// a title fallback or otherwise not a URL.
func Host(key string) string {
	trimmed := strings.TrimSpace(key)
	if !hasHTTPScheme(trimmed) {
		return ""
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}
	return NormalizeHost(parsed.Hostname())
}

// DisplaySource is the human-facing source name: the link host, or fallback
// when the link has none.
func DisplaySource(link, fallback string) string {
	if host := Host(Unwrap(link)); host != "" {
		return host
	}
	return strings.TrimSpace(fallback)
}

// IsURLKey reports whether key came from a link rather than the title fallback.
func IsURLKey(key string) bool {
	return hasHTTPScheme(strings.TrimSpace(key))
}

// LedgerKey is the form stored in the seen sets. Title fallbacks are compared
// case-insensitively; URL keys are already canonical.
func LedgerKey(key string) string {
	trimmed := strings.TrimSpace(key)
	if IsURLKey(trimmed) {
		return trimmed
	}
	return strings.ToLower(trimmed)
}

// ID derives the mention identifier from a canonical key. The hash is the
// 32-bit polynomial h = h*31 + c over UTF-16 code units, so identifiers written
// by earlier collectors stay valid.
func ID(tag, key string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		tag = DefaultTag
	}

	var h uint32
	for _, unit := range utf16.Encode([]rune(key)) {
		h = h*31 + uint32(unit)
	}
	return tag + "_" + strconv.FormatUint(uint64(h), 16)
}

func hasHTTPScheme(value string) bool {
	lower := strings.ToLower(value)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
