package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// sectionSuffixes are sub-pages of a match that resolve to the same item.
var sectionSuffixes = []string{
	"/h2h",
	"/odds",
	"/statistics",
	"/lineups",
	"/predictions",
	"/video",
	"/live",
	"/analysis",
}

// HashKey creates a SHA256 hash of a string.
// This is useful for creating consistent, safe keys for Redis.
func HashKey(raw string) string {
	h := sha256.New()
	h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil))
}

// ToAbsoluteURL converts a relative URL to an absolute URL given a base URL.
func ToAbsoluteURL(base *url.URL, relative string) (string, error) {
	relURL, err := url.Parse(relative)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(relURL).String(), nil
}

// NormalizeItemURL drops query, fragment, trailing slashes and one trailing
// section suffix such as /h2h or /odds.
func NormalizeItemURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimRight(strings.TrimSpace(raw), "/")
	}
	u.RawQuery = ""
	u.Fragment = ""
	p := strings.TrimRight(u.Path, "/")
	for _, suffix := range sectionSuffixes {
		if strings.HasSuffix(p, suffix) {
			p = strings.TrimRight(strings.TrimSuffix(p, suffix), "/")
			break
		}
	}
	u.Path = p
	u.RawPath = ""
	return u.String()
}

// ItemIDFromURL returns the last path segment of a normalised item URL.
func ItemIDFromURL(raw string) string {
	u, err := url.Parse(NormalizeItemURL(raw))
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	return parts[len(parts)-1]
}

// SlugFromURL returns the "match-..." path segment without its prefix, or "".
func SlugFromURL(raw string) string {
	u, err := url.Parse(NormalizeItemURL(raw))
	if err != nil {
		return ""
	}
	for _, part := range strings.Split(u.Path, "/") {
		if strings.HasPrefix(part, "match-") {
			return strings.TrimPrefix(part, "match-")
		}
	}
	return ""
}

// JoinPath appends a path suffix to a URL without doubling slashes.
func JoinPath(base, suffix string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(suffix, "/")
}
