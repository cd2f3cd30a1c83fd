package crawler

import (
	"regexp"
	"strings"
)

var (
	parenRe   = regexp.MustCompile(`\([^)]*\)`)
	illegalRe = regexp.MustCompile(`[^a-zA-Z0-9.-]`)
)

// Normalizer maps raw CDP-reported device IDs to canonical crawl keys.
// Normalization is pure and idempotent; the normalized key is the only form
// ever stored or compared.
type Normalizer struct {
	// StripDomains lists domain suffixes removed from device IDs, so that
	// "sw1.example.com" and "sw1" collapse to the same key.
	StripDomains []string
}

// Normalize cleans a raw device ID: parenthesized serial decorations and
// illegal characters are removed, the result is lowercased, and configured
// domain suffixes are stripped.
func (n Normalizer) Normalize(raw string) string {
	hostname := parenRe.ReplaceAllString(raw, "")
	hostname = illegalRe.ReplaceAllString(hostname, "")
	hostname = strings.Trim(hostname, ".-")
	hostname = strings.ToLower(hostname)

	for _, domain := range n.StripDomains {
		suffix := "." + strings.ToLower(strings.TrimPrefix(domain, "."))
		if strings.HasSuffix(hostname, suffix) {
			hostname = strings.TrimSuffix(hostname, suffix)
			break
		}
	}
	return hostname
}
