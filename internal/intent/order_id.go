// Package intent extracts structured hints from free-form customer text.
package intent

import (
	"regexp"
	"strings"
)

const orderPrefix = "ORD"

// orderIDPatterns are tried in order against the upper-cased message; the
// first capture group of the first match is the raw order id.
var orderIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(ORD[-_]?\d{4}[-_]?\d{4,})\b`),
	regexp.MustCompile(`\b(ORD[-_]?\d{4,})\b`),
	regexp.MustCompile(`\bORDER\s*#?\s*(\d{6,})\b`),
	regexp.MustCompile(`#(\d{6,})\b`),
	regexp.MustCompile(`\b(\d{10,})\b`),
}

// ExtractOrderID finds the first order identifier mentioned in text and
// returns it in canonical form (ORD prefix, hyphen separators).
func ExtractOrderID(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	upper := strings.ToUpper(text)
	for _, pattern := range orderIDPatterns {
		match := pattern.FindStringSubmatch(upper)
		if len(match) < 2 || match[1] == "" {
			continue
		}
		return normalizeOrderID(match[1]), true
	}
	return "", false
}

func normalizeOrderID(raw string) string {
	id := strings.ReplaceAll(raw, "_", "-")
	if !strings.HasPrefix(id, orderPrefix) {
		id = orderPrefix + "-" + id
	}
	return id
}
