// Package contenthash produces stable digests of captured evidence bytes.
//
// JSON documents are hashed byte-exact: timestamps, hex strings and every
// other JSON-legal value must survive untouched, so no normalization is
// applied before hashing. HTML and plain text get a whitespace collapse
// first, since markup reflows must not invalidate provenance.
package contenthash

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/lexhr/curator/pkg/canonical"
)

const (
	TypeJSON   = "application/json"
	TypeJSONLD = "application/ld+json"
	TypeHTML   = "text/html"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Hash digests raw evidence bytes. contentType may be empty, in which
// case the payload is sniffed.
func Hash(raw []byte, contentType string) string {
	if isJSON(raw, contentType) {
		return canonical.HashBytes(raw)
	}
	return canonical.HashBytes(normalizeWhitespace(raw))
}

// Sniff guesses a content type from the payload prefix. A document whose
// first non-space byte opens a JSON value is treated as JSON.
func Sniff(raw []byte) string {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return TypeJSON
	}
	return TypeHTML
}

func isJSON(raw []byte, contentType string) bool {
	if contentType == "" {
		return Sniff(raw) == TypeJSON
	}
	return strings.Contains(strings.ToLower(contentType), "json")
}

func normalizeWhitespace(raw []byte) []byte {
	return bytes.TrimSpace(whitespaceRun.ReplaceAll(raw, []byte(" ")))
}
