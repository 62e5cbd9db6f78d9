package body

import (
	"slices"
	"strings"
)

// HeaderFunc returns the current raw Content-Encoding header value of the
// body's owner. The value may be a single string, a multi-valued header
// ([]string or []any of strings), or nil when the header is absent. It is
// read again on every reactive check, never cached.
type HeaderFunc func() any

// NormalizeEncodings turns a raw header value into the canonical ordered
// list of lowercase encoding tokens. Comma-separated values are split, so
// "gzip, br" and []string{"gzip", "br"} normalize identically.
func NormalizeEncodings(raw any) []string {
	var parts []string
	switch v := raw.(type) {
	case nil:
	case string:
		parts = []string{v}
	case []string:
		parts = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
	}

	var out []string
	for _, p := range parts {
		for _, tok := range strings.Split(p, ",") {
			tok = strings.ToLower(strings.TrimSpace(tok))
			if tok != "" {
				out = append(out, tok)
			}
		}
	}
	return out
}

// encodingsEqual compares specs structurally; order matters because
// encodings apply in sequence.
func encodingsEqual(a, b []string) bool {
	return slices.Equal(a, b)
}
