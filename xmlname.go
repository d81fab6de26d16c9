package defscan

import "strings"

// StripNamespace returns the local part of an XML tag name, removing a
// leading "{namespace-uri}" qualifier or a "prefix:" qualifier if present.
// Case is preserved; callers lower-case where they need case-insensitive
// comparison. Empty input stays empty.
func StripNamespace(tag string) string {
	if tag == "" {
		return tag
	}
	if strings.HasPrefix(tag, "{") {
		if end := strings.IndexByte(tag, '}'); end != -1 {
			return tag[end+1:]
		}
		return tag
	}
	if idx := strings.IndexByte(tag, ':'); idx != -1 {
		return tag[idx+1:]
	}
	return tag
}
