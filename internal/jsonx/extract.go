// Package jsonx extracts JSON objects from mixed CLI output.
//
// Subprocesses in the refinement loop print human-readable noise (pip
// warnings, progress lines) around the JSON document we actually want.
// The helpers here locate and decode the object without requiring the
// caller to pre-clean the stream.
package jsonx

import (
	"encoding/json"
	"strings"
)

// ExtractObject decodes a JSON object from raw. It first tries the whole
// (trimmed) string, then the substring starting at the first '{'. Returns
// false if neither form is a JSON object; scalars, arrays and null do not
// count as objects.
func ExtractObject(raw string) (map[string]any, bool) {
	b, ok := objectBytes(raw)
	if !ok {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// ExtractInto locates a JSON object in raw the same way ExtractObject does
// and decodes it into v. Returns false when no object is found or the
// object does not decode into v.
func ExtractInto(raw string, v any) bool {
	b, ok := objectBytes(raw)
	if !ok {
		return false
	}
	return json.Unmarshal(b, v) == nil
}

// objectBytes returns the byte range of the JSON object embedded in raw.
func objectBytes(raw string) ([]byte, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}
	if b := []byte(s); isObject(b) {
		return b, true
	}
	i := strings.IndexByte(s, '{')
	if i < 0 {
		return nil, false
	}
	if b := []byte(s[i:]); isObject(b) {
		return b, true
	}
	return nil, false
}

// isObject reports whether b is a complete JSON document whose top-level
// value is an object. Unmarshal of "null" into a map succeeds with a nil
// map, so the nil check is load-bearing.
func isObject(b []byte) bool {
	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil {
		return false
	}
	return obj != nil
}
