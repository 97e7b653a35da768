// Package classify decides whether an inbound payload is a usable JPEG image.
//
// Payloads arrive from the message bus in three shapes: raw JPEG bytes, a
// base64-encoded JPEG, or a URL pointing at a JPEG to fetch. Classification is
// a pure function; fetching is side-effecting and lives in Fetcher.
package classify

import (
	"bytes"
	"encoding/base64"
	"strings"
)

// jpegMagic is the JPEG start-of-image marker.
var jpegMagic = []byte{0xFF, 0xD8, 0xFF}

// IsJPEG reports whether the payload starts with the JPEG start-of-image
// marker.
func IsJPEG(payload []byte) bool {
	return len(payload) >= len(jpegMagic) && bytes.Equal(payload[:len(jpegMagic)], jpegMagic)
}

// Classify inspects a payload and returns the decoded JPEG bytes when the
// payload is usable. Checks run in order, first match wins:
//
//  1. Raw JPEG bytes (start-of-image marker).
//  2. Strict base64 whose decoded bytes carry the marker. Invalid characters
//     or incorrect padding reject the payload rather than silently truncating.
//
// Any other payload returns (nil, false). Decode failures are a normal
// negative result, never an error.
func Classify(payload []byte) ([]byte, bool) {
	if len(payload) == 0 {
		return nil, false
	}

	if IsJPEG(payload) {
		return payload, true
	}

	// The decoder skips CR/LF even in strict mode; any byte outside the
	// alphabet must reject, so screen them out first.
	if bytes.ContainsAny(payload, "\r\n") {
		return nil, false
	}

	decoded, err := base64.StdEncoding.Strict().DecodeString(string(payload))
	if err != nil {
		return nil, false
	}
	if IsJPEG(decoded) {
		return decoded, true
	}

	return nil, false
}

// AsURL interprets the payload as text and reports whether it looks like an
// HTTP(S) URL. The returned string is trimmed of surrounding whitespace.
func AsURL(payload []byte) (string, bool) {
	trimmed := strings.TrimSpace(string(payload))
	if len(trimmed) < 4 {
		return "", false
	}
	if !strings.HasPrefix(strings.ToLower(trimmed), "http") {
		return "", false
	}
	return trimmed, true
}
