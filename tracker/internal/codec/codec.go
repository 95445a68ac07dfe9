// Package codec converts between arbitrary Unicode text and the byte-string
// form the storage transport requires. The base64 layer only accepts input
// in the byte range 0-255, so text is first flattened to its UTF-8 bytes,
// each carried as one code unit.
package codec

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Binary is a byte-string: every rune is a single code unit in 0..0xFF.
type Binary string

// Encode flattens text to its UTF-8 bytes, one rune per byte.
func Encode(text string) Binary {
	var b strings.Builder
	b.Grow(len(text) * 2)
	for i := 0; i < len(text); i++ {
		b.WriteRune(rune(text[i]))
	}
	return Binary(b.String())
}

// Decode recovers the text carried by bin. It tries a direct UTF-8
// reinterpretation first, then a percent-escape decode, and returns bin
// unchanged when both fail. It never fails.
func Decode(bin Binary) string {
	if s, ok := decodeDirect(bin); ok {
		return s
	}
	if s, ok := decodeEscaped(bin); ok {
		return s
	}
	return string(bin)
}

// EncodeASCII base64-encodes a byte-string. Code units above 0xFF are
// rejected: they cannot come out of Encode.
func EncodeASCII(bin Binary) (string, error) {
	raw, ok := bytesOf(bin)
	if !ok {
		return "", fmt.Errorf("codec: code unit out of byte range")
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeASCII decodes standard base64 into a byte-string.
func DecodeASCII(s string) (Binary, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("codec: base64: %w", err)
	}
	var b strings.Builder
	b.Grow(len(raw) * 2)
	for _, c := range raw {
		b.WriteRune(rune(c))
	}
	return Binary(b.String()), nil
}

func decodeDirect(bin Binary) (string, bool) {
	raw, ok := bytesOf(bin)
	if !ok || !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

// decodeEscaped percent-escapes every code unit and unescapes the result.
// Code units beyond the byte range are escaped as their UTF-8 bytes, which
// recovers text that was never flattened in the first place.
func decodeEscaped(bin Binary) (string, bool) {
	var b strings.Builder
	for _, r := range string(bin) {
		if r <= 0xFF {
			fmt.Fprintf(&b, "%%%02x", r)
			continue
		}
		var buf [utf8.UTFMax]byte
		n := utf8.EncodeRune(buf[:], r)
		for _, c := range buf[:n] {
			fmt.Fprintf(&b, "%%%02x", c)
		}
	}
	s, err := url.PathUnescape(b.String())
	if err != nil || !utf8.ValidString(s) {
		return "", false
	}
	return s, true
}

func bytesOf(bin Binary) ([]byte, bool) {
	raw := make([]byte, 0, len(bin))
	for _, r := range string(bin) {
		if r > 0xFF {
			return nil, false
		}
		raw = append(raw, byte(r))
	}
	return raw, true
}
