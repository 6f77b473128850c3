package normalize

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

// DefaultImageMIME is assumed when a payload carries image data without a
// MIME type.
const DefaultImageMIME = "image/png"

var (
	// embeddedDataURI finds image data URIs inside free text.
	embeddedDataURI = regexp.MustCompile(`data:image/[A-Za-z0-9.+-]+;base64,[A-Za-z0-9+/_=-]+`)

	// bareImageURL finds http(s) links that look like images.
	bareImageURL = regexp.MustCompile(`(?i)https?://[^\s"'<>()\[\]]+\.(?:png|jpe?g|gif|webp|bmp)(?:\?[^\s"'<>()\[\]]*)?`)
)

// IsDataURI reports whether s starts with the data: scheme.
func IsDataURI(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "data:")
}

// DecodeDataURI parses data:<mime>[;param...];base64,<payload>.
func DecodeDataURI(uri string) (mimeType string, data []byte, err error) {
	uri = strings.TrimSpace(uri)
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URI")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("data URI has no payload separator")
	}

	params := strings.Split(header, ";")
	if params[len(params)-1] != "base64" {
		return "", nil, fmt.Errorf("data URI is not base64-encoded")
	}
	mimeType = strings.ToLower(params[0])
	if mimeType == "" {
		mimeType = DefaultImageMIME
	}

	data, err = DecodeBase64(payload)
	if err != nil {
		return "", nil, err
	}
	return mimeType, data, nil
}

// EncodeDataURI builds a base64 data URI.
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 accepts standard or URL-safe alphabets, with or without
// padding, ignoring embedded whitespace.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, fmt.Errorf("empty base64 payload")
	}

	trimmed := strings.TrimRight(s, "=")
	for _, enc := range []*base64.Encoding{base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(trimmed); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("invalid base64 payload")
}
