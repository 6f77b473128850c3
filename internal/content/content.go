// Package content defines the uniform result shape returned by every tool.
//
// A tool produces an ordered list of parts. Each part is either text or a
// base64-encoded image with its MIME type. Callers render parts top to bottom,
// so order is significant.
package content

import (
	"encoding/base64"
	"fmt"
)

// Kind identifies the variant of a Part.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Part is one unit of a tool result.
type Part struct {
	Kind Kind `json:"type"`

	// Text is set when Kind is KindText.
	Text string `json:"text,omitempty"`

	// MIMEType and Data are set when Kind is KindImage. Data holds the
	// standard base64 encoding of the image bytes.
	MIMEType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

// Text returns a text part.
func Text(s string) Part {
	return Part{Kind: KindText, Text: s}
}

// Textf returns a formatted text part.
func Textf(format string, args ...any) Part {
	return Text(fmt.Sprintf(format, args...))
}

// Image returns an image part from already-encoded base64 data.
func Image(mimeType, data string) Part {
	return Part{Kind: KindImage, MIMEType: mimeType, Data: data}
}

// ImageBytes returns an image part from raw bytes.
func ImageBytes(mimeType string, b []byte) Part {
	return Image(mimeType, base64.StdEncoding.EncodeToString(b))
}

// Bytes decodes the image payload of the part.
func (p Part) Bytes() ([]byte, error) {
	if p.Kind != KindImage {
		return nil, fmt.Errorf("part is %s, not image", p.Kind)
	}
	return base64.StdEncoding.DecodeString(p.Data)
}

// Result is the ordered output of a tool call.
//
// A well-formed result has at least one part. When IsError is set, the
// parts explain what went wrong.
type Result struct {
	Parts   []Part `json:"content"`
	IsError bool   `json:"isError,omitempty"`
}

// NewResult wraps parts into a successful result.
func NewResult(parts ...Part) Result {
	if len(parts) == 0 {
		parts = []Part{Text("(empty response)")}
	}
	return Result{Parts: parts}
}

// TextResult is a successful single-text result.
func TextResult(s string) Result {
	return NewResult(Text(s))
}

// Errorf returns an error result with a single explanatory text part.
func Errorf(format string, args ...any) Result {
	return Result{Parts: []Part{Textf(format, args...)}, IsError: true}
}

// Images returns the image parts of the result, in order.
func (r Result) Images() []Part {
	var out []Part
	for _, p := range r.Parts {
		if p.Kind == KindImage {
			out = append(out, p)
		}
	}
	return out
}
