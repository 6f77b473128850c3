// Package conversation holds the chat message model sent to the provider
// and the token-budget truncation applied before each chat call.
package conversation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Roles accepted by the chat endpoint.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Part types inside multimodal content.
const (
	PartText     = "text"
	PartImageURL = "image_url"
)

// ImageURL references an image by http(s) URL or data URI.
type ImageURL struct {
	URL string `json:"url"`
}

// Part is one element of multimodal message content.
type Part struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// TextPart returns a text content part.
func TextPart(s string) Part {
	return Part{Type: PartText, Text: s}
}

// ImagePart returns an image_url content part.
func ImagePart(url string) Part {
	return Part{Type: PartImageURL, ImageURL: &ImageURL{URL: url}}
}

// Message is a single chat message. Content is either plain text or an
// ordered list of parts; exactly one of Text or Parts is meaningful,
// selected by Parts being non-nil.
type Message struct {
	Role  string
	Text  string
	Parts []Part
}

// NewText returns a plain-text message.
func NewText(role, text string) Message {
	return Message{Role: role, Text: text}
}

// NewMultimodal returns a message with part-list content.
func NewMultimodal(role string, parts ...Part) Message {
	if parts == nil {
		parts = []Part{}
	}
	return Message{Role: role, Parts: parts}
}

// IsMultimodal reports whether the content is a part list.
func (m Message) IsMultimodal() bool {
	return m.Parts != nil
}

type wireMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// MarshalJSON emits the OpenAI-compatible {role, content} shape.
func (m Message) MarshalJSON() ([]byte, error) {
	var (
		raw []byte
		err error
	)
	if m.IsMultimodal() {
		raw, err = json.Marshal(m.Parts)
	} else {
		raw, err = json.Marshal(m.Text)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMessage{Role: m.Role, Content: raw})
}

// UnmarshalJSON accepts content as a string, a part array or null.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.Role = w.Role
	m.Text = ""
	m.Parts = nil

	content := bytes.TrimSpace(w.Content)
	switch {
	case len(content) == 0 || bytes.Equal(content, []byte("null")):
		return nil
	case content[0] == '"':
		return json.Unmarshal(content, &m.Text)
	case content[0] == '[':
		var parts []Part
		if err := json.Unmarshal(content, &parts); err != nil {
			return fmt.Errorf("invalid content parts: %w", err)
		}
		if parts == nil {
			parts = []Part{}
		}
		m.Parts = parts
		return nil
	default:
		return fmt.Errorf("content must be a string or an array of parts")
	}
}

// Validate checks the role and that content is present.
func (m Message) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant:
	default:
		return fmt.Errorf("invalid role %q", m.Role)
	}
	if m.IsMultimodal() {
		for i, p := range m.Parts {
			switch p.Type {
			case PartText:
			case PartImageURL:
				if p.ImageURL == nil || p.ImageURL.URL == "" {
					return fmt.Errorf("part %d: image_url requires a url", i)
				}
			default:
				return fmt.Errorf("part %d: unsupported type %q", i, p.Type)
			}
		}
	}
	return nil
}
