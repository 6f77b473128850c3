package normalize

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Shape is one of the response dialects Normalize understands. The set is
// closed: Classify only ever returns the types declared in this file.
type Shape interface {
	shape()
}

// ImagesArray is the OpenRouter image-generation dialect: the message
// carries an images list next to optional plain-string content.
type ImagesArray struct {
	Text   string
	Images []gjson.Result
}

// PartsArray is the OpenAI-style multimodal dialect: content is an array of
// typed parts.
type PartsArray struct {
	Parts []gjson.Result
}

// EmbeddedString is plain-string content that may hide a data URI or an
// image link inside prose.
type EmbeddedString struct {
	Text string
}

// GoogleParts is the Gemini dialect: content (or a candidate) is an object
// holding a parts list with inline_data entries.
type GoogleParts struct {
	Parts []gjson.Result
}

// Unrecognized is everything else. It keeps enough about the payload to
// explain what was received.
type Unrecognized struct {
	Reason      string
	ContentType string
	IsArray     bool
	Keys        []string
}

func (ImagesArray) shape()    {}
func (PartsArray) shape()     {}
func (EmbeddedString) shape() {}
func (GoogleParts) shape()    {}
func (Unrecognized) shape()   {}

// Diagnostic renders the text part returned for an unrecognized payload.
func (u Unrecognized) Diagnostic() string {
	var b strings.Builder
	b.WriteString("Unrecognized response format")
	if u.Reason != "" {
		b.WriteString(": ")
		b.WriteString(u.Reason)
	}
	fmt.Fprintf(&b, " (content type=%s, isArray=%t", u.ContentType, u.IsArray)
	if len(u.Keys) > 0 {
		fmt.Fprintf(&b, ", keys=[%s]", strings.Join(u.Keys, ", "))
	}
	b.WriteString(")")
	return b.String()
}

// Classify decides which dialect payload is written in. The checks run in a
// fixed order and the first match wins:
//
//  1. a non-empty images array on the message (or the response root)
//  2. content that is an array of parts
//  3. content that is a non-blank string
//  4. content, or a Gemini candidate, exposing a parts array
//  5. anything else
func Classify(payload []byte) Shape {
	if !gjson.ValidBytes(payload) {
		return Unrecognized{
			Reason:      fmt.Sprintf("payload is not valid JSON (%d bytes)", len(payload)),
			ContentType: "invalid",
		}
	}
	root := gjson.ParseBytes(payload)
	msg := locateMessage(root)
	body := msg.Get("content")

	images := msg.Get("images")
	if !images.IsArray() || len(images.Array()) == 0 {
		images = root.Get("images")
	}
	if images.IsArray() && len(images.Array()) > 0 {
		text := ""
		if body.Type == gjson.String {
			text = body.String()
		}
		return ImagesArray{Text: text, Images: images.Array()}
	}

	switch {
	case body.IsArray():
		return PartsArray{Parts: body.Array()}
	case body.Type == gjson.String && strings.TrimSpace(body.String()) != "":
		return EmbeddedString{Text: body.String()}
	case body.IsObject() && body.Get("parts").IsArray():
		return GoogleParts{Parts: body.Get("parts").Array()}
	}

	return describe(root, msg, body)
}

// locateMessage finds the object that holds content. OpenAI-compatible
// responses nest it under choices; Gemini responses under candidates.
func locateMessage(root gjson.Result) gjson.Result {
	if m := root.Get("choices.0.message"); m.IsObject() {
		return m
	}
	if m := root.Get("choices.0.delta"); m.IsObject() {
		return m
	}
	if m := root.Get("candidates.0"); m.IsObject() {
		return m
	}
	return root
}

func describe(root, msg, body gjson.Result) Unrecognized {
	u := Unrecognized{
		ContentType: typeName(body),
		IsArray:     body.IsArray(),
	}

	switch {
	case body.IsObject():
		u.Keys = keysOf(body)
	case msg.IsObject():
		u.Keys = keysOf(msg)
	default:
		u.Keys = keysOf(root)
	}

	switch {
	case root.Get("error").Exists() && !root.Get("choices").Exists():
		detail := root.Get("error.message").String()
		if detail == "" {
			detail = root.Get("error").Raw
		}
		u.Reason = "provider returned an error: " + detail
	case body.Type == gjson.String:
		u.Reason = "empty message content"
	}
	return u
}

func typeName(r gjson.Result) string {
	switch {
	case !r.Exists():
		return "missing"
	case r.IsArray():
		return "array"
	case r.IsObject():
		return "object"
	}
	switch r.Type {
	case gjson.Null:
		return "null"
	case gjson.String:
		return "string"
	case gjson.Number:
		return "number"
	case gjson.True, gjson.False:
		return "boolean"
	}
	return "unknown"
}

func keysOf(r gjson.Result) []string {
	if !r.IsObject() {
		return nil
	}
	var keys []string
	r.ForEach(func(k, _ gjson.Result) bool {
		keys = append(keys, k.String())
		return true
	})
	return keys
}
