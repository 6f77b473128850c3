// Package normalize converts chat-completion payloads from any of the
// dialects OpenRouter relays into ordered content parts.
//
// Providers disagree on where generated images live: an images list beside
// the message, typed parts inside content, data URIs inside prose, or
// Gemini-style inline_data. Classify names the dialect and Normalize
// extracts from it.
package normalize

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ironsheep/openrouter-mcp/internal/content"
)

// Normalize turns a chat-completion payload into content parts.
//
// It never fails and never returns an empty slice: payloads it cannot
// interpret produce a single diagnostic text part.
func Normalize(payload []byte) []content.Part {
	shape := Classify(payload)

	var parts []content.Part
	switch s := shape.(type) {
	case ImagesArray:
		parts = fromImagesArray(s)
	case PartsArray:
		parts = fromParts(s.Parts)
	case EmbeddedString:
		parts = fromString(s.Text)
	case GoogleParts:
		parts = fromParts(s.Parts)
	case Unrecognized:
		return []content.Part{content.Text(s.Diagnostic())}
	}

	if len(parts) == 0 {
		root := gjson.ParseBytes(payload)
		msg := locateMessage(root)
		u := describe(root, msg, msg.Get("content"))
		u.Reason = fmt.Sprintf("%s response carried no usable parts", dialect(shape))
		return []content.Part{content.Text(u.Diagnostic())}
	}
	return parts
}

func dialect(s Shape) string {
	switch s.(type) {
	case ImagesArray:
		return "images-array"
	case PartsArray:
		return "parts-array"
	case EmbeddedString:
		return "string"
	case GoogleParts:
		return "google-parts"
	}
	return "unrecognized"
}

// Text concatenates the text parts, for callers that only want prose.
func Text(parts []content.Part) string {
	var texts []string
	for _, p := range parts {
		if p.Kind == content.KindText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func fromImagesArray(s ImagesArray) []content.Part {
	var parts []content.Part
	if strings.TrimSpace(s.Text) != "" {
		parts = append(parts, content.Text(s.Text))
	}
	for _, img := range s.Images {
		url := firstString(img, "image_url.url", "image_url", "url")
		if url == "" {
			continue
		}
		parts = append(parts, fromURL(url))
	}
	return parts
}

// fromParts handles both the OpenAI parts array and the Gemini parts list.
func fromParts(items []gjson.Result) []content.Part {
	var parts []content.Part
	for _, item := range items {
		if p, ok := fromPart(item); ok {
			parts = append(parts, p)
		}
	}
	return parts
}

func fromPart(item gjson.Result) (content.Part, bool) {
	typ := item.Get("type").String()

	if typ == "image_url" || item.Get("image_url").Exists() {
		if url := firstString(item, "image_url.url", "image_url"); url != "" {
			return fromURL(url), true
		}
	}

	for _, key := range []string{"inline_data", "inlineData"} {
		if inline := item.Get(key); inline.IsObject() {
			return fromInline(inline)
		}
	}

	if typ == "image" && item.Get("data").Type == gjson.String {
		return fromInline(item)
	}

	if typ == "" && item.Get("data").Type == gjson.String &&
		(item.Get("mime_type").Exists() || item.Get("mimeType").Exists()) {
		return fromInline(item)
	}

	if text := item.Get("text"); (typ == "text" || typ == "") && text.Type == gjson.String {
		if text.String() == "" {
			return content.Part{}, false
		}
		return content.Text(text.String()), true
	}

	if url := item.Get("url").String(); IsDataURI(url) {
		return fromURL(url), true
	}
	return content.Part{}, false
}

// fromInline decodes {data, mime_type|mimeType} objects.
func fromInline(obj gjson.Result) (content.Part, bool) {
	raw := obj.Get("data").String()
	if raw == "" {
		return content.Part{}, false
	}
	mimeType := firstString(obj, "mime_type", "mimeType")
	if mimeType == "" {
		mimeType = DefaultImageMIME
	}
	data, err := DecodeBase64(raw)
	if err != nil {
		return content.Textf("Image data from the model could not be decoded (%s): %v", mimeType, err), true
	}
	return content.ImageBytes(mimeType, data), true
}

// fromURL decodes data URIs; any other URL is passed through as text.
func fromURL(url string) content.Part {
	if !IsDataURI(url) {
		return content.Text(url)
	}
	mimeType, data, err := DecodeDataURI(url)
	if err != nil {
		return content.Textf("Image data from the model could not be decoded: %v", err)
	}
	return content.ImageBytes(mimeType, data)
}

func fromString(s string) []content.Part {
	if uris := embeddedDataURI.FindAllString(s, -1); len(uris) > 0 {
		parts := make([]content.Part, 0, len(uris))
		for _, uri := range uris {
			parts = append(parts, fromURL(uri))
		}
		return parts
	}
	if urls := bareImageURL.FindAllString(s, -1); len(urls) > 0 {
		parts := make([]content.Part, 0, len(urls))
		for _, u := range urls {
			parts = append(parts, content.Text(u))
		}
		return parts
	}
	return []content.Part{content.Text(s)}
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
