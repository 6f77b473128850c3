package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ironsheep/openrouter-mcp/internal/content"
)

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "inline formatting",
			in:   "# Title\n\nSome **bold** and *italic* text with `code` and a [link](https://x.y).\n\n- one\n- two\n",
			want: "Title\n\nSome bold and italic text with code and a link.\n\none\ntwo",
		},
		{
			name: "code fence keeps its body",
			in:   "Run this:\n\n```go\nfmt.Println(\"hi\")\n```\n",
			want: "Run this:\n\nfmt.Println(\"hi\")",
		},
		{
			name: "soft breaks survive",
			in:   "line one\nline two",
			want: "line one\nline two",
		},
		{
			name: "html and rules are dropped",
			in:   "above\n\n---\n\n<div>hidden</div>\n\nbelow",
			want: "above\n\nbelow",
		},
		{
			name: "plain text unchanged",
			in:   "nothing to strip",
			want: "nothing to strip",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripMarkdown(tt.in))
		})
	}
}

func TestStripMarkdownParts_LeavesImagesAlone(t *testing.T) {
	img := content.Image("image/png", "QQ==")
	got := stripMarkdownParts([]content.Part{content.Text("**hi**"), img})
	assert.Equal(t, []content.Part{content.Text("hi"), img}, got)
}
