package conversation

import (
	"encoding/json"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want int
	}{
		{"empty", NewText(RoleUser, ""), 0},
		{"one char rounds up", NewText(RoleUser, "a"), 1},
		{"exact multiple", NewText(RoleUser, "abcdefgh"), 2},
		{"runes not bytes", NewText(RoleUser, "ééééé"), 2},
		{"multimodal", NewMultimodal(RoleUser, TextPart("hello"), ImagePart("https://x/y.png")), 2 + ImageTokenCost},
		{"two images", NewMultimodal(RoleUser, ImagePart("a"), ImagePart("b")), 2 * ImageTokenCost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateTokens(tt.msg))
		})
	}
}

func TestTruncate_KeepsEverythingUnderBudget(t *testing.T) {
	msgs := []Message{
		NewText(RoleSystem, "be brief"),
		NewText(RoleUser, "hi"),
		NewText(RoleAssistant, "hello"),
	}
	assert.Equal(t, msgs, Truncate(msgs, 1000))
}

func TestTruncate_DropsOldestFirst(t *testing.T) {
	msgs := []Message{
		NewText(RoleSystem, strings.Repeat("s", 8)),    // 2
		NewText(RoleUser, strings.Repeat("a", 40)),     // 10
		NewText(RoleAssistant, strings.Repeat("b", 8)), // 2
		NewText(RoleUser, strings.Repeat("c", 8)),      // 2
	}

	got := Truncate(msgs, 6)
	require.Len(t, got, 3)
	assert.Equal(t, RoleSystem, got[0].Role)
	assert.Equal(t, msgs[2], got[1])
	assert.Equal(t, msgs[3], got[2])
}

func TestTruncate_StopsAtFirstOverflow(t *testing.T) {
	// The oldest message would fit on its own, but it sits behind one that
	// does not, so it must not be cherry-picked.
	msgs := []Message{
		NewText(RoleUser, "a"),                          // 1
		NewText(RoleAssistant, strings.Repeat("b", 40)), // 10
		NewText(RoleUser, "c"),                          // 1
	}
	got := Truncate(msgs, 5)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].Text)
}

func TestTruncate_OversizedSystemIsDropped(t *testing.T) {
	msgs := []Message{
		NewText(RoleSystem, strings.Repeat("s", 400)), // 100
		NewText(RoleUser, "hi"),                       // 1
	}
	got := Truncate(msgs, 10)
	require.Len(t, got, 1)
	assert.Equal(t, RoleUser, got[0].Role)
}

func TestTruncate_ImageSurcharge(t *testing.T) {
	msgs := []Message{
		NewMultimodal(RoleUser, TextPart("look"), ImagePart("data:image/png;base64,QQ==")),
		NewText(RoleUser, "and this"),
	}
	got := Truncate(msgs, 500)
	require.Len(t, got, 1)
	assert.Equal(t, "and this", got[0].Text)
}

func TestTruncate_Empty(t *testing.T) {
	assert.Empty(t, Truncate(nil, 100))
}

// Property checks over random conversations: the leading system message
// survives whenever it fits, and the remainder is a contiguous suffix.
func TestTruncate_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	roles := []string{RoleUser, RoleAssistant}

	for iter := 0; iter < 500; iter++ {
		msgs := []Message{}
		hasSystem := rng.Intn(2) == 0
		if hasSystem {
			msgs = append(msgs, NewText(RoleSystem, strings.Repeat("s", rng.Intn(80))))
		}
		for i := 0; i < rng.Intn(12); i++ {
			msgs = append(msgs, NewText(roles[i%2], strings.Repeat("x", rng.Intn(120))))
		}
		budget := rng.Intn(100)

		got := Truncate(msgs, budget)

		rest := msgs
		out := got
		if hasSystem {
			rest = msgs[1:]
			if EstimateTokens(msgs[0]) <= budget {
				require.NotEmpty(t, got, "iter %d", iter)
				require.Equal(t, msgs[0], got[0], "iter %d", iter)
				out = got[1:]
			}
		}

		require.LessOrEqual(t, len(out), len(rest))
		assert.Equal(t, rest[len(rest)-len(out):], out, "iter %d: not a suffix", iter)
		assert.LessOrEqual(t, EstimateTotal(got), max(budget, 0), "iter %d: over budget", iter)
	}
}

func TestMessage_JSON(t *testing.T) {
	var msgs []Message
	raw := `[
		{"role":"system","content":"be nice"},
		{"role":"user","content":[{"type":"text","text":"what is this"},{"type":"image_url","image_url":{"url":"https://x/y.png"}}]},
		{"role":"assistant","content":null}
	]`
	require.NoError(t, json.Unmarshal([]byte(raw), &msgs))
	require.Len(t, msgs, 3)

	assert.Equal(t, "be nice", msgs[0].Text)
	assert.False(t, msgs[0].IsMultimodal())
	require.True(t, msgs[1].IsMultimodal())
	assert.Equal(t, "https://x/y.png", msgs[1].Parts[1].ImageURL.URL)
	assert.Equal(t, "", msgs[2].Text)

	out, err := json.Marshal(msgs[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":[{"type":"text","text":"what is this"},{"type":"image_url","image_url":{"url":"https://x/y.png"}}]}`, string(out))

	out, err = json.Marshal(msgs[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"system","content":"be nice"}`, string(out))
}

func TestMessage_UnmarshalRejectsObjectContent(t *testing.T) {
	var m Message
	assert.Error(t, json.Unmarshal([]byte(`{"role":"user","content":{"a":1}}`), &m))
}

func TestMessage_Validate(t *testing.T) {
	assert.NoError(t, NewText(RoleUser, "hi").Validate())
	assert.Error(t, NewText("tool", "hi").Validate())
	assert.Error(t, NewMultimodal(RoleUser, Part{Type: PartImageURL}).Validate())
	assert.Error(t, NewMultimodal(RoleUser, Part{Type: "audio"}).Validate())
}
