package conversation

import "unicode/utf8"

const (
	// CharsPerToken is the rough character-to-token ratio used for estimates.
	CharsPerToken = 4

	// ImageTokenCost is the flat surcharge for every image reference.
	ImageTokenCost = 1000
)

// textTokens is ceil(runes / CharsPerToken).
func textTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + CharsPerToken - 1) / CharsPerToken
}

// EstimateTokens approximates the token cost of one message. It is a safety
// margin, not a billing-accurate count.
func EstimateTokens(m Message) int {
	if !m.IsMultimodal() {
		return textTokens(m.Text)
	}
	total := 0
	for _, p := range m.Parts {
		switch p.Type {
		case PartText:
			total += textTokens(p.Text)
		case PartImageURL:
			total += ImageTokenCost
		}
	}
	return total
}

// EstimateTotal sums EstimateTokens over messages.
func EstimateTotal(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateTokens(m)
	}
	return total
}

// Truncate trims messages to fit maxTokens.
//
// A leading system message is always kept and its cost is charged first,
// unless it alone exceeds the budget. The rest are scanned newest to
// oldest; the scan stops at the first message that would overflow, so the
// kept messages are a contiguous suffix in their original order.
func Truncate(messages []Message, maxTokens int) []Message {
	if len(messages) == 0 {
		return []Message{}
	}

	budget := maxTokens
	var system *Message
	rest := messages
	if messages[0].Role == RoleSystem {
		rest = messages[1:]
		if cost := EstimateTokens(messages[0]); cost <= budget {
			system = &messages[0]
			budget -= cost
		}
	}

	start := len(rest)
	used := 0
	for i := len(rest) - 1; i >= 0; i-- {
		cost := EstimateTokens(rest[i])
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}

	out := make([]Message, 0, len(rest)-start+1)
	if system != nil {
		out = append(out, *system)
	}
	return append(out, rest[start:]...)
}
