package chunker

import "strings"

// EstimateTokens gives a rough token count from the word count. It feeds the
// token_estimate field of stored records; the boundary algorithm measures
// size in characters.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	// Roughly 0.75 words per token for English text.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
