package extract

import (
	"fmt"
	"unicode/utf8"
)

// MaxInputChars caps the chunk text sent for enrichment.
const MaxInputChars = 10000

const SystemPrompt = `Analyze the provided scientific text and extract the requested metadata.

Respond with ONLY a JSON object with these fields:
- "summary": a concise 1-sentence summary of the text (string)
- "hypothetical_questions": a list of 2-4 questions this text answers (list of strings)
- "keywords": a list of 3-5 key entities/keywords found in the text (list of strings)`

// BuildUserPrompt places the header path ahead of the (capped) chunk text.
func BuildUserPrompt(text, headerPath string) string {
	return fmt.Sprintf("Context/Header Path: %s\n\nText:\n%s", headerPath, capRunes(text, MaxInputChars))
}

func capRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
