package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const (
	MaxQuestions = 4
	MaxKeywords  = 5
)

// Metadata is what enrichment derives for one chunk. The zero value stands
// for a chunk whose enrichment failed.
type Metadata struct {
	Summary   string   `json:"summary"`
	Questions []string `json:"hypothetical_questions"`
	Keywords  []string `json:"keywords"`
}

// NewMetadata trims entries, drops blanks and caps questions and keywords.
func NewMetadata(summary string, questions, keywords []string) Metadata {
	return Metadata{
		Summary:   strings.TrimSpace(summary),
		Questions: clean(questions, MaxQuestions),
		Keywords:  clean(keywords, MaxKeywords),
	}
}

// IsZero reports whether m carries no metadata.
func (m Metadata) IsZero() bool {
	return m.Summary == "" && len(m.Questions) == 0 && len(m.Keywords) == 0
}

func clean(items []string, limit int) []string {
	out := make([]string, 0, min(len(items), limit))
	for _, s := range items {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

// ValidationError means the service answered but the answer was unusable.
// It is retried like a transient failure.
type ValidationError struct {
	Reason string
	Raw    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid metadata: %s (raw: %s)", e.Reason, truncate(e.Raw, 200))
}

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+|pretend\s+|forget\s+(everything|all)|` +
		`new\s+instructions)`,
)

type rawMetadata struct {
	Summary   *string  `json:"summary"`
	Questions []string `json:"hypothetical_questions"`
	Keywords  []string `json:"keywords"`
}

// ParseMetadata decodes a model reply into Metadata. All three fields must
// be present.
func ParseMetadata(reply string) (Metadata, error) {
	text := stripCodeBlock(reply)

	var raw rawMetadata
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Metadata{}, &ValidationError{Reason: "not a json object: " + err.Error(), Raw: text}
	}
	switch {
	case raw.Summary == nil || strings.TrimSpace(*raw.Summary) == "":
		return Metadata{}, &ValidationError{Reason: "missing summary", Raw: text}
	case raw.Questions == nil:
		return Metadata{}, &ValidationError{Reason: "missing hypothetical_questions", Raw: text}
	case raw.Keywords == nil:
		return Metadata{}, &ValidationError{Reason: "missing keywords", Raw: text}
	case injectionPattern.MatchString(*raw.Summary):
		return Metadata{}, &ValidationError{Reason: "summary looks like an instruction", Raw: text}
	}
	return NewMetadata(*raw.Summary, raw.Questions, raw.Keywords), nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
