package document

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// PathSeparator joins the headings of a header path.
const PathSeparator = " > "

// Kind classifies a unit.
type Kind string

const (
	KindHeader    Kind = "header"
	KindTable     Kind = "table"
	KindParagraph Kind = "paragraph"
	KindSentence  Kind = "sentence"
)

// Document is a discovered input rendered as markdown text.
type Document struct {
	ID     string // Empty means derive from Source
	Source string // Path or upload name the text came from
	Title  string
	Text   string
}

// Unit is the smallest span considered for chunking.
type Unit struct {
	Text       string `json:"text"`
	Kind       Kind   `json:"type"`
	HeaderPath string `json:"header_path"`
	LineStart  int    `json:"line_start"`
	LineEnd    int    `json:"line_end"`
}

// LineRange is an inclusive 1-based line interval.
type LineRange struct {
	Start int
	End   int
}

// MarshalJSON encodes a range as a two-element array.
func (r LineRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{r.Start, r.End})
}

// UnmarshalJSON accepts the two-element array form.
func (r *LineRange) UnmarshalJSON(b []byte) error {
	var pair [2]int
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("line range: %w", err)
	}
	r.Start, r.End = pair[0], pair[1]
	return nil
}

// Contains reports whether line lies within r.
func (r LineRange) Contains(line int) bool {
	return line >= r.Start && line <= r.End
}

// Chunk is a contiguous group of units presented as one retrieval item.
type Chunk struct {
	Content    string
	HeaderPath string
	LineRanges []LineRange
	Units      []Unit
}

// NewChunk joins units into a chunk. The header path is taken from the
// first unit.
func NewChunk(units []Unit) Chunk {
	texts := make([]string, len(units))
	ranges := make([]LineRange, len(units))
	for i, u := range units {
		texts[i] = u.Text
		ranges[i] = LineRange{Start: u.LineStart, End: u.LineEnd}
	}
	c := Chunk{
		Content:    strings.Join(texts, "\n\n"),
		LineRanges: MergeRanges(ranges),
		Units:      append([]Unit(nil), units...),
	}
	if len(units) > 0 {
		c.HeaderPath = units[0].HeaderPath
	}
	return c
}

// Covers reports whether every line of u falls inside the chunk's ranges.
func (c Chunk) Covers(u Unit) bool {
	for line := u.LineStart; line <= u.LineEnd; line++ {
		found := false
		for _, r := range c.LineRanges {
			if r.Contains(line) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// MergeRanges sorts ranges by start and collapses overlapping or adjacent
// intervals.
func MergeRanges(ranges []LineRange) []LineRange {
	if len(ranges) == 0 {
		return nil
	}
	sorted := append([]LineRange(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []LineRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End+1 {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// SplitPath breaks a header path into its headings.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, PathSeparator)
}
