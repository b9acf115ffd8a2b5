package pipeline

import (
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	previewChars  = 150
	maxErrorChars = 500
)

// Stage names the step an item failed in.
type Stage string

const (
	StageEnrich   Stage = "enrich"
	StageEmbed    Stage = "embed"
	StageStore    Stage = "store"
	StageDocument Stage = "document"
)

// FailureRecord describes one item that did not make it through the
// pipeline intact. Index is the global chunk index, or -1 for failures that
// concern a whole document.
type FailureRecord struct {
	Index      int    `json:"chunk_index"`
	Source     string `json:"source_file"`
	HeaderPath string `json:"header_path"`
	Preview    string `json:"chunk_preview"`
	Error      string `json:"error"`
	Stage      Stage  `json:"stage"`
}

// NewFailure builds a record with a bounded preview and error text.
func NewFailure(stage Stage, index int, source, headerPath, text string, err error) FailureRecord {
	msg := ""
	if err != nil {
		msg = clip(err.Error(), maxErrorChars, "")
	}
	return FailureRecord{
		Index:      index,
		Source:     source,
		HeaderPath: headerPath,
		Preview:    preview(text),
		Error:      msg,
		Stage:      stage,
	}
}

// preview is the first previewChars runes of text, trimmed, always
// followed by "...".
func preview(text string) string {
	return strings.TrimSpace(clip(text, previewChars, "")) + "..."
}

// clip cuts s to n runes, appending suffix when something was removed.
func clip(s string, n int, suffix string) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + suffix
}

// FailureLog is an append-only, concurrency-safe list of failures.
type FailureLog struct {
	mu      sync.Mutex
	records []FailureRecord
}

func NewFailureLog() *FailureLog {
	return &FailureLog{}
}

func (l *FailureLog) Append(r FailureRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
}

// Drain returns all records and empties the log.
func (l *FailureLog) Drain() []FailureRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.records
	l.records = nil
	return out
}

// Snapshot returns a copy of the current records.
func (l *FailureLog) Snapshot() []FailureRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]FailureRecord(nil), l.records...)
}

func (l *FailureLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
