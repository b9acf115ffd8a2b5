package chunker

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/docchunk/internal/document"
)

// DefaultLongParagraph is the rune length above which a paragraph is split
// into sentences.
const DefaultLongParagraph = 500

var blankLineRe = regexp.MustCompile(`\n\s*\n`)

// span is a half-open byte range into the source text.
type span struct {
	start, end int
}

// lineIndex holds the byte offset of every line start.
type lineIndex []int

func newLineIndex(text string) lineIndex {
	starts := lineIndex{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// line returns the 1-based line containing offset.
func (li lineIndex) line(offset int) int {
	return sort.Search(len(li), func(i int) bool { return li[i] > offset })
}

// ExtractUnits splits markdown text into ordered, line-tagged units.
func ExtractUnits(text string, longParagraph int) []document.Unit {
	return extractUnits(text, longParagraph, nil)
}

type heading struct {
	depth int
	title string
}

func extractUnits(text string, longParagraph int, log *slog.Logger) []document.Unit {
	if longParagraph <= 0 {
		longParagraph = DefaultLongParagraph
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	lines := newLineIndex(text)
	var (
		units []document.Unit
		stack []heading
	)

	emit := func(s span, kind document.Kind, path string) {
		units = append(units, document.Unit{
			Text:       text[s.start:s.end],
			Kind:       kind,
			HeaderPath: path,
			LineStart:  lines.line(s.start),
			LineEnd:    lines.line(s.end - 1),
		})
	}

	for _, block := range splitBlocks(text) {
		part := text[block.start:block.end]

		switch {
		case strings.HasPrefix(part, "#"):
			depth, title, ok := parseHeading(part)
			if !ok {
				log.Debug("malformed heading treated as paragraph", "line", lines.line(block.start))
				emitParagraph(text, block, longParagraph, pathOf(stack), emit)
				continue
			}
			for len(stack) > 0 && stack[len(stack)-1].depth >= depth {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, heading{depth: depth, title: title})
			emit(block, document.KindHeader, pathOf(stack))

		case strings.HasPrefix(part, "|"):
			emit(block, document.KindTable, pathOf(stack))

		default:
			emitParagraph(text, block, longParagraph, pathOf(stack), emit)
		}
	}
	return units
}

func emitParagraph(text string, block span, longParagraph int, path string, emit func(span, document.Kind, string)) {
	if utf8.RuneCountInString(text[block.start:block.end]) <= longParagraph {
		emit(block, document.KindParagraph, path)
		return
	}
	for _, s := range splitSentences(text, block) {
		emit(s, document.KindSentence, path)
	}
}

// splitBlocks cuts text on blank-line separators and trims each part.
func splitBlocks(text string) []span {
	var raw []span
	last := 0
	for _, m := range blankLineRe.FindAllStringIndex(text, -1) {
		raw = append(raw, span{last, m[0]})
		last = m[1]
	}
	raw = append(raw, span{last, len(text)})

	blocks := raw[:0]
	for _, s := range raw {
		if s = trimSpan(text, s); s.start < s.end {
			blocks = append(blocks, s)
		}
	}
	return blocks
}

func trimSpan(text string, s span) span {
	part := text[s.start:s.end]
	left := strings.TrimLeftFunc(part, unicode.IsSpace)
	s.start += len(part) - len(left)
	s.end = s.start + len(strings.TrimRightFunc(left, unicode.IsSpace))
	return s
}

// parseHeading accepts 1-6 '#' followed by whitespace and a non-empty title.
// The title is taken from the first line only.
func parseHeading(part string) (int, string, bool) {
	depth := 0
	for depth < len(part) && part[depth] == '#' {
		depth++
	}
	if depth > 6 || depth == len(part) || spaceAt(part, depth) == 0 {
		return 0, "", false
	}
	first, _, _ := strings.Cut(part[depth:], "\n")
	title := strings.TrimSpace(first)
	if title == "" {
		return 0, "", false
	}
	return depth, title, true
}

// splitSentences breaks a block after '.', '!' or '?' when followed by
// whitespace, Unicode spaces such as NBSP included. Offsets are tracked
// during the scan, so spans never overlap.
func splitSentences(text string, block span) []span {
	var out []span
	start := block.start
	for i := block.start; i < block.end-1; i++ {
		c := text[i]
		if (c != '.' && c != '!' && c != '?') || spaceAt(text[:block.end], i+1) == 0 {
			continue
		}
		out = append(out, span{start, i + 1})
		j := i + 1
		for j < block.end {
			n := spaceAt(text[:block.end], j)
			if n == 0 {
				break
			}
			j += n
		}
		start = j
		i = j - 1
	}
	if start < block.end {
		out = append(out, span{start, block.end})
	}
	return out
}

// spaceAt returns the byte width of the whitespace rune at s[i], or 0.
func spaceAt(s string, i int) int {
	if i >= len(s) {
		return 0
	}
	r, n := utf8.DecodeRuneInString(s[i:])
	if !unicode.IsSpace(r) {
		return 0
	}
	return n
}

func pathOf(stack []heading) string {
	titles := make([]string, len(stack))
	for i, h := range stack {
		titles[i] = h.title
	}
	return strings.Join(titles, document.PathSeparator)
}
