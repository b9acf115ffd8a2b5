package parser

import (
	"io"
	"strings"

	"github.com/dgallion1/docchunk/internal/document"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files. The source is passed through
// unchanged so line numbers in the chunk output refer to the original file;
// goldmark is only used to find the document title.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (document.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return document.Document{}, err
	}

	doc := document.Document{
		Source: filename,
		Title:  baseTitle(filename),
		Text:   strings.ReplaceAll(string(src), "\r\n", "\n"),
	}
	if title := firstHeading(src); title != "" {
		doc.Title = title
	}
	return doc, nil
}

// firstHeading returns the text of the first level-1 heading, or of the
// first heading of any level when there is no level-1 heading.
func firstHeading(src []byte) string {
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	var first string
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok {
			continue
		}
		t := strings.TrimSpace(inlineText(h, src))
		if t == "" {
			continue
		}
		if h.Level == 1 {
			return t
		}
		if first == "" {
			first = t
		}
	}
	return first
}

func inlineText(n ast.Node, src []byte) string {
	var buf strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
			continue
		}
		buf.WriteString(inlineText(c, src))
	}
	return buf.String()
}
