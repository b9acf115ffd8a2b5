package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgallion1/docchunk/internal/document"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Paragraphs with a HeadingN style become
// "#" lines; everything else is emitted as a text block.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (document.Document, error) {
	// go-docx needs a ReaderAt and a size.
	tmp, err := os.CreateTemp("", "docchunk-docx-*.docx")
	if err != nil {
		return document.Document{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return document.Document{}, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return document.Document{}, fmt.Errorf("seek temp file: %w", err)
	}

	parsed, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return document.Document{}, fmt.Errorf("parse docx: %w", err)
	}

	doc := document.Document{Source: filename, Title: baseTitle(filename)}
	var w blockWriter
	titled := false
	for _, item := range parsed.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}
		if level := docxHeadingLevel(para); level > 0 {
			if !titled && level == 1 {
				doc.Title = text
				titled = true
			}
			w.heading(level, text)
			continue
		}
		w.block(text)
	}

	doc.Text = w.String()
	return doc, nil
}

// docxHeadingLevel maps "Heading1" and "heading 1" style names to 1..6.
func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if !strings.HasPrefix(style, "heading") || len(style) != len("heading")+1 {
		return 0
	}
	d := style[len(style)-1]
	if d < '1' || d > '6' {
		return 0
	}
	return int(d - '0')
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
