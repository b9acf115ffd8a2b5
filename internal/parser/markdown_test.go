package parser

import (
	"strings"
	"testing"
)

func TestMarkdownParser_TitleFromFirstH1(t *testing.T) {
	input := `## Preface

Some text.

# Real Title

Intro text.
`
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "docs/doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Real Title" {
		t.Errorf("expected title %q, got %q", "Real Title", doc.Title)
	}
	if doc.Source != "docs/doc.md" {
		t.Errorf("expected source to be kept, got %q", doc.Source)
	}
}

func TestMarkdownParser_KeepsSourceText(t *testing.T) {
	input := "# API Reference\r\n\r\nSome intro.\r\n\r\n## Endpoints\r\n\r\n```\r\nGET /api/users\r\n```\r\n"
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "api.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := strings.ReplaceAll(input, "\r\n", "\n")
	if doc.Text != want {
		t.Errorf("expected text to match source with LF endings\nwant %q\ngot  %q", want, doc.Text)
	}
}

func TestMarkdownParser_NoHeadings(t *testing.T) {
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader("Just some plain text.\n\nAnother paragraph here."), "notes/plain.markdown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "plain" {
		t.Errorf("expected filename title %q, got %q", "plain", doc.Title)
	}
	if !strings.Contains(doc.Text, "Another paragraph here.") {
		t.Errorf("expected text to be kept, got %q", doc.Text)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Text != "" {
		t.Errorf("expected empty text, got %q", doc.Text)
	}
	if doc.Title != "empty" {
		t.Errorf("expected title %q, got %q", "empty", doc.Title)
	}
}
