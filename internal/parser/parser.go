package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docchunk/internal/document"
)

// Parser converts raw document bytes into markdown-flavoured text that the
// chunker can split into units. Headings are rendered as "#" lines and
// tables as "|" rows.
type Parser interface {
	Parse(r io.Reader, filename string) (document.Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// Options tunes parser construction.
type Options struct {
	FallbackPdftotext bool
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	return ForFileWith(filename, Options{})
}

// ForFileWith is ForFile with explicit options.
func ForFileWith(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.FallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// baseTitle strips the directory and extension from a filename.
func baseTitle(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// blockWriter accumulates blank-line separated blocks.
type blockWriter struct {
	b strings.Builder
}

func (w *blockWriter) heading(level int, title string) {
	title = collapseSpace(title)
	if title == "" {
		return
	}
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	w.block(strings.Repeat("#", level) + " " + title)
}

func (w *blockWriter) block(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if w.b.Len() > 0 {
		w.b.WriteString("\n\n")
	}
	w.b.WriteString(text)
}

func (w *blockWriter) table(rows [][]string) {
	if len(rows) == 0 {
		return
	}
	var t strings.Builder
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = strings.ReplaceAll(collapseSpace(c), "|", `\|`)
		}
		t.WriteString("| " + strings.Join(cells, " | ") + " |")
		if i == 0 && len(rows) > 1 {
			sep := make([]string, len(row))
			for j := range sep {
				sep[j] = "---"
			}
			t.WriteString("\n| " + strings.Join(sep, " | ") + " |")
		}
		if i < len(rows)-1 {
			t.WriteByte('\n')
		}
	}
	w.block(t.String())
}

func (w *blockWriter) String() string {
	return w.b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
