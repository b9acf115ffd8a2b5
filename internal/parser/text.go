package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/docchunk/internal/document"
)

// TextParser handles plain text files. Runs of blank lines collapse to one
// so paragraph boundaries survive but line numbers stay close to the input.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (document.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out strings.Builder
	blank := 0
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" {
			blank++
			continue
		}
		if out.Len() > 0 {
			if blank > 0 {
				out.WriteString("\n\n")
			} else {
				out.WriteByte('\n')
			}
		}
		blank = 0
		out.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return document.Document{}, err
	}

	return document.Document{
		Source: filename,
		Title:  baseTitle(filename),
		Text:   out.String(),
	}, nil
}
