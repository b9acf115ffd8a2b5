package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/docchunk/internal/document"
)

// csvRowsPerTable bounds each emitted table so a large sheet becomes
// several table units instead of one oversized block.
const csvRowsPerTable = 20

// CSVParser renders CSV files as markdown tables, repeating the header row
// at the top of each table.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (document.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return document.Document{}, fmt.Errorf("parse csv: %w", err)
	}

	doc := document.Document{Source: filename, Title: baseTitle(filename)}
	if len(records) == 0 {
		return doc, nil
	}

	var w blockWriter
	w.heading(1, doc.Title)

	headers := records[0]
	dataRows := records[1:]
	if len(dataRows) == 0 {
		w.table([][]string{headers})
	}
	for i := 0; i < len(dataRows); i += csvRowsPerTable {
		end := min(i+csvRowsPerTable, len(dataRows))
		w.heading(2, fmt.Sprintf("Rows %d-%d", i+2, end+1))
		rows := make([][]string, 0, end-i+1)
		rows = append(rows, headers)
		rows = append(rows, dataRows[i:end]...)
		w.table(rows)
	}

	doc.Text = w.String()
	return doc, nil
}
