package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXParser reads case registers kept as spreadsheets. Each sheet becomes
// one page and each non-empty row one line with cells joined by spaces.
type XLSXParser struct{}

func (p *XLSXParser) SupportedFormats() []string { return []string{"xlsx"} }

func (p *XLSXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	var pages []Page
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}

		var content strings.Builder
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, c := range row {
				if c = strings.TrimSpace(c); c != "" {
					cells = append(cells, c)
				}
			}
			if len(cells) == 0 {
				continue
			}
			content.WriteString(strings.Join(cells, " "))
			content.WriteString("\n")
		}

		if content.Len() == 0 {
			continue
		}
		pages = append(pages, Page{
			Number: i + 1,
			Label:  sheet,
			Text:   strings.TrimRight(content.String(), "\n"),
		})
	}

	return &ParseResult{
		Pages:    pages,
		Method:   "native",
		Metadata: map[string]string{"sheet_count": fmt.Sprintf("%d", len(f.GetSheetList()))},
	}, nil
}
