package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

type PDFParser struct{}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	pages := make([]Page, 0, totalPages)

	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			slog.Debug("parser: pdf page skipped", "page", i, "error", err)
			continue
		}

		text = normalizeText(strings.TrimSpace(text))
		if text == "" {
			continue
		}

		pages = append(pages, Page{
			Number: i,
			Label:  fmt.Sprintf("page %d", i),
			Text:   text,
		})
	}

	return &ParseResult{
		Pages:  pages,
		Method: "native",
		Metadata: map[string]string{
			"page_count": fmt.Sprintf("%d", totalPages),
		},
	}, nil
}
