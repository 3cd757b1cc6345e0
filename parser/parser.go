// Package parser turns case files into plain page texts ready for
// extraction.
package parser

import (
	"context"
	"errors"
	"strings"
)

// ErrNoText is returned when a file yields no extractable text.
var ErrNoText = errors.New("parser: no text extracted")

// ParseResult is what a parser produces from a file.
type ParseResult struct {
	Pages    []Page
	Method   string // "native" or "html"
	Metadata map[string]string
}

// Page is one unit of text: a PDF page, a spreadsheet sheet or a whole
// plain-text file.
type Page struct {
	Number int
	Label  string
	Text   string
}

// Texts returns the non-empty page texts in order.
func (r *ParseResult) Texts() []string {
	out := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		if strings.TrimSpace(p.Text) != "" {
			out = append(out, p.Text)
		}
	}
	return out
}

// Parser can parse a specific file format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}

// normalizeText trims trailing spaces from lines and collapses runs of
// blank lines to one, keeping paragraph breaks.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	var b strings.Builder
	blank := 0
	for _, l := range lines {
		l = strings.TrimRight(l, " \t\u00a0")
		if strings.TrimSpace(l) == "" {
			blank++
			continue
		}
		if b.Len() > 0 {
			if blank > 0 {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
		}
		blank = 0
		b.WriteString(l)
	}
	return b.String()
}
