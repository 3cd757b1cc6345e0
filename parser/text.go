package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// TextParser handles plain text (.txt, .md) files. Files that are not
// valid UTF-8 are decoded as TIS-620 (Windows-874), the legacy Thai
// encoding.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt", "md"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}

	encoding := "utf-8"
	if !utf8.Valid(data) {
		data, err = charmap.Windows874.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
		}
		encoding = "windows-874"
	}

	content := normalizeText(string(data))
	if content == "" {
		return &ParseResult{Method: "native"}, nil
	}

	return &ParseResult{
		Pages: []Page{{
			Number: 1,
			Label:  filepath.Base(path),
			Text:   content,
		}},
		Method:   "native",
		Metadata: map[string]string{"encoding": encoding},
	}, nil
}
