package parser

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLParser extracts the readable text of saved court web pages. Block
// elements become paragraphs; scripts, styles and navigation are dropped.
type HTMLParser struct{}

func (p *HTMLParser) SupportedFormats() []string { return []string{"html", "htm"} }

func (p *HTMLParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening HTML: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	text := htmlText(doc)
	res := &ParseResult{Method: "html", Metadata: map[string]string{}}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		res.Metadata["title"] = title
	}
	if text != "" {
		res.Pages = []Page{{Number: 1, Label: res.Metadata["title"], Text: text}}
	}
	return res, nil
}

const htmlBlocks = "h1, h2, h3, h4, h5, h6, p, li, td, th, pre, blockquote"

func htmlText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer").Remove()

	var paras []string
	doc.Find(htmlBlocks).Each(func(_ int, s *goquery.Selection) {
		// Nested blocks are emitted by their innermost element.
		if s.Find(htmlBlocks).Length() > 0 {
			return
		}
		if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
			paras = append(paras, t)
		}
	})
	if len(paras) == 0 {
		// Pages without block markup: fall back to the body text.
		if t := normalizeText(doc.Find("body").Text()); t != "" {
			return t
		}
	}
	return strings.Join(paras, "\n\n")
}
