package parser

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

type Registry struct {
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	// Register built-in parsers
	for _, p := range []Parser{&TextParser{}, &PDFParser{}, &XLSXParser{}, &HTMLParser{}} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, fmt.Errorf("no parser for format: %s", format)
	}
	return p, nil
}

func (r *Registry) Register(format string, p Parser) {
	r.parsers[format] = p
}

// Formats returns the registered formats.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for f := range r.parsers {
		out = append(out, f)
	}
	return out
}

// FormatOf returns the lower-cased extension of path without the dot.
func FormatOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// ParseFile parses path with the parser registered for its extension and
// fails with ErrNoText when nothing readable came out.
func (r *Registry) ParseFile(ctx context.Context, path string) (*ParseResult, error) {
	p, err := r.Get(FormatOf(path))
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := p.Parse(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(res.Texts()) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoText, filepath.Base(path))
	}
	slog.Info("parser: file parsed",
		"file", filepath.Base(path),
		"method", res.Method,
		"pages", len(res.Pages),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}
