package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ---------------------------------------------------------------------------
// Registry tests
// ---------------------------------------------------------------------------

func TestRegistryBuiltInParsers(t *testing.T) {
	reg := NewRegistry()

	formats := []struct {
		format     string
		wantParser string
	}{
		{"txt", "*parser.TextParser"},
		{"md", "*parser.TextParser"},
		{"pdf", "*parser.PDFParser"},
		{"xlsx", "*parser.XLSXParser"},
		{"html", "*parser.HTMLParser"},
		{"htm", "*parser.HTMLParser"},
	}

	for _, tt := range formats {
		t.Run(tt.format, func(t *testing.T) {
			p, err := reg.Get(tt.format)
			if err != nil {
				t.Fatalf("Get(%q) returned error: %v", tt.format, err)
			}
			supported := p.SupportedFormats()
			found := false
			for _, f := range supported {
				if f == tt.format {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("parser for %q does not list %q in SupportedFormats(): %v",
					tt.format, tt.format, supported)
			}
		})
	}
}

func TestRegistryUnknown(t *testing.T) {
	reg := NewRegistry()

	for _, f := range []string{"docx", "pptx", "csv", "rtf", ""} {
		if p, err := reg.Get(f); err == nil {
			t.Errorf("Get(%q) expected error for unknown format, got parser: %v", f, p)
		}
	}
}

func TestRegistryCustomParser(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Get("custom"); err == nil {
		t.Fatal("expected error for unregistered format")
	}
	reg.Register("custom", &TextParser{})
	if _, err := reg.Get("custom"); err != nil {
		t.Fatalf("Get(\"custom\") after Register returned error: %v", err)
	}
}

func TestFormatOf(t *testing.T) {
	tests := map[string]string{
		"/tmp/คำฟ้อง.PDF": "pdf",
		"case.txt":        "txt",
		"noext":           "",
		"a.b.HTML":        "html",
	}
	for in, want := range tests {
		if got := FormatOf(in); got != want {
			t.Errorf("FormatOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseFileEmpty(t *testing.T) {
	path := writeFile(t, "empty.txt", []byte("  \n\n "))
	_, err := NewRegistry().ParseFile(context.Background(), path)
	if !errors.Is(err, ErrNoText) {
		t.Errorf("err = %v, want ErrNoText", err)
	}
}

func TestParseFileUnknownFormat(t *testing.T) {
	path := writeFile(t, "case.docx", []byte("x"))
	if _, err := NewRegistry().ParseFile(context.Background(), path); err == nil {
		t.Error("expected error for unregistered extension")
	}
}

// ---------------------------------------------------------------------------
// Text
// ---------------------------------------------------------------------------

func TestTextParserUTF8(t *testing.T) {
	path := writeFile(t, "case.txt", []byte("โจทก์ฟ้องจำเลย   \r\n\r\n\r\nมาตรา 118\n"))
	res, err := NewRegistry().ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	texts := res.Texts()
	if len(texts) != 1 {
		t.Fatalf("texts = %d, want 1", len(texts))
	}
	if texts[0] != "โจทก์ฟ้องจำเลย\n\nมาตรา 118" {
		t.Errorf("text = %q", texts[0])
	}
	if res.Metadata["encoding"] != "utf-8" {
		t.Errorf("encoding = %q", res.Metadata["encoding"])
	}
}

func TestTextParserWindows874(t *testing.T) {
	raw, err := charmap.Windows874.NewEncoder().String("โจทก์ฟ้องจำเลย")
	if err != nil {
		t.Fatal(err)
	}
	path := writeFile(t, "legacy.txt", []byte(raw))

	res, err := (&TextParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := res.Texts(); len(got) != 1 || got[0] != "โจทก์ฟ้องจำเลย" {
		t.Errorf("texts = %q", got)
	}
	if res.Metadata["encoding"] != "windows-874" {
		t.Errorf("encoding = %q", res.Metadata["encoding"])
	}
}

func TestTextParserMissingFile(t *testing.T) {
	if _, err := (&TextParser{}).Parse(context.Background(), "/nonexistent/case.txt"); err == nil {
		t.Error("expected error for missing file")
	}
}

// ---------------------------------------------------------------------------
// HTML
// ---------------------------------------------------------------------------

func TestHTMLParser(t *testing.T) {
	page := `<html><head><title>คำพิพากษา</title><style>p{}</style></head>
<body>
<nav>เมนู</nav>
<h1>คดีหมายเลขดำที่ 123/2567</h1>
<div><p>โจทก์ฟ้อง   จำเลย</p><p>ค่าจ้าง 15,000 บาท</p></div>
<script>alert(1)</script>
<ul><li>มาตรา 118</li></ul>
</body></html>`
	path := writeFile(t, "judgment.html", []byte(page))

	res, err := NewRegistry().ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if res.Metadata["title"] != "คำพิพากษา" {
		t.Errorf("title = %q", res.Metadata["title"])
	}
	want := "คดีหมายเลขดำที่ 123/2567\n\nโจทก์ฟ้อง จำเลย\n\nค่าจ้าง 15,000 บาท\n\nมาตรา 118"
	if got := res.Texts()[0]; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	for _, dropped := range []string{"alert", "เมนู", "p{}"} {
		if strings.Contains(res.Texts()[0], dropped) {
			t.Errorf("text still contains %q", dropped)
		}
	}
}

func TestHTMLParserPlainBody(t *testing.T) {
	path := writeFile(t, "plain.htm", []byte("<html><body>จำเลยเลิกจ้างโจทก์</body></html>"))
	res, err := (&HTMLParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := res.Texts(); len(got) != 1 || got[0] != "จำเลยเลิกจ้างโจทก์" {
		t.Errorf("texts = %q", got)
	}
}

// ---------------------------------------------------------------------------
// XLSX
// ---------------------------------------------------------------------------

func TestXLSXParser(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "โจทก์")
	f.SetCellValue("Sheet1", "B1", "นายสมชาย")
	f.SetCellValue("Sheet1", "A3", "ค่าจ้าง")
	f.SetCellValue("Sheet1", "B3", "15,000 บาท")
	if _, err := f.NewSheet("Empty"); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "register.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	res, err := NewRegistry().ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(res.Pages) != 1 {
		t.Fatalf("pages = %d, want 1 (empty sheet skipped)", len(res.Pages))
	}
	if res.Pages[0].Label != "Sheet1" {
		t.Errorf("label = %q", res.Pages[0].Label)
	}
	if want := "โจทก์ นายสมชาย\nค่าจ้าง 15,000 บาท"; res.Pages[0].Text != want {
		t.Errorf("text = %q, want %q", res.Pages[0].Text, want)
	}
}

// ---------------------------------------------------------------------------
// PDF
// ---------------------------------------------------------------------------

func TestPDFParserInvalidFile(t *testing.T) {
	path := writeFile(t, "broken.pdf", []byte("not a pdf"))
	if _, err := (&PDFParser{}).Parse(context.Background(), path); err == nil {
		t.Error("expected error for invalid PDF")
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"\n\n a \n", " a"},
		{"a\nb", "a\nb"},
		{"a\n\n\n\nb\t", "a\n\nb"},
	}
	for _, tt := range tests {
		if got := normalizeText(tt.in); got != tt.want {
			t.Errorf("normalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
