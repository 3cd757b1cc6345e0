package synth

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Template is one court-document template that can be suggested.
type Template struct {
	ID          int      `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
	Court       string   `json:"court" yaml:"court"`
}

// Catalog is an ordered list of templates. Order breaks score ties.
type Catalog []Template

const laborCourt = "ศาลแรงงานกลาง"

// DefaultCatalog is the built-in labour-court template list.
var DefaultCatalog = Catalog{
	{
		ID:          1,
		Title:       "คำฟ้องคดีแรงงาน รง1",
		Description: "คำฟ้องคดีแรงงาน เลิกจ้างไม่เป็นธรรม",
		Keywords:    []string{"คดีแรงงาน", "เลิกจ้าง", "ไม่เป็นธรรม", "คำฟ้อง", "รง1"},
		Court:       laborCourt,
	},
	{
		ID:          2,
		Title:       "คำร้องคดีแรงงาน รง1",
		Description: "คำร้องขอค่าชดเชยการเลิกจ้าง",
		Keywords:    []string{"ค่าชดเชย", "เลิกจ้าง", "คำร้อง", "รง2"},
		Court:       laborCourt,
	},
	{
		ID:          3,
		Title:       "คำฟ้องคดีค่าจ้างค้างจ่าย รง1",
		Description: "คำฟ้องเรียกร้องค่าจ้างและค่าล่วงเวลา",
		Keywords:    []string{"ค่าจ้าง", "ค้างจ่าย", "ค่าล่วงเวลา", "รง3"},
		Court:       laborCourt,
	},
	{
		ID:          4,
		Title:       "คำร้องขอคุ้มครองชั่วคราว",
		Description: "คำร้องขอให้ศาลมีคำสั่งคุ้มครองชั่วคราว",
		Keywords:    []string{"คุ้มครอง", "ชั่วคราว", "คำร้อง"},
		Court:       laborCourt,
	},
	{
		ID:          5,
		Title:       "คำร้องอุทธรณ์คดีแรงงาน",
		Description: "คำร้องอุทธรณ์คำพิพากษาศาลแรงงาน",
		Keywords:    []string{"อุทธรณ์", "คำพิพากษา", "แรงงาน"},
		Court:       laborCourt,
	},
}

// ErrEmptyCatalog is returned when a catalog file lists no templates.
var ErrEmptyCatalog = errors.New("synth: catalog has no templates")

// LoadCatalog reads a YAML list of templates from path. Templates without a
// court get the labour court.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	if len(c) == 0 {
		return nil, ErrEmptyCatalog
	}
	seen := make(map[int]bool, len(c))
	for i := range c {
		if seen[c[i].ID] {
			return nil, fmt.Errorf("catalog %s: duplicate template id %d", path, c[i].ID)
		}
		seen[c[i].ID] = true
		if c[i].Court == "" {
			c[i].Court = laborCourt
		}
	}
	return c, nil
}

// byID returns the template with id, if present.
func (c Catalog) byID(id int) (Template, bool) {
	for _, t := range c {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}
