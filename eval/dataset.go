package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Difficulty levels for evaluation datasets.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Dataset is a corpus of case texts plus the questions asked against it.
type Dataset struct {
	Name       string     `json:"name" yaml:"name"`
	Difficulty string     `json:"difficulty" yaml:"difficulty"`
	Documents  []Document `json:"documents" yaml:"documents"`
	Tests      []TestCase `json:"tests" yaml:"tests"`
}

// Document is one case ingested before the tests run.
type Document struct {
	CaseID string   `json:"case_id" yaml:"case_id"`
	Texts  []string `json:"texts" yaml:"texts"`
}

// TestCase defines a single evaluation question.
type TestCase struct {
	Question string `json:"question" yaml:"question"`
	CaseID   string `json:"case_id,omitempty" yaml:"case_id,omitempty"`
	// ExpectedFacts must appear in the synthesized answer.
	ExpectedFacts []string `json:"expected_facts" yaml:"expected_facts"`
	// ExpectedChunks are the chunk ids a perfect ranking puts first.
	ExpectedChunks []string `json:"expected_chunks,omitempty" yaml:"expected_chunks,omitempty"`
	// ExpectedTemplate is the court-document template that should rank
	// first, or 0 when suggestions are not checked.
	ExpectedTemplate int    `json:"expected_template,omitempty" yaml:"expected_template,omitempty"`
	Category         string `json:"category" yaml:"category"` // single-fact, scoped, cross-case, suggestion
}

// LoadDataset reads a dataset from a YAML or JSON file.
func LoadDataset(path string) (Dataset, error) {
	var ds Dataset
	data, err := os.ReadFile(path)
	if err != nil {
		return ds, fmt.Errorf("reading dataset: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &ds)
	default:
		err = yaml.Unmarshal(data, &ds)
	}
	if err != nil {
		return ds, fmt.Errorf("parsing dataset %s: %w", filepath.Base(path), err)
	}
	if len(ds.Tests) == 0 {
		return ds, fmt.Errorf("dataset %s has no tests", filepath.Base(path))
	}
	if ds.Name == "" {
		ds.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return ds, nil
}

// LaborDataset returns a small labour-court corpus with single-fact,
// case-scoped and suggestion questions.
func LaborDataset() Dataset {
	return Dataset{
		Name:       "Labour Court - Wage and Dismissal Claims",
		Difficulty: DifficultyEasy,
		Documents: []Document{
			{
				CaseID: "CASE-101/2567",
				Texts: []string{
					"คดีหมายเลขดำที่ 101/2567 โจทก์ฟ้องว่า เมื่อวันที่ 1 พฤศจิกายน 2557 จำเลยได้จ้างโจทก์เข้าทำงานเป็นลูกจ้าง ตำแหน่งพนักงานขาย อัตราค่าจ้างสุดท้ายเดือนละ 15,000 บาท",
					"ต่อมาวันที่ 15 มกราคม 2567 จำเลยเลิกจ้างโจทก์โดยโจทก์ไม่มีความผิด ตามมาตรา 118 นายจ้างต้องจ่ายค่าชดเชย",
				},
			},
			{
				CaseID: "CASE-202/2566",
				Texts: []string{
					"คดีหมายเลขดำที่ 202/2566 โจทก์ทำงานล่วงเวลาแต่จำเลยค้างจ่ายค่าล่วงเวลา 3,500 บาท",
					"โจทก์ยื่นคำร้องขอคุ้มครองชั่วคราวเพื่อมิให้จำเลยโอนทรัพย์สิน",
				},
			},
		},
		Tests: []TestCase{
			{
				Question:       "อัตราค่าจ้างสุดท้ายเดือนละเท่าไร",
				CaseID:         "CASE-101/2567",
				ExpectedFacts:  []string{"15,000 บาท"},
				ExpectedChunks: []string{"CASE-101/2567-1"},
				Category:       "scoped",
			},
			{
				Question:         "จำเลยเลิกจ้างโจทก์เมื่อใด",
				CaseID:           "CASE-101/2567",
				ExpectedFacts:    []string{"2024-01-15"},
				ExpectedChunks:   []string{"CASE-101/2567-2"},
				ExpectedTemplate: 1,
				Category:         "scoped",
			},
			{
				Question:         "จำเลยค้างจ่ายค่าล่วงเวลาเท่าไร",
				ExpectedFacts:    []string{"3,500 บาท"},
				ExpectedChunks:   []string{"CASE-202/2566-1"},
				ExpectedTemplate: 3,
				Category:         "cross-case",
			},
			{
				Question:         "ขอคุ้มครองชั่วคราว",
				ExpectedChunks:   []string{"CASE-202/2566-2"},
				ExpectedTemplate: 4,
				Category:         "suggestion",
			},
		},
	}
}
