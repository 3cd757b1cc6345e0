// Package synth turns ranked evidence and case facts into a Thai answer
// text or a ranked list of court-document templates.
package synth

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/StartGackt/coj-backend/retrieval"
	"github.com/StartGackt/coj-backend/store"
)

// previewRunes is the length of a document preview in an answer.
const previewRunes = 180

// NoAnswer is returned when there is neither a fact nor a document to show.
const NoAnswer = "ไม่พบข้อมูลที่เกี่ยวข้องเพียงพอสำหรับคำถามนี้"

// Answer builds a line-oriented summary: parties, amounts and dates from
// facts, then previews of docs and a citation per doc. caseID stands in
// for docs that carry no case id. The answer is extractive, so question
// only selects the evidence upstream.
func Answer(question string, docs []retrieval.ScoredDoc, facts []store.Fact, caseID string) string {
	var lines []string

	if len(facts) > 0 {
		roles := make(map[string]bool)
		amounts := make(map[string]bool)
		dates := make(map[string]bool)
		for _, f := range facts {
			if f.Person != "" && f.Role != "" {
				roles[fmt.Sprintf("%s (%s)", f.Person, f.Role)] = true
			}
			if f.Amount != "" {
				amounts[f.Amount] = true
			}
			if f.Date != "" {
				dates[f.Date] = true
			}
		}
		if len(roles) > 0 {
			lines = append(lines, "คู่ความ/บทบาท: "+joinSorted(roles))
		}
		if len(amounts) > 0 {
			lines = append(lines, "จำนวนเงิน/ค่าจ้างที่ปรากฏ: "+joinSorted(amounts))
		}
		if len(dates) > 0 {
			lines = append(lines, "วันที่เกี่ยวข้อง: "+joinSorted(dates))
		}
	}

	if len(docs) > 0 {
		lines = append(lines, "สาระจากเอกสารที่ใกล้เคียง:")
		for _, d := range docs {
			lines = append(lines, "- "+preview(d.Text))
		}

		lines = append(lines, "อ้างอิง:")
		for _, d := range docs {
			cid := d.CaseID
			if cid == "" {
				cid = caseID
			}
			if cid == "" {
				cid = "-"
			}
			page := "-"
			if d.Page != 0 {
				page = strconv.Itoa(d.Page)
			}
			lines = append(lines, fmt.Sprintf("- [Case: %s, page: %s] %s", cid, page, d.ChunkID))
		}
	}

	if len(lines) == 0 {
		return NoAnswer
	}
	return strings.Join(lines, "\n")
}

func preview(text string) string {
	p := strings.ReplaceAll(strings.TrimSpace(text), "\n", " ")
	if r := []rune(p); len(r) > previewRunes {
		p = string(r[:previewRunes]) + "..."
	}
	return p
}

func joinSorted(set map[string]bool) string {
	items := make([]string, 0, len(set))
	for s := range set {
		items = append(items, s)
	}
	sort.Strings(items)
	return strings.Join(items, ", ")
}
