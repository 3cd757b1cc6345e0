package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Statute hierarchy: Act > Book > Title > Chapter > Part > Section
// ---------------------------------------------------------------------------

var (
	actPattern     = regexp.MustCompile(`((?:พระราชบัญญัติ|ประมวลกฎหมาย)[^\n]*?พ\.ศ\.?\s*\d{4})`)
	bookPattern    = regexp.MustCompile(`ลักษณะ\s*(\d+|[\x{0E00}-\x{0E7F}]+)`)
	titlePattern   = regexp.MustCompile(`บท\s*([\x{0E00}-\x{0E7F}]+)`)
	chapterPattern = regexp.MustCompile(`หมวด\s*(\d+)`)
	partPattern    = regexp.MustCompile(`ตอน(?:ที่)?\s*(\d+)`)
	sectionPattern = regexp.MustCompile(`มาตรา\s*(\d+)(.*)`)

	paragraphPattern = regexp.MustCompile(`วรรคที่\s*(\d+)`)
	interestPattern  = regexp.MustCompile(`ดอกเบี้ย(?:ร้อยละ)?\s*(\d+(?:\.\d+)?)\s*ต่อ\s*(ปี|เดือน)`)
	penaltyPattern   = regexp.MustCompile(`(เงินเพิ่ม|เบี้ยปรับ)[^\d%]*?(?:ร้อยละ)?\s*(\d+(?:\.\d+)?)`)
	periodPattern    = regexp.MustCompile(`(?:ทุก(?:ระยะเวลา)?\s*)(\d+|เจ็ด)\s*วัน`)
	causePattern     = regexp.MustCompile(`(ไม่คืน[^,;\n]+|ไม่จ่าย[^,;\n]+)`)
	sectionRefPat    = regexp.MustCompile(`มาตรา\s*(\d+(?:\s*/\s*\d+)?)`)
	refSlashPattern  = regexp.MustCompile(`\s*/\s*`)
)

func ruleStatute(s string, b *builder) bool {
	var act, book, title, chapter, part, section *NodeRef
	found := false

	set := func(dst **NodeRef, label, key string) {
		ref := b.node(label, key, nil)
		*dst = &ref
		found = true
	}

	if m := actPattern.FindStringSubmatch(s); m != nil {
		set(&act, LabelAct, strings.TrimSpace(m[1]))
	}
	if m := bookPattern.FindStringSubmatch(s); m != nil {
		set(&book, LabelBook, "ลักษณะ "+strings.TrimSpace(m[1]))
	}
	if m := titlePattern.FindStringSubmatch(s); m != nil {
		set(&title, LabelTitle, "บท "+strings.TrimSpace(m[1]))
	}
	var chapterNo string
	if m := chapterPattern.FindStringSubmatch(s); m != nil {
		chapterNo = m[1]
		set(&chapter, LabelChapter, "หมวด "+chapterNo)
	}
	if m := partPattern.FindStringSubmatch(s); m != nil {
		set(&part, LabelPart, "ตอน "+m[1])
	}

	var sectionNo string
	if m := sectionPattern.FindStringSubmatch(s); m != nil {
		sectionNo = m[1]
		set(&section, LabelSection, "มาตรา "+sectionNo)
		if desc := strings.TrimSpace(m[2]); desc != "" {
			d := b.node(LabelSectionDesc, desc, nil)
			b.link(*section, RelHasDesc, d)
		}
	}

	// Each level links to the nearest level present above it.
	linkUp := func(from *NodeRef, above ...*NodeRef) {
		if from == nil {
			return
		}
		for _, to := range above {
			if to != nil {
				b.link(*from, RelBelongsTo, *to)
				return
			}
		}
	}
	linkUp(section, part, chapter, title, book, act)
	linkUp(part, chapter, title, book, act)
	linkUp(chapter, title, book, act)
	linkUp(title, book, act)
	linkUp(book, act)

	if section == nil {
		return found
	}

	if chapterNo != "" {
		group := b.node(LabelGroup, "หมวด "+chapterNo, nil)
		b.link(*section, RelSection, group)
	}

	spans := paragraphSpans(s)
	if len(spans) > 0 {
		for _, sp := range spans {
			seg := s[sp.start:sp.end]
			para := b.node(LabelParagraph, "วรรคที่ "+strconv.Itoa(sp.no), nil)
			b.link(*section, RelHasParagraph, para)
			extractEnforcement(seg, para, b)
		}
	} else {
		extractEnforcement(s, *section, b)
	}

	for _, m := range sectionRefPat.FindAllStringSubmatch(s, -1) {
		ref := normalizeSectionRef(m[1])
		if ref == sectionNo {
			continue
		}
		target := b.node(LabelSection, "มาตรา "+ref, nil)
		b.link(*section, RelRefersTo, target)
	}
	return true
}

type paragraphSpan struct {
	no         int
	start, end int
}

func paragraphSpans(s string) []paragraphSpan {
	locs := paragraphPattern.FindAllStringSubmatchIndex(s, -1)
	spans := make([]paragraphSpan, 0, len(locs))
	for _, loc := range locs {
		no, err := strconv.Atoi(s[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		spans = append(spans, paragraphSpan{no: no, start: loc[0]})
	}
	for i := range spans {
		if i+1 < len(spans) {
			spans[i].end = spans[i+1].start
		} else {
			spans[i].end = len(s)
		}
	}
	return spans
}

// extractEnforcement attaches interest rates, penalties and causes found in
// seg to owner (a Paragraph or, without paragraphs, the Section).
func extractEnforcement(seg string, owner NodeRef, b *builder) {
	if m := interestPattern.FindStringSubmatch(seg); m != nil {
		rate := b.node(LabelInterestRate, m[1]+"% ต่อ"+m[2], nil)
		b.link(owner, RelHasRate, rate)
	}

	if m := penaltyPattern.FindStringSubmatch(seg); m != nil {
		pen := b.node(LabelPenalty, "เงินเพิ่ม "+m[2]+"%", nil)
		b.link(owner, RelHasPenalty, pen)
		if tp := periodPattern.FindStringSubmatch(seg); tp != nil {
			val := tp[1]
			if val == "เจ็ด" {
				val = "7"
			}
			period := b.node(LabelTimePeriod, "ทุก "+val+" วัน", nil)
			b.link(pen, RelWithin, period)
		}
	}

	for _, m := range causePattern.FindAllStringSubmatch(seg, -1) {
		text := strings.TrimSpace(m[1])
		cause := b.node(LabelCause, text, nil)
		b.link(owner, RelHasCause, cause)
		for _, r := range sectionRefPat.FindAllStringSubmatch(text, -1) {
			target := b.node(LabelSection, "มาตรา "+normalizeSectionRef(r[1]), nil)
			b.link(cause, RelRefersTo, target)
		}
	}
}

// normalizeSectionRef turns "120 / 1" into "120/1".
func normalizeSectionRef(raw string) string {
	return refSlashPattern.ReplaceAllString(raw, "/")
}
