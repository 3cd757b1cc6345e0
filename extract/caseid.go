package extract

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var caseIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`คดีหมายเลข(?:ดำ|แดง)?\s*(ที่)?\s*([0-9/\-]+)`),
	regexp.MustCompile(`หมายเลขคดี\s*([0-9/\-]+)`),
	regexp.MustCompile(`คดี.*?([0-9]+/[0-9]+)`),
}

// placeholderCaseIDs are values clients send when they mean "detect it".
var placeholderCaseIDs = map[string]bool{
	"":       true,
	"string": true,
	"auto":   true,
	"null":   true,
}

// ResolveCaseID returns provided unless it is empty or a placeholder, in
// which case the id is detected from texts.
func ResolveCaseID(provided string, texts []string) string {
	p := strings.TrimSpace(provided)
	if placeholderCaseIDs[strings.ToLower(p)] {
		return DetectCaseID(texts)
	}
	return p
}

// DetectCaseID looks for a court case number in texts ("คดีหมายเลขดำที่
// 123/2560") and returns "CASE-<number>". When none is found the id is
// derived from a SHA-1 of the joined texts so the same input always maps
// to the same case.
func DetectCaseID(texts []string) string {
	for _, t := range texts {
		t = NormalizeDigits(t)
		for _, p := range caseIDPatterns {
			m := p.FindStringSubmatch(t)
			if m == nil {
				continue
			}
			num := m[len(m)-1]
			if num == "" {
				num = m[0]
			}
			return strings.ReplaceAll("CASE-"+num, " ", "")
		}
	}
	sum := sha1.Sum([]byte(strings.Join(texts, "\n")))
	return "CASE-" + hex.EncodeToString(sum[:])[:10]
}

// ---------------------------------------------------------------------------
// Chunking
// ---------------------------------------------------------------------------

var sectionLabelPattern = regexp.MustCompile(`มาตรา\s*(\d+)`)

// SectionLabel returns the first statute label in text: "มาตรา N" when a
// section is cited, otherwise "หมวด N", otherwise "".
func SectionLabel(text string) string {
	s := NormalizeDigits(text)
	if m := sectionLabelPattern.FindStringSubmatch(s); m != nil {
		return "มาตรา " + m[1]
	}
	if m := chapterPattern.FindStringSubmatch(s); m != nil {
		return "หมวด " + m[1]
	}
	return ""
}

// SplitChunks packs the paragraphs of text into pieces of at most maxRunes
// runes. A paragraph longer than maxRunes becomes its own piece. With
// maxRunes <= 0 the trimmed text is returned as a single piece.
func SplitChunks(text string, maxRunes int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return []string{text}
	}

	var pieces []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if cur.Len() > 0 {
			pieces = append(pieces, strings.TrimSpace(cur.String()))
			cur.Reset()
			curLen = 0
		}
	}
	for _, para := range strings.Split(text, "\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		n := utf8.RuneCountInString(para)
		if curLen > 0 && curLen+1+n > maxRunes {
			flush()
		}
		if curLen > 0 {
			cur.WriteString("\n")
			curLen++
		}
		cur.WriteString(para)
		curLen += n
	}
	flush()
	return pieces
}

// AssignChunkIDs numbers chunks across one ingest call: chunk i (from 1)
// gets ChunkID "<caseID>-<i>" and Page i.
func AssignChunkIDs(caseID string, chunks []Chunk) []Chunk {
	out := make([]Chunk, len(chunks))
	for i, c := range chunks {
		c.CaseID = caseID
		c.ChunkID = fmt.Sprintf("%s-%d", caseID, i+1)
		c.Page = i + 1
		out[i] = c
	}
	return out
}
