package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// thaiMonths maps full Thai month names to their month number.
var thaiMonths = map[string]int{
	"มกราคม": 1, "กุมภาพันธ์": 2, "มีนาคม": 3, "เมษายน": 4,
	"พฤษภาคม": 5, "มิถุนายน": 6, "กรกฎาคม": 7, "สิงหาคม": 8,
	"กันยายน": 9, "ตุลาคม": 10, "พฤศจิกายน": 11, "ธันวาคม": 12,
}

var thaiDigitReplacer = strings.NewReplacer(
	"๐", "0", "๑", "1", "๒", "2", "๓", "3", "๔", "4",
	"๕", "5", "๖", "6", "๗", "7", "๘", "8", "๙", "9",
)

// NormalizeDigits converts Thai digits (๐-๙) to ASCII digits.
func NormalizeDigits(s string) string {
	return thaiDigitReplacer.Replace(s)
}

// ---------------------------------------------------------------------------
// Amounts
// ---------------------------------------------------------------------------

var (
	amountDigitPattern = regexp.MustCompile(`([0-9,]+(?:\.[0-9]+)?)\s*บาท`)
	amountWordPattern  = regexp.MustCompile(`(?:ปรับ|ค่า|เป็นเงิน|จำนวน|ไม่เกิน|กว่า)\s*([\x{0E00}-\x{0E7F}\s]+?)\s*บาท`)
)

// ParseAmounts returns every baht amount in s, in order of appearance,
// without duplicates. Digit forms ("10,000.50 บาท") are preferred; when
// none are present, Thai number words ("หนึ่งหมื่นบาท") are tried.
func ParseAmounts(s string) []float64 {
	if !strings.Contains(s, "บาท") {
		return nil
	}
	s = NormalizeDigits(s)

	var out []float64
	seen := make(map[float64]bool)
	for _, m := range amountDigitPattern.FindAllStringSubmatch(s, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) > 0 {
		return out
	}

	for _, m := range amountWordPattern.FindAllStringSubmatch(s, -1) {
		v, ok := parseThaiNumberSuffix(strings.TrimSpace(m[1]))
		if !ok || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// FormatAmount renders an amount the way MoneyAmount nodes are keyed:
// the integer part with thousands separators followed by " บาท".
func FormatAmount(v float64) string {
	n := int64(v)
	neg := n < 0
	if neg {
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(" บาท")
	return b.String()
}

var (
	thaiNumberDigits = map[string]int64{
		"ศูนย์": 0, "หนึ่ง": 1, "เอ็ด": 1, "สอง": 2, "ยี่": 2, "สาม": 3, "สี่": 4,
		"ห้า": 5, "หก": 6, "เจ็ด": 7, "แปด": 8, "เก้า": 9,
	}
	thaiNumberUnits = map[string]int64{
		"สิบ": 10, "ร้อย": 100, "พัน": 1000, "หมื่น": 10000, "แสน": 100000,
	}
)

// parseThaiNumberSuffix finds the longest suffix of s that is a well-formed
// Thai number phrase. Leading words such as "จ้าง" are skipped.
func parseThaiNumberSuffix(s string) (float64, bool) {
	s = strings.Join(strings.Fields(s), "")
	for i := 0; i < len(s); {
		if v, ok := parseThaiNumber(s[i:]); ok {
			return float64(v), true
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return 0, false
}

// parseThaiNumber converts a phrase made only of Thai number words.
func parseThaiNumber(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	var total, current, pending int64
	hasPending := false
	for s != "" {
		word, kind := nextThaiNumberWord(s)
		if word == "" {
			return 0, false
		}
		s = s[len(word):]
		switch kind {
		case "digit":
			pending = thaiNumberDigits[word]
			hasPending = true
		case "unit":
			if !hasPending {
				pending = 1
			}
			current += pending * thaiNumberUnits[word]
			pending, hasPending = 0, false
		case "million":
			current += pending
			if current == 0 && total == 0 {
				current = 1
			}
			total = (total + current) * 1_000_000
			current, pending, hasPending = 0, 0, false
		}
	}
	return total + current + pending, true
}

func nextThaiNumberWord(s string) (string, string) {
	best, kind := "", ""
	for w := range thaiNumberDigits {
		if strings.HasPrefix(s, w) && len(w) > len(best) {
			best, kind = w, "digit"
		}
	}
	for w := range thaiNumberUnits {
		if strings.HasPrefix(s, w) && len(w) > len(best) {
			best, kind = w, "unit"
		}
	}
	if strings.HasPrefix(s, "ล้าน") && len("ล้าน") > len(best) {
		best, kind = "ล้าน", "million"
	}
	return best, kind
}

// ---------------------------------------------------------------------------
// Dates
// ---------------------------------------------------------------------------

var (
	fullDatePattern  = regexp.MustCompile(`(\d{1,2})\s+([\x{0E00}-\x{0E7F}]+)\s+(\d{4})`)
	monthDatePattern = regexp.MustCompile(`([\x{0E00}-\x{0E7F}]+)\s+(\d{4})`)
)

// ParseDates returns the ISO form of every Thai date in s. Full dates
// ("1 พฤศจิกายน 2557") yield YYYY-MM-DD; when none are present, month-year
// phrases yield YYYY-MM. Buddhist-era years are converted to the Gregorian
// calendar.
func ParseDates(s string) []string {
	s = NormalizeDigits(s)

	var out []string
	seen := make(map[string]bool)
	add := func(v string) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	for _, m := range fullDatePattern.FindAllStringSubmatch(s, -1) {
		mon := monthSuffix(m[2])
		if mon == 0 {
			continue
		}
		d, _ := strconv.Atoi(m[1])
		y, _ := strconv.Atoi(m[3])
		if d < 1 || d > 31 {
			continue
		}
		add(fmt.Sprintf("%04d-%02d-%02d", gregorianYear(y), mon, d))
	}
	if len(out) > 0 {
		return out
	}

	for _, m := range monthDatePattern.FindAllStringSubmatch(s, -1) {
		mon := monthSuffix(m[1])
		if mon == 0 {
			continue
		}
		y, _ := strconv.Atoi(m[2])
		add(fmt.Sprintf("%04d-%02d", gregorianYear(y), mon))
	}
	return out
}

// monthSuffix resolves runs like "เดือนธันวาคม" whose tail is a month name.
func monthSuffix(run string) int {
	if m, ok := thaiMonths[run]; ok {
		return m
	}
	for name, m := range thaiMonths {
		if strings.HasSuffix(run, name) {
			return m
		}
	}
	return 0
}

func gregorianYear(y int) int {
	if y > 2400 {
		return y - 543
	}
	return y
}
