package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Rule is one independent recognizer. Apply adds whatever it finds in the
// digit-normalized text s to b and reports whether anything matched.
// Rules may read nodes added by earlier rules but never remove them.
type Rule struct {
	Name  string
	Apply func(s string, b *builder) bool
}

// rules run in declaration order. Adding a recognizer means appending here.
var rules = []Rule{
	{Name: "parties", Apply: ruleParties},
	{Name: "employment", Apply: ruleEmployment},
	{Name: "amounts", Apply: ruleAmounts},
	{Name: "dates", Apply: ruleDates},
	{Name: "statute", Apply: ruleStatute},
}

// RuleNames lists the rule classes in the order they run.
func RuleNames() []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name
	}
	return names
}

var plaintiffPattern = regexp.MustCompile(`โจทก(์)?`)

func ruleParties(s string, b *builder) bool {
	found := false
	if plaintiffPattern.MatchString(s) {
		b.node(LabelPerson, PartyPlaintiff, map[string]string{"role": RolePlaintiff})
		found = true
	}
	if strings.Contains(s, PartyDefendant) {
		b.node(LabelPerson, PartyDefendant, map[string]string{"role": RoleDefendant})
		found = true
	}
	return found
}

var employmentKeywords = []string{"จ้าง", "เข้าทำงาน", "ลูกจ้าง", "ทำงาน"}

func ruleEmployment(s string, b *builder) bool {
	for _, kw := range employmentKeywords {
		if !strings.Contains(s, kw) {
			continue
		}
		contract := b.node(LabelEmploymentContract, "สัญญาจ้างงาน", nil)
		if b.has(LabelPerson, PartyPlaintiff) {
			b.link(NodeRef{Label: LabelPerson, Key: PartyPlaintiff}, RelEmployedBy, contract)
		}
		return true
	}
	return false
}

func ruleAmounts(s string, b *builder) bool {
	amounts := ParseAmounts(s)
	if len(amounts) == 0 {
		return false
	}
	term := "จำนวนเงิน"
	switch {
	case strings.Contains(s, "ปรับ"):
		term = "ค่าปรับ"
	case strings.Contains(s, "ค่าชดเชย"):
		term = "ค่าชดเชย"
	}
	termRef := b.node(LabelLegalTerm, term, nil)
	for _, v := range amounts {
		// Satang are dropped from both key and value, so amounts that
		// differ only in decimals share one node.
		money := b.node(LabelMoneyAmount, FormatAmount(v), map[string]string{
			"value":    strconv.FormatInt(int64(v), 10),
			"currency": "THB",
		})
		b.link(termRef, RelHasAmount, money)
	}
	return true
}

func ruleDates(s string, b *builder) bool {
	dates := ParseDates(s)
	if len(dates) == 0 {
		return false
	}
	plaintiff := b.has(LabelPerson, PartyPlaintiff)
	for _, iso := range dates {
		date := b.node(LabelDate, iso, map[string]string{"value": iso})
		if plaintiff {
			b.link(NodeRef{Label: LabelPerson, Key: PartyPlaintiff}, RelOccurredOn, date)
		}
	}
	return true
}
