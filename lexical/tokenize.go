// Package lexical implements the TF-IDF keyword index used for lexical
// scoring of case chunks.
package lexical

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var thaiDigits = strings.NewReplacer(
	"๐", "0", "๑", "1", "๒", "2", "๓", "3", "๔", "4",
	"๕", "5", "๖", "6", "๗", "7", "๘", "8", "๙", "9",
)

type runeClass int

const (
	classSep runeClass = iota
	classThai
	classWord
	classDigit
)

func classify(r rune) runeClass {
	switch {
	case unicode.Is(unicode.Thai, r):
		return classThai
	case unicode.IsDigit(r):
		return classDigit
	case unicode.IsLetter(r) || unicode.IsMark(r):
		return classWord
	default:
		return classSep
	}
}

// Tokenize lower-cases and NFC-normalizes s, then splits it into runs of
// one script. Latin and digit runs are whole tokens, with thousands
// separators dropped from numbers. Thai has no word spacing, so Thai runs
// become overlapping rune bigrams; a one-rune Thai run is kept as is.
func Tokenize(s string) []string {
	s = thaiDigits.Replace(strings.ToLower(norm.NFC.String(s)))
	runes := []rune(s)

	var tokens []string
	for i := 0; i < len(runes); {
		cls := classify(runes[i])
		if cls == classSep {
			i++
			continue
		}
		j := i + 1
		for j < len(runes) {
			c := classify(runes[j])
			if c == cls {
				j++
				continue
			}
			// 10,000 and 1.5 stay one number.
			if cls == classDigit && (runes[j] == ',' || runes[j] == '.') &&
				j+1 < len(runes) && classify(runes[j+1]) == classDigit {
				j += 2
				continue
			}
			break
		}
		run := runes[i:j]
		switch cls {
		case classThai:
			tokens = append(tokens, thaiBigrams(run)...)
		case classDigit:
			tokens = append(tokens, strings.ReplaceAll(string(run), ",", ""))
		default:
			tokens = append(tokens, string(run))
		}
		i = j
	}
	return tokens
}

func thaiBigrams(run []rune) []string {
	if len(run) == 1 {
		return []string{string(run)}
	}
	out := make([]string, 0, len(run)-1)
	for k := 0; k+1 < len(run); k++ {
		out = append(out, string(run[k:k+2]))
	}
	return out
}
