// Package bangla holds the small set of Bengali-script helpers the rest of
// lawqa needs: digit folding, normalization and script detection.
package bangla

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// digits maps the ten Bengali digits to their ASCII equivalents.
var digits = map[rune]rune{
	'০': '0',
	'১': '1',
	'২': '2',
	'৩': '3',
	'৪': '4',
	'৫': '5',
	'৬': '6',
	'৭': '7',
	'৮': '8',
	'৯': '9',
}

// digitFolder is stateless, so a single instance is shared by all callers.
var digitFolder = runes.Map(func(r rune) rune {
	if d, ok := digits[r]; ok {
		return d
	}
	return r
})

// ToArabicDigits replaces every Bengali digit in s with its ASCII digit.
// All other runes are left untouched.
func ToArabicDigits(s string) string {
	if !hasBengaliDigit(s) {
		return s
	}
	out, _, err := transform.String(digitFolder, s)
	if err != nil {
		// runes.Map never fails on valid input; fall back to a plain copy
		// for malformed UTF-8.
		return mapDigits(s)
	}
	return out
}

// Normalize applies NFC composition and folds Bengali digits. Citation and
// section strings copied from PDFs often carry decomposed vowel signs, which
// would otherwise defeat exact-match lookups.
func Normalize(s string) string {
	return ToArabicDigits(norm.NFC.String(s))
}

// ContainsBangla reports whether s has at least one Bengali-script rune.
func ContainsBangla(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Bengali, r) {
			return true
		}
	}
	return false
}

// IsDigit reports whether r is an ASCII or Bengali decimal digit.
func IsDigit(r rune) bool {
	if r >= '0' && r <= '9' {
		return true
	}
	_, ok := digits[r]
	return ok
}

func hasBengaliDigit(s string) bool {
	for _, r := range s {
		if _, ok := digits[r]; ok {
			return true
		}
	}
	return false
}

func mapDigits(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if d, ok := digits[r]; ok {
			r = d
		}
		out = append(out, r)
	}
	return string(out)
}
