// Package epic validates and repairs EPIC numbers, the elector photo
// identity card identifiers printed on Indian electoral rolls.
//
// An EPIC number is three uppercase letters followed by seven digits.
// OCR output frequently confuses visually similar characters (O/0, I/1,
// S/5), so the package carries positional correction maps: a character in
// the alphabetic prefix is mapped towards letters, one in the numeric
// suffix towards digits. Correction is idempotent, so already valid input
// passes through unchanged.
//
// Main Functions:
//
// - Validate: reports whether a string is a well-formed EPIC number
// - Correct: normalizes and repairs raw OCR text into an EPIC number
// - Extract: pulls the first EPIC-shaped token out of surrounding text
// - IsSentinel: recognizes placeholder values that mean "no ID printed"
package epic

import (
	"regexp"
	"strings"
)

// Pattern is the canonical EPIC number shape.
var Pattern = regexp.MustCompile(`[A-Z]{3}[0-9]{7}`)

var (
	exactPattern     = regexp.MustCompile(`^[A-Z]{3}[0-9]{7}$`)
	candidatePattern = regexp.MustCompile(`[A-Z0-9]{10}`)

	whitespace = regexp.MustCompile(`\s+`)
)

// Digits that OCR produces in place of letters in the alphabetic prefix.
var toLetter = map[byte]byte{
	'1': 'I',
	'0': 'O',
	'5': 'S',
	'8': 'B',
}

// Letters that OCR produces in place of digits in the numeric suffix.
var toDigit = map[byte]byte{
	'O': '0',
	'I': '1',
	'S': '5',
	'Z': '2',
	'L': '1',
}

// Placeholder strings the roll prints where no EPIC number exists.
var sentinels = map[string]bool{
	"NO ID":     true,
	"NOID":      true,
	"N/A":       true,
	"NA":        true,
	"NOT FOUND": true,
	"NONE":      true,
}

// Validate reports whether s is exactly three uppercase letters
// followed by seven digits.
func Validate(s string) bool {
	return exactPattern.MatchString(s)
}

// IsSentinel reports whether s is a placeholder meaning no EPIC number
// is printed for the entry. Comparison ignores case and surrounding
// whitespace.
func IsSentinel(s string) bool {
	return sentinels[strings.ToUpper(strings.TrimSpace(s))]
}

// Extract returns the first EPIC-shaped token found in s, or an empty
// string when none is present. The input is normalized first so tokens
// split by stray whitespace are still found.
func Extract(s string) string {
	return Pattern.FindString(normalize(s))
}

// Correct normalizes raw OCR text and repairs common character
// confusions to produce an EPIC number.
//
// The text is uppercased and stripped of whitespace and trailing
// underscores. If it already contains a valid EPIC token that token is
// returned as is. Otherwise the first run of ten letters or digits is
// taken and repaired positionally: the first three characters are mapped
// towards letters, the remaining seven towards digits. When no candidate
// exists the normalized text is returned unchanged, which keeps
// sentinels like "NO ID" recognizable downstream.
//
// Correct is idempotent: Correct(Correct(s)) == Correct(s).
func Correct(s string) string {
	cleaned := normalize(s)
	if cleaned == "" {
		return ""
	}

	if m := Pattern.FindString(cleaned); m != "" {
		return m
	}

	candidate := candidatePattern.FindString(cleaned)
	if candidate == "" {
		return cleaned
	}

	b := []byte(candidate)
	for i := 0; i < 3; i++ {
		if r, ok := toLetter[b[i]]; ok {
			b[i] = r
		}
	}
	for i := 3; i < 10; i++ {
		if r, ok := toDigit[b[i]]; ok {
			b[i] = r
		}
	}

	repaired := string(b)
	if Validate(repaired) {
		return repaired
	}
	return cleaned
}

func normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = whitespace.ReplaceAllString(s, "")
	return strings.TrimRight(s, "_")
}
