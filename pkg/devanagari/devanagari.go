// Package devanagari repairs and normalizes Devanagari (Hindi/Marathi) text
// recovered from scanned electoral rolls.
//
// OCR engines routinely misread Devanagari: matras (vowel signs) come back
// as consonants, conjuncts get split, and visually similar glyphs are
// confused. The package layers word-level substitutions over context-aware
// pattern rules, applied iteratively until the text stops changing, to undo
// the most common misreadings. On top of that it carries field-specific
// cleaners for the voter entry fields (name, age, gender, house number,
// assembly and serial numbers) and a romanizer for producing English
// spellings of names.
//
// Key Features:
//
// - OCR error correction for Devanagari text and names
// - Field cleaners matching how each roll field is printed
// - Gender normalization to the three printed forms
// - Relationship prefix detection (father/husband/mother/other)
// - Local transliteration fallback for name romanization
package devanagari

import "regexp"

var devanagariRange = regexp.MustCompile(`[\x{0900}-\x{097F}]`)

// Letters that can anchor a name: independent vowels and consonants,
// excluding combining marks that need a base character.
var devanagariLetter = regexp.MustCompile(`[\x{0905}-\x{0939}\x{0958}-\x{0963}]`)

// Contains reports whether s has any character in the Devanagari
// Unicode block (U+0900 to U+097F).
func Contains(s string) bool {
	return devanagariRange.MatchString(s)
}
