package devanagari

import (
	"regexp"
	"strings"
)

var (
	digitRuns = regexp.MustCompile(`\d+`)

	wardEnglish    = regexp.MustCompile(`(?i)\bward\b`)
	wardDevanagari = regexp.MustCompile(`वार्ड`)

	assemblyKeep = regexp.MustCompile(`[^\d/\s]`)
	slashSpacing = regexp.MustCompile(`\s*/\s*`)
	serialKeep   = regexp.MustCompile(`[^\d\s]`)

	houseNoise    = regexp.MustCompile(`[हदइपज]+`)
	houseNAAfter  = regexp.MustCompile(`^NA\s*[हदइपज\-*\s]+`)
	houseNABefore = regexp.MustCompile(`[हदइपज\-*\s]+NA$`)
)

// CleanAge extracts the age as the first run of digits, since the field
// is always numeric on the roll. Returns an empty string when no digits
// are present.
func CleanAge(s string) string {
	return digitRuns.FindString(s)
}

// CleanSerialNumber extracts the serial number, dropping "ward"/"वार्ड"
// labels and any non-digit noise. Digit runs split by OCR artifacts are
// joined back together.
func CleanSerialNumber(s string) string {
	if s == "" {
		return ""
	}
	cleaned := wardEnglish.ReplaceAllString(s, "")
	cleaned = wardDevanagari.ReplaceAllString(cleaned, "")
	cleaned = serialKeep.ReplaceAllString(cleaned, "")
	return strings.Join(digitRuns.FindAllString(cleaned, -1), "")
}

// CleanAssemblyNumber cleans an assembly number such as "36/247/4".
// The slash-separated format is preserved, "ward" labels in either
// script are dropped, and everything that is not a digit or slash is
// removed. Returns an empty string when no digits remain.
func CleanAssemblyNumber(s string) string {
	if s == "" {
		return ""
	}
	cleaned := wardEnglish.ReplaceAllString(s, "")
	cleaned = wardDevanagari.ReplaceAllString(cleaned, "")
	cleaned = assemblyKeep.ReplaceAllString(cleaned, "")
	cleaned = slashSpacing.ReplaceAllString(cleaned, "/")
	cleaned = strings.TrimSpace(cleaned)

	if !digitRuns.MatchString(cleaned) {
		return ""
	}
	return spaceRuns.ReplaceAllString(cleaned, "")
}

// houseEdgeChars are OCR artifacts the scanner picks up around the house
// number: stray Devanagari consonants from neighboring fields plus
// hyphens and asterisks used as fillers.
const houseEdgeChars = "हदइपज-*"

// CleanHouseNumber strips OCR artifacts from a house number while
// preserving its content, including an internal hyphen as in "123-456".
// "NA" entries survive with their trailing noise removed.
func CleanHouseNumber(s string) string {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return ""
	}

	cleaned = strings.ReplaceAll(cleaned, ":", "")
	cleaned = strings.TrimSpace(cleaned)

	cleaned = houseNAAfter.ReplaceAllString(cleaned, "NA")
	cleaned = houseNABefore.ReplaceAllString(cleaned, "NA")

	cleaned = trimHouseEdges(cleaned)

	// Stray consonant runs are noise anywhere, but hyphens inside the
	// number are part of it.
	cleaned = houseNoise.ReplaceAllString(cleaned, "")
	cleaned = strings.ReplaceAll(cleaned, "*", "")
	cleaned = spaceRuns.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	return trimHouseEdges(cleaned)
}

func trimHouseEdges(s string) string {
	for {
		trimmed := strings.TrimSpace(s)
		trimmed = strings.TrimLeft(trimmed, houseEdgeChars)
		trimmed = strings.TrimRight(trimmed, houseEdgeChars)
		trimmed = strings.TrimSpace(trimmed)
		if trimmed == s {
			return trimmed
		}
		s = trimmed
	}
}

// The three gender values printed on Maharashtra rolls.
const (
	GenderMale   = "पु"
	GenderFemale = "स्री"
	GenderOther  = "इतर"
)

// Direct lookups for gender strings OCR produces. The female forms are
// misread most often because of the स्र conjunct.
var genderSubstitutions = map[string]string{
	"पु":  GenderMale,
	"पू":  GenderMale,
	"पह":  GenderMale,
	"पुः": GenderMale,
	"पूः": GenderMale,
	"पहः": GenderMale,

	"स्री":    GenderFemale,
	"स्त्री":  GenderFemale,
	"सद":      GenderFemale,
	"स्त्रि":  GenderFemale,
	"स्त्र":   GenderFemale,
	"स्रि":    GenderFemale,
	"स्तरी":   GenderFemale,
	"स्त्रिी": GenderFemale,
	"सदी":     GenderFemale,
	"सदि":     GenderFemale,

	"इतर":   GenderOther,
	"इत्तर": GenderOther,
	"इत":    GenderOther,
	"इतर्":  GenderOther,
	"other": GenderOther,
	"Other": GenderOther,
	"OTHER": GenderOther,
}

var (
	genderMalePattern   = regexp.MustCompile(`^प[ुूह]`)
	genderFemalePattern = regexp.MustCompile(`स्त्री|स्तर[ीि]|स्र[ीि]|^सद|सद[ीि]`)
	genderOtherPattern  = regexp.MustCompile(`^इत`)
	genderOtherEnglish  = regexp.MustCompile(`(?i)^other$`)
)

// NormalizeGender maps a raw gender field to one of the three printed
// values. Unrecognized input passes through unchanged so it can be
// reviewed rather than silently dropped.
func NormalizeGender(s string) string {
	gender := strings.TrimSpace(s)
	if gender == "" {
		return ""
	}

	if normalized, ok := genderSubstitutions[gender]; ok {
		return normalized
	}

	switch {
	case genderMalePattern.MatchString(gender):
		return GenderMale
	case genderFemalePattern.MatchString(gender):
		return GenderFemale
	case genderOtherPattern.MatchString(gender):
		return GenderOther
	case genderOtherEnglish.MatchString(gender):
		return GenderOther
	}
	return gender
}
