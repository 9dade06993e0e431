package devanagari

import "strings"

// Relationship codes derived from the Marathi prefix on the relative
// name field.
const (
	RelativeFather  = "F"
	RelativeHusband = "H"
	RelativeMother  = "M"
	RelativeOther   = "O"
)

// The roll prints the relative name with one of these Marathi labels.
// Ordered so detection is deterministic.
var relativePrefixes = []struct {
	label string
	code  string
}{
	{"वडिलांचे नाव", RelativeFather},
	{"पतीचे नाव", RelativeHusband},
	{"आईचे नाव", RelativeMother},
	{"इतर नाव", RelativeOther},
}

// ExtractRelativeType splits a raw relative name field into the
// relationship code and the bare name.
//
// The label is detected either before a colon ("वडिलांचे नाव: राम") or at
// the start of the string. All labels are then stripped from anywhere in
// the remainder, so the returned name never carries a prefix. When no
// label is found the code is empty and the name is returned cleaned.
func ExtractRelativeType(raw string) (code, name string) {
	name = strings.TrimSpace(raw)
	if name == "" {
		return "", ""
	}

	for _, p := range relativePrefixes {
		if prefix, rest, found := strings.Cut(name, ":"); found {
			if strings.Contains(prefix, p.label) {
				code = p.code
				name = strings.TrimSpace(rest)
				break
			}
		} else if strings.HasPrefix(name, p.label) {
			code = p.code
			name = strings.TrimSpace(strings.TrimPrefix(name, p.label))
			name = strings.TrimSpace(strings.TrimLeft(name, ": -"))
			break
		}
	}

	name = StripRelativePrefixes(name)

	// The label can sit after the name too; recover the name from the
	// original text when stripping left nothing behind.
	if code != "" && name == "" {
		name = StripRelativePrefixes(raw)
	}
	return code, name
}

// StripRelativePrefixes removes every relationship label from s, wherever
// it appears, and tidies the separators left behind.
func StripRelativePrefixes(s string) string {
	cleaned := strings.TrimSpace(s)
	for _, p := range relativePrefixes {
		cleaned = strings.ReplaceAll(cleaned, p.label+":", "")
		cleaned = strings.ReplaceAll(cleaned, ":"+p.label, "")
		cleaned = strings.ReplaceAll(cleaned, p.label, "")
	}
	cleaned = strings.Trim(strings.TrimSpace(cleaned), ": -")
	return spaceRuns.ReplaceAllString(strings.TrimSpace(cleaned), " ")
}
