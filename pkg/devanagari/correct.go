package devanagari

import (
	"regexp"
	"sort"
	"strings"
)

// maxPasses bounds the iterative refinement loop; corrections converge in
// two or three passes on real roll text.
const maxPasses = 5

// Whole-word substitutions observed in production scans. Applied longest
// first so a specific phrase wins over its fragments.
var wordSubstitutions = map[string]string{
	"शडख अलदम शखह मखहमोद": "शेख अलीम शाह मोहम्मद",
	"शडख":       "शेख",
	"अलदम":      "अलीम",
	"शखह":       "शाह",
	"मखहमोद":    "मोहम्मद",
	"आसबवरच":    "आंबवणे",
	"ममडनष":     "मोनिष",
	"नसदकममभर":  "नंदकुमार",
	"दकममभर":    "दकुमार",
	"कममभर":     "कुमार",
	"जरशद":      "जोशी",
	"जगददश":     "जगदीश",
	"जगदश":      "जगदीश",
	"कनहजयभलभल": "कन्हैयालाल",
	"कनहजयभल":   "कन्हैयालाल",
}

var orderedWordSubstitutions = sortByLengthDesc(wordSubstitutions)

type substitution struct {
	wrong, right string
}

func sortByLengthDesc(m map[string]string) []substitution {
	subs := make([]substitution, 0, len(m))
	for wrong, right := range m {
		subs = append(subs, substitution{wrong, right})
	}
	sort.SliceStable(subs, func(i, j int) bool {
		if len(subs[i].wrong) != len(subs[j].wrong) {
			return len(subs[i].wrong) > len(subs[j].wrong)
		}
		return subs[i].wrong < subs[j].wrong
	})
	return subs
}

type patternRule struct {
	re   *regexp.Regexp
	repl string
}

// Context-aware correction rules, most specific first. Each rule captures
// the character that follows the misread sequence and re-emits it, so a
// rule only fires when the sequence sits at a syllable boundary. Because
// the context character is consumed by the match, adjacent occurrences are
// picked up by the next refinement pass.
var patternRules = []patternRule{
	{regexp.MustCompile(`मोहमोद`), `मोहम्मद`},
	{regexp.MustCompile(`मखह(मोद)`), `मोह${1}`},
	{regexp.MustCompile(`मोद(\s|$)`), `म्मद${1}`},
	{regexp.MustCompile(`([क-ह])डख([क-ह]|\s|$)`), `${1}ेख${2}`},
	{regexp.MustCompile(`([क-ह])दम([क-ह]|\s|$)`), `${1}ीम${2}`},
	{regexp.MustCompile(`([क-ह])खह([क-ह]|\s|$)`), `${1}ाह${2}`},
	{regexp.MustCompile(`दकममभर([क-ह]|\s|$)`), `दकुमार${1}`},
	{regexp.MustCompile(`कममभर([क-ह]|\s|$)`), `कुमार${1}`},
	{regexp.MustCompile(`([क-ह])ममभर([क-ह]|\s|$)`), `${1}मार${2}`},
	{regexp.MustCompile(`कमम(भर)`), `कु${1}`},
	{regexp.MustCompile(`([क-ह])रशद([क-ह]|\s|$)`), `${1}ोशी${2}`},
	{regexp.MustCompile(`([क-ह])ददश([क-ह]|\s|$)`), `${1}दीश${2}`},
	{regexp.MustCompile(`([क-ह])भलभल([क-ह]|\s|$)`), `${1}लाल${2}`},
	{regexp.MustCompile(`([क-ह])लभल([क-ह]|\s|$)`), `${1}लाल${2}`},
	{regexp.MustCompile(`रच([क-ह]|\s|$)`), `णे${1}`},
	{regexp.MustCompile(`डनष([क-ह]|\s|$)`), `निष${1}`},
	{regexp.MustCompile(`डन([क-ह]|\s|$|[ा-ौंः])`), `नि${1}`},
	{regexp.MustCompile(`मम([क-ह]|\s|$|[ा-ौंः])`), `मो${1}`},
	{regexp.MustCompile(`([क-ह])स([क-ह]|\s|$|[ा-ौंः])`), `${1}ं${2}`},
	{regexp.MustCompile(`([क-ह])दद([क-ह]|\s|$|[ा-ौंः])`), `${1}दी${2}`},
	{regexp.MustCompile(`([क-ह])दश([क-ह]|\s|$)`), `${1}दीश${2}`},
	{regexp.MustCompile(`([क-ह])रश([क-ह]|\s|$|[ा-ौंः])`), `${1}ोश${2}`},
	{regexp.MustCompile(`([क-ह])शद([क-ह]|\s|$|[ा-ौंः])`), `${1}शी${2}`},
	{regexp.MustCompile(`([क-ह])यभ([क-ह]|\s|$|[ा-ौंः])`), `${1}या${2}`},
	{regexp.MustCompile(`([क-ह])लभ([क-ह]|\s|$|[ा-ौंः])`), `${1}ला${2}`},
	{regexp.MustCompile(`([क-ह])नहज([क-ह]|\s|$|[ा-ौंः])`), `${1}न्है${2}`},
	{regexp.MustCompile(`([क-ह])भल(\s|$)`), `${1}ल${2}`},
}

// CorrectText undoes common OCR misreadings in Devanagari text.
//
// Whole-word substitutions run first, then the pattern rules are applied
// repeatedly until the text reaches a fixed point or the pass limit.
// Text without Devanagari characters is returned unchanged.
func CorrectText(text string) string {
	if text == "" || !Contains(text) {
		return text
	}

	corrected := text
	for _, sub := range orderedWordSubstitutions {
		corrected = strings.ReplaceAll(corrected, sub.wrong, sub.right)
	}

	for pass := 0; pass < maxPasses; pass++ {
		prev := corrected
		for _, rule := range patternRules {
			corrected = rule.re.ReplaceAllString(corrected, rule.repl)
		}
		if corrected == prev {
			break
		}
	}
	return corrected
}

var (
	nameKeep  = regexp.MustCompile(`[\x{0900}-\x{097F}\s.]`)
	spaceRuns = regexp.MustCompile(`\s+`)
	wordRune  = regexp.MustCompile(`[\p{L}\p{N}]`)
	nameShape = regexp.MustCompile(`^[\s\x{0900}-\x{097F}.]+$`)
)

// CleanName strips everything that cannot appear in a printed Devanagari
// name, keeping letters, matras, conjuncts, numerals, spaces and periods
// used in abbreviations. Stray periods without an adjacent letter are
// dropped. Returns an empty string when nothing name-like remains.
func CleanName(name string) string {
	if name == "" {
		return ""
	}

	kept := strings.Join(nameKeep.FindAllString(name, -1), "")
	kept = spaceRuns.ReplaceAllString(kept, " ")
	kept = strings.Trim(kept, " .")

	// A period only survives between two letters, as in an abbreviation.
	runes := []rune(kept)
	var b strings.Builder
	for i, r := range runes {
		if r != '.' {
			b.WriteRune(r)
			continue
		}
		prevOK := i > 0 && wordRune.MatchString(string(runes[i-1]))
		nextOK := i+1 < len(runes) && wordRune.MatchString(string(runes[i+1]))
		if prevOK && nextOK {
			b.WriteRune(r)
		}
	}
	cleaned := strings.TrimSpace(b.String())

	if !devanagariLetter.MatchString(cleaned) {
		return ""
	}
	return cleaned
}

// ValidateName reports whether name consists solely of Devanagari
// characters, spaces and periods, with at least one actual letter.
func ValidateName(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	if !nameShape.MatchString(name) {
		return false
	}
	return devanagariLetter.MatchString(name)
}

// CorrectName cleans a raw name field and applies the OCR corrections,
// re-cleaning afterwards so no rule can introduce a stray character.
func CorrectName(name string) string {
	cleaned := CleanName(name)
	if cleaned == "" {
		return ""
	}
	return CleanName(CorrectText(cleaned))
}
