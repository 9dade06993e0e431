package devanagari

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Romanizations of independent vowels, consonants and numerals.
// Consonant entries carry no inherent vowel; syllable assembly adds it.
var letterSounds = map[rune]string{
	'अ': "a", 'आ': "aa", 'इ': "i", 'ई': "ee", 'उ': "u", 'ऊ': "oo",
	'ऋ': "ri", 'ए': "e", 'ऐ': "ai", 'ओ': "o", 'औ': "au",

	'क': "k", 'ख': "kh", 'ग': "g", 'घ': "gh", 'ङ': "ng",
	'च': "ch", 'छ': "chh", 'ज': "j", 'झ': "jh", 'ञ': "ny",
	'ट': "t", 'ठ': "th", 'ड': "d", 'ढ': "dh", 'ण': "n",
	'त': "t", 'थ': "th", 'द': "d", 'ध': "dh", 'न': "n",
	'प': "p", 'फ': "ph", 'ब': "b", 'भ': "bh", 'म': "m",
	'य': "y", 'र': "r", 'ल': "l", 'व': "v",
	'श': "sh", 'ष': "sh", 'स': "s", 'ह': "h", 'ळ': "l",

	'०': "0", '१': "1", '२': "2", '३': "3", '४': "4",
	'५': "5", '६': "6", '७': "7", '८': "8", '९': "9",
}

// Dependent vowel signs (matras) replacing the inherent 'a'.
var matraSounds = map[rune]string{
	'ा': "aa", 'ि': "i", 'ी': "ee", 'ु': "u", 'ू': "oo",
	'ृ': "ri", 'े': "e", 'ै': "ai", 'ो': "o", 'ौ': "au",
}

var velars = map[rune]bool{'क': true, 'ख': true, 'ग': true, 'घ': true}

func isConsonant(r rune) bool {
	return (r >= 'क' && r <= 'ह') || r == 'ळ'
}

var titleCaser = cases.Title(language.English)

// Transliterate converts Devanagari text to a romanized English spelling
// using a local character mapping. It is the offline fallback when the
// translation API is unavailable; words are capitalized the way proper
// names are written.
//
// The assembly rules follow standard romanization: a consonant carries an
// inherent 'a' unless a matra supplies the vowel or a halant suppresses
// it, anusvara becomes 'n' before velar consonants and 'm' elsewhere, and
// visarga becomes 'h'.
func Transliterate(text string) string {
	if text == "" {
		return ""
	}
	if !Contains(text) {
		return titleCaser.String(strings.ToLower(strings.TrimSpace(text)))
	}

	runes := []rune(text)
	var b strings.Builder
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch {
		case r == ' ':
			b.WriteByte(' ')
		case strings.ContainsRune(".,-:;!?", r):
			b.WriteRune(r)
		case r == 'ं': // anusvara
			if i+1 < len(runes) && velars[runes[i+1]] {
				b.WriteByte('n')
			} else {
				b.WriteByte('m')
			}
		case r == 'ः': // visarga
			b.WriteByte('h')
		case r == '्': // halant suppresses the inherent vowel
			trimTrailingA(&b)
		default:
			sound, known := letterSounds[r]
			if !known {
				b.WriteRune(r)
				continue
			}
			if isConsonant(r) {
				if i+1 < len(runes) {
					if matra, ok := matraSounds[runes[i+1]]; ok {
						b.WriteString(sound + matra)
						i++
						continue
					}
					if runes[i+1] == '्' {
						b.WriteString(sound)
						continue
					}
				}
				b.WriteString(sound + "a")
				continue
			}
			b.WriteString(sound)
		}
	}

	romanized := spaceRuns.ReplaceAllString(b.String(), " ")
	romanized = strings.TrimSpace(romanized)
	return titleCaser.String(romanized)
}

// trimTrailingA drops a trailing inherent 'a' from the builder. A double
// 'aa' comes from a matra and stays intact.
func trimTrailingA(b *strings.Builder) {
	s := b.String()
	if strings.HasSuffix(s, "a") && !strings.HasSuffix(s, "aa") {
		b.Reset()
		b.WriteString(s[:len(s)-1])
	}
}
