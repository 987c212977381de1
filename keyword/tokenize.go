package keyword

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kljensen/snowball"
)

// MinTokenLen is the shortest token kept, in runes.
const MinTokenLen = 2

var tokenPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)

// Tokenize lowercases text and splits it into runs of letters, marks, digits
// and underscores, dropping tokens shorter than MinTokenLen.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if utf8.RuneCountInString(t) >= MinTokenLen {
			out = append(out, t)
		}
	}
	return out
}

// stemTokens applies English snowball stemming in place. Tokens outside
// ASCII are left alone; the stemmer only understands English suffixes.
func stemTokens(tokens []string) []string {
	for i, t := range tokens {
		if !isASCII(t) {
			continue
		}
		stemmed, err := snowball.Stem(t, "english", false)
		if err == nil && utf8.RuneCountInString(stemmed) >= MinTokenLen {
			tokens[i] = stemmed
		}
	}
	return tokens
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
