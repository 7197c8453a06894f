package handlers

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

var greetings = []string{
	"hi", "hello", "hey", "hallo", "greetings",
	"menu", "start", "home",
}

// greetingPhrases are multi-word greetings matched word for word.
var greetingPhrases = [][]string{
	{"good", "morning"},
	{"good", "afternoon"},
	{"good", "evening"},
	{"main", "menu"},
}

// greetingTail is how many words may follow the greeting itself.
const greetingTail = 3

// isGreeting reports whether the message opens with a greeting or a menu
// command followed by at most a few words. The opening word may carry
// one typo; a typo in a short greeting may only add a letter or change one.
func isGreeting(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return false
	}
	for _, p := range greetingPhrases {
		if len(words) >= len(p) && equalWords(words[:len(p)], p) {
			return len(words)-len(p) <= greetingTail
		}
	}
	return len(words)-1 <= greetingTail && greetingWord(words[0])
}

func greetingWord(w string) bool {
	n := utf8.RuneCountInString(w)
	for _, g := range greetings {
		if w == g {
			return true
		}
		gn := utf8.RuneCountInString(g)
		if gn < 4 && n != gn+1 {
			// "he" or "ho" must not pass for "hi".
			continue
		}
		if levenshtein.ComputeDistance(w, g) <= 1 {
			return true
		}
	}
	return false
}

func equalWords(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
