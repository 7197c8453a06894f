package channels

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Fit truncates s to at most max display cells, ending with "…" when cut.
// Emoji count as two cells, which keeps titles inside WhatsApp's
// character limits.
func Fit(s string, max int) string {
	s = strings.TrimSpace(s)
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max, "…")
}

// SplitText breaks a long message into parts of at most max runes,
// preferring paragraph and then line boundaries.
func SplitText(text string, max int) []string {
	if max <= 0 {
		max = MaxTextBody
	}
	var parts []string
	for {
		r := []rune(text)
		if len(r) <= max {
			if s := strings.TrimSpace(text); s != "" {
				parts = append(parts, s)
			}
			return parts
		}
		head := string(r[:max])
		cut := strings.LastIndex(head, "\n\n")
		if cut <= 0 {
			cut = strings.LastIndex(head, "\n")
		}
		if cut <= 0 {
			cut = strings.LastIndex(head, " ")
		}
		if cut <= 0 {
			cut = len(head)
		}
		if s := strings.TrimSpace(text[:cut]); s != "" {
			parts = append(parts, s)
		}
		text = text[cut:]
	}
}
