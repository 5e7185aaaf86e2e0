package titler

import (
	"strings"
	"unicode/utf8"
)

// junkChars are always deleted from generated titles: quotes of several
// styles, brackets, ellipsis, hash.
const junkChars = "\"'`“”‘’「」『』()[]{}…#"

// terminalPunct ends a title; everything from the first occurrence on
// is dropped.
const terminalPunct = ".,!?;:·•"

var defaultFillers = []string{"오늘의 ", "조용한 ", "아주 "}

// Shrink canonicalizes a raw generated title to at most limit runes
// using the default filler list. The operation is idempotent:
// Shrink(Shrink(s, L), L) == Shrink(s, L).
func Shrink(raw string, limit int) string {
	return shrinkWith(raw, limit, defaultFillers)
}

func shrinkWith(raw string, limit int, fillers []string) string {
	s := strings.TrimSpace(raw)
	s = stripJunk(s)
	s = cutAtPunct(s)
	s = stripFillers(s, fillers)
	s = strings.TrimSpace(s)
	return capLength(s, limit)
}

func stripJunk(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(junkChars, r) {
			return -1
		}
		return r
	}, s)
}

func cutAtPunct(s string) string {
	// Leading punctuation would leave an empty prefix; drop it instead
	// of truncating to nothing.
	s = strings.TrimLeft(s, terminalPunct+" ")
	if idx := strings.IndexAny(s, terminalPunct); idx >= 0 {
		s = s[:idx]
	}
	return s
}

// stripFillers removes leading filler phrases, first match wins,
// repeating until none match so re-shrinking cannot peel another one.
func stripFillers(s string, fillers []string) string {
	for {
		matched := false
		for _, f := range fillers {
			if strings.HasPrefix(s, f) {
				s = strings.TrimPrefix(s, f)
				matched = true
				break
			}
		}
		if !matched {
			return s
		}
	}
}

// capLength greedily keeps whole whitespace-delimited words while the
// running rune length stays within limit. When even the first word is
// too long it is hard-truncated to limit.
func capLength(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	out := ""
	for _, w := range words {
		next := w
		if out != "" {
			next = out + " " + w
		}
		if utf8.RuneCountInString(next) > limit {
			break
		}
		out = next
	}
	if out == "" {
		r := []rune(words[0])
		return string(r[:limit])
	}
	return out
}
