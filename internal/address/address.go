// Package address reduces free-form Korean addresses to the compact
// "city + administrative unit" form used in titles, e.g.
// "경상북도 포항시 남구 효자동" -> "포항 남구".
package address

import (
	"strings"
	"unicode"
)

// Suffix tables are ordered longest-first so that e.g. "특별자치시"
// wins over the bare "시".
var (
	provinceSuffixes = []string{"특별자치도", "도"}
	citySuffixes     = []string{"특별자치시", "특별시", "광역시", "시"}
	districtSuffixes = []string{"구", "군"}
	minorSuffixes    = []string{"읍", "면", "동"}
)

// cityScanWindow caps how many tokens after the province are examined
// for a city-level unit.
const cityScanWindow = 3

// Canonicalize returns the "<city-base> <admin-unit>" suffix for a
// free-form address, or ok=false when no city-level unit is found.
// Whole-token suffix matches beat intra-token splits at the same
// level, and a district (구/군) beats a minor unit (읍/면/동)
// regardless of position.
func Canonicalize(raw string) (string, bool) {
	tokens := tokenize(raw)
	if len(tokens) == 0 {
		return "", false
	}

	start := 0
	if endsWithAny(tokens[0], provinceSuffixes) != "" {
		start = 1
	}

	cityIdx, citySuffix, residual := findCity(tokens, start)
	if cityIdx < 0 {
		return "", false
	}

	cityToken := tokens[cityIdx]
	if residual != "" {
		cityToken = strings.TrimSuffix(cityToken, residual)
	}
	base := strings.TrimSuffix(cityToken, citySuffix)

	rest := tokens[cityIdx+1:]
	if residual != "" {
		rest = append([]string{residual}, rest...)
	}

	unit := findUnit(rest, districtSuffixes)
	if unit == "" {
		unit = findUnit(rest, minorSuffixes)
	}
	if unit == "" {
		return base, true
	}
	return base + " " + unit, true
}

func tokenize(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
}

// findCity locates the city-level token within the scan window. The
// whole-token pass runs over the full window before any intra-token
// split is attempted.
func findCity(tokens []string, start int) (idx int, suffix, residual string) {
	end := start + cityScanWindow
	if end > len(tokens) {
		end = len(tokens)
	}
	for i := start; i < end; i++ {
		if sfx := endsWithAny(tokens[i], citySuffixes); sfx != "" {
			return i, sfx, ""
		}
	}
	for i := start; i < end; i++ {
		if sfx, rest := splitAt(tokens[i], citySuffixes); sfx != "" {
			return i, sfx, rest
		}
	}
	return -1, "", ""
}

// findUnit searches tokens for an administrative unit at one level:
// whole-token suffix matches first, then intra-token splits.
func findUnit(tokens []string, suffixes []string) string {
	for _, tok := range tokens {
		if endsWithAny(tok, suffixes) != "" {
			return tok
		}
	}
	for _, tok := range tokens {
		if sfx, rest := splitAt(tok, suffixes); sfx != "" {
			return strings.TrimSuffix(tok, rest)
		}
	}
	return ""
}

func endsWithAny(tok string, suffixes []string) string {
	for _, sfx := range suffixes {
		if strings.HasSuffix(tok, sfx) && len(tok) > len(sfx) {
			return sfx
		}
	}
	return ""
}

// splitAt finds the earliest interior occurrence of any suffix, longest
// suffix first, and returns that suffix plus the residual text after it.
func splitAt(tok string, suffixes []string) (suffix, residual string) {
	for _, sfx := range suffixes {
		idx := strings.Index(tok, sfx)
		if idx > 0 && idx+len(sfx) < len(tok) {
			return sfx, tok[idx+len(sfx):]
		}
	}
	return "", ""
}
