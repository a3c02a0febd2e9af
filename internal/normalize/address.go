// Package normalize canonicalizes free-text UK addresses for cache keys
// and record matching. All functions are pure.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// unitRe matches unit designators and their identifier ("flat 2", "apt 3b",
// "unit 12", "room 4"), which name a subdivision rather than the building.
var unitRe = regexp.MustCompile(`\b(flat|apartment|apt|unit|room)\s*[0-9]*[a-z]?\b`)

// houseNumberRe captures a leading house number with an optional letter
// suffix ("12", "12a").
var houseNumberRe = regexp.MustCompile(`^(\d+[a-z]?)\b`)

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// streetSuffixes lists street-type tokens stripped in street-level
// comparison mode, with common abbreviations.
var streetSuffixes = map[string]bool{
	"road": true, "rd": true,
	"street": true, "st": true,
	"avenue": true, "ave": true,
	"lane": true, "ln": true,
	"drive": true, "dr": true,
	"close": true, "cl": true,
	"court": true, "ct": true,
	"place": true, "pl": true,
	"way": true,
	"gardens": true, "gdns": true,
	"terrace": true, "ter": true,
	"grove": true, "gr": true,
	"crescent": true, "cres": true,
}

// Address lower-cases, strips punctuation and diacritics, removes unit
// designators, and collapses whitespace. Idempotent: Address(Address(x))
// equals Address(x).
func Address(raw string) string {
	s := stripDiacritics(strings.ToLower(strings.TrimSpace(raw)))
	s = strings.NewReplacer(",", " ", ".", " ", "'", "", "\"", "").Replace(s)
	s = unitRe.ReplaceAllString(s, " ")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Street normalizes as Address does and additionally drops street-suffix
// tokens, leaving only the distinguishing parts of a street name. Used for
// token-overlap comparison, never for cache keys.
func Street(raw string) string {
	toks := strings.Fields(Address(raw))
	kept := toks[:0]
	for _, t := range toks {
		if streetSuffixes[t] {
			continue
		}
		kept = append(kept, t)
	}
	return strings.Join(kept, " ")
}

// HouseNumber returns the leading house number of a normalized address
// ("12", "12a"), or "" when the address does not start with one.
func HouseNumber(raw string) string {
	return houseNumberRe.FindString(Address(raw))
}

// WithoutHouseNumber strips the leading house number, returning the
// street-name remainder used by the street-level geocoding strategy.
func WithoutHouseNumber(raw string) string {
	s := Address(raw)
	return strings.TrimSpace(houseNumberRe.ReplaceAllString(s, ""))
}

// Postcode upper-cases a UK postcode and reinstates the single space
// before the inward code ("n76pa" -> "N7 6PA").
func Postcode(raw string) string {
	s := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	if len(s) < 5 || len(s) > 7 {
		return s
	}
	return s[:len(s)-3] + " " + s[len(s)-3:]
}

// SignificantTokens returns the tokens of a street-normalized address that
// carry matching signal: longer than minLen and not purely numeric.
func SignificantTokens(raw string, minLen int) []string {
	var out []string
	for _, t := range strings.Fields(Street(raw)) {
		if len(t) <= minLen || isNumeric(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// stripDiacritics decomposes to NFKD and drops combining marks, so scraped
// addresses with stray accents compare equal to their plain forms.
func stripDiacritics(s string) string {
	decomposed := norm.NFKD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}
