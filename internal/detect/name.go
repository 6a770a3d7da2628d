package detect

import (
	"strings"
	"unicode"
)

// vendorKeywords are known subscription vendors, grouped by category and
// checked in this order against the uppercased seed description. First hit
// wins and becomes the subscription's display name.
var vendorKeywords = [][]string{
	// streaming
	{"NETFLIX", "SPOTIFY", "PRIME", "AMAZON PRIME", "DISNEY", "HBO", "APPLE MUSIC"},
	// gym
	{"GYM", "FITNESS", "PLANET FITNESS", "GOLD'S GYM"},
	// utilities
	{"ELECTRICITY", "WATER", "GAS", "INTERNET", "MOBILE"},
}

// ExtractSubscriptionName derives a display name from a cluster's seed
// description. Known vendor keywords win; otherwise the name falls back to
// the title-cased first three words of the description.
//
// This name is the de-duplication key for the (user, name) upsert, so any
// change here can fork a "new" subscription from what a human would consider
// the same service.
func ExtractSubscriptionName(description string) string {
	upper := strings.ToUpper(description)

	for _, group := range vendorKeywords {
		for _, keyword := range group {
			if strings.Contains(upper, keyword) {
				return titleCase(keyword)
			}
		}
	}

	words := strings.Fields(upper)
	if len(words) > 3 {
		words = words[:3]
	}
	return titleCase(strings.Join(words, " "))
}

// titleCase uppercases the first letter of every letter-run and lowercases
// the rest, so "GOLD'S GYM" becomes "Gold'S Gym" and "NETFLIX" "Netflix".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}
