package domain

import "regexp"

// markupRe matches one tag-like run: "<", then at least one character that is
// not "<", then the nearest ">".
var markupRe = regexp.MustCompile(`<[^<]+?>`)

// StripMarkup removes HTML-like tags from free text, e.g.
// "Use <b>Pitt St</b>" -> "Use Pitt St".
func StripMarkup(s string) string {
	if s == "" {
		return s
	}
	return markupRe.ReplaceAllString(s, "")
}
