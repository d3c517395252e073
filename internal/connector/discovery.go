package connector

import "strings"

// Candidate is one board/page the authenticated account can post to.
type Candidate struct {
	ID   string
	Name string
}

// SelectSubResource picks the board/page to post to when the user has
// not chosen one. Preference keywords are tried in order against the
// candidate names (case-insensitive substring); if none match, the
// first candidate wins. The selection is deterministic for a given
// candidate list.
func SelectSubResource(candidates []Candidate, keywords []string) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		for _, c := range candidates {
			if strings.Contains(strings.ToLower(c.Name), kw) {
				return c, true
			}
		}
	}
	return candidates[0], true
}
