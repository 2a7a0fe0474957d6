package search

import "strings"

// MatchKind classifies the outcome of resolving a course name against the
// catalog.
type MatchKind int

const (
	// MatchNone means no catalog title matched.
	MatchNone MatchKind = iota
	// MatchExact means exactly one title matched (by equality or as the
	// unique partial match).
	MatchExact
	// MatchAmbiguous means two or more titles matched a partial name.
	MatchAmbiguous
)

// Match is the result of MatchCourseTitle.
type Match struct {
	Kind  MatchKind
	Title string // resolved catalog title when Kind is MatchExact
	// Candidates lists the conflicting titles when Kind is MatchAmbiguous,
	// in catalog order.
	Candidates []string
}

// MatchCourseTitle resolves a user-supplied course name against catalog
// titles. Matching is deterministic:
//
//  1. Case-insensitive exact title match wins outright, even when the name
//     is also a substring of other titles.
//  2. Otherwise the name matches titles containing it as a case-insensitive
//     substring, or containing every whitespace-separated token of it.
//     A unique partial match resolves; multiple matches are ambiguous.
//
// An empty name never matches.
func MatchCourseTitle(name string, titles []string) Match {
	name = strings.TrimSpace(name)
	if name == "" {
		return Match{Kind: MatchNone}
	}
	lower := strings.ToLower(name)

	for _, title := range titles {
		if strings.ToLower(title) == lower {
			return Match{Kind: MatchExact, Title: title}
		}
	}

	tokens := strings.Fields(lower)
	var candidates []string
	for _, title := range titles {
		lt := strings.ToLower(title)
		if strings.Contains(lt, lower) || containsAllTokens(lt, tokens) {
			candidates = append(candidates, title)
		}
	}

	switch len(candidates) {
	case 0:
		return Match{Kind: MatchNone}
	case 1:
		return Match{Kind: MatchExact, Title: candidates[0]}
	default:
		return Match{Kind: MatchAmbiguous, Candidates: candidates}
	}
}

func containsAllTokens(title string, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, tok := range tokens {
		if !strings.Contains(title, tok) {
			return false
		}
	}
	return true
}
