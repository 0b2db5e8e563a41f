package grammar

import "strings"

// Vocabulary holds the configurable word lists that purity classification
// consults. Lookups are case-insensitive; construct one with NewVocabulary
// so the entries are normalized once.
type Vocabulary struct {
	allowedNames   map[string]struct{}
	forbiddenNames map[string]struct{}
	allowedTokens  map[string]struct{}
}

// NewVocabulary builds a Vocabulary from the configured exact-name allow
// list, exact-name forbidden list, and non-concept-ID token allow list.
func NewVocabulary(allowedNames, forbiddenNames, allowedTokens []string) *Vocabulary {
	return &Vocabulary{
		allowedNames:   lowerSet(allowedNames),
		forbiddenNames: lowerSet(forbiddenNames),
		allowedTokens:  lowerSet(allowedTokens),
	}
}

func lowerSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[strings.ToLower(item)] = struct{}{}
	}
	return set
}

// IsAllowedName reports whether the whole name is on the exact allow list.
func (v *Vocabulary) IsAllowedName(name string) bool {
	_, ok := v.allowedNames[strings.ToLower(name)]
	return ok
}

// IsForbiddenName reports whether the whole name is on the forbidden list.
func (v *Vocabulary) IsForbiddenName(name string) bool {
	_, ok := v.forbiddenNames[strings.ToLower(name)]
	return ok
}

// IsPure reports whether a column name consists only of grammar-recognized
// tokens. A forbidden whole-name match fails immediately and an allowed
// whole-name match passes immediately; otherwise every underscore-delimited
// token must be the literal "d", an all-digit token (concept IDs and loop
// numbers alike), a version token "vN", or a token on the allow list. A
// single disallowed token makes the whole name impure.
func (v *Vocabulary) IsPure(name string) bool {
	if v.IsAllowedName(name) {
		return true
	}
	if v.IsForbiddenName(name) {
		return false
	}
	for _, tok := range strings.Split(name, "_") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		lower := strings.ToLower(tok)
		if lower == "d" {
			continue
		}
		if allDigits(tok) {
			continue
		}
		if lower[0] == 'v' && allDigits(lower[1:]) {
			continue
		}
		if _, ok := v.allowedTokens[lower]; ok {
			continue
		}
		return false
	}
	return true
}

// ImpureTokens returns the tokens of a name that purity classification
// rejects, in order of appearance. Useful for suggesting exception-map
// entries for misnamed columns.
func (v *Vocabulary) ImpureTokens(name string) []string {
	if v.IsAllowedName(name) {
		return nil
	}
	var bad []string
	for _, tok := range strings.Split(name, "_") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		lower := strings.ToLower(tok)
		if lower == "d" || allDigits(tok) {
			continue
		}
		if lower[0] == 'v' && allDigits(lower[1:]) {
			continue
		}
		if _, ok := v.allowedTokens[lower]; ok {
			continue
		}
		bad = append(bad, tok)
	}
	return bad
}
