// Package grammar implements the column-name grammar for flattened survey
// response tables. Variable names are underscore-delimited token sequences
// built from concept IDs (a literal "d" followed by a 9-digit identifier),
// loop numbers (a doubled integer token pair "_N_N" marking one repetition
// of a repeated question block), and version suffixes ("_vN"). The package
// provides the primitives to take these names apart and to group columns
// that represent the same logical field.
//
// All extraction functions are pure: the same input always yields the same
// result, and version stripping is idempotent.
package grammar

import (
	"regexp"
	"strconv"
	"strings"
)

// conceptIDRe matches a concept ID signature: "d_" (case-insensitive)
// followed by exactly nine digits.
var conceptIDRe = regexp.MustCompile(`(?i)d_(\d{9})`)

// versionRe matches a candidate version token. Callers must additionally
// check that the token ends at an underscore or at the end of the name.
var versionRe = regexp.MustCompile(`(?i)_v(\d+)`)

// ExtractOrderedConceptIDs returns every 9-digit concept ID in the name in
// order of appearance. Duplicates are preserved.
//
//	ExtractOrderedConceptIDs("D_812370563_1_1_D_812370563_1_1_D_665036297")
//	=> ["812370563", "812370563", "665036297"]
func ExtractOrderedConceptIDs(name string) []string {
	matches := conceptIDRe.FindAllStringSubmatch(name, -1)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}

// ExtractVersionSuffix returns the canonical lowercase version suffix
// ("_v2", "_v3", ...) of a name, or "" if the name carries no version
// token. The token may appear anywhere in the name. If several version
// tokens are present the first one wins.
func ExtractVersionSuffix(name string) string {
	for _, loc := range versionRe.FindAllStringSubmatchIndex(name, -1) {
		if tokenBoundary(name, loc[1]) {
			return "_v" + name[loc[2]:loc[3]]
		}
	}
	return ""
}

// StripVersionSuffix removes every version token from the name, preserving
// the surrounding delimiters. Applying it twice is a no-op.
//
//	StripVersionSuffix("D_715581797_V3_1_1") => "D_715581797_1_1"
//	StripVersionSuffix("D_899251483_V2_D_452438775") => "D_899251483_D_452438775"
func StripVersionSuffix(name string) string {
	locs := versionRe.FindAllStringSubmatchIndex(name, -1)
	if len(locs) == 0 {
		return name
	}
	var b strings.Builder
	prev := 0
	for _, loc := range locs {
		if !tokenBoundary(name, loc[1]) {
			continue
		}
		b.WriteString(name[prev:loc[0]])
		prev = loc[1]
	}
	b.WriteString(name[prev:])
	return b.String()
}

// ExtractLoopNumber detects the loop number of a name. The first repeated
// integer pair "_N_N" (left to right) governs; a pair immediately following
// a version token is recognized before version stripping so that names like
// "d_123456789_v2_5_5" resolve to 5. A trailing single "_N" counts only
// when the version-stripped name also contains an "_N_N" pair elsewhere
// (partially collapsed names). The second return value reports whether a
// loop number was found.
func ExtractLoopNumber(name string) (int, bool) {
	// Pair directly after a version token, checked against the unstripped
	// name: _vK_N_N.
	for _, loc := range versionRe.FindAllStringSubmatchIndex(name, -1) {
		if n, ok := repeatedPairAt(name, loc[1]); ok {
			return n, true
		}
	}

	stripped := StripVersionSuffix(name)

	if n, ok := firstRepeatedPair(stripped); ok {
		return n, true
	}

	// Trailing _N accepted only if an _N_N pair occurs elsewhere.
	if hasAnyRepeatedPair(stripped) {
		if n, ok := trailingNumber(stripped); ok {
			return n, true
		}
	}

	return 0, false
}

// firstRepeatedPair finds the leftmost "_N_N" occurrence where the second N
// is not immediately followed by another digit, and returns N.
func firstRepeatedPair(s string) (int, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] != '_' {
			continue
		}
		if n, ok := repeatedPairAt(s, i); ok {
			return n, true
		}
	}
	return 0, false
}

// repeatedPairAt reports whether a "_N_N" pair starts exactly at offset i
// (which must point at the leading underscore).
func repeatedPairAt(s string, i int) (int, bool) {
	if i >= len(s) || s[i] != '_' {
		return 0, false
	}
	j := i + 1
	for j < len(s) && isDigit(s[j]) {
		j++
	}
	if j == i+1 || j >= len(s) || s[j] != '_' {
		return 0, false
	}
	num := s[i+1 : j]
	k := j + 1 + len(num)
	if k > len(s) || s[j+1:k] != num {
		return 0, false
	}
	// Not immediately followed by another digit.
	if k < len(s) && isDigit(s[k]) {
		return 0, false
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, false
	}
	return n, true
}

// hasAnyRepeatedPair reports whether s contains any "_N_N" occurrence,
// without the trailing-digit restriction.
func hasAnyRepeatedPair(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '_' {
			continue
		}
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if j == i+1 || j >= len(s) || s[j] != '_' {
			continue
		}
		num := s[i+1 : j]
		if strings.HasPrefix(s[j+1:], num) {
			return true
		}
	}
	return false
}

// trailingNumber returns N when s ends in "_N".
func trailingNumber(s string) (int, bool) {
	i := strings.LastIndexByte(s, '_')
	if i < 0 || i == len(s)-1 {
		return 0, false
	}
	tail := s[i+1:]
	if !allDigits(tail) {
		return 0, false
	}
	n, err := strconv.Atoi(tail)
	if err != nil {
		return 0, false
	}
	return n, true
}

// NonStandardID is a concept-ID-like token whose digit run is not exactly
// nine digits long. These are flagged, never silently coerced.
type NonStandardID struct {
	Column    string
	ConceptID string
}

// FindNonStandardConceptIDs scans column names for "d_<digits>" tokens whose
// digit run is terminated by an underscore or the end of the name but is not
// nine digits long.
func FindNonStandardConceptIDs(columns []string) []NonStandardID {
	var out []NonStandardID
	for _, col := range columns {
		for _, id := range conceptLikeIDs(col) {
			if len(id) != 9 {
				out = append(out, NonStandardID{Column: col, ConceptID: id})
			}
		}
	}
	return out
}

var conceptLikeRe = regexp.MustCompile(`(?i)d_(\d+)`)

// conceptLikeIDs returns every digit run following a "d_" prefix that ends
// at a token boundary, regardless of length.
func conceptLikeIDs(name string) []string {
	var ids []string
	for _, loc := range conceptLikeRe.FindAllStringSubmatchIndex(name, -1) {
		if tokenBoundary(name, loc[1]) {
			ids = append(ids, name[loc[2]:loc[3]])
		}
	}
	return ids
}

// ExciseSubstrings removes every occurrence of the given substrings from the
// name, in list order.
func ExciseSubstrings(name string, substrings []string) string {
	for _, sub := range substrings {
		name = strings.ReplaceAll(name, sub, "")
	}
	return name
}

// StandardizeCase lowercases a column name for output consistency. The
// primary-key column keeps its canonical case.
func StandardizeCase(name, primaryKey string) string {
	if name == primaryKey {
		return name
	}
	return strings.ToLower(name)
}

// tokenBoundary reports whether offset i sits on an underscore or at the
// end of the name.
func tokenBoundary(s string, i int) bool {
	return i >= len(s) || s[i] == '_'
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
