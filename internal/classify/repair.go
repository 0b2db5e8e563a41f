package classify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opencohort/colnorm/pkg/grammar"
)

// FixImpureName replaces exception tokens in a column name with their
// mapped concept IDs. Tokens present in the exception map become
// "D_<conceptID>"; every other token is left alone.
//
//	FixImpureName("D_259089008_SIBCANC3O_962468280",
//	              map[string]string{"SIBCANC3O": "123456789"})
//	=> "D_259089008_D_123456789_962468280"
func FixImpureName(name string, exceptions map[string]string) string {
	tokens := strings.Split(name, "_")
	fixed := make([]string, len(tokens))
	for i, tok := range tokens {
		if id, ok := exceptions[tok]; ok {
			fixed[i] = "D_" + id
		} else {
			fixed[i] = tok
		}
	}
	return strings.Join(fixed, "_")
}

// MissingMappingError lists impure tokens that have no exception-map entry.
type MissingMappingError struct {
	Tokens []string
}

func (e *MissingMappingError) Error() string {
	return fmt.Sprintf("missing exception mapping for tokens: %s; add these tokens to the exception map",
		strings.Join(e.Tokens, ", "))
}

// RepairNames validates and repairs a batch of column names against an
// exception map. Every token must be the literal "d", an all-digit token,
// a version token, or a mapped exception; otherwise a MissingMappingError
// naming all unmapped tokens is returned and nothing is repaired.
func RepairNames(names []string, exceptions map[string]string) ([]string, error) {
	missing := make(map[string]struct{})
	vocab := grammar.NewVocabulary(nil, nil, nil)
	for _, name := range names {
		for _, tok := range vocab.ImpureTokens(name) {
			if _, ok := exceptions[tok]; !ok {
				missing[tok] = struct{}{}
			}
		}
	}
	if len(missing) > 0 {
		tokens := make([]string, 0, len(missing))
		for tok := range missing {
			tokens = append(tokens, tok)
		}
		sort.Strings(tokens)
		return nil, &MissingMappingError{Tokens: tokens}
	}

	fixed := make([]string, len(names))
	for i, name := range names {
		fixed[i] = FixImpureName(name, exceptions)
	}
	return fixed, nil
}
