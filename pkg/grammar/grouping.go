package grammar

import (
	"sort"
	"strings"
)

// GroupKey identifies an equivalence class of loop variables: the set of
// concept IDs (order-independent, duplicates collapsed), the loop number,
// and the version suffix. Two column names describe the same logical field
// iff their GroupKeys are equal.
type GroupKey struct {
	// Concepts is the canonical encoding of the concept-ID set: unique IDs
	// sorted and joined with "|". Keeping the key comparable lets it serve
	// directly as a map key.
	Concepts string

	Loop    int
	Version string
}

// NewGroupKey builds a GroupKey from concept IDs in any order.
func NewGroupKey(conceptIDs []string, loop int, version string) GroupKey {
	uniq := make([]string, 0, len(conceptIDs))
	seen := make(map[string]struct{}, len(conceptIDs))
	for _, id := range conceptIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	sort.Strings(uniq)
	return GroupKey{Concepts: strings.Join(uniq, "|"), Loop: loop, Version: version}
}

// ConceptIDs returns the concept-ID set of the key in canonical order.
func (k GroupKey) ConceptIDs() []string {
	if k.Concepts == "" {
		return nil
	}
	return strings.Split(k.Concepts, "|")
}

// GroupByConceptsLoopVersion partitions loop variables into equivalence
// classes. For each name the version suffix is read from the original name,
// concept IDs from the version-stripped form, and the loop number from the
// original form (loop detection needs to see version tokens to apply the
// version-aware pair rule). Names without concept IDs or without a loop
// number are omitted; they pass through individually and are the caller's
// concern. Member order within a group follows input order.
func GroupByConceptsLoopVersion(names []string) map[GroupKey][]string {
	groups := make(map[GroupKey][]string)
	for _, name := range names {
		version := ExtractVersionSuffix(name)
		ids := ExtractOrderedConceptIDs(StripVersionSuffix(name))
		loop, ok := ExtractLoopNumber(name)
		if len(ids) == 0 || !ok {
			continue
		}
		key := NewGroupKey(ids, loop, version)
		groups[key] = append(groups[key], name)
	}
	return groups
}

// SortedGroupKeys returns the keys of a grouping in a deterministic order:
// by concept set, then loop number, then version suffix.
func SortedGroupKeys(groups map[GroupKey][]string) []GroupKey {
	keys := make([]GroupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Concepts != keys[j].Concepts {
			return keys[i].Concepts < keys[j].Concepts
		}
		if keys[i].Loop != keys[j].Loop {
			return keys[i].Loop < keys[j].Loop
		}
		return keys[i].Version < keys[j].Version
	})
	return keys
}
