package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupByConceptsLoopVersion(t *testing.T) {
	names := []string{
		"d_123456789_1_1_d_987654321_1_1",
		"d_123456789_2_2_d_987654321_2_2",
		"d_111111111_1_1_d_222222222_1_1_v1",
		"d_123456789_9_9_d_987654321_9_9",
		"d_123456789_9_9_d_987654321_9_9_9_9_9_9",
		"d_123456789_v3_5_5",
		"d_123456789", // no loop number, ignored
	}

	groups := GroupByConceptsLoopVersion(names)
	require.Len(t, groups, 5)

	assert.Equal(t,
		[]string{"d_123456789_1_1_d_987654321_1_1"},
		groups[NewGroupKey([]string{"123456789", "987654321"}, 1, "")])
	assert.Equal(t,
		[]string{"d_123456789_2_2_d_987654321_2_2"},
		groups[NewGroupKey([]string{"123456789", "987654321"}, 2, "")])
	assert.Equal(t,
		[]string{"d_111111111_1_1_d_222222222_1_1_v1"},
		groups[NewGroupKey([]string{"111111111", "222222222"}, 1, "_v1")])
	assert.Equal(t,
		[]string{
			"d_123456789_9_9_d_987654321_9_9",
			"d_123456789_9_9_d_987654321_9_9_9_9_9_9",
		},
		groups[NewGroupKey([]string{"123456789", "987654321"}, 9, "")])
	assert.Equal(t,
		[]string{"d_123456789_v3_5_5"},
		groups[NewGroupKey([]string{"123456789"}, 5, "_v3")])
}

func TestGroupByConceptsLoopVersion_DistinctLoops(t *testing.T) {
	groups := GroupByConceptsLoopVersion([]string{
		"d_123456789_1_1_d_987654321_1_1",
		"d_123456789_2_2_d_987654321_2_2",
	})
	require.Len(t, groups, 2)
	for _, members := range groups {
		assert.Len(t, members, 1)
	}
}

func TestNewGroupKey_CollapsesDuplicates(t *testing.T) {
	a := NewGroupKey([]string{"812370563", "812370563", "665036297"}, 1, "")
	b := NewGroupKey([]string{"665036297", "812370563"}, 1, "")
	assert.Equal(t, a, b)
	assert.Equal(t, []string{"665036297", "812370563"}, a.ConceptIDs())
}

func TestSortedGroupKeys_Deterministic(t *testing.T) {
	groups := map[GroupKey][]string{
		NewGroupKey([]string{"222222222"}, 2, ""):    {"x"},
		NewGroupKey([]string{"111111111"}, 1, "_v2"): {"y"},
		NewGroupKey([]string{"111111111"}, 1, ""):    {"z"},
	}
	keys := SortedGroupKeys(groups)
	require.Len(t, keys, 3)
	assert.Equal(t, NewGroupKey([]string{"111111111"}, 1, ""), keys[0])
	assert.Equal(t, NewGroupKey([]string{"111111111"}, 1, "_v2"), keys[1])
	assert.Equal(t, NewGroupKey([]string{"222222222"}, 2, ""), keys[2])
}

func TestVocabularyIsPure(t *testing.T) {
	vocab := NewVocabulary(
		[]string{"Connect_ID", "token"},
		[]string{"treatmenttype"},
		[]string{"num", "state", "provided"},
	)

	tests := []struct {
		name string
		pure bool
	}{
		{"D_869387390_11_11_D_478706011_11", true},
		{"D_907590067_4_4_SIBCANC3O_D_650332509_4", false},
		{"D_299417266_v2", true},
		{"Connect_ID", true},
		{"token", true},
		{"treatmenttype", false},
		{"d_123456789_num", true},
		{"state_d_123456789", true},
		{"d_123456789_extra", false},
		{"hello", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.pure, vocab.IsPure(tt.name))
		})
	}
}

func TestVocabularyImpureTokens(t *testing.T) {
	vocab := NewVocabulary(nil, nil, []string{"num"})
	assert.Equal(t, []string{"SIBCANC3O"}, vocab.ImpureTokens("D_907590067_4_4_SIBCANC3O_D_650332509_4"))
	assert.Nil(t, vocab.ImpureTokens("d_123456789_1_1"))
}
