package commands

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"

	"github.com/opencohort/colnorm/internal/pipeline"
)

func TestPrintFixSuggestions(t *testing.T) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	impure := []pipeline.ImpureColumn{
		{Column: "D_259089008_SIBCANC3O", Tokens: []string{"SIBCANC3O"}},
		{Column: "d_111111111_mtc", Tokens: []string{"mtc"}},
	}
	printFixSuggestions(cmd, impure, map[string]string{
		"SIBCANC3O": "123456789",
		"mtc":       "222222222",
	})

	assert.Contains(t, out.String(), "suggest: D_259089008_SIBCANC3O -> D_259089008_D_123456789")
	assert.Contains(t, out.String(), "suggest: d_111111111_mtc -> d_111111111_D_222222222")
}

func TestPrintFixSuggestionsUnmappedTokenBlocksBatch(t *testing.T) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	impure := []pipeline.ImpureColumn{
		{Column: "D_259089008_SIBCANC3O", Tokens: []string{"SIBCANC3O"}},
		{Column: "d_111111111_mystery", Tokens: []string{"mystery"}},
	}
	printFixSuggestions(cmd, impure, map[string]string{"SIBCANC3O": "123456789"})

	assert.Equal(t, "no exception mapping for tokens: mystery\n", out.String())
}

