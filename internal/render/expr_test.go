package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYesNoRecodeExpr(t *testing.T) {
	expr := YesNoRecodeExpr("d_123456789")

	assert.Contains(t, expr, `WHEN d_123456789 = "1" THEN "353358909"`)
	assert.Contains(t, expr, `WHEN d_123456789 = "0" THEN "104430631"`)
	assert.True(t, strings.HasSuffix(expr, "END AS d_123456789"))
}

func TestUnwrapSingletonExpr(t *testing.T) {
	expr := UnwrapSingletonExpr("d_123456789", "d_123456789")

	assert.Contains(t, expr, `WHEN d_123456789 = "[]" THEN NULL`)
	assert.Contains(t, expr, `REGEXP_REPLACE(d_123456789, r'\[(\d{9})\]', r'\1')`)
	assert.Contains(t, expr, "ELSE CAST(d_123456789 AS STRING)")
}

func TestBinaryCheckQuery(t *testing.T) {
	sql := BinaryCheckQuery("p.d.t", []string{"d_111111111", "d_222222222"})

	assert.True(t, strings.HasPrefix(sql, "SELECT\n"))
	assert.Contains(t, sql, "FROM `p.d.t`")

	// One boolean aggregate per column of the batch.
	assert.Equal(t, 2, strings.Count(sql, "COUNTIF(NOT"))
	assert.Contains(t, sql, "= 0 AS `d_111111111`")
	assert.Contains(t, sql, "= 0 AS `d_222222222`")
}

func TestFalseArrayCheckQuery(t *testing.T) {
	sql := FalseArrayCheckQuery("p.d.t",
		[]string{"d_111111111", "d_222222222"},
		[]string{"[]", "[178420302]"})

	require.Contains(t, sql, "SELECT column_name")
	assert.Contains(t, sql, "'d_111111111' AS column_name")
	assert.Contains(t, sql, "'d_222222222' AS column_name")
	assert.Equal(t, 1, strings.Count(sql, "UNION ALL"))
	assert.Contains(t, sql, "NOT IN ('[]', '[178420302]')")
	assert.Contains(t, sql, "has_few_non_null_values = TRUE")
	assert.Contains(t, sql, "has_single_concept_id = TRUE")
}
