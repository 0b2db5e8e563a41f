package render

import (
	"fmt"
	"strings"
)

// Concept IDs for the standardized Yes/No answers used by
// select-all-that-apply questions flattened to binary columns.
const (
	ConceptIDYes = "353358909"
	ConceptIDNo  = "104430631"
)

// YesNoRecodeExpr renders a CASE expression replacing binary string values
// "1"/"0" with the standardized Yes/No concept IDs, aliased back to the
// column name.
func YesNoRecodeExpr(col string) string {
	return fmt.Sprintf(`CASE
    WHEN %[1]s = "1" THEN "%[2]s"
    WHEN %[1]s = "0" THEN "%[3]s"
    WHEN %[1]s IS NULL THEN NULL
    WHEN %[1]s = "" THEN NULL
    ELSE NULL
END AS %[1]s`, col, ConceptIDYes, ConceptIDNo)
}

// UnwrapSingletonExpr renders a CASE expression that unwraps single-value
// "false array" columns: "[]" becomes NULL, "[123456789]" loses its
// brackets, and anything else falls back to the given SQL literal cast to
// STRING.
func UnwrapSingletonExpr(col, defaultValue string) string {
	return fmt.Sprintf(`CASE
    WHEN %[1]s = "[]" THEN NULL
    WHEN REGEXP_CONTAINS(%[1]s, r'\[\d{9}\]') THEN REGEXP_REPLACE(%[1]s, r'\[(\d{9})\]', r'\1')
    WHEN %[1]s IS NULL THEN NULL
    ELSE CAST(%[2]s AS STRING)
END AS %[1]s`, col, defaultValue)
}

// BinaryCheckExpr renders a boolean aggregate that is true when every value
// of the column is "0", "1", NULL, or empty.
func BinaryCheckExpr(col string) string {
	return fmt.Sprintf(
		"COUNTIF(NOT (`%[1]s` = \"0\" OR `%[1]s` = \"1\" OR `%[1]s` IS NULL OR `%[1]s` = \"\")) = 0 AS `%[1]s`",
		col)
}

// BinaryCheckQuery renders one batched query checking every column of the
// batch at once.
func BinaryCheckQuery(fqTable string, batch []string) string {
	checks := make([]string, len(batch))
	for i, col := range batch {
		checks[i] = BinaryCheckExpr(col)
	}
	return fmt.Sprintf("SELECT\n    %s\nFROM %s", strings.Join(checks, ",\n    "), quoteTable(fqTable))
}

// bracketedNineDigitPattern matches a single bracket-wrapped concept ID.
const bracketedNineDigitPattern = `\[\d{9}\]`

// FalseArrayCheckQuery renders the batched false-array detection query: for
// each column, three checks (few distinct non-null values, only allowed
// values, at most one bracketed concept ID) unioned and filtered to the
// columns passing all three.
func FalseArrayCheckQuery(fqTable string, batch, allowedValues []string) string {
	quoted := make([]string, len(allowedValues))
	for i, v := range allowedValues {
		quoted[i] = "'" + v + "'"
	}
	valueList := strings.Join(quoted, ", ")

	checks := make([]string, len(batch))
	for i, col := range batch {
		checks[i] = fmt.Sprintf(`SELECT
    '%[1]s' AS column_name,
    ((SELECT COUNT(DISTINCT `+"`%[1]s`"+`) FROM %[2]s) <= 3
     AND (SELECT COUNT(DISTINCT `+"`%[1]s`"+`) FROM %[2]s WHERE `+"`%[1]s`"+` IS NOT NULL) > 0) AS has_few_non_null_values,
    (SELECT COUNTIF(`+"`%[1]s`"+` IS NOT NULL AND `+"`%[1]s`"+` NOT IN (%[3]s)) FROM %[2]s) = 0 AS only_has_false_array_values,
    (SELECT COUNT(DISTINCT `+"`%[1]s`"+`) FROM %[2]s WHERE REGEXP_CONTAINS(`+"`%[1]s`"+`, r'%[4]s')) <= 1 AS has_single_concept_id
FROM (SELECT 1) AS dummy`, col, quoteTable(fqTable), valueList, bracketedNineDigitPattern)
	}

	return fmt.Sprintf(`SELECT column_name
FROM (%s)
WHERE
    has_few_non_null_values = TRUE
    AND only_has_false_array_values = TRUE
    AND has_single_concept_id = TRUE`, strings.Join(checks, "\nUNION ALL\n"))
}
