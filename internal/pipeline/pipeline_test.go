package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/opencohort/colnorm/internal/config"
	"github.com/opencohort/colnorm/internal/profile"
	"github.com/opencohort/colnorm/internal/testutil"
	"github.com/opencohort/colnorm/internal/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWarehouse struct {
	columns  map[string][]string
	boolRows []map[string]bool
	executed []string
	execErr  error
}

func (f *fakeWarehouse) ColumnNames(ctx context.Context, table warehouse.Table) ([]string, error) {
	cols, ok := f.columns[table.Name]
	if !ok {
		return nil, fmt.Errorf("no columns retrieved from table: %s", table)
	}
	return cols, nil
}

func (f *fakeWarehouse) StringColumns(ctx context.Context, table warehouse.Table) ([]string, error) {
	return f.columns[table.Name], nil
}

func (f *fakeWarehouse) Exec(ctx context.Context, stmt string) error {
	if f.execErr != nil {
		return f.execErr
	}
	f.executed = append(f.executed, stmt)
	return nil
}

func (f *fakeWarehouse) QueryStrings(ctx context.Context, query string) ([]string, error) {
	return nil, nil
}

func (f *fakeWarehouse) QueryBoolRow(ctx context.Context, query string) (map[string]bool, error) {
	if len(f.boolRows) == 0 {
		return nil, fmt.Errorf("unexpected query")
	}
	out := f.boolRows[0]
	f.boolRows = f.boolRows[1:]
	return out, nil
}

type memorySink struct {
	recorded map[string]string
	err      error
}

func (m *memorySink) Record(destination, stmt string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if m.recorded == nil {
		m.recorded = make(map[string]string)
	}
	m.recorded[destination] = stmt
	return "audit/" + destination + ".sql", nil
}

func testRules() config.Rules {
	return config.Rules{
		PrimaryKey:         "Connect_ID",
		AllowedNames:       []string{"Connect_ID", "token"},
		ForbiddenNames:     []string{"treatmenttype"},
		ExcludedSubstrings: []string{"_entity"},
		SubstringsToFix:    []string{"_num"},
	}
}

func srcTable() warehouse.Table {
	return warehouse.Table{Project: "p", Dataset: "flat", Name: "module1_v1"}
}

func dstTable() warehouse.Table {
	return warehouse.Table{Project: "p", Dataset: "clean", Name: "module1_v1"}
}

func TestCleanColumns(t *testing.T) {
	wh := &fakeWarehouse{columns: map[string][]string{
		"module1_v1": {"Connect_ID", "d_123456789_1_1", "d_123456789_1_1_1_1", "treatmenttype"},
	}}
	sink := &memorySink{}
	p := New(wh, sink, testRules(), nil, testutil.NewTestLogger(t))

	res, err := p.CleanColumns(context.Background(), srcTable(), dstTable(), CleanOptions{})
	require.NoError(t, err)

	assert.True(t, res.Executed)
	assert.Equal(t, "p.clean.module1_v1", res.Destination)
	assert.Equal(t, "audit/p.clean.module1_v1.sql", res.AuditPath)

	require.Len(t, wh.executed, 1)
	stmt := wh.executed[0]
	assert.Contains(t, stmt, "CREATE OR REPLACE TABLE `p.clean.module1_v1` AS (")
	assert.Contains(t, stmt, "COALESCE(d_123456789_1_1, d_123456789_1_1_1_1) AS d_123456789_1")
	assert.NotContains(t, stmt, "treatmenttype")

	// The audited statement is exactly what ran.
	assert.Equal(t, stmt, sink.recorded["p.clean.module1_v1"])
}

func TestCleanColumnsDryRun(t *testing.T) {
	wh := &fakeWarehouse{columns: map[string][]string{
		"module1_v1": {"Connect_ID", "d_123456789"},
	}}
	sink := &memorySink{}
	p := New(wh, sink, testRules(), nil, nil)

	res, err := p.CleanColumns(context.Background(), srcTable(), dstTable(), CleanOptions{DryRun: true})
	require.NoError(t, err)

	assert.False(t, res.Executed)
	assert.Empty(t, wh.executed)
	assert.NotEmpty(t, sink.recorded)
}

func TestCleanColumnsAuditFailureAborts(t *testing.T) {
	wh := &fakeWarehouse{columns: map[string][]string{
		"module1_v1": {"Connect_ID", "d_123456789"},
	}}
	sink := &memorySink{err: fmt.Errorf("disk full")}
	p := New(wh, sink, testRules(), nil, nil)

	_, err := p.CleanColumns(context.Background(), srcTable(), dstTable(), CleanOptions{})
	require.ErrorContains(t, err, "auditing statement")
	assert.Empty(t, wh.executed)
}

func TestCleanColumnsImpureFails(t *testing.T) {
	wh := &fakeWarehouse{columns: map[string][]string{
		"module1_v1": {"Connect_ID", "d_907590067_4_4_sibcanc3o_4_4"},
	}}
	p := New(wh, &memorySink{}, testRules(), nil, nil)

	_, err := p.CleanColumns(context.Background(), srcTable(), dstTable(), CleanOptions{})
	require.ErrorContains(t, err, "building projection")
	assert.Empty(t, wh.executed)
}

func TestCleanColumnsBinaryRecode(t *testing.T) {
	wh := &fakeWarehouse{
		columns: map[string][]string{
			"module1_v1": {"Connect_ID", "d_123456789", "d_987654321"},
		},
		boolRows: []map[string]bool{
			{"Connect_ID": false, "d_123456789": true, "d_987654321": false},
		},
	}
	sink := &memorySink{}
	prof := profile.New(wh, 0, nil)
	p := New(wh, sink, testRules(), prof, testutil.NewTestLogger(t))

	res, err := p.CleanColumns(context.Background(), srcTable(), dstTable(), CleanOptions{RecodeBinary: true})
	require.NoError(t, err)
	require.True(t, res.Executed)

	// Three statements: stage the recode, run the projection from the
	// intermediate, drop the intermediate.
	require.Len(t, wh.executed, 3)

	staged := wh.executed[0]
	assert.Contains(t, staged, "`p.flat.intermediate_module1_v1_")
	assert.Contains(t, staged, `WHEN d_123456789 = "1" THEN "353358909"`)
	assert.Contains(t, staged, "d_987654321")

	final := wh.executed[1]
	assert.Contains(t, final, "CREATE OR REPLACE TABLE `p.clean.module1_v1`")
	assert.Contains(t, final, "FROM `p.flat.intermediate_module1_v1_")

	assert.Contains(t, wh.executed[2], "DROP TABLE IF EXISTS `p.flat.intermediate_module1_v1_")
}

func TestCleanColumnsBinaryRecodeNoneDetected(t *testing.T) {
	wh := &fakeWarehouse{
		columns: map[string][]string{
			"module1_v1": {"Connect_ID", "d_123456789"},
		},
		boolRows: []map[string]bool{
			{"Connect_ID": false, "d_123456789": false},
		},
	}
	prof := profile.New(wh, 0, nil)
	p := New(wh, &memorySink{}, testRules(), prof, nil)

	res, err := p.CleanColumns(context.Background(), srcTable(), dstTable(), CleanOptions{RecodeBinary: true})
	require.NoError(t, err)

	// No intermediate: just the projection itself.
	require.Len(t, wh.executed, 1)
	assert.Contains(t, wh.executed[0], "FROM `p.flat.module1_v1`")
	assert.True(t, res.Executed)
}

func TestMergeTableVersions(t *testing.T) {
	wh := &fakeWarehouse{columns: map[string][]string{
		"module1_v1": {"Connect_ID", "d_111111111", "d_222222222"},
		"module1_v2": {"Connect_ID", "d_111111111", "d_333333333"},
	}}
	sink := &memorySink{}
	p := New(wh, sink, testRules(), nil, nil)

	sources := []warehouse.Table{
		{Project: "p", Dataset: "clean", Name: "module1_v1"},
		{Project: "p", Dataset: "clean", Name: "module1_v2"},
	}
	dest := warehouse.Table{Project: "p", Dataset: "clean", Name: "module1"}

	res, err := p.MergeTableVersions(context.Background(), sources, dest, false)
	require.NoError(t, err)
	assert.True(t, res.Executed)

	require.Len(t, wh.executed, 1)
	stmt := wh.executed[0]
	assert.Contains(t, stmt, "COALESCE(v2.d_111111111, v1.d_111111111) AS d_111111111")
	assert.Contains(t, stmt, "FULL OUTER JOIN `p.clean.module1_v1` v1")
}

func TestMergeTableVersionsNeedsTwoSources(t *testing.T) {
	p := New(&fakeWarehouse{}, &memorySink{}, testRules(), nil, nil)
	_, err := p.MergeTableVersions(context.Background(),
		[]warehouse.Table{{Project: "p", Dataset: "clean", Name: "module1_v1"}},
		warehouse.Table{Project: "p", Dataset: "clean", Name: "module1"}, false)
	assert.ErrorContains(t, err, "at least two")
}

func TestValidate(t *testing.T) {
	wh := &fakeWarehouse{columns: map[string][]string{
		"module1_v1": {
			"Connect_ID",
			"d_123456789_1_1",
			"treatmenttype",
			"d_12345_entity",
			"d_907590067_sibcanc3o",
		},
	}}
	p := New(wh, &memorySink{}, testRules(), nil, testutil.NewTestLogger(t))

	report, err := p.Validate(context.Background(), srcTable())
	require.NoError(t, err)

	assert.Equal(t, "p.flat.module1_v1", report.Table)
	assert.Equal(t, 5, report.Columns)
	assert.False(t, report.Ok())

	require.Len(t, report.Impure, 1)
	assert.Equal(t, "d_907590067_sibcanc3o", report.Impure[0].Column)
	assert.Contains(t, report.Impure[0].Tokens, "sibcanc3o")

	// d_12345 is a concept ID shorter than nine digits.
	require.NotEmpty(t, report.NonStandardIDs)
	found := false
	for _, ns := range report.NonStandardIDs {
		if ns.Column == "d_12345_entity" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateExecutesNothing(t *testing.T) {
	wh := &fakeWarehouse{columns: map[string][]string{
		"module1_v1": {"Connect_ID", "d_123456789"},
	}}
	sink := &memorySink{}
	p := New(wh, sink, testRules(), nil, nil)

	_, err := p.Validate(context.Background(), srcTable())
	require.NoError(t, err)
	assert.Empty(t, wh.executed)
	assert.Empty(t, sink.recorded)
}

func TestCleanColumnsMissingTable(t *testing.T) {
	p := New(&fakeWarehouse{columns: map[string][]string{}}, &memorySink{}, testRules(), nil, nil)
	_, err := p.CleanColumns(context.Background(), srcTable(), dstTable(), CleanOptions{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no columns retrieved"))
}
