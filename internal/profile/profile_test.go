package profile

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/opencohort/colnorm/internal/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient scripts warehouse responses per query.
type fakeClient struct {
	stringCols  []string
	boolRows    []map[string]bool
	boolErrs    []error
	stringRows  [][]string
	stringErrs  []error
	boolQueries []string
}

func (f *fakeClient) ColumnNames(ctx context.Context, table warehouse.Table) ([]string, error) {
	return f.stringCols, nil
}

func (f *fakeClient) StringColumns(ctx context.Context, table warehouse.Table) ([]string, error) {
	return f.stringCols, nil
}

func (f *fakeClient) Exec(ctx context.Context, stmt string) error { return nil }

func (f *fakeClient) QueryStrings(ctx context.Context, query string) ([]string, error) {
	var err error
	if len(f.stringErrs) > 0 {
		err = f.stringErrs[0]
		f.stringErrs = f.stringErrs[1:]
	}
	if len(f.stringRows) == 0 {
		return nil, err
	}
	out := f.stringRows[0]
	f.stringRows = f.stringRows[1:]
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakeClient) QueryBoolRow(ctx context.Context, query string) (map[string]bool, error) {
	f.boolQueries = append(f.boolQueries, query)
	var err error
	if len(f.boolErrs) > 0 {
		err = f.boolErrs[0]
		f.boolErrs = f.boolErrs[1:]
	}
	out := f.boolRows[0]
	f.boolRows = f.boolRows[1:]
	if err != nil {
		return nil, err
	}
	return out, nil
}

func tbl() warehouse.Table {
	return warehouse.Table{Project: "p", Dataset: "d", Name: "module1_v1"}
}

func TestBinaryColumns(t *testing.T) {
	client := &fakeClient{
		boolRows: []map[string]bool{
			{"d_111111111": true, "d_222222222": false, "d_333333333": true},
		},
	}
	p := New(client, 0, nil)

	got, err := p.BinaryColumns(context.Background(), tbl(),
		[]string{"d_111111111", "d_222222222", "d_333333333"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d_111111111", "d_333333333"}, got)
}

func TestBinaryColumnsBatches(t *testing.T) {
	client := &fakeClient{
		boolRows: []map[string]bool{
			{"a": true, "b": false},
			{"c": true},
		},
	}
	p := New(client, 2, nil)

	got, err := p.BinaryColumns(context.Background(), tbl(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, got)
	require.Len(t, client.boolQueries, 2)
	assert.False(t, strings.Contains(client.boolQueries[0], "`c`"))
	assert.True(t, strings.Contains(client.boolQueries[1], "`c`"))
}

func TestBinaryColumnsSkipsFailedBatch(t *testing.T) {
	client := &fakeClient{
		boolRows: []map[string]bool{
			nil,
			{"c": true},
		},
		boolErrs: []error{errors.New("query timeout")},
	}
	p := New(client, 2, nil)

	got, err := p.BinaryColumns(context.Background(), tbl(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got)
}

func TestBinaryStringColumns(t *testing.T) {
	client := &fakeClient{
		stringCols: []string{"d_111111111", "d_222222222"},
		boolRows: []map[string]bool{
			{"d_111111111": true, "d_222222222": false},
		},
	}
	p := New(client, 0, nil)

	got, err := p.BinaryStringColumns(context.Background(), tbl())
	require.NoError(t, err)
	assert.Equal(t, []string{"d_111111111"}, got)
}

func TestFalseArrayColumns(t *testing.T) {
	client := &fakeClient{
		stringCols: []string{"d_111111111", "d_222222222"},
		stringRows: [][]string{{"d_222222222"}},
	}
	p := New(client, 0, nil)

	got, err := p.FalseArrayColumns(context.Background(), tbl())
	require.NoError(t, err)
	assert.Equal(t, []string{"d_222222222"}, got)
}

func TestFalseArrayColumnsSkipsFailedBatch(t *testing.T) {
	client := &fakeClient{
		stringCols: []string{"a", "b", "c"},
		stringRows: [][]string{nil, {"c"}},
		stringErrs: []error{errors.New("query timeout")},
	}
	p := New(client, 2, nil)

	got, err := p.FalseArrayColumns(context.Background(), tbl())
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got)
}

func TestFalseArrayColumnsReference(t *testing.T) {
	client := &fakeClient{
		stringCols: []string{"D_111111111", "d_222222222"},
	}
	p := New(client, 0, nil, WithReference(map[string][]string{
		"Module1_v1": {"d_111111111", "d_999999999"},
	}))

	got, err := p.FalseArrayColumns(context.Background(), tbl())
	require.NoError(t, err)

	// Curated entries are filtered to the table's actual columns, in the
	// table's spelling. No computational query runs.
	assert.Equal(t, []string{"D_111111111"}, got)
	assert.Empty(t, client.stringRows)
}

func TestFalseArrayColumnsReferenceLoopVariants(t *testing.T) {
	client := &fakeClient{
		stringCols: []string{"d_111111111_1_1", "d_111111111_2_2", "d_222222222"},
	}
	p := New(client, 0, nil, WithReference(map[string][]string{
		"module1_v1": {"d_111111111"},
	}))

	got, err := p.FalseArrayColumns(context.Background(), tbl())
	require.NoError(t, err)
	assert.Equal(t, []string{"d_111111111_1_1", "d_111111111_2_2"}, got)
}
