package aggregate

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korvaus-labs/korvaus-cli/internal/coerce"
)

func sampleRows() []coerce.Row {
	return []coerce.Row{
		{Year: 2011, Provider: "A", Amount: 100},
		{Year: 2011, Provider: "B", Amount: 50},
		{Year: 2012, Provider: "A", Amount: 30},
	}
}

func TestSum_ByYearProvider(t *testing.T) {
	res := Sum(sampleRows(), GroupBy{Year: true, Provider: true})
	require.Len(t, res.Entries, 3)

	v, ok := res.Lookup(2011, "A")
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	v, ok = res.Lookup(2011, "B")
	require.True(t, ok)
	assert.Equal(t, 50.0, v)

	v, ok = res.Lookup(2012, "A")
	require.True(t, ok)
	assert.Equal(t, 30.0, v)
}

func TestSum_ByYear(t *testing.T) {
	res := Sum(sampleRows(), GroupBy{Year: true})
	require.Len(t, res.Entries, 2)

	v, ok := res.Lookup(2011, "")
	require.True(t, ok)
	assert.Equal(t, 150.0, v)

	v, ok = res.Lookup(2012, "")
	require.True(t, ok)
	assert.Equal(t, 30.0, v)
}

func TestSum_PreservesNegativeCorrections(t *testing.T) {
	rows := []coerce.Row{
		{Year: 2011, Provider: "A", Amount: 100},
		{Year: 2011, Provider: "A", Amount: -45},
	}
	res := Sum(rows, GroupBy{Year: true, Provider: true})
	v, ok := res.Lookup(2011, "A")
	require.True(t, ok)
	assert.Equal(t, 55.0, v)
}

func TestCollapseTail(t *testing.T) {
	res := Sum([]coerce.Row{
		{Provider: "A", Amount: 100},
		{Provider: "B", Amount: 50},
		{Provider: "C", Amount: 10},
	}, GroupBy{Provider: true})

	collapsed := CollapseTail(res, 1, "")
	require.Len(t, collapsed.Entries, 2)
	assert.Equal(t, Entry{Provider: "A", Amount: 100}, collapsed.Entries[0])
	assert.Equal(t, Entry{Provider: OtherLabel, Amount: 60}, collapsed.Entries[1])
}

func TestCollapseTail_CustomLabelAndShortInput(t *testing.T) {
	res := Sum([]coerce.Row{
		{Provider: "A", Amount: 10},
		{Provider: "B", Amount: 20},
	}, GroupBy{Provider: true})

	collapsed := CollapseTail(res, 5, "Muut")
	require.Len(t, collapsed.Entries, 2)
	// Nothing to collapse; entries come back sorted by amount descending.
	assert.Equal(t, "B", collapsed.Entries[0].Provider)

	collapsed = CollapseTail(res, 1, "Muut")
	assert.Equal(t, "Muut", collapsed.Entries[1].Provider)
	assert.Equal(t, 10.0, collapsed.Entries[1].Amount)
}

func TestSortByYear(t *testing.T) {
	res := Sum(sampleRows(), GroupBy{Year: true, Provider: true})
	res.SortByYear()
	assert.Equal(t, 2011, res.Entries[0].Year)
	assert.Equal(t, "A", res.Entries[0].Provider)
	assert.Equal(t, 2012, res.Entries[2].Year)
}

func TestWriteCSV(t *testing.T) {
	res := Sum(sampleRows(), GroupBy{Year: true, Provider: true}).SortByYear()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, res))

	want := "year,provider,amount\n2011,A,100\n2011,B,50\n2012,A,30\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_YearOnly(t *testing.T) {
	res := Sum(sampleRows(), GroupBy{Year: true}).SortByYear()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, res))
	assert.Equal(t, "year,amount\n2011,150\n2012,30\n", buf.String())
}

func TestWriteXLSX(t *testing.T) {
	res := Sum(sampleRows(), GroupBy{Provider: true}).SortByAmountDesc()

	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, WriteXLSX(path, res))
	assert.FileExists(t, path)
}
