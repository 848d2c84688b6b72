package obd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTable(t *testing.T) {
	table := NewTable()
	require.NotEmpty(t, table.Sensors)

	for _, s := range table.Sensors {
		require.True(t, s.Enabled)
		require.Equal(t, ValueUnavailable, s.Value)
		require.Len(t, s.Command, 4)
		require.Equal(t, "01", s.Command[:2])
		require.GreaterOrEqual(t, s.Bytes, 1)
		require.LessOrEqual(t, s.Bytes, 4)
		require.NotNil(t, s.Decode)
	}
}

func TestTablePaging(t *testing.T) {
	table := NewTable()

	require.Equal(t, 9, len(table.Page(0)))
	require.Nil(t, table.Page(-1))
	require.Nil(t, table.Page(table.PageCount()))

	total := 0
	for p := 0; p < table.PageCount(); p++ {
		total += len(table.Page(p))
	}
	require.Equal(t, len(table.Sensors), total)
}

func TestFillPage(t *testing.T) {
	table := NewTable()
	page := table.Page(0)
	page[0].Enabled = false
	page[1].Value = "1726 r/min"

	table.FillPage(0)

	require.Equal(t, ValueNotMonitored, page[0].Value)
	require.Equal(t, ValueUnavailable, page[1].Value)
	require.Equal(t, 1, table.DisabledOnPage(0))
}

func TestPageMutationsReachTable(t *testing.T) {
	table := NewTable()
	table.Page(1)[2].Value = "50° C"
	require.Equal(t, "50° C", table.Sensors[SensorsPerPage+2].Value)
}
