package recorder

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/macduff/obdscan/internal/poll"
)

func sampleSnapshot() poll.Snapshot {
	return poll.Snapshot{
		Page:            0,
		Pages:           8,
		InstantHz:       1.5,
		AverageHz:       1.2,
		DeviceConnected: true,
		Sensors: []poll.SensorView{
			{Index: 0, Label: "Engine RPM:", Value: "1726 r/min", Enabled: true},
			{Index: 1, Label: "Vehicle Speed:", Value: "not monitoring", Enabled: false},
		},
	}
}

func readRows(t *testing.T, dir string) [][]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	f, err := os.Open(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRecorderWritesRows(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{Enabled: true, Path: dir, IntervalMs: 100}, zerolog.Nop())
	defer r.Close()

	r.Record(sampleSnapshot())
	r.Close()

	rows := readRows(t, dir)
	require.Len(t, rows, 3) // header + one row per sensor
	require.Equal(t, "sensor_label", rows[0][6])
	require.Equal(t, "Engine RPM:", rows[1][6])
	require.Equal(t, "1726 r/min", rows[1][7])
	require.Equal(t, "1", rows[1][8])
	require.Equal(t, "0", rows[2][8])
}

func TestRecorderRateLimits(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{Enabled: true, Path: dir, IntervalMs: 60_000}, zerolog.Nop())
	defer r.Close()

	r.Record(sampleSnapshot())
	r.Record(sampleSnapshot()) // inside the interval, dropped
	r.Close()

	require.Len(t, readRows(t, dir), 3)
}

func TestRecorderDisabledWritesNothing(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{Enabled: false, Path: dir, IntervalMs: 100}, zerolog.Nop())
	defer r.Close()

	r.Record(sampleSnapshot())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRecorderSetEnabled(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{Enabled: false, Path: dir, IntervalMs: 100}, zerolog.Nop())
	defer r.Close()

	r.SetEnabled(true)
	r.Record(sampleSnapshot())
	r.Close()

	require.Len(t, readRows(t, dir), 3)
}
