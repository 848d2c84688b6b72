package server

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/macduff/obdscan/internal/obd"
)

func TestSensorStatesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensors.yaml")

	table := obd.NewTable()
	table.Sensors[0].Enabled = false
	table.Sensors[17].Enabled = false
	require.NoError(t, saveSensorStates(path, table))

	fresh := obd.NewTable()
	require.NoError(t, loadSensorStates(path, fresh))
	require.False(t, fresh.Sensors[0].Enabled)
	require.False(t, fresh.Sensors[17].Enabled)
	require.True(t, fresh.Sensors[1].Enabled)
}

func TestSensorStatesMissingFileIsNoop(t *testing.T) {
	table := obd.NewTable()
	require.NoError(t, loadSensorStates(filepath.Join(t.TempDir(), "nope.yaml"), table))
	for _, s := range table.Sensors {
		require.True(t, s.Enabled)
	}
}

func TestSensorStatesIgnoresStaleIndexes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensors.yaml")

	table := obd.NewTable()
	table.Sensors[3].Enabled = false
	require.NoError(t, saveSensorStates(path, table))

	// A file written against a longer catalog must not panic loading.
	big := obd.NewTable()
	big.Sensors = big.Sensors[:4]
	require.NoError(t, loadSensorStates(path, big))
	require.False(t, big.Sensors[3].Enabled)
}
