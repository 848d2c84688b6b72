package server

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/macduff/obdscan/internal/obd"
)

// sensorStates persists which sensors are enabled across sessions.
// The file holds a map of absolute catalog index to enabled flag;
// sensors absent from the map default to enabled.
type sensorStates struct {
	Disabled []int `yaml:"disabled"`
}

// loadSensorStates applies persisted enabled flags to the table.
func loadSensorStates(path string, table *obd.Table) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var st sensorStates
	if err := yaml.Unmarshal(data, &st); err != nil {
		return err
	}
	for _, idx := range st.Disabled {
		if idx >= 0 && idx < len(table.Sensors) {
			table.Sensors[idx].Enabled = false
		}
	}
	return nil
}

// saveSensorStates writes the disabled sensor set to disk.
func saveSensorStates(path string, table *obd.Table) error {
	st := sensorStates{}
	for i := range table.Sensors {
		if !table.Sensors[i].Enabled {
			st.Disabled = append(st.Disabled, i)
		}
	}
	data, err := yaml.Marshal(&st)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
