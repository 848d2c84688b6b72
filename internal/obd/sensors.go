package obd

// Display sentinels used by the polling engine and the toggle path.
const (
	ValueUnavailable  = "N/A"
	ValueNotMonitored = "not monitoring"
)

// SensorsPerPage is the fixed page size of the sensor display.
const SensorsPerPage = 9

// Sensor is one entry of the mode-01 sensor catalog. Command is the 4-hex-
// digit mode+PID query, Bytes the defined payload width of that PID, and
// Decode the formula producing the display string. Enabled and Value are
// mutated at runtime by the polling engine and the toggle path only.
type Sensor struct {
	Label   string
	Command string
	Bytes   int
	Decode  Decoder
	Enabled bool
	Value   string
}

// Table is the ordered sensor catalog, built once at startup and partitioned
// into fixed-size pages for display.
type Table struct {
	Sensors []Sensor
}

// NewTable builds the full catalog in display order, all sensors enabled and
// showing the unavailable sentinel.
func NewTable() *Table {
	t := &Table{Sensors: catalog()}
	for i := range t.Sensors {
		t.Sensors[i].Enabled = true
		t.Sensors[i].Value = ValueUnavailable
	}
	return t
}

// PageCount returns the number of display pages.
func (t *Table) PageCount() int {
	n := len(t.Sensors)
	if n%SensorsPerPage != 0 {
		return n/SensorsPerPage + 1
	}
	return n / SensorsPerPage
}

// Page returns the sensors on the given page as a mutable slice into the
// table. An out-of-range page yields an empty slice.
func (t *Table) Page(page int) []Sensor {
	lo := page * SensorsPerPage
	if page < 0 || lo >= len(t.Sensors) {
		return nil
	}
	hi := lo + SensorsPerPage
	if hi > len(t.Sensors) {
		hi = len(t.Sensors)
	}
	return t.Sensors[lo:hi]
}

// FillPage resets the display strings of a page for a fresh polling cycle:
// enabled sensors show the unavailable sentinel until a value arrives,
// disabled sensors show the not-monitoring sentinel.
func (t *Table) FillPage(page int) {
	sensors := t.Page(page)
	for i := range sensors {
		if sensors[i].Enabled {
			sensors[i].Value = ValueUnavailable
		} else {
			sensors[i].Value = ValueNotMonitored
		}
	}
}

// DisabledOnPage counts the disabled sensors on a page.
func (t *Table) DisabledOnPage(page int) int {
	n := 0
	for _, s := range t.Page(page) {
		if !s.Enabled {
			n++
		}
	}
	return n
}

func catalog() []Sensor {
	return []Sensor{
		// Page 1
		{Label: "Absolute Throttle Position:", Command: "0111", Bytes: 1, Decode: Percent},
		{Label: "Engine RPM:", Command: "010C", Bytes: 2, Decode: EngineRPM},
		{Label: "Vehicle Speed:", Command: "010D", Bytes: 1, Decode: VehicleSpeed},
		{Label: "Calculated Load Value:", Command: "0104", Bytes: 1, Decode: Percent},
		{Label: "Timing Advance:", Command: "010E", Bytes: 1, Decode: TimingAdvance},
		{Label: "Intake Manifold Pressure:", Command: "010B", Bytes: 1, Decode: IntakePressure},
		{Label: "Air Flow Rate (MAF sensor):", Command: "0110", Bytes: 2, Decode: AirFlowRate},
		{Label: "Fuel System 1 Status:", Command: "0103", Bytes: 2, Decode: FuelSystem1Status},
		{Label: "Fuel System 2 Status:", Command: "0103", Bytes: 2, Decode: FuelSystem2Status},
		// Page 2
		{Label: "Short Term Fuel Trim (Bank 1):", Command: "0106", Bytes: 2, Decode: FuelTrim},
		{Label: "Long Term Fuel Trim (Bank 1):", Command: "0107", Bytes: 2, Decode: FuelTrim},
		{Label: "Short Term Fuel Trim (Bank 2):", Command: "0108", Bytes: 2, Decode: FuelTrim},
		{Label: "Long Term Fuel Trim (Bank 2):", Command: "0109", Bytes: 2, Decode: FuelTrim},
		{Label: "Intake Air Temperature:", Command: "010F", Bytes: 1, Decode: Temperature},
		{Label: "Coolant Temperature:", Command: "0105", Bytes: 1, Decode: Temperature},
		{Label: "Fuel Pressure (gauge):", Command: "010A", Bytes: 1, Decode: FuelPressure},
		{Label: "Secondary air status:", Command: "0112", Bytes: 1, Decode: SecondaryAirStatus},
		{Label: "Power Take-Off Status:", Command: "011E", Bytes: 1, Decode: PTOStatus},
		// Page 3
		{Label: "O2 Sensor 1, Bank 1:", Command: "0114", Bytes: 2, Decode: O2Sensor},
		{Label: "O2 Sensor 2, Bank 1:", Command: "0115", Bytes: 2, Decode: O2Sensor},
		{Label: "O2 Sensor 3, Bank 1:", Command: "0116", Bytes: 2, Decode: O2Sensor},
		{Label: "O2 Sensor 4, Bank 1:", Command: "0117", Bytes: 2, Decode: O2Sensor},
		{Label: "O2 Sensor 1, Bank 2:", Command: "0118", Bytes: 2, Decode: O2Sensor},
		{Label: "O2 Sensor 2, Bank 2:", Command: "0119", Bytes: 2, Decode: O2Sensor},
		{Label: "O2 Sensor 3, Bank 2:", Command: "011A", Bytes: 2, Decode: O2Sensor},
		{Label: "O2 Sensor 4, Bank 2:", Command: "011B", Bytes: 2, Decode: O2Sensor},
		{Label: "OBD conforms to:", Command: "011C", Bytes: 1, Decode: OBDRequirements},
		// Page 4
		{Label: "O2 Sensor 1, Bank 1 (WR):", Command: "0124", Bytes: 4, Decode: O2SensorWideVoltage},
		{Label: "O2 Sensor 2, Bank 1 (WR):", Command: "0125", Bytes: 4, Decode: O2SensorWideVoltage},
		{Label: "O2 Sensor 3, Bank 1 (WR):", Command: "0126", Bytes: 4, Decode: O2SensorWideVoltage},
		{Label: "O2 Sensor 4, Bank 1 (WR):", Command: "0127", Bytes: 4, Decode: O2SensorWideVoltage},
		{Label: "O2 Sensor 1, Bank 2 (WR):", Command: "0128", Bytes: 4, Decode: O2SensorWideVoltage},
		{Label: "O2 Sensor 2, Bank 2 (WR):", Command: "0129", Bytes: 4, Decode: O2SensorWideVoltage},
		{Label: "O2 Sensor 3, Bank 2 (WR):", Command: "012A", Bytes: 4, Decode: O2SensorWideVoltage},
		{Label: "O2 Sensor 4, Bank 2 (WR):", Command: "012B", Bytes: 4, Decode: O2SensorWideVoltage},
		{Label: "Time Since Engine Start:", Command: "011F", Bytes: 2, Decode: EngineRunTime},
		// Page 5
		{Label: "FRP rel. to manifold vacuum:", Command: "0122", Bytes: 2, Decode: FRPRelative},
		{Label: "Fuel Pressure (gauge):", Command: "0123", Bytes: 2, Decode: FRPWideRange},
		{Label: "Commanded EGR:", Command: "012C", Bytes: 1, Decode: CommandedEGR},
		{Label: "EGR Error:", Command: "012D", Bytes: 1, Decode: EGRError},
		{Label: "Commanded Evaporative Purge:", Command: "012E", Bytes: 1, Decode: Percent},
		{Label: "Fuel Level Input:", Command: "012F", Bytes: 1, Decode: Percent},
		{Label: "Warm-ups since ECU reset:", Command: "0130", Bytes: 1, Decode: WarmUps},
		{Label: "Distance since ECU reset:", Command: "0131", Bytes: 2, Decode: Distance},
		{Label: "Evap System Vapor Pressure:", Command: "0132", Bytes: 2, Decode: EvapVaporPressure},
		// Page 6
		{Label: "O2 Sensor 1, Bank 1 (WR):", Command: "0134", Bytes: 4, Decode: O2SensorWideCurrent},
		{Label: "O2 Sensor 2, Bank 1 (WR):", Command: "0135", Bytes: 4, Decode: O2SensorWideCurrent},
		{Label: "O2 Sensor 3, Bank 1 (WR):", Command: "0136", Bytes: 4, Decode: O2SensorWideCurrent},
		{Label: "O2 Sensor 4, Bank 1 (WR):", Command: "0137", Bytes: 4, Decode: O2SensorWideCurrent},
		{Label: "O2 Sensor 1, Bank 2 (WR):", Command: "0138", Bytes: 4, Decode: O2SensorWideCurrent},
		{Label: "O2 Sensor 2, Bank 2 (WR):", Command: "0139", Bytes: 4, Decode: O2SensorWideCurrent},
		{Label: "O2 Sensor 3, Bank 2 (WR):", Command: "013A", Bytes: 4, Decode: O2SensorWideCurrent},
		{Label: "O2 Sensor 4, Bank 2 (WR):", Command: "013B", Bytes: 4, Decode: O2SensorWideCurrent},
		{Label: "Distance since MIL activated:", Command: "0121", Bytes: 2, Decode: Distance},
		// Page 7
		{Label: "Barometric Pressure:", Command: "0133", Bytes: 1, Decode: IntakePressure},
		{Label: "CAT Temperature, B1S1:", Command: "013C", Bytes: 2, Decode: CatTemperature},
		{Label: "CAT Temperature, B2S1:", Command: "013D", Bytes: 2, Decode: CatTemperature},
		{Label: "CAT Temperature, B1S2:", Command: "013E", Bytes: 2, Decode: CatTemperature},
		{Label: "CAT Temperature, B2S2:", Command: "013F", Bytes: 2, Decode: CatTemperature},
		{Label: "ECU voltage:", Command: "0142", Bytes: 2, Decode: ECUVoltage},
		{Label: "Absolute Engine Load:", Command: "0143", Bytes: 2, Decode: Percent},
		{Label: "Commanded Equivalence Ratio:", Command: "0144", Bytes: 2, Decode: EquivalenceRatio},
		{Label: "Ambient Air Temperature:", Command: "0146", Bytes: 1, Decode: Temperature},
		// Page 8
		{Label: "Relative Throttle Position:", Command: "0145", Bytes: 1, Decode: Percent},
		{Label: "Absolute Throttle Position B:", Command: "0147", Bytes: 1, Decode: Percent},
		{Label: "Absolute Throttle Position C:", Command: "0148", Bytes: 1, Decode: Percent},
		{Label: "Accelerator Pedal Position D:", Command: "0149", Bytes: 1, Decode: Percent},
		{Label: "Accelerator Pedal Position E:", Command: "014A", Bytes: 1, Decode: Percent},
		{Label: "Accelerator Pedal Position F:", Command: "014B", Bytes: 1, Decode: Percent},
		{Label: "Comm. Throttle Actuator Cntrl:", Command: "014C", Bytes: 1, Decode: Percent},
		{Label: "Engine running while MIL on:", Command: "014D", Bytes: 2, Decode: MinutesRunTime},
		{Label: "Time since ECU reset:", Command: "014E", Bytes: 2, Decode: MinutesRunTime},
	}
}
