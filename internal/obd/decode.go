package obd

import "fmt"

// Units selects the measurement system used when formatting sensor values.
type Units int

const (
	Metric Units = iota
	Imperial
)

func (u Units) String() string {
	if u == Imperial {
		return "imperial"
	}
	return "metric"
}

// Decoder converts a raw PID payload (up to 4 bytes, assembled big-endian)
// into a display string. Decoders are pure and must produce a string for
// every representable raw value.
type Decoder func(raw uint32, units Units) string

// EngineRPM decodes PID 0C: two bytes, quarter-RPM resolution.
func EngineRPM(raw uint32, units Units) string {
	if units == Metric {
		return fmt.Sprintf("%d r/min", raw/4)
	}
	return fmt.Sprintf("%d rpm", raw/4)
}

// Percent decodes the common one-byte 0-100% scaling (PIDs 04, 11, 2E, 2F,
// 43, 45, 47-4C and friends).
func Percent(raw uint32, _ Units) string {
	return fmt.Sprintf("%.1f%%", float64(raw)*100/255)
}

// VehicleSpeed decodes PID 0D.
func VehicleSpeed(raw uint32, units Units) string {
	if units == Metric {
		return fmt.Sprintf("%d km/h", raw)
	}
	return fmt.Sprintf("%d mph", int(float64(raw)/1.609))
}

// Temperature decodes the one-byte offset-40 PIDs (05, 0F, 46).
func Temperature(raw uint32, units Units) string {
	c := int(raw) - 40
	if units == Metric {
		return fmt.Sprintf("%d° C", c)
	}
	return fmt.Sprintf("%d° F", int(float64(c)*9/5+32))
}

// TimingAdvance decodes PID 0E: half-degree resolution, offset 128.
func TimingAdvance(raw uint32, _ Units) string {
	return fmt.Sprintf("%.1f°", (float64(raw)-128)/2)
}

// IntakePressure decodes the one-byte kPa PIDs (0B, 33).
func IntakePressure(raw uint32, units Units) string {
	if units == Metric {
		return fmt.Sprintf("%d kPa", raw)
	}
	return fmt.Sprintf("%.1f in.hg.", float64(raw)*0.2953)
}

// AirFlowRate decodes PID 10: two bytes, 0.01 g/s resolution.
func AirFlowRate(raw uint32, units Units) string {
	if units == Metric {
		return fmt.Sprintf("%.1f g/s", float64(raw)*0.01)
	}
	return fmt.Sprintf("%.1f lb/min", float64(raw)*0.00132276)
}

// FuelTrim decodes PIDs 06-09: offset 128, ±100%.
func FuelTrim(raw uint32, _ Units) string {
	return fmt.Sprintf("%.2f%%", (float64(raw)-128)*100/128)
}

// FuelPressure decodes PID 0A: one byte, 3 kPa resolution, gauge.
func FuelPressure(raw uint32, units Units) string {
	if units == Metric {
		return fmt.Sprintf("%d kPaG", raw*3)
	}
	return fmt.Sprintf("%.3f psi", float64(raw*3)*0.145)
}

// FuelSystem1Status decodes the high byte of PID 03.
func FuelSystem1Status(raw uint32, _ Units) string {
	switch raw & 0xFF00 {
	case 0x0100:
		return "open loop"
	case 0x0200:
		return "closed loop"
	case 0x0400:
		return "open loop, driving"
	case 0x0800:
		return "open loop, system fault"
	case 0x1000:
		return "closed loop, O2 sensor fault"
	}
	return fmt.Sprintf("unknown: %d", raw&0xFF00)
}

// FuelSystem2Status decodes the low byte of PID 03.
func FuelSystem2Status(raw uint32, _ Units) string {
	switch raw & 0x00FF {
	case 0x0000:
		return "unused"
	case 0x0001:
		return "open loop"
	case 0x0002:
		return "closed loop"
	case 0x0004:
		return "open loop, driving"
	case 0x0008:
		return "open loop, system fault"
	case 0x0010:
		return "closed loop, O2 sensor fault"
	}
	return fmt.Sprintf("unknown: %d", raw&0x00FF)
}

// SecondaryAirStatus decodes PID 12.
func SecondaryAirStatus(raw uint32, _ Units) string {
	switch raw & 0x0700 {
	case 0x0100:
		return "upstream of 1st cat. conv."
	case 0x0200:
		return "downstream of 1st cat. conv."
	case 0x0400:
		return "atmosphere/off"
	}
	return "Not supported"
}

// PTOStatus decodes PID 1E bit 0.
func PTOStatus(raw uint32, _ Units) string {
	if raw&0x01 == 0x01 {
		return "active"
	}
	return "not active"
}

// O2Sensor decodes PIDs 14-1B: byte A is voltage in 5 mV steps; byte B is
// short-term fuel trim unless the sensor is excluded (0xFF).
func O2Sensor(raw uint32, _ Units) string {
	v := float64(raw>>8) * 0.005
	if raw&0xFF == 0xFF {
		return fmt.Sprintf("%.3f V", v)
	}
	return fmt.Sprintf("%.3f V @ %.2f%% s.t. fuel trim", v, (float64(raw&0xFF)-128)*100/128)
}

// O2SensorWideVoltage decodes PIDs 24-2B: bytes A,B equivalence ratio,
// bytes C,D voltage.
func O2SensorWideVoltage(raw uint32, _ Units) string {
	eq := float64(raw>>16) * 0.0000305
	v := float64(raw&0xFFFF) * 0.000122
	return fmt.Sprintf("%.3f V, Eq. ratio: %.3f", v, eq)
}

// O2SensorWideCurrent decodes PIDs 34-3B: bytes A,B equivalence ratio,
// bytes C,D current with 0x8000 offset.
func O2SensorWideCurrent(raw uint32, _ Units) string {
	eq := float64(raw>>16) * 0.0000305
	ma := (float64(raw&0xFFFF) - 0x8000) * 0.00390625
	return fmt.Sprintf("%.3f mA, Eq. ratio: %.3f", ma, eq)
}

// OBDRequirements decodes PID 1C.
func OBDRequirements(raw uint32, _ Units) string {
	switch raw {
	case 0x01:
		return "OBD II (California ARB)"
	case 0x02:
		return "OBD (Federal EPA)"
	case 0x03:
		return "OBD and OBD II"
	case 0x04:
		return "OBD I"
	case 0x05:
		return "Non-compliant"
	case 0x06:
		return "EOBD (Europe)"
	case 0x07:
		return "EOBD and OBD II"
	case 0x08:
		return "EOBD and OBD"
	case 0x09:
		return "EOBD, OBD and OBD II"
	case 0x0A:
		return "JOBD (Japan)"
	case 0x0B:
		return "JOBD and OBD II"
	case 0x0C:
		return "JOBD and EOBD"
	case 0x0D:
		return "JOBD, EOBD, and OBD II"
	}
	return fmt.Sprintf("Unknown: %d", raw)
}

// EngineRunTime decodes PID 1F: seconds since engine start.
func EngineRunTime(raw uint32, _ Units) string {
	hrs := raw / 3600
	min := (raw - hrs*3600) / 60
	sec := raw - hrs*3600 - min*60
	return fmt.Sprintf("%d:%d:%d", hrs, min, sec)
}

// Distance decodes the two-byte km counters (PIDs 21, 31).
func Distance(raw uint32, units Units) string {
	if units == Metric {
		return fmt.Sprintf("%d km", raw)
	}
	return fmt.Sprintf("%d miles", int(float64(raw)/1.609))
}

// FRPRelative decodes PID 22: rail pressure relative to manifold vacuum,
// 0.079 kPa resolution.
func FRPRelative(raw uint32, units Units) string {
	kpa := float64(raw) * 0.079
	if units == Metric {
		return fmt.Sprintf("%.2f kPa", kpa)
	}
	return fmt.Sprintf("%.1f PSI", kpa*0.1450377)
}

// FRPWideRange decodes PID 23: rail pressure gauge, 10 kPa resolution.
func FRPWideRange(raw uint32, units Units) string {
	kpa := raw * 10
	if units == Metric {
		return fmt.Sprintf("%d kPa", kpa)
	}
	return fmt.Sprintf("%.1f PSI", float64(kpa)*0.1450377)
}

// EGRError decodes PID 2D.
func EGRError(raw uint32, _ Units) string {
	modifier := "no error"
	if raw < 128 {
		modifier = "less than commanded"
	} else if raw > 128 {
		modifier = "more than commanded"
	}
	return fmt.Sprintf("%.2f%% (%s)", (float64(raw)-128)/255*100, modifier)
}

// CommandedEGR decodes PID 2C.
func CommandedEGR(raw uint32, _ Units) string {
	return fmt.Sprintf("%d%%", raw*100/255)
}

// WarmUps decodes PID 30: warm-up cycles since codes cleared.
func WarmUps(raw uint32, _ Units) string {
	return fmt.Sprintf("%d", raw)
}

// EvapVaporPressure decodes PID 32: signed two-byte value, 0.25 Pa
// resolution.
func EvapVaporPressure(raw uint32, units Units) string {
	pa := float64(int16(raw)) * 0.25
	if units == Metric {
		return fmt.Sprintf("%4.2f Pa", pa)
	}
	return fmt.Sprintf("%2.3f in. H2O", pa/249.089)
}

// CatTemperature decodes PIDs 3C-3F: 0.1 °C resolution, offset 40.
func CatTemperature(raw uint32, units Units) string {
	c := float64(raw)*0.1 - 40
	if units == Metric {
		return fmt.Sprintf("%4.1f° C", c)
	}
	return fmt.Sprintf("%4.1f° F", c*9/5+32)
}

// ECUVoltage decodes PID 42: millivolts.
func ECUVoltage(raw uint32, _ Units) string {
	return fmt.Sprintf("%2.3f V", float64(raw)*0.001)
}

// EquivalenceRatio decodes PID 44.
func EquivalenceRatio(raw uint32, _ Units) string {
	return fmt.Sprintf("%1.3f", float64(raw)*0.0000305)
}

// MinutesRunTime decodes the two-byte minute counters (PIDs 4D, 4E).
func MinutesRunTime(raw uint32, _ Units) string {
	hrs := raw / 60
	return fmt.Sprintf("%d hrs %d min", hrs, raw-hrs*60)
}
