package obd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEngineRPM(t *testing.T) {
	require.Equal(t, "1726 r/min", EngineRPM(0x1AF8, Metric))
	require.Equal(t, "1726 rpm", EngineRPM(0x1AF8, Imperial))
	require.Equal(t, "0 r/min", EngineRPM(0, Metric))
}

func TestPercent(t *testing.T) {
	require.Equal(t, "49.8%", Percent(127, Metric))
	require.Equal(t, "100.0%", Percent(255, Metric))
	require.Equal(t, "0.0%", Percent(0, Metric))
	// units have no effect on percentages
	require.Equal(t, Percent(127, Metric), Percent(127, Imperial))
}

func TestVehicleSpeed(t *testing.T) {
	require.Equal(t, "100 km/h", VehicleSpeed(100, Metric))
	require.Equal(t, "62 mph", VehicleSpeed(100, Imperial))
}

func TestTemperature(t *testing.T) {
	require.Equal(t, "50° C", Temperature(90, Metric))
	require.Equal(t, "122° F", Temperature(90, Imperial))
	require.Equal(t, "-40° C", Temperature(0, Metric))
	require.Equal(t, "-40° F", Temperature(0, Imperial))
}

func TestTimingAdvance(t *testing.T) {
	require.Equal(t, "0.0°", TimingAdvance(128, Metric))
	require.Equal(t, "-64.0°", TimingAdvance(0, Metric))
	require.Equal(t, "63.5°", TimingAdvance(255, Metric))
}

func TestIntakePressure(t *testing.T) {
	require.Equal(t, "100 kPa", IntakePressure(100, Metric))
	require.Equal(t, "29.5 in.hg.", IntakePressure(100, Imperial))
}

func TestAirFlowRate(t *testing.T) {
	require.Equal(t, "120.3 g/s", AirFlowRate(12032, Metric))
	require.Equal(t, "0.0 g/s", AirFlowRate(0, Metric))
}

func TestFuelTrim(t *testing.T) {
	require.Equal(t, "0.00%", FuelTrim(128, Metric))
	require.Equal(t, "-100.00%", FuelTrim(0, Metric))
	require.Equal(t, "99.22%", FuelTrim(255, Metric))
}

func TestFuelPressure(t *testing.T) {
	require.Equal(t, "300 kPaG", FuelPressure(100, Metric))
	require.Equal(t, "43.500 psi", FuelPressure(100, Imperial))
}

func TestFuelSystemStatus(t *testing.T) {
	require.Equal(t, "closed loop", FuelSystem1Status(0x0200, Metric))
	require.Equal(t, "open loop", FuelSystem1Status(0x0100, Metric))
	require.Equal(t, "unknown: 768", FuelSystem1Status(0x0300, Metric))

	require.Equal(t, "unused", FuelSystem2Status(0x0200, Metric))
	require.Equal(t, "closed loop", FuelSystem2Status(0x0202, Metric))
	require.Equal(t, "unknown: 3", FuelSystem2Status(0x0003, Metric))
}

func TestSecondaryAirStatus(t *testing.T) {
	require.Equal(t, "upstream of 1st cat. conv.", SecondaryAirStatus(0x0100, Metric))
	require.Equal(t, "atmosphere/off", SecondaryAirStatus(0x0400, Metric))
	require.Equal(t, "Not supported", SecondaryAirStatus(0, Metric))
}

func TestPTOStatus(t *testing.T) {
	require.Equal(t, "active", PTOStatus(1, Metric))
	require.Equal(t, "not active", PTOStatus(0, Metric))
}

func TestO2Sensor(t *testing.T) {
	// B byte of 0xFF means the sensor is not used for trim
	require.Equal(t, "0.210 V", O2Sensor(0x2AFF, Metric))
	require.Equal(t, "0.210 V @ 0.00% s.t. fuel trim", O2Sensor(0x2A80, Metric))
}

func TestO2SensorWide(t *testing.T) {
	require.Equal(t, "1.999 V, Eq. ratio: 0.999", O2SensorWideVoltage(0x80004000, Metric))
	require.Equal(t, "0.000 mA, Eq. ratio: 0.999", O2SensorWideCurrent(0x80008000, Metric))
}

func TestOBDRequirements(t *testing.T) {
	require.Equal(t, "OBD II (California ARB)", OBDRequirements(0x01, Metric))
	require.Equal(t, "JOBD, EOBD, and OBD II", OBDRequirements(0x0D, Metric))
	require.Equal(t, "Unknown: 32", OBDRequirements(0x20, Metric))
}

func TestEngineRunTime(t *testing.T) {
	require.Equal(t, "1:1:5", EngineRunTime(3665, Metric))
	require.Equal(t, "0:0:0", EngineRunTime(0, Metric))
}

func TestDistance(t *testing.T) {
	require.Equal(t, "1000 km", Distance(1000, Metric))
	require.Equal(t, "621 miles", Distance(1000, Imperial))
}

func TestFuelRailPressure(t *testing.T) {
	require.Equal(t, "79.00 kPa", FRPRelative(1000, Metric))
	require.Equal(t, "1000 kPa", FRPWideRange(100, Metric))
	require.Equal(t, "145.0 PSI", FRPWideRange(100, Imperial))
}

func TestEGR(t *testing.T) {
	require.Equal(t, "0.00% (no error)", EGRError(128, Metric))
	require.Equal(t, "100%", CommandedEGR(255, Metric))
	require.Equal(t, "0%", CommandedEGR(0, Metric))
}

func TestEGRErrorDirection(t *testing.T) {
	require.Contains(t, EGRError(0, Metric), "less than commanded")
	require.Contains(t, EGRError(255, Metric), "more than commanded")
}

func TestEvapVaporPressure(t *testing.T) {
	require.Equal(t, "-0.25 Pa", EvapVaporPressure(0xFFFF, Metric))
	require.Equal(t, "0.00 Pa", EvapVaporPressure(0, Metric))
}

func TestCatTemperature(t *testing.T) {
	require.Equal(t, "360.0° C", CatTemperature(4000, Metric))
	require.Equal(t, "680.0° F", CatTemperature(4000, Imperial))
}

func TestECUVoltage(t *testing.T) {
	require.Equal(t, "14.200 V", ECUVoltage(14200, Metric))
}

func TestEquivalenceRatio(t *testing.T) {
	require.Equal(t, "0.999", EquivalenceRatio(32768, Metric))
}

func TestMinutesRunTime(t *testing.T) {
	require.Equal(t, "2 hrs 15 min", MinutesRunTime(135, Metric))
	require.Equal(t, "0 hrs 0 min", MinutesRunTime(0, Metric))
}
