package ups

import (
	"strconv"
	"strings"
	"time"
)

// ParseSnapshot maps a raw NUT variable map into a Snapshot. Pure function,
// no I/O: numerics parse leniently (non-numeric -> absent), and the raw
// ups.status string plus its whitespace-split tokens are preserved verbatim.
func ParseSnapshot(vars map[string]string, reconnectCount int) Snapshot {
	raw := vars["ups.status"]
	flags := strings.Fields(raw)

	snap := Snapshot{
		Status:         deriveStatus(flags),
		RawStatus:      raw,
		StatusFlags:    flags,
		CapturedAt:     time.Now(),
		ReconnectCount: reconnectCount,
	}

	snap.BatteryChargePercent = parseFloat(vars, "battery.charge")
	snap.BatteryRuntimeSec = parseFloat(vars, "battery.runtime")
	snap.InputVoltage = parseFloat(vars, "input.voltage")
	snap.OutputVoltage = parseFloat(vars, "output.voltage")
	snap.InputFrequency = parseFloat(vars, "input.frequency")
	snap.OutputFrequency = parseFloat(vars, "output.frequency")
	snap.LoadPercent = parseFloat(vars, "ups.load")
	snap.UPSTemperature = parseFloat(vars, "ups.temperature")
	snap.BatteryTemperature = parseFloat(vars, "battery.temperature")
	snap.AmbientTemperature = parseFloat(vars, "ambient.temperature")
	snap.BatteryVoltage = parseFloat(vars, "battery.voltage")
	snap.BatteryVoltageNominal = parseFloat(vars, "battery.voltage.nominal")
	snap.OutputCurrent = parseFloat(vars, "output.current")
	snap.Efficiency = parseFloat(vars, "ups.efficiency")

	snap.Model = firstNonEmpty(vars, "device.model", "ups.model")
	snap.Manufacturer = firstNonEmpty(vars, "device.mfr", "ups.mfr")
	snap.Serial = firstNonEmpty(vars, "device.serial", "ups.serial")
	snap.Firmware = firstNonEmpty(vars, "ups.firmware")
	snap.TestResult = firstNonEmpty(vars, "ups.test.result")
	snap.TestDate = firstNonEmpty(vars, "ups.test.date")
	snap.Alarm = firstNonEmpty(vars, "ups.alarm")
	snap.BeeperStatus = firstNonEmpty(vars, "ups.beeper.status")
	snap.ChargerStatus = firstNonEmpty(vars, "battery.charger.status")

	return snap
}

// deriveStatus applies the OL > OB > LB priority rule: OL overrides
// everything, OB without LB is OnBattery, OB+LB or bare LB is LowBattery,
// and the absence of both OL and OB is Offline.
func deriveStatus(flags []string) Status {
	hasOL, hasOB, hasLB := false, false, false
	for _, f := range flags {
		switch f {
		case "OL":
			hasOL = true
		case "OB":
			hasOB = true
		case "LB":
			hasLB = true
		}
	}

	switch {
	case hasOL:
		return StatusOnline
	case hasOB && hasLB:
		return StatusLowBattery
	case hasOB:
		return StatusOnBattery
	case hasLB:
		return StatusLowBattery
	default:
		return StatusOffline
	}
}

func parseFloat(vars map[string]string, key string) *float64 {
	raw, ok := vars[key]
	if !ok {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil
	}
	return &v
}

func firstNonEmpty(vars map[string]string, keys ...string) *string {
	for _, k := range keys {
		if v, ok := vars[k]; ok && v != "" {
			return &v
		}
	}
	return nil
}
