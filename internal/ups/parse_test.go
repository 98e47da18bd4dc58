package ups

import "testing"

func TestDeriveStatus_Priority(t *testing.T) {
	cases := []struct {
		name  string
		flags []string
		want  Status
	}{
		{"online alone", []string{"OL"}, StatusOnline},
		{"online with low battery still wins", []string{"OL", "LB"}, StatusOnline},
		{"on battery", []string{"OB"}, StatusOnBattery},
		{"on battery and low battery", []string{"OB", "LB"}, StatusLowBattery},
		{"low battery alone", []string{"LB"}, StatusLowBattery},
		{"no recognized flags", []string{"CHRG"}, StatusOffline},
		{"empty", nil, StatusOffline},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := deriveStatus(c.flags)
			if got != c.want {
				t.Errorf("deriveStatus(%v) = %s, want %s", c.flags, got, c.want)
			}
		})
	}
}

func TestParseSnapshot_NumericFieldsAndRawStatus(t *testing.T) {
	vars := map[string]string{
		"ups.status":      "OB LB",
		"battery.charge":  "42.5",
		"battery.runtime": "120",
		"input.voltage":   "not-a-number",
		"device.model":    "SMART-UPS-1500",
		"device.mfr":      "APC",
	}

	snap := ParseSnapshot(vars, 3)

	if snap.Status != StatusLowBattery {
		t.Errorf("expected LowBattery, got %s", snap.Status)
	}
	if snap.RawStatus != "OB LB" {
		t.Errorf("expected raw status preserved verbatim, got %q", snap.RawStatus)
	}
	if len(snap.StatusFlags) != 2 || snap.StatusFlags[0] != "OB" || snap.StatusFlags[1] != "LB" {
		t.Errorf("expected [OB LB] flags, got %v", snap.StatusFlags)
	}
	if snap.BatteryChargePercent == nil || *snap.BatteryChargePercent != 42.5 {
		t.Errorf("expected battery charge 42.5, got %v", snap.BatteryChargePercent)
	}
	if snap.BatteryRuntimeSec == nil || *snap.BatteryRuntimeSec != 120 {
		t.Errorf("expected battery runtime 120, got %v", snap.BatteryRuntimeSec)
	}
	if snap.InputVoltage != nil {
		t.Errorf("expected non-numeric input.voltage to parse as absent, got %v", *snap.InputVoltage)
	}
	if snap.Model == nil || *snap.Model != "SMART-UPS-1500" {
		t.Errorf("expected model SMART-UPS-1500, got %v", snap.Model)
	}
	if snap.ReconnectCount != 3 {
		t.Errorf("expected reconnect count carried through, got %d", snap.ReconnectCount)
	}
}

func TestParseSnapshot_MissingVariablesAreAbsentNotZero(t *testing.T) {
	snap := ParseSnapshot(map[string]string{}, 0)

	if snap.Status != StatusOffline {
		t.Errorf("expected Offline with no ups.status, got %s", snap.Status)
	}
	if snap.BatteryChargePercent != nil {
		t.Errorf("expected nil battery charge when absent, got %v", *snap.BatteryChargePercent)
	}
	if snap.Model != nil {
		t.Errorf("expected nil model when absent, got %v", *snap.Model)
	}
}

func TestParseSnapshot_ModelPrefersDeviceOverUPS(t *testing.T) {
	vars := map[string]string{
		"ups.status":  "OL",
		"device.model": "DEVICE-MODEL",
		"ups.model":    "UPS-MODEL",
	}
	snap := ParseSnapshot(vars, 0)
	if snap.Model == nil || *snap.Model != "DEVICE-MODEL" {
		t.Errorf("expected device.model to take priority, got %v", snap.Model)
	}
}

func TestParseSnapshot_FallsBackWhenPreferredKeyAbsent(t *testing.T) {
	vars := map[string]string{
		"ups.status": "OL",
		"ups.model":  "FALLBACK-MODEL",
	}
	snap := ParseSnapshot(vars, 0)
	if snap.Model == nil || *snap.Model != "FALLBACK-MODEL" {
		t.Errorf("expected fallback to ups.model when device.model absent, got %v", snap.Model)
	}
}
