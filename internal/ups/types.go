// Package ups implements the NUT protocol client and status parsing; the
// monitor loop that ties them together lives in internal/monitor.
package ups

import "time"

// Status is the derived, tagged classification of a UPS's power state.
type Status string

const (
	StatusOnline       Status = "Online"
	StatusOnBattery    Status = "OnBattery"
	StatusLowBattery   Status = "LowBattery"
	StatusShuttingDown Status = "ShuttingDown"
	StatusPowerOff     Status = "PowerOff"
	StatusOffline      Status = "Offline"
)

// IsPowerPresent reports whether utility power is present for this status,
// i.e. whether an edge away from this status represents a power-lost event.
func (s Status) IsPowerPresent() bool {
	return s == StatusOnline
}

// Snapshot is an immutable, timestamped parse of a UPS's NUT variables.
// Optional numeric/string fields are carried as pointers so that "absent"
// and "zero" are distinguishable.
type Snapshot struct {
	Status      Status
	RawStatus   string
	StatusFlags []string
	CapturedAt  time.Time

	BatteryChargePercent  *float64
	BatteryRuntimeSec     *float64
	InputVoltage          *float64
	OutputVoltage         *float64
	InputFrequency        *float64
	OutputFrequency       *float64
	LoadPercent           *float64
	UPSTemperature        *float64
	BatteryTemperature    *float64
	AmbientTemperature    *float64
	BatteryVoltage        *float64
	BatteryVoltageNominal *float64
	OutputCurrent         *float64
	Efficiency            *float64

	Model         *string
	Manufacturer  *string
	Serial        *string
	Firmware      *string
	TestResult    *string
	TestDate      *string
	Alarm         *string
	BeeperStatus  *string
	ChargerStatus *string

	// ReconnectCount is the client's reconnect counter at the time this
	// snapshot was captured, carried through for downstream diagnostics.
	ReconnectCount int
}

// ConnectionStatus is what the client exposes about its own link health; it
// never itself emits connected/disconnected notifications (that's the
// monitor's job).
type ConnectionStatus struct {
	Connected         bool
	LastError         error
	ReconnectAttempts int
}
