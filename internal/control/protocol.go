// Package control implements the local control channel between the
// ups-guardiand daemon and the upsguardctl companion CLI: a line-delimited
// JSON request/response protocol over a unix domain socket.
package control

import "github.com/upsguard/upsguard/internal/store"

// Request is one operator command sent to the daemon.
type Request struct {
	Command   string `json:"command"`
	HookID    string `json:"hookId,omitempty"`
	SinceDays int    `json:"sinceDays,omitempty"`
}

const (
	CommandStatus   = "status"
	CommandCancel   = "cancel"
	CommandTestHook = "test-hook"
	CommandHistory  = "history"
)

// Response is the daemon's reply to one Request.
type Response struct {
	OK      bool          `json:"ok"`
	Error   string        `json:"error,omitempty"`
	Message string        `json:"message,omitempty"`
	Status  *StatusView   `json:"status,omitempty"`
	History []store.Event `json:"history,omitempty"`
}

// StatusView is the operator-facing snapshot combining the shutdown phase,
// the latest UPS telemetry, and the dispatcher's per-channel error map.
type StatusView struct {
	Phase            string            `json:"phase"`
	RemainingSeconds float64           `json:"remainingSeconds"`
	InFinalCountdown bool              `json:"inFinalCountdown"`
	UPSStatus        string            `json:"upsStatus"`
	HasSnapshot      bool              `json:"hasSnapshot"`
	NUTConnected     bool              `json:"nutConnected"`
	ChannelErrors    map[string]string `json:"channelErrors,omitempty"`
}
