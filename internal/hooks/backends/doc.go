// Package backends provides the concrete Hook implementations registered in
// internal/hooks.Registry: ssh (a managed device reachable over SSH),
// http (a vendor HTTP shutdown endpoint), custom_script (a local script),
// and mock (records calls, used by tests and by any hook configured with
// the "mock" backend).
package backends
