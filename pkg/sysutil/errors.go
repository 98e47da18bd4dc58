// Revision: 2025-11-16 | Version: 1.1.1
package sysutil

import "errors"

var (
	// ErrNotRoot is returned when an operation requires root privileges
	ErrNotRoot = errors.New("operation requires root privileges")
)
