// Package sysutil provides the OS-level helpers the guardian daemon needs
// to run host and device commands: locating binaries that live outside a
// non-root user's $PATH, executing them, and checking process privileges.
//
// The shutdown and reboot commands a guardian issues (shutdown, poweroff,
// systemctl) typically live in /usr/sbin or /sbin, which non-root shells
// often omit from $PATH — FindCommand covers that gap.
package sysutil
