package shutdown

import (
	"fmt"
	"strings"
	"sync"

	"github.com/upsguard/upsguard/pkg/sysutil"
)

// ShellHostShutdown runs configured shell commands via pkg/sysutil, the
// default backend for a bare-metal or VM host.
type ShellHostShutdown struct {
	shutdownCommand string
	rebootCommand   string
}

func NewShellHostShutdown(shutdownCommand, rebootCommand string) *ShellHostShutdown {
	return &ShellHostShutdown{shutdownCommand: shutdownCommand, rebootCommand: rebootCommand}
}

func (h *ShellHostShutdown) Shutdown() error {
	return runShellCommand(h.shutdownCommand)
}

func (h *ShellHostShutdown) Reboot() error {
	return runShellCommand(h.rebootCommand)
}

func runShellCommand(command string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return fmt.Errorf("empty host shutdown command")
	}
	_, err := sysutil.RunCommand(fields[0], fields[1:]...)
	return err
}

// MockHostShutdown records calls instead of touching the host, used by
// testMode == dryRun/mock and by tests.
type MockHostShutdown struct {
	mu            sync.Mutex
	shutdownCalls int
	rebootCalls   int
}

func NewMockHostShutdown() *MockHostShutdown {
	return &MockHostShutdown{}
}

func (h *MockHostShutdown) Shutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shutdownCalls++
	return nil
}

func (h *MockHostShutdown) Reboot() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rebootCalls++
	return nil
}

func (h *MockHostShutdown) ShutdownCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shutdownCalls
}

func (h *MockHostShutdown) RebootCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rebootCalls
}
