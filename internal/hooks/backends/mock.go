package backends

import (
	"errors"
	"strconv"
	"sync"
	"time"
)

// MockHook simulates a device hook for tests and for hooks configured with
// the "mock" backend: it
// sleeps for a configured duration, then succeeds or fails as configured,
// and records every call it received.
type MockHook struct {
	sleep       time.Duration
	shouldFail  bool
	failMessage string

	mu    sync.Mutex
	calls int
}

func NewMockHook(config map[string]string) (*MockHook, error) {
	sleep := time.Duration(0)
	if v, ok := config["sleepMs"]; ok {
		if ms, err := strconv.Atoi(v); err == nil {
			sleep = time.Duration(ms) * time.Millisecond
		}
	}
	return &MockHook{
		sleep:       sleep,
		shouldFail:  config["fail"] == "true",
		failMessage: config["failMessage"],
	}, nil
}

func (h *MockHook) Execute() (bool, error) {
	h.record()
	if h.sleep > 0 {
		time.Sleep(h.sleep)
	}
	if h.shouldFail {
		msg := h.failMessage
		if msg == "" {
			msg = "mock hook configured to fail"
		}
		return false, errors.New(msg)
	}
	return true, nil
}

func (h *MockHook) TestConnection() (bool, error) {
	return h.Execute()
}

func (h *MockHook) record() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
}

// Calls reports how many times Execute/TestConnection ran, for assertions.
func (h *MockHook) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}
