package channels

import (
	"errors"
	"sync"
	"time"
)

// MockChannel simulates a notification channel for tests and for channels
// configured with the "mock" plugin: it records every call it received and
// succeeds or fails as
// configured, mirroring internal/hooks/backends.MockHook's shape.
type MockChannel struct {
	shouldFail  bool
	failMessage string

	mu    sync.Mutex
	calls []MockCall
}

// MockCall is one recorded Send invocation.
type MockCall struct {
	Title     string
	Body      string
	Level     Level
	Timestamp time.Time
}

func NewMockChannel(config map[string]string) (*MockChannel, error) {
	return &MockChannel{
		shouldFail:  config["fail"] == "true",
		failMessage: config["failMessage"],
	}, nil
}

func (c *MockChannel) Send(title, body string, level Level, timestamp time.Time) (bool, error) {
	c.mu.Lock()
	c.calls = append(c.calls, MockCall{Title: title, Body: body, Level: level, Timestamp: timestamp})
	c.mu.Unlock()

	if c.shouldFail {
		msg := c.failMessage
		if msg == "" {
			msg = "mock channel configured to fail"
		}
		return false, errors.New(msg)
	}
	return true, nil
}

func (c *MockChannel) Test() (bool, error) {
	return c.Send("Test Notification", "mock test", LevelInfo, time.Now())
}

func (c *MockChannel) ValidateConfig(config map[string]string) error {
	return nil
}

func (c *MockChannel) ConfigSchema() Schema {
	return Schema{
		{Name: "fail", Type: "bool", Required: false, Default: "false"},
		{Name: "failMessage", Type: "string", Required: false},
	}
}

// Calls returns a copy of every recorded Send invocation, for assertions.
func (c *MockChannel) Calls() []MockCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]MockCall, len(c.calls))
	copy(out, c.calls)
	return out
}
