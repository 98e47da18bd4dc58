package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// HookLogger is an io.Writer that routes a hook backend's subprocess output
// (ssh/custom-script stdout+stderr) into the structured logger.
type HookLogger struct {
	hookID string
	stream string // "stdout" or "stderr"
}

// NewHookLogger creates a writer scoped to one hook's output stream.
func NewHookLogger(hookID, stream string) *HookLogger {
	return &HookLogger{hookID: hookID, stream: stream}
}

func (h *HookLogger) Write(data []byte) (int, error) {
	message := strings.TrimRight(string(data), "\n")
	if message == "" {
		return len(data), nil
	}

	if h.stream == "stderr" {
		Warn(fmt.Sprintf("[hook:%s] %s", h.hookID, message), zap.String("hookID", h.hookID))
	} else {
		Info(fmt.Sprintf("[hook:%s] %s", h.hookID, message), zap.String("hookID", h.hookID))
	}

	return len(data), nil
}
