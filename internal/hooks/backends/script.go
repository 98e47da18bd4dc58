package backends

import (
	"strings"

	"github.com/upsguard/upsguard/pkg/logger"
	"github.com/upsguard/upsguard/pkg/sysutil"
)

// ScriptHook runs a local command via pkg/sysutil.RunCommand, for devices
// managed by a vendor CLI already installed on the host.
type ScriptHook struct {
	id       string
	command  string
	args     []string
	testArgs []string
}

func NewScriptHook(config map[string]string) (*ScriptHook, error) {
	command := config["command"]
	if command == "" {
		return nil, errRequired("custom_script", "command")
	}

	var args []string
	if raw := config["args"]; raw != "" {
		args = strings.Fields(raw)
	}
	var testArgs []string
	if raw := config["testArgs"]; raw != "" {
		testArgs = strings.Fields(raw)
	}

	return &ScriptHook{id: config["id"], command: command, args: args, testArgs: testArgs}, nil
}

func (h *ScriptHook) Execute() (bool, error) {
	out, err := sysutil.RunCommand(h.command, h.args...)
	if err != nil {
		return false, err
	}
	if out != "" {
		logger.NewHookLogger(h.id, "stdout").Write([]byte(out))
	}
	return true, nil
}

func (h *ScriptHook) TestConnection() (bool, error) {
	args := h.testArgs
	if args == nil {
		args = h.args
	}
	if !sysutil.CommandExists(h.command) {
		return false, errNotFound(h.command)
	}
	if len(args) == 0 {
		return true, nil
	}
	_, err := sysutil.RunCommand(h.command, args...)
	if err != nil {
		return false, err
	}
	return true, nil
}
