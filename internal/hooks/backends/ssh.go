package backends

import (
	"fmt"

	"github.com/upsguard/upsguard/pkg/logger"
	"github.com/upsguard/upsguard/pkg/sysutil"
	"go.uber.org/zap"
)

// SSHHook shells out to the system ssh client to run a remote command
// against a managed device. The host's own ssh binary already carries the
// user's keys, known_hosts, and agent forwarding, so no SSH library is
// vendored.
type SSHHook struct {
	host      string
	user      string
	command   string
	identity  string
	hookLabel string
}

// NewSSHHook validates its config at construction and fails fast.
func NewSSHHook(config map[string]string) (*SSHHook, error) {
	host := config["host"]
	if host == "" {
		return nil, fmt.Errorf("ssh hook: host is required")
	}
	command := config["command"]
	if command == "" {
		return nil, fmt.Errorf("ssh hook: command is required")
	}
	user := config["user"]
	if user == "" {
		user = "root"
	}

	return &SSHHook{
		host:      host,
		user:      user,
		command:   command,
		identity:  config["identityFile"],
		hookLabel: config["id"],
	}, nil
}

func (h *SSHHook) Execute() (bool, error) {
	args := h.sshArgs()
	out, err := sysutil.RunCommand("ssh", args...)
	if err != nil {
		logger.Warn("ssh hook execute failed", zap.String("hookID", h.hookLabel), zap.String("host", h.host), zap.Error(err))
		return false, err
	}
	if out != "" {
		logger.NewHookLogger(h.hookLabel, "stdout").Write([]byte(out))
	}
	return true, nil
}

// TestConnection runs a harmless remote no-op (`true`) instead of the
// configured command, used in dry-run mode.
func (h *SSHHook) TestConnection() (bool, error) {
	args := h.sshArgs()
	args[len(args)-1] = "true"
	out, err := sysutil.RunCommand("ssh", args...)
	if err != nil {
		return false, err
	}
	_ = out
	return true, nil
}

func (h *SSHHook) sshArgs() []string {
	args := []string{"-o", "BatchMode=yes", "-o", "ConnectTimeout=10"}
	if h.identity != "" {
		args = append(args, "-i", h.identity)
	}
	args = append(args, fmt.Sprintf("%s@%s", h.user, h.host), h.command)
	return args
}
