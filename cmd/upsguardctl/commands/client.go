package commands

import (
	"github.com/spf13/cobra"
	"github.com/upsguard/upsguard/internal/config"
	"github.com/upsguard/upsguard/internal/control"
)

// resolveClient builds a control.Client for the socket path the operator
// named directly, or the one a config file (if any) resolves to.
func resolveClient(cmd *cobra.Command) *control.Client {
	socket, _ := cmd.Flags().GetString("socket")
	if socket != "" && socket != "./data/ups-guardiand.sock" {
		return control.NewClient(socket)
	}

	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		if cfg, err := config.Load(configPath); err == nil && cfg.App.ControlSocket != "" {
			return control.NewClient(cfg.App.ControlSocket)
		}
	}

	return control.NewClient(socket)
}
