package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/upsguard/upsguard/cmd/upsguardctl/commands"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "upsguardctl",
		Short: "UPS Guardian operator CLI",
		Long: `upsguardctl is the command-line companion to ups-guardiand.
It talks to a running daemon over its local control socket to report
status, cancel an in-progress shutdown, test a configured hook, and
review recent guardian events.`,
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
	}

	rootCmd.PersistentFlags().String("socket", "./data/ups-guardiand.sock", "path to the daemon's control socket")
	rootCmd.PersistentFlags().String("config", "", "path to config file (used to resolve the socket path if --socket is not set)")

	rootCmd.AddCommand(commands.StatusCmd())
	rootCmd.AddCommand(commands.CancelCmd())
	rootCmd.AddCommand(commands.TestHookCmd())
	rootCmd.AddCommand(commands.HistoryCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
