package commands

import (
	"github.com/spf13/cobra"
	"github.com/upsguard/upsguard/pkg/cliutil"
)

func TestHookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-hook <id>",
		Short: "Run a configured pre-shutdown hook's connection test without triggering a shutdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := resolveClient(cmd)
			resp, err := client.TestHook(args[0])
			if err != nil {
				cliutil.PrintError("%v", err)
				return err
			}
			cliutil.PrintSuccess(resp.Message)
			return nil
		},
	}
}
