package commands

import (
	"github.com/spf13/cobra"
	"github.com/upsguard/upsguard/pkg/cliutil"
)

func CancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel an in-progress shutdown sequence, if one hasn't passed the point of no return",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := resolveClient(cmd)
			resp, err := client.Cancel()
			if err != nil {
				cliutil.PrintError("%v", err)
				return err
			}
			cliutil.PrintSuccess(resp.Message)
			return nil
		},
	}
}
