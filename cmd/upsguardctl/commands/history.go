package commands

import (
	"github.com/spf13/cobra"
	"github.com/upsguard/upsguard/pkg/cliutil"
)

func HistoryCmd() *cobra.Command {
	var sinceDays int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent guardian domain events",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := resolveClient(cmd)
			resp, err := client.History(sinceDays)
			if err != nil {
				cliutil.PrintError("%v", err)
				return err
			}

			if len(resp.History) == 0 {
				cliutil.PrintInfo("no events recorded")
				return nil
			}

			rows := make([][]string, 0, len(resp.History))
			for _, e := range resp.History {
				rows = append(rows, []string{e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, e.Message})
			}
			cliutil.Table([]string{"Time", "Kind", "Message"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVar(&sinceDays, "since", 7, "only show events from the last N days (0 = all)")
	return cmd
}
