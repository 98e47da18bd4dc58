package commands

import (
	"github.com/spf13/cobra"
	"github.com/upsguard/upsguard/pkg/cliutil"
)

func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the guardian daemon's current shutdown phase and UPS status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := resolveClient(cmd)
			resp, err := client.Status()
			if err != nil {
				cliutil.PrintError("%v", err)
				return err
			}

			cliutil.PrintHeader("UPS Guardian Status")
			s := resp.Status

			upsStatus := "unknown"
			if s.HasSnapshot {
				upsStatus = s.UPSStatus
			}
			nutStatus := "disconnected"
			if s.NUTConnected {
				nutStatus = "connected"
			}

			cliutil.KeyValueTable([][2]string{
				{"Shutdown phase", s.Phase},
				{"Remaining seconds", fmtSeconds(s.RemainingSeconds)},
				{"Final countdown", fmtBool(s.InFinalCountdown)},
				{"UPS status", upsStatus},
				{"NUT connection", nutStatus},
			})

			if len(s.ChannelErrors) > 0 {
				cliutil.PrintWarning("notification channels with errors:")
				rows := make([][]string, 0, len(s.ChannelErrors))
				for id, msg := range s.ChannelErrors {
					rows = append(rows, []string{id, msg})
				}
				cliutil.Table([]string{"Channel", "Last error"}, rows)
			}

			return nil
		},
	}
}

func fmtBool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func fmtSeconds(f float64) string {
	if f <= 0 {
		return "-"
	}
	return formatFloat(f)
}
