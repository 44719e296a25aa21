package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/visiongate/visiongate/pkg/quota"
)

func newQuotaCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show the configured call quota policy",
		Long: `Quota shows the configured limit and rollover policy. The consumed
counter lives in the running gateway process and is not persisted, so a
fresh period starts with every process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			st := quota.New(cfg.Quota.Limit,
				quota.WithRollover(quota.ParseRollover(cfg.Quota.Rollover))).Status()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "LIMIT\tROLLOVER\tPERIOD START")
			fmt.Fprintf(w, "%d\t%s\t%s\n",
				st.Limit, cfg.Quota.Rollover, st.PeriodStart.Format("2006-01-02 15:04:05 MST"))
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "visiongate.yaml", "path to config file")
	return cmd
}
