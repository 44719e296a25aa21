package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/visiongate/visiongate/pkg/tracker"
)

func newStatsCmd() *cobra.Command {
	var configPath string
	var recent int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show analysis-cycle statistics from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cfg.DBPath == "" {
				fmt.Println("No ledger configured (db_path is empty).")
				return nil
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			ctx := context.Background()
			summaries, err := tr.Summary(ctx)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No cycles recorded yet.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "OUTCOME\tCYCLES\tDETECTIONS\tAVG LATENCY MS")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%d\t%d\t%.1f\n", s.Outcome, s.Count, s.Detections, s.AvgLatencyMs)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if recent > 0 {
				records, err := tr.Recent(ctx, recent)
				if err != nil {
					return err
				}
				fmt.Println()
				w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tOUTCOME\tFINGERPRINT\tDETECTIONS\tLATENCY MS")
				for _, r := range records {
					fp := r.Fingerprint
					if len(fp) > 12 {
						fp = fp[:12]
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
						r.CreatedAt.Format("2006-01-02 15:04:05"), r.Outcome, fp, r.Detections, r.LatencyMs)
				}
				return w.Flush()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "visiongate.yaml", "path to config file")
	cmd.Flags().IntVar(&recent, "recent", 0, "also list the N most recent cycles")
	return cmd
}
