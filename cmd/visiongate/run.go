package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/visiongate/visiongate/pkg/cache"
	"github.com/visiongate/visiongate/pkg/gateway"
	"github.com/visiongate/visiongate/pkg/models"
	"github.com/visiongate/visiongate/pkg/quota"
	"github.com/visiongate/visiongate/pkg/retry"
	"github.com/visiongate/visiongate/pkg/tracker"
	"github.com/visiongate/visiongate/pkg/vision"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		imagePath  string
		watch      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Analyze an image through the gateway",
		Long: `Run drives the gateway with a file-based capturer: each cycle reads the
image at --image (a stand-in for the device camera) and sends it through
the cache/quota/retry pipeline. With --watch the gateway probes the
service once and then cycles at the given interval until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			client := vision.New(cfg.Endpoint, cfg.APIKey,
				vision.WithRateLimit(cfg.RequestsPerSecond))

			var ledger tracker.Tracker
			if cfg.DBPath != "" {
				sq, err := tracker.New(cfg.DBPath)
				if err != nil {
					return fmt.Errorf("init tracker: %w", err)
				}
				defer func() { _ = sq.Close() }()
				ledger = sq
			}

			ttl := cfg.Cache.TTL
			if !cfg.Cache.Enabled {
				// Zero TTL expires entries on the next lookup.
				ttl = 0
			}

			caps := gateway.Capabilities{
				Capture: gateway.CaptureFunc(func(context.Context) ([]byte, error) {
					return os.ReadFile(imagePath)
				}),
				Analyze: client,
				Display: gateway.DisplayFunc(printResult),
			}

			g, err := gateway.New(caps,
				quota.New(cfg.Quota.Limit, quota.WithRollover(quota.ParseRollover(cfg.Quota.Rollover))),
				cache.New(ttl),
				ledger,
				gateway.WithRetryPolicy(retry.Policy{
					MaxAttempts:    cfg.Retry.MaxAttempts,
					BaseDelay:      cfg.Retry.BaseDelay,
					AttemptTimeout: cfg.Retry.AttemptTimeout,
				}),
				gateway.WithProbePolicy(retry.Policy{
					MaxAttempts: cfg.Probe.MaxAttempts,
					BaseDelay:   cfg.Probe.BaseDelay,
				}),
			)
			if err != nil {
				return err
			}
			defer func() { _ = g.Close() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if watch > 0 {
				log.Infof("watching %s every %s", imagePath, watch)
				return g.Run(ctx, watch)
			}

			outcome, err := g.Process(ctx)
			if err != nil {
				return err
			}
			st := g.Quota()
			cs := g.CacheStats()
			fmt.Printf("outcome: %s  (quota %d/%d, cache %d entries)\n",
				outcome, st.Consumed, st.Limit, cs.Entries)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "visiongate.yaml", "path to config file")
	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "path to the image to analyze")
	cmd.Flags().DurationVarP(&watch, "watch", "w", 0, "re-analyze at this interval (0 = one shot)")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func printResult(result *models.DetectionResult) {
	for _, d := range result.Detections {
		fmt.Printf("%-20s %5.2f  at (%.0f, %.0f, %.0f)\n",
			d.Label, d.Confidence, d.Location.X, d.Location.Y, d.Location.Z)
	}
	for _, t := range result.Tags {
		fmt.Printf("tag: %-15s %5.2f\n", t.Name, t.Confidence)
	}
}
