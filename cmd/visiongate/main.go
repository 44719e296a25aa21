package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/visiongate/visiongate/pkg/config"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "visiongate",
		Short:   "visiongate — budget-aware gateway for remote image analysis",
		Version: version,
	}

	root.AddCommand(
		newRunCmd(),
		newStatsCmd(),
		newQuotaCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the log level.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config: log_level: %w", err)
	}
	log.SetLevel(level)
	return cfg, nil
}
