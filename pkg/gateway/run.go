package gateway

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/visiongate/visiongate/pkg/probe"
)

// Run drives the gateway on a fixed interval until ctx is done.
//
// When the analyzer exposes a health check it is probed once first. An
// unreachable service disables capture for the whole session without
// crashing: Run logs the degraded state and returns nil. Cancellation also
// returns nil. The only error Run surfaces is ErrDisposed.
func (g *Gateway) Run(ctx context.Context, interval time.Duration) error {
	if hc, ok := g.caps.Analyze.(HealthChecker); ok {
		if !probe.CheckWith(ctx, g.exec, g.probePolicy, hc.CheckHealth) {
			log.Error("analysis service unreachable; session runs degraded, capture disabled")
			return nil
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := g.Process(ctx); err != nil {
				return err
			}
		}
	}
}
