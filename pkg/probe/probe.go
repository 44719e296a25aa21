// Package probe runs the one-shot startup reachability check against the
// remote analysis service. A failed probe is fatal for the session but never
// for the process: callers skip dependent subsystems and carry on degraded.
package probe

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/visiongate/visiongate/pkg/retry"
)

// Check runs op through the retry executor and reports whether any attempt
// succeeded. Every failure is treated as retry-worthy here: at startup there
// is nothing to gain from distinguishing a cold endpoint from a flaky link.
func Check(ctx context.Context, p retry.Policy, op func(context.Context) error) bool {
	return CheckWith(ctx, retry.New(), p, op)
}

// CheckWith is Check with an explicit executor, for tests.
func CheckWith(ctx context.Context, ex *retry.Executor, p retry.Policy, op func(context.Context) error) bool {
	attempt := 0
	_, err := retry.DoWith(ctx, ex, p, func(ctx context.Context) (struct{}, error) {
		attempt++
		if err := op(ctx); err != nil {
			log.WithField("attempt", attempt).Warnf("connectivity check failed: %v", err)
			return struct{}{}, retry.Transient(err)
		}
		return struct{}{}, nil
	})
	if err != nil {
		log.Errorf("connectivity check exhausted: %v", err)
		return false
	}
	log.Debug("connectivity check succeeded")
	return true
}
