// Package gateway orchestrates one analysis cycle at a time: single-flight
// guard, quota check, local-processing shortcut, content-addressed cache,
// then the billed remote call through the retry executor.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/visiongate/visiongate/pkg/cache"
	"github.com/visiongate/visiongate/pkg/models"
	"github.com/visiongate/visiongate/pkg/quota"
	"github.com/visiongate/visiongate/pkg/retry"
	"github.com/visiongate/visiongate/pkg/tracker"
)

// ErrDisposed is returned by Process after Close. Calling a closed gateway
// is a caller bug, not a per-cycle condition, so it is the one failure
// Process surfaces as an error.
var ErrDisposed = errors.New("gateway: use after Close")

// Outcome names the terminal state of one Process cycle.
type Outcome string

const (
	OutcomeNone          Outcome = ""
	OutcomeLocal         Outcome = "local"
	OutcomeCacheHit      Outcome = "cache_hit"
	OutcomeRemote        Outcome = "remote"
	OutcomeRemoteFailed  Outcome = "remote_failed"
	OutcomeCaptureFailed Outcome = "capture_failed"
	OutcomeQuotaBlocked  Outcome = "quota_blocked"
	OutcomeDropped       Outcome = "dropped"
)

// Capturer produces a single still image's raw bytes.
type Capturer interface {
	Capture(ctx context.Context) ([]byte, error)
}

// CaptureFunc adapts a function to Capturer.
type CaptureFunc func(ctx context.Context) ([]byte, error)

func (f CaptureFunc) Capture(ctx context.Context) ([]byte, error) { return f(ctx) }

// LocalProcessor is the optional on-device shortcut. It runs before capture;
// when it reports handled the remote path is skipped entirely and no quota
// is consumed.
type LocalProcessor interface {
	ProcessLocal(ctx context.Context) (handled bool, result *models.DetectionResult, err error)
}

// LocalProcessorFunc adapts a function to LocalProcessor.
type LocalProcessorFunc func(ctx context.Context) (bool, *models.DetectionResult, error)

func (f LocalProcessorFunc) ProcessLocal(ctx context.Context) (bool, *models.DetectionResult, error) {
	return f(ctx)
}

// Analyzer performs the billed remote analysis call.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte) (*models.DetectionResult, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, image []byte) (*models.DetectionResult, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, image []byte) (*models.DetectionResult, error) {
	return f(ctx, image)
}

// HealthChecker is implemented by analyzers that expose a lightweight
// reachability check; Run probes it once at startup.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// Displayer is the rendering sink. Fire-and-forget from the gateway's
// perspective.
type Displayer interface {
	Display(result *models.DetectionResult)
}

// DisplayFunc adapts a function to Displayer.
type DisplayFunc func(result *models.DetectionResult)

func (f DisplayFunc) Display(result *models.DetectionResult) { f(result) }

// Capabilities are the injected collaborators. Local is optional; the rest
// are required.
type Capabilities struct {
	Capture Capturer
	Local   LocalProcessor
	Analyze Analyzer
	Display Displayer
}

// Gateway mediates analysis requests. At most one cycle is ever in flight;
// the single-slot semaphore serializes every quota and cache access, so
// neither needs its own locking.
type Gateway struct {
	caps    Capabilities
	quota   *quota.Tracker
	cache   *cache.Cache
	tracker tracker.Tracker

	retryPolicy retry.Policy
	probePolicy retry.Policy
	exec        *retry.Executor

	flight   *semaphore.Weighted
	disposed atomic.Bool

	closeOnce sync.Once
	closeErr  error

	now func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRetryPolicy sets the remote-call retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(g *Gateway) { g.retryPolicy = p }
}

// WithProbePolicy sets the startup probe retry policy.
func WithProbePolicy(p retry.Policy) Option {
	return func(g *Gateway) { g.probePolicy = p }
}

// WithExecutor overrides the retry executor, for tests.
func WithExecutor(ex *retry.Executor) Option {
	return func(g *Gateway) { g.exec = ex }
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New wires a Gateway. The quota tracker and cache are owned by the gateway
// from here on; the cycle tracker is optional and remains caller-owned.
func New(caps Capabilities, q *quota.Tracker, c *cache.Cache, tr tracker.Tracker, opts ...Option) (*Gateway, error) {
	if caps.Capture == nil {
		return nil, errors.New("gateway: capturer is required")
	}
	if caps.Analyze == nil {
		return nil, errors.New("gateway: analyzer is required")
	}
	if caps.Display == nil {
		return nil, errors.New("gateway: displayer is required")
	}
	if q == nil {
		return nil, errors.New("gateway: quota tracker is required")
	}
	if c == nil {
		return nil, errors.New("gateway: cache is required")
	}

	g := &Gateway{
		caps:        caps,
		quota:       q,
		cache:       c,
		tracker:     tr,
		retryPolicy: retry.Default(),
		probePolicy: retry.Default(),
		exec:        retry.New(),
		flight:      semaphore.NewWeighted(1),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.retryPolicy.Validate(); err != nil {
		return nil, err
	}
	if err := g.probePolicy.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Process runs one analysis cycle and reports its terminal state. Per-cycle
// failures (capture errors, exhausted retries, permanent remote errors) are
// logged and swallowed so the host session never dies from one bad cycle;
// only use-after-Close returns an error.
//
// A call arriving while another cycle is in flight returns OutcomeDropped
// immediately, with no side effects.
func (g *Gateway) Process(ctx context.Context) (Outcome, error) {
	if g.disposed.Load() {
		return OutcomeNone, ErrDisposed
	}

	// Single-flight guard. Everything below runs with the slot held, which
	// is what lets the quota and cache stay lock-free.
	if !g.flight.TryAcquire(1) {
		return OutcomeDropped, nil
	}
	defer g.flight.Release(1)

	start := g.now()
	cycleID := uuid.NewString()
	logger := log.WithField("cycle", cycleID)

	if g.quota.Remaining() <= 0 {
		// Expected steady state near the limit, not an error.
		logger.Warn("call quota exhausted for the current period")
		g.record(logger, cycleID, "", OutcomeQuotaBlocked, 0, start)
		return OutcomeQuotaBlocked, nil
	}

	if g.caps.Local != nil {
		handled, result, err := g.caps.Local.ProcessLocal(ctx)
		switch {
		case err != nil:
			logger.Debugf("local processing unavailable: %v", err)
		case handled:
			if result != nil {
				g.caps.Display.Display(result)
			}
			g.record(logger, cycleID, "", OutcomeLocal, detectionCount(result), start)
			return OutcomeLocal, nil
		}
	}

	image, err := g.caps.Capture.Capture(ctx)
	if err != nil {
		logger.Errorf("capture failed: %v", err)
		g.record(logger, cycleID, "", OutcomeCaptureFailed, 0, start)
		return OutcomeCaptureFailed, nil
	}

	fp := cache.Compute(image)
	logger = logger.WithField("fingerprint", fp.String()[:12])

	if result, ok := g.cache.Get(fp); ok {
		logger.Debug("cache hit")
		g.caps.Display.Display(result)
		g.record(logger, cycleID, fp.String(), OutcomeCacheHit, detectionCount(result), start)
		return OutcomeCacheHit, nil
	}

	if !g.quota.TryConsume() {
		logger.Warn("call quota exhausted for the current period")
		g.record(logger, cycleID, fp.String(), OutcomeQuotaBlocked, 0, start)
		return OutcomeQuotaBlocked, nil
	}

	result, err := retry.DoWith(ctx, g.exec, g.retryPolicy, func(ctx context.Context) (*models.DetectionResult, error) {
		return g.caps.Analyze.Analyze(ctx, image)
	})
	if err != nil {
		logger.Errorf("remote analysis failed: %v", err)
		g.record(logger, cycleID, fp.String(), OutcomeRemoteFailed, 0, start)
		return OutcomeRemoteFailed, nil
	}

	g.cache.Put(fp, result)
	g.caps.Display.Display(result)
	logger.WithField("detections", detectionCount(result)).Info("remote analysis succeeded")
	g.record(logger, cycleID, fp.String(), OutcomeRemote, detectionCount(result), start)
	return OutcomeRemote, nil
}

// Quota returns a snapshot of the call counter. Must not race an in-flight
// cycle; intended for the CLI and for callers between cycles.
func (g *Gateway) Quota() models.QuotaStatus {
	return g.quota.Status()
}

// CacheStats returns cache performance metrics.
func (g *Gateway) CacheStats() models.CacheStats {
	return g.cache.Stats()
}

// Close waits for any in-flight cycle, clears the cache, and closes closable
// collaborators. Idempotent; every Process call afterwards fails fast with
// ErrDisposed.
func (g *Gateway) Close() error {
	g.closeOnce.Do(func() {
		g.disposed.Store(true)

		// Wait out an in-flight cycle so resources are not pulled from
		// under it.
		if err := g.flight.Acquire(context.Background(), 1); err == nil {
			defer g.flight.Release(1)
		}

		g.cache.Clear()

		for _, c := range []any{g.caps.Capture, g.caps.Analyze} {
			closer, ok := c.(io.Closer)
			if !ok {
				continue
			}
			if err := closer.Close(); err != nil && g.closeErr == nil {
				g.closeErr = fmt.Errorf("gateway: close: %w", err)
			}
		}
	})
	return g.closeErr
}

func (g *Gateway) record(logger *log.Entry, cycleID, fp string, outcome Outcome, detections int, start time.Time) {
	if g.tracker == nil {
		return
	}
	rec := models.CycleRecord{
		CycleID:     cycleID,
		Fingerprint: fp,
		Outcome:     string(outcome),
		Detections:  detections,
		LatencyMs:   g.now().Sub(start).Milliseconds(),
		CreatedAt:   g.now().UTC(),
	}
	// Ledger writes never fail a cycle.
	if err := g.tracker.Record(context.Background(), rec); err != nil {
		logger.Errorf("cycle record error: %v", err)
	}
}

func detectionCount(r *models.DetectionResult) int {
	if r == nil {
		return 0
	}
	return len(r.Detections)
}
