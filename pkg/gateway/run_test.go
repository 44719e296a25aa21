package gateway

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/visiongate/visiongate/pkg/cache"
	"github.com/visiongate/visiongate/pkg/models"
	"github.com/visiongate/visiongate/pkg/quota"
)

// healthAnalyzer pairs an Analyzer with a scripted health check.
type healthAnalyzer struct {
	Analyzer
	healthErr error
	probes    atomic.Int32
}

func (h *healthAnalyzer) CheckHealth(context.Context) error {
	h.probes.Add(1)
	return h.healthErr
}

func TestRunDegradedWhenUnreachable(t *testing.T) {
	analyzer := &healthAnalyzer{
		Analyzer: AnalyzerFunc(func(context.Context, []byte) (*models.DetectionResult, error) {
			t.Fatal("degraded session must not analyze")
			return nil, nil
		}),
		healthErr: errors.New("endpoint down"),
	}
	captured := atomic.Int32{}
	caps := Capabilities{
		Capture: CaptureFunc(func(context.Context) ([]byte, error) {
			captured.Add(1)
			return []byte("frame"), nil
		}),
		Analyze: analyzer,
		Display: &displayRecorder{},
	}
	g := newGateway(t, caps, quota.New(10), cache.New(time.Hour), nil)

	if err := g.Run(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("degraded startup must not error: %v", err)
	}
	if got := analyzer.probes.Load(); got != 3 {
		t.Errorf("expected 3 probe attempts, got %d", got)
	}
	if captured.Load() != 0 {
		t.Error("degraded session captured an image")
	}
}

func TestRunProcessesUntilCancelled(t *testing.T) {
	cycles := atomic.Int32{}
	analyzer := &healthAnalyzer{
		Analyzer: AnalyzerFunc(func(context.Context, []byte) (*models.DetectionResult, error) {
			return cupResult(), nil
		}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	caps := Capabilities{
		Capture: CaptureFunc(func(context.Context) ([]byte, error) {
			if cycles.Add(1) >= 3 {
				cancel()
			}
			return []byte{byte(cycles.Load())}, nil
		}),
		Analyze: analyzer,
		Display: &displayRecorder{},
	}
	g := newGateway(t, caps, quota.New(100), cache.New(time.Hour), nil)

	if err := g.Run(ctx, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if cycles.Load() < 3 {
		t.Errorf("expected at least 3 cycles, got %d", cycles.Load())
	}
	if analyzer.probes.Load() != 1 {
		t.Errorf("expected a single startup probe, got %d", analyzer.probes.Load())
	}
}

func TestRunAfterClose(t *testing.T) {
	caps := Capabilities{
		Capture: staticCapture([]byte("frame")),
		Analyze: AnalyzerFunc(func(context.Context, []byte) (*models.DetectionResult, error) {
			return cupResult(), nil
		}),
		Display: &displayRecorder{},
	}
	g := newGateway(t, caps, quota.New(10), cache.New(time.Hour), nil)
	_ = g.Close()

	err := g.Run(context.Background(), time.Millisecond)
	if !errors.Is(err, ErrDisposed) {
		t.Errorf("expected ErrDisposed, got %v", err)
	}
}
