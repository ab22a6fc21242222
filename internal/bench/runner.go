package bench

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hansjm10/idle-simcore/pkg/content"
	"github.com/hansjm10/idle-simcore/pkg/coordinator"
	"github.com/hansjm10/idle-simcore/pkg/managers"
	"github.com/hansjm10/idle-simcore/pkg/resourcestate"
)

// Config parameterizes one bench run.
type Config struct {
	Size     SyntheticSize
	Ticks    int
	Registry prometheus.Registerer
}

// Result summarizes one bench run: validation outcome plus the tick-latency
// distribution actually measured, not the raw prometheus collectors (those
// stay behind Metrics for a caller that wants to scrape them directly).
type Result struct {
	Pack           content.Pack
	ValidationTook time.Duration
	Ticks          int
	TotalTickTime  time.Duration
	MeanTickTime   time.Duration
	CacheHitRatio  float64
}

// Run validates a freshly generated synthetic pack, builds a coordinator
// over it, and drives cfg.Ticks fixed-timestep steps, recording every
// tick's latency into cfg.Registry's histogram. It re-parses the same pack
// bytes a second time after the first validation so the cache-hit-ratio
// counters have at least one hit to report.
func Run(cfg Config) (*Result, error) {
	metrics := NewMetrics(cfg.Registry)
	cache := WrapCache(content.NewLRUValidationCache(0), metrics)

	raw := GeneratePack(cfg.Size)
	validator := content.NewValidator(content.Options{Cache: cache})

	start := time.Now()
	result := validator.Parse(raw, content.Fingerprint(fingerprintBytes(raw)))
	if !result.Valid() {
		return nil, fmt.Errorf("bench: synthetic pack failed validation: %v", result.Errors)
	}
	// Re-parse identical input so the cache records a hit: a bench run
	// otherwise reports a 0% hit ratio even though the cache works, since a
	// single pass can only ever miss.
	_ = validator.Parse(raw, content.Fingerprint(fingerprintBytes(raw)))
	validationTook := time.Since(start)

	coord, err := coordinator.New(coordinator.Config{Pack: result.Normalized})
	if err != nil {
		return nil, fmt.Errorf("bench: build coordinator: %w", err)
	}

	var total time.Duration
	for step := int64(1); step <= int64(cfg.Ticks); step++ {
		tickStart := time.Now()
		coord.UpdateForStep(step, managers.Clock{Time: float64(step), DeltaTime: 1})
		coord.Resources().FinalizeTick(1000)
		coord.Resources().Snapshot(resourcestate.ModePublish)
		_ = coord.Resources().ResetPerTickAccumulators()
		elapsed := time.Since(tickStart)

		total += elapsed
		metrics.TickLatency.Observe(elapsed.Seconds())
	}

	mean := time.Duration(0)
	if cfg.Ticks > 0 {
		mean = total / time.Duration(cfg.Ticks)
	}

	return &Result{
		Pack:           raw,
		ValidationTook: validationTook,
		Ticks:          cfg.Ticks,
		TotalTickTime:  total,
		MeanTickTime:   mean,
		CacheHitRatio:  metrics.HitRatio(),
	}, nil
}

// fingerprintBytes canonicalizes a synthetic pack's identity for the
// validation cache key. A real host fingerprints the pack's source bytes
// (YAML or JSON); this harness has no wire encoding to hash, so it keys on
// the pack's shape instead, stable across repeated Run calls with the same
// SyntheticSize, which is all the cache-hit measurement needs.
func fingerprintBytes(p content.Pack) []byte {
	return []byte(fmt.Sprintf("engine=%d resources=%d generators=%d", p.Engine, len(p.Resources), len(p.Generators)))
}
