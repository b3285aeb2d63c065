package threading

import (
	"runtime"
	"time"
)

// Tuning carries every scheduling constant the manager consults. Zero values
// are replaced by the defaults below, so config files only need to name the
// knobs they change.
type Tuning struct {
	// Workers is the shared pool size.
	Workers int

	// SlowSystemThreshold is the average execution time past which a hybrid
	// system with enough history is steered away from the pool.
	SlowSystemThreshold time.Duration
	// MinSamples is the execution history required before adaptive decisions.
	MinSamples uint64

	// Promotion: a pool system whose average exceeds PromoteAverage and whose
	// peak exceeds PromotePeak for PromoteFrames consecutive frames moves to a
	// dedicated thread.
	PromoteAverage time.Duration
	PromotePeak    time.Duration
	PromoteFrames  uint64

	// Demotion: a non-critical dedicated system whose average and peak stay
	// under DemoteAverage/DemotePeak for DemoteFrames consecutive frames moves
	// back to the pool.
	DemoteAverage time.Duration
	DemotePeak    time.Duration
	DemoteFrames  uint64

	// BalanceInterval is how many frames pass between load-balancing passes.
	BalanceInterval uint64

	// Circuit breaker: MaxErrors failures within ErrorWindow disable a system.
	MaxErrors   uint64
	ErrorWindow time.Duration

	// Moving-average window sizes for the performance monitor.
	SampleWindow uint64
	FPSWindow    uint64

	// TargetInterval is the default pacing interval for dedicated threads.
	TargetInterval time.Duration
	// DisabledIdle is how long a disabled system's dedicated thread sleeps
	// between checks.
	DisabledIdle time.Duration
}

// DefaultTuning returns the stock constants (60 FPS frame budget, 3 s of
// sustained slowness to promote, 10 s of headroom to demote, 5 errors in 30 s
// to disable).
func DefaultTuning() Tuning {
	return Tuning{
		Workers:             runtime.GOMAXPROCS(0),
		SlowSystemThreshold: 8 * time.Millisecond,
		MinSamples:          10,
		PromoteAverage:      16 * time.Millisecond,
		PromotePeak:         25 * time.Millisecond,
		PromoteFrames:       180,
		DemoteAverage:       4 * time.Millisecond,
		DemotePeak:          8 * time.Millisecond,
		DemoteFrames:        600,
		BalanceInterval:     300,
		MaxErrors:           5,
		ErrorWindow:         30 * time.Second,
		SampleWindow:        100,
		FPSWindow:           60,
		TargetInterval:      time.Second / 60,
		DisabledIdle:        100 * time.Millisecond,
	}
}

// withDefaults fills any zero field from DefaultTuning.
func (t Tuning) withDefaults() Tuning {
	d := DefaultTuning()
	if t.Workers <= 0 {
		t.Workers = d.Workers
	}
	if t.SlowSystemThreshold <= 0 {
		t.SlowSystemThreshold = d.SlowSystemThreshold
	}
	if t.MinSamples == 0 {
		t.MinSamples = d.MinSamples
	}
	if t.PromoteAverage <= 0 {
		t.PromoteAverage = d.PromoteAverage
	}
	if t.PromotePeak <= 0 {
		t.PromotePeak = d.PromotePeak
	}
	if t.PromoteFrames == 0 {
		t.PromoteFrames = d.PromoteFrames
	}
	if t.DemoteAverage <= 0 {
		t.DemoteAverage = d.DemoteAverage
	}
	if t.DemotePeak <= 0 {
		t.DemotePeak = d.DemotePeak
	}
	if t.DemoteFrames == 0 {
		t.DemoteFrames = d.DemoteFrames
	}
	if t.BalanceInterval == 0 {
		t.BalanceInterval = d.BalanceInterval
	}
	if t.MaxErrors == 0 {
		t.MaxErrors = d.MaxErrors
	}
	if t.ErrorWindow <= 0 {
		t.ErrorWindow = d.ErrorWindow
	}
	if t.SampleWindow == 0 {
		t.SampleWindow = d.SampleWindow
	}
	if t.FPSWindow == 0 {
		t.FPSWindow = d.FPSWindow
	}
	if t.TargetInterval <= 0 {
		t.TargetInterval = d.TargetInterval
	}
	if t.DisabledIdle <= 0 {
		t.DisabledIdle = d.DisabledIdle
	}
	return t
}
