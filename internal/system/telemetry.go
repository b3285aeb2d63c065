package system

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/antonzymin-eng/Game-sub016/internal/core/threading"
	"github.com/antonzymin-eng/Game-sub016/internal/persist"
)

// TelemetrySystem snapshots the scheduler's performance counters into
// Postgres every flushFrames updates. It is meant to run with the Background
// strategy so a slow database write never stalls the frame barrier.
// Background updates are not barrier-synchronized, so a slow flush can still
// be in flight when the next frame's update arrives; frames is atomic and
// flushing arbitrates so snapshots never overlap.
type TelemetrySystem struct {
	mgr         *threading.Manager
	repo        *persist.TelemetryRepo
	log         *zap.Logger
	flushFrames uint64
	frames      atomic.Uint64
	flushing    atomic.Bool
}

func NewTelemetrySystem(mgr *threading.Manager, repo *persist.TelemetryRepo, flushFrames uint64, log *zap.Logger) *TelemetrySystem {
	if flushFrames == 0 {
		flushFrames = 600
	}
	return &TelemetrySystem{mgr: mgr, repo: repo, log: log, flushFrames: flushFrames}
}

func (s *TelemetrySystem) Name() string { return "TelemetrySystem" }

func (s *TelemetrySystem) Init() error { return nil }

func (s *TelemetrySystem) Update(time.Duration) error {
	if s.frames.Add(1)%s.flushFrames != 0 {
		return nil
	}
	if !s.flushing.CompareAndSwap(false, true) {
		return nil
	}
	defer s.flushing.Store(false)

	frame := s.mgr.Clock().Frame()
	pool := s.mgr.PoolInfo()
	sample := persist.FrameSample{
		Frame:       frame,
		FrameMs:     float64(s.mgr.FrameTime()) / float64(time.Millisecond),
		FPS:         s.mgr.FPS(),
		QueuedTasks: pool.QueuedTasks,
		ActiveTasks: pool.ActiveTasks,
	}

	names := s.mgr.SystemNames()
	systems := make([]persist.SystemSample, 0, len(names))
	for _, name := range names {
		info, ok := s.mgr.SystemInfo(name)
		if !ok {
			continue
		}
		errInfo := s.mgr.ErrorInfo(name)
		systems = append(systems, persist.SystemSample{
			Frame:       frame,
			SystemName:  name,
			Strategy:    info.Strategy.String(),
			AvgMs:       float64(info.Average) / float64(time.Millisecond),
			PeakMs:      float64(info.Peak) / float64(time.Millisecond),
			UpdateCount: info.Executions,
			ErrorCount:  errInfo.Count,
			Disabled:    errInfo.Disabled,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.repo.SaveSnapshot(ctx, sample, systems); err != nil {
		// Telemetry is best effort; a failed write must not trip the
		// scheduler's error breaker for this system.
		s.log.Warn("telemetry flush failed", zap.Error(err))
	}
	return nil
}

func (s *TelemetrySystem) Shutdown() error { return nil }
