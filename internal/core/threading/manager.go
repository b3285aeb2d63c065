package threading

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/antonzymin-eng/Game-sub016/internal/core/ecs"
	"github.com/antonzymin-eng/Game-sub016/internal/core/event"
	"go.uber.org/zap"
)

var (
	ErrNilSystem       = errors.New("nil system")
	ErrDuplicateSystem = errors.New("duplicate system name")
	ErrUnknownSystem   = errors.New("unknown system")
	ErrNilCollaborator = errors.New("nil collaborator")
)

// systemState is the per-system scheduling metadata: live strategy, pacing,
// and the execution statistics the balancer reads.
type systemState struct {
	sys      System
	strategy Strategy // guarded by Manager.mu
	critical bool     // guarded by Manager.mu

	targetInterval atomic.Int64 // nanoseconds, read by the dedicated loop

	statsMu       sync.Mutex
	avgExec       float64 // seconds
	peakExec      float64
	execCount     uint64
	promoteStreak uint64
	demoteStreak  uint64
}

func (st *systemState) recordExecution(d time.Duration, window uint64) {
	secs := d.Seconds()
	st.statsMu.Lock()
	defer st.statsMu.Unlock()
	st.execCount++
	if secs > st.peakExec {
		st.peakExec = secs
	}
	st.avgExec = movingAverage(st.avgExec, secs, st.execCount, window)
}

func (st *systemState) stats() (avg, peak time.Duration, count uint64) {
	st.statsMu.Lock()
	defer st.statsMu.Unlock()
	return secondsToDuration(st.avgExec), secondsToDuration(st.peakExec), st.execCount
}

// dedicatedThread is the record for one system running on its own goroutine.
type dedicatedThread struct {
	stop   atomic.Bool
	active atomic.Bool
	done   chan struct{}
}

// SystemInfo is a snapshot of one registered system's scheduling state.
type SystemInfo struct {
	Name           string
	Strategy       Strategy
	Critical       bool
	TargetInterval time.Duration
	Average        time.Duration
	Peak           time.Duration
	Executions     uint64
}

// PoolInfo is a snapshot of the shared worker pool.
type PoolInfo struct {
	Workers         int
	QueuedTasks     int
	ActiveTasks     int
	AverageTaskTime time.Duration
}

// Manager owns the clock, worker pool, frame barrier and performance monitor,
// holds the system registry, and drives the per-frame update protocol.
//
// One driver thread calls Update; pool workers and dedicated goroutines run
// system updates in parallel. The driver waits on the pooled task handles and
// the dedicated threads rendezvous at the frame barrier, so no system starts
// frame N+1 before every system finished frame N.
type Manager struct {
	access *ecs.World
	bus    *event.Bus
	log    *zap.Logger
	tuning Tuning

	mu        sync.Mutex
	order     []string
	systems   map[string]*systemState
	dedicated map[string]*dedicatedThread

	pool    *WorkerPool
	barrier *FrameBarrier
	monitor *PerformanceMonitor
	clock   *GameClock
	errs    *errorTracker

	running    atomic.Bool
	paused     atomic.Bool
	monitoring atomic.Bool

	frameTime      atomicFloat64 // seconds
	balanceCounter uint64        // driver thread only
}

// NewManager wires the scheduler around its collaborators. The component
// gateway and message bus are held by reference for systems to use; the
// manager itself never interprets them.
func NewManager(access *ecs.World, bus *event.Bus, tuning Tuning, log *zap.Logger) (*Manager, error) {
	if access == nil || bus == nil {
		return nil, ErrNilCollaborator
	}
	if log == nil {
		log = zap.NewNop()
	}
	tuning = tuning.withDefaults()

	m := &Manager{
		access:    access,
		bus:       bus,
		log:       log,
		tuning:    tuning,
		systems:   make(map[string]*systemState),
		dedicated: make(map[string]*dedicatedThread),
		pool:      NewWorkerPool(tuning.Workers, log),
		barrier:   NewFrameBarrier(tuning.Workers + 1),
		monitor:   NewPerformanceMonitor(tuning.SampleWindow, tuning.FPSWindow),
		clock:     NewGameClock(),
		errs:      newErrorTracker(tuning.MaxErrors, tuning.ErrorWindow, log),
	}
	m.monitoring.Store(true)
	return m, nil
}

// Access returns the component-access gateway shared with systems.
func (m *Manager) Access() *ecs.World { return m.access }

// Bus returns the message bus shared with systems.
func (m *Manager) Bus() *event.Bus { return m.bus }

// AddSystem registers a system under the given initial strategy. A nil system
// or a name collision is a caller error and is rejected outright.
func (m *Manager) AddSystem(sys System, strategy Strategy) error {
	if sys == nil {
		return ErrNilSystem
	}
	name := sys.Name()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.systems[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateSystem, name)
	}
	st := &systemState{sys: sys, strategy: strategy}
	st.targetInterval.Store(int64(m.tuning.TargetInterval))
	m.systems[name] = st
	m.order = append(m.order, name)

	m.log.Info("system registered",
		zap.String("system", name),
		zap.Stringer("strategy", strategy))
	return nil
}

// RemoveSystem deregisters a system, joining its dedicated thread first.
func (m *Manager) RemoveSystem(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.systems[name]; !ok {
		return
	}
	m.stopDedicatedLocked(name)
	delete(m.systems, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.errs.forget(name)
	m.log.Info("system removed", zap.String("system", name))
}

// Initialize calls Init on every registered system. Failures are recorded per
// system and never propagate.
func (m *Manager) Initialize() {
	m.mu.Lock()
	names := append([]string(nil), m.order...)
	m.mu.Unlock()

	for _, name := range names {
		m.mu.Lock()
		st, ok := m.systems[name]
		m.mu.Unlock()
		if !ok {
			continue
		}
		if err := safeCall(func() error { return st.sys.Init() }); err != nil {
			m.errs.record(name, fmt.Errorf("init: %w", err))
			continue
		}
		m.log.Info("system initialized", zap.String("system", name))
	}
}

// StartSystems marks the scheduler running and spawns a dedicated thread for
// every system already assigned that strategy.
func (m *Manager) StartSystems() {
	m.running.Store(true)
	m.paused.Store(false)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range m.order {
		if st := m.systems[name]; st.strategy == DedicatedThread {
			m.startDedicatedLocked(name, st)
		}
	}
	m.log.Info("systems started", zap.Int("count", len(m.order)))
}

// Update drives one frame: tick the clock, dispatch systems by strategy,
// rendezvous at the barrier, record frame timing, and periodically rebalance.
// No-op while stopped or paused.
func (m *Manager) Update(dt time.Duration) {
	if !m.running.Load() || m.paused.Load() {
		return
	}
	frameStart := time.Now()

	m.barrier.BeginFrame()
	m.clock.Tick()

	m.dispatch(dt)

	m.barrier.Wait()
	m.barrier.EndFrame()

	frameTime := time.Since(frameStart)
	m.frameTime.Store(frameTime.Seconds())
	if m.monitoring.Load() {
		m.monitor.RecordFrameTime(frameTime)
	}

	m.balanceCounter++
	if m.balanceCounter%m.tuning.BalanceInterval == 0 {
		m.balanceLoad()
	}
}

// dispatch partitions enabled systems by strategy, fixes the barrier's
// participant count for this frame, then submits pool work and runs inline
// work on the caller's thread. Dedicated systems update themselves; pooled
// work is joined through its task handles rather than the barrier, so queue
// depth can exceed the worker count without wedging the frame.
func (m *Manager) dispatch(dt time.Duration) {
	var inline, pooled, background []*systemState
	participants := 1 // the driver thread

	m.mu.Lock()
	for _, name := range m.order {
		st := m.systems[name]
		if m.errs.disabled(name) {
			continue
		}
		strat := st.strategy
		if strat == Hybrid {
			strat = m.determineStrategyLocked(name, st)
			if strat == DedicatedThread {
				// A hybrid never gets a thread of its own: the resolution
				// holds for one frame and a thread must outlive the frame.
				// Run on the pool instead.
				strat = ThreadPool
			}
		}
		switch strat {
		case MainThread:
			inline = append(inline, st)
		case ThreadPool:
			pooled = append(pooled, st)
		case DedicatedThread:
			if _, live := m.dedicated[name]; live {
				participants++
			}
		case Background:
			background = append(background, st)
		}
	}
	m.mu.Unlock()

	m.barrier.SetParticipants(participants)

	handles := make([]*TaskHandle, 0, len(pooled))
	for _, st := range pooled {
		st := st
		handles = append(handles, m.pool.Submit(func() {
			m.runSystem(st, dt)
		}))
	}
	for _, st := range background {
		st := st
		m.pool.Submit(func() {
			m.runSystem(st, dt)
		})
	}
	for _, st := range inline {
		m.runSystem(st, dt)
	}
	for _, h := range handles {
		<-h.Done()
	}
}

// runSystem executes one wrapped update: panic capture, error recording, and
// timing. Failed updates are not folded into the performance statistics.
func (m *Manager) runSystem(st *systemState, dt time.Duration) {
	name := st.sys.Name()
	start := time.Now()
	if err := safeCall(func() error { return st.sys.Update(dt) }); err != nil {
		m.errs.record(name, err)
		return
	}
	elapsed := time.Since(start)
	if m.monitoring.Load() {
		m.monitor.RecordSystemUpdate(name, elapsed)
	}
	st.recordExecution(elapsed, m.tuning.SampleWindow)
}

// dedicatedLoop is one system's own update loop: skip-and-sleep while
// disabled, otherwise run a wrapped update, rendezvous at the frame barrier
// with everyone else, then sleep out the remainder of the target interval.
//
// Every exit that was counted into the current frame hands its barrier slot
// back with Resign or WaitOrCancel, so the frame completes once the systems
// still enrolled have finished. A stop while disabled just leaves: disabled
// systems are never dispatched, so there is no slot to give back.
func (m *Manager) dedicatedLoop(name string, st *systemState, dt *dedicatedThread) {
	defer close(dt.done)
	m.log.Info("dedicated thread started", zap.String("system", name))

	stopped := func() bool { return dt.stop.Load() || !m.running.Load() }

	for {
		if m.errs.disabled(name) {
			if stopped() {
				break
			}
			dt.active.Store(false)
			time.Sleep(m.tuning.DisabledIdle)
			continue
		}
		if stopped() {
			m.barrier.Resign()
			break
		}
		iterStart := time.Now()

		dt.active.Store(true)
		m.runSystem(st, m.clock.Delta())
		dt.active.Store(false)

		if stopped() {
			m.barrier.Resign()
			break
		}
		if !m.barrier.WaitOrCancel(stopped) {
			break
		}

		target := time.Duration(st.targetInterval.Load())
		if elapsed := time.Since(iterStart); elapsed < target {
			time.Sleep(target - elapsed)
		}
	}
	m.log.Info("dedicated thread stopped", zap.String("system", name))
}

// startDedicatedLocked spawns the dedicated goroutine. Caller holds m.mu.
func (m *Manager) startDedicatedLocked(name string, st *systemState) {
	if _, exists := m.dedicated[name]; exists {
		return
	}
	dt := &dedicatedThread{done: make(chan struct{})}
	m.dedicated[name] = dt
	go m.dedicatedLoop(name, st, dt)
}

// stopDedicatedLocked signals and joins one dedicated goroutine. Caller holds
// m.mu; the loop never takes it, so blocking on the join is safe. The thread
// may be parked at the barrier waiting for a frame nobody will drive, so an
// interrupt makes it re-check its stop flag and resign its slot. Only its own
// slot goes away: an in-flight frame still waits for every other system.
func (m *Manager) stopDedicatedLocked(name string) {
	dt, ok := m.dedicated[name]
	if !ok {
		return
	}
	dt.stop.Store(true)
	m.barrier.Interrupt()
	<-dt.done
	delete(m.dedicated, name)
}

// determineStrategyLocked picks an execution mode for a hybrid system: name
// hints first, then execution history. Caller holds m.mu.
func (m *Manager) determineStrategyLocked(name string, st *systemState) Strategy {
	if nameMatchesAny(name, dedicatedNameHints) {
		return DedicatedThread
	}
	if nameMatchesAny(name, inlineNameHints) {
		return MainThread
	}
	avg, _, count := st.stats()
	if count > m.tuning.MinSamples && avg > m.tuning.SlowSystemThreshold {
		return DedicatedThread
	}
	return ThreadPool
}

// balanceLoad promotes sustained-slow pool systems to dedicated threads and
// demotes sustained-fast non-critical dedicated systems back to the pool.
// Streaks advance by the number of frames covered since the previous pass and
// reset whenever the triggering condition lapses, so one outlier frame never
// flips a strategy.
func (m *Manager) balanceLoad() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range m.order {
		st := m.systems[name]
		avg, peak, count := st.stats()
		if count < m.tuning.MinSamples {
			continue
		}

		switch st.strategy {
		case ThreadPool:
			if avg > m.tuning.PromoteAverage && peak > m.tuning.PromotePeak {
				st.statsMu.Lock()
				st.promoteStreak += m.tuning.BalanceInterval
				promote := st.promoteStreak >= m.tuning.PromoteFrames
				if promote {
					st.promoteStreak = 0
				}
				st.statsMu.Unlock()
				if promote {
					st.strategy = DedicatedThread
					if m.running.Load() {
						m.startDedicatedLocked(name, st)
					}
					m.log.Info("system promoted to dedicated thread",
						zap.String("system", name),
						zap.Duration("avg", avg),
						zap.Duration("peak", peak))
				}
			} else {
				st.statsMu.Lock()
				st.promoteStreak = 0
				st.statsMu.Unlock()
			}

		case DedicatedThread:
			if !st.critical && avg < m.tuning.DemoteAverage && peak < m.tuning.DemotePeak {
				st.statsMu.Lock()
				st.demoteStreak += m.tuning.BalanceInterval
				demote := st.demoteStreak >= m.tuning.DemoteFrames
				if demote {
					st.demoteStreak = 0
				}
				st.statsMu.Unlock()
				if demote {
					m.stopDedicatedLocked(name)
					st.strategy = ThreadPool
					m.log.Info("system demoted to thread pool",
						zap.String("system", name),
						zap.Duration("avg", avg),
						zap.Duration("peak", peak))
				}
			} else {
				st.statsMu.Lock()
				st.demoteStreak = 0
				st.statsMu.Unlock()
			}
		}
	}
}

// SetStrategy changes a system's execution mode at runtime, spawning or
// joining its dedicated thread as needed.
func (m *Manager) SetStrategy(name string, strategy Strategy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.systems[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSystem, name)
	}
	old := st.strategy
	if old == strategy {
		return nil
	}
	st.strategy = strategy

	if old == DedicatedThread && strategy != DedicatedThread {
		m.stopDedicatedLocked(name)
	} else if old != DedicatedThread && strategy == DedicatedThread && m.running.Load() {
		m.startDedicatedLocked(name, st)
	}
	m.log.Info("strategy changed",
		zap.String("system", name),
		zap.Stringer("from", old),
		zap.Stringer("to", strategy))
	return nil
}

// SetPerformanceCritical flags a system as exempt from demotion. Flagging a
// pool system critical promotes it to a dedicated thread immediately.
func (m *Manager) SetPerformanceCritical(name string, critical bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.systems[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSystem, name)
	}
	st.critical = critical
	if critical && st.strategy == ThreadPool {
		st.strategy = DedicatedThread
		if m.running.Load() {
			m.startDedicatedLocked(name, st)
		}
	}
	return nil
}

// SetTargetInterval changes a dedicated system's pacing interval.
func (m *Manager) SetTargetInterval(name string, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.systems[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSystem, name)
	}
	st.targetInterval.Store(int64(d))
	return nil
}

// StopSystems signals every dedicated thread to stop, drains the barrier so
// threads parked mid-rendezvous can observe their stop flags, and joins them.
func (m *Manager) StopSystems() {
	if !m.running.Swap(false) {
		return
	}

	m.mu.Lock()
	joined := make([]*dedicatedThread, 0, len(m.dedicated))
	for _, dt := range m.dedicated {
		dt.stop.Store(true)
		joined = append(joined, dt)
	}
	m.mu.Unlock()

	// Wake any thread parked at the barrier so it sees running=false and
	// resigns its slot instead of waiting for a frame that will never be
	// driven.
	m.barrier.Interrupt()

	for _, dt := range joined {
		<-dt.done
	}

	m.mu.Lock()
	m.dedicated = make(map[string]*dedicatedThread)
	m.mu.Unlock()

	m.log.Info("systems stopped")
}

// Shutdown stops all systems, drains the worker pool, gives each system its
// Shutdown callback, and clears the registry.
func (m *Manager) Shutdown() {
	m.StopSystems()
	m.pool.Shutdown()

	m.mu.Lock()
	names := append([]string(nil), m.order...)
	systems := m.systems
	m.order = nil
	m.systems = make(map[string]*systemState)
	m.mu.Unlock()

	for _, name := range names {
		st := systems[name]
		if err := safeCall(func() error { return st.sys.Shutdown() }); err != nil {
			m.log.Warn("system shutdown failed",
				zap.String("system", name), zap.Error(err))
		}
	}
	m.errs.reset()
	m.log.Info("scheduler shut down")
}

// safeCall invokes fn, converting a panic into an error so one misbehaving
// system cannot bring down the process.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// ==================== state & metric queries ====================

func (m *Manager) IsRunning() bool    { return m.running.Load() }
func (m *Manager) IsPaused() bool     { return m.paused.Load() }
func (m *Manager) SetPaused(p bool)   { m.paused.Store(p) }
func (m *Manager) Clock() *GameClock  { return m.clock }
func (m *Manager) FrameEpoch() uint64 { return m.barrier.Epoch() }

func (m *Manager) Monitor() *PerformanceMonitor { return m.monitor }

// EnableMonitoring toggles performance recording; disabling also resets the
// accumulated statistics.
func (m *Manager) EnableMonitoring(enabled bool) {
	m.monitoring.Store(enabled)
	if !enabled {
		m.monitor.Reset()
	}
}

func (m *Manager) MonitoringEnabled() bool { return m.monitoring.Load() }

// FrameTime is the wall time of the most recent frame.
func (m *Manager) FrameTime() time.Duration {
	return secondsToDuration(m.frameTime.Load())
}

// FPS prefers the monitor's smoothed estimate over the clock's raw 1/delta.
func (m *Manager) FPS() float64 {
	if fps := m.monitor.AverageFPS(); fps > 0 {
		return fps
	}
	return m.clock.FPS()
}

func (m *Manager) PoolInfo() PoolInfo {
	return PoolInfo{
		Workers:         m.pool.WorkerCount(),
		QueuedTasks:     m.pool.QueuedTasks(),
		ActiveTasks:     m.pool.ActiveTasks(),
		AverageTaskTime: m.pool.AverageTaskTime(),
	}
}

// SystemInfo snapshots one system's scheduling metadata; ok is false for an
// unknown name.
func (m *Manager) SystemInfo(name string) (SystemInfo, bool) {
	m.mu.Lock()
	st, found := m.systems[name]
	if !found {
		m.mu.Unlock()
		return SystemInfo{}, false
	}
	info := SystemInfo{
		Name:           name,
		Strategy:       st.strategy,
		Critical:       st.critical,
		TargetInterval: time.Duration(st.targetInterval.Load()),
	}
	m.mu.Unlock()
	info.Average, info.Peak, info.Executions = st.stats()
	return info, true
}

// ErrorInfo snapshots a system's error record; zero-valued when it has never
// failed.
func (m *Manager) ErrorInfo(name string) SystemErrorInfo {
	return m.errs.info(name)
}

func (m *Manager) SystemNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

func (m *Manager) SystemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.systems)
}

// IsSystemRunning reports whether a system is registered, enabled, and the
// scheduler is actively driving frames.
func (m *Manager) IsSystemRunning(name string) bool {
	if !m.running.Load() || m.paused.Load() {
		return false
	}
	if m.errs.disabled(name) {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.systems[name]
	return ok
}

// AllSystemsIdle reports whether no pool task or dedicated update is in
// flight right now.
func (m *Manager) AllSystemsIdle() bool {
	if !m.running.Load() || m.paused.Load() {
		return true
	}
	if m.pool.ActiveTasks() > 0 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, dt := range m.dedicated {
		if dt.active.Load() {
			return false
		}
	}
	return true
}

// PerformanceReport renders a human-readable line per metric group and
// system, including error counts and disabled flags.
func (m *Manager) PerformanceReport() []string {
	report := []string{
		fmt.Sprintf("Frame Time: %.2fms, FPS: %.1f",
			float64(m.FrameTime().Microseconds())/1000.0, m.FPS()),
	}
	pi := m.PoolInfo()
	report = append(report, fmt.Sprintf(
		"Thread Pool - Workers: %d, Queued: %d, Active: %d, Avg Task: %.2fms",
		pi.Workers, pi.QueuedTasks, pi.ActiveTasks,
		float64(pi.AverageTaskTime.Microseconds())/1000.0))

	for _, name := range m.monitor.MonitoredSystems() {
		s := m.monitor.SystemSample(name)
		line := fmt.Sprintf("%s - Avg: %.2fms, Peak: %.2fms, Updates: %d",
			name,
			float64(s.Average.Microseconds())/1000.0,
			float64(s.Peak.Microseconds())/1000.0,
			s.UpdateCount)
		if ei := m.errs.info(name); ei.Count > 0 {
			line += fmt.Sprintf(", Errors: %d", ei.Count)
			if ei.Disabled {
				line += " (DISABLED)"
			}
		}
		report = append(report, line)
	}
	return report
}

// ResetPerformanceCounters zeroes the monitor, every per-system statistic,
// and every error record (re-enabling disabled systems).
func (m *Manager) ResetPerformanceCounters() {
	m.monitor.Reset()

	m.mu.Lock()
	for _, st := range m.systems {
		st.statsMu.Lock()
		st.avgExec = 0
		st.peakExec = 0
		st.execCount = 0
		st.promoteStreak = 0
		st.demoteStreak = 0
		st.statsMu.Unlock()
	}
	m.mu.Unlock()

	m.errs.reset()
}
