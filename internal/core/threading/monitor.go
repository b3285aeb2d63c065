package threading

import (
	"sort"
	"sync"
	"time"
)

// movingAverage folds a new sample into an exponential moving average whose
// smoothing factor is 1/min(count, window): early samples weigh heavily and
// the average stabilizes toward a fixed-size window as count grows. count is
// the number of samples including this one.
func movingAverage(prev, sample float64, count uint64, window uint64) float64 {
	if count == 0 {
		count = 1
	}
	n := float64(count)
	if w := float64(window); n > w {
		n = w
	}
	alpha := 1.0 / n
	return alpha*sample + (1.0-alpha)*prev
}

// SystemSample is a snapshot of one system's timing statistics.
type SystemSample struct {
	Name        string
	Last        time.Duration
	Average     time.Duration
	Peak        time.Duration
	UpdateCount uint64
}

type systemStats struct {
	last    float64 // seconds
	average float64
	peak    float64
	count   uint64
}

// PerformanceMonitor keeps moving-average and peak execution times per named
// system plus process-wide frame time and smoothed FPS. Unknown names answer
// with zero values rather than errors.
type PerformanceMonitor struct {
	mu      sync.Mutex
	systems map[string]*systemStats

	frameTime   float64 // seconds, last frame
	averageFPS  float64
	totalFrames uint64

	sampleWindow uint64 // per-system EMA window
	fpsWindow    uint64 // frame-rate EMA window
}

// NewPerformanceMonitor uses the given EMA windows; non-positive values fall
// back to 100 samples / 60 frames.
func NewPerformanceMonitor(sampleWindow, fpsWindow uint64) *PerformanceMonitor {
	if sampleWindow == 0 {
		sampleWindow = 100
	}
	if fpsWindow == 0 {
		fpsWindow = 60
	}
	return &PerformanceMonitor{
		systems:      make(map[string]*systemStats),
		sampleWindow: sampleWindow,
		fpsWindow:    fpsWindow,
	}
}

// RecordSystemUpdate folds one execution duration into the named system's
// statistics, lazily creating the record.
func (m *PerformanceMonitor) RecordSystemUpdate(name string, d time.Duration) {
	secs := d.Seconds()
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.systems[name]
	if !ok {
		s = &systemStats{}
		m.systems[name] = s
	}
	s.count++
	s.last = secs
	if secs > s.peak {
		s.peak = secs
	}
	s.average = movingAverage(s.average, secs, s.count, m.sampleWindow)
}

// RecordFrameTime stores the frame duration and updates the smoothed FPS.
func (m *PerformanceMonitor) RecordFrameTime(d time.Duration) {
	secs := d.Seconds()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frameTime = secs
	m.totalFrames++
	if secs > 0 {
		fps := 1.0 / secs
		m.averageFPS = movingAverage(m.averageFPS, fps, m.totalFrames, m.fpsWindow)
	}
}

// SystemSample returns the named system's statistics, zero-valued if the name
// has never been recorded.
func (m *PerformanceMonitor) SystemSample(name string) SystemSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.systems[name]
	if !ok {
		return SystemSample{Name: name}
	}
	return SystemSample{
		Name:        name,
		Last:        secondsToDuration(s.last),
		Average:     secondsToDuration(s.average),
		Peak:        secondsToDuration(s.peak),
		UpdateCount: s.count,
	}
}

func (m *PerformanceMonitor) SystemAverage(name string) time.Duration {
	return m.SystemSample(name).Average
}

func (m *PerformanceMonitor) SystemPeak(name string) time.Duration {
	return m.SystemSample(name).Peak
}

func (m *PerformanceMonitor) SystemUpdateCount(name string) uint64 {
	return m.SystemSample(name).UpdateCount
}

func (m *PerformanceMonitor) FrameTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return secondsToDuration(m.frameTime)
}

func (m *PerformanceMonitor) AverageFPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.averageFPS
}

func (m *PerformanceMonitor) TotalFrames() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalFrames
}

// MonitoredSystems lists every recorded system name, sorted for stable output.
func (m *PerformanceMonitor) MonitoredSystems() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.systems))
	for name := range m.systems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset zeroes every per-system record and the frame counters.
func (m *PerformanceMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.systems {
		*s = systemStats{}
	}
	m.frameTime = 0
	m.averageFPS = 0
	m.totalFrames = 0
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
