package threading

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// SystemErrorInfo is a snapshot of one system's error state.
type SystemErrorInfo struct {
	Count      uint64
	Disabled   bool
	LastError  string
	FirstError time.Time
	LastTime   time.Time
}

type errorRecord struct {
	count      uint64
	disabled   bool
	lastError  string
	firstError time.Time
	lastTime   time.Time
}

// errorTracker implements the per-system circuit breaker: more than maxErrors
// failures inside window disable a system; errors spread beyond the window
// restart the count instead of accumulating forever. There is no automatic
// re-enable.
type errorTracker struct {
	mu        sync.Mutex
	records   map[string]*errorRecord
	maxErrors uint64
	window    time.Duration
	log       *zap.Logger

	now func() time.Time // test seam
}

func newErrorTracker(maxErrors uint64, window time.Duration, log *zap.Logger) *errorTracker {
	return &errorTracker{
		records:   make(map[string]*errorRecord),
		maxErrors: maxErrors,
		window:    window,
		log:       log,
		now:       time.Now,
	}
}

// record notes one failure for the named system and returns true if this
// failure tripped the breaker.
func (t *errorTracker) record(name string, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[name]
	if !ok {
		rec = &errorRecord{}
		t.records[name] = rec
	}

	now := t.now()
	rec.count++
	rec.lastError = err.Error()
	rec.lastTime = now
	if rec.count == 1 {
		rec.firstError = now
	}

	t.log.Warn("system update failed",
		zap.String("system", name),
		zap.Uint64("errors", rec.count),
		zap.Error(err))

	if rec.count >= t.maxErrors && !rec.disabled {
		if now.Sub(rec.firstError) < t.window {
			rec.disabled = true
			t.log.Error("system disabled after repeated errors",
				zap.String("system", name),
				zap.Uint64("errors", rec.count),
				zap.Duration("window", now.Sub(rec.firstError)),
				zap.String("last_error", rec.lastError))
			return true
		}
		// Errors too spread out to count as a failure burst.
		rec.count = 1
		rec.firstError = now
	}
	return false
}

func (t *errorTracker) disabled(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[name]
	return ok && rec.disabled
}

func (t *errorTracker) info(name string) SystemErrorInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[name]
	if !ok {
		return SystemErrorInfo{}
	}
	return SystemErrorInfo{
		Count:      rec.count,
		Disabled:   rec.disabled,
		LastError:  rec.lastError,
		FirstError: rec.firstError,
		LastTime:   rec.lastTime,
	}
}

func (t *errorTracker) forget(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, name)
}

// reset clears counts and disabled flags for every system.
func (t *errorTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, rec := range t.records {
		rec.count = 0
		rec.disabled = false
	}
}
