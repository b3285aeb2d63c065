package threading

import (
	"strings"
	"time"
)

// System is the capability contract every schedulable simulation unit
// implements. The Manager owns a registered system exclusively for its
// lifetime and only ever talks to it through this interface.
type System interface {
	// Name is the stable registry key. No two registered systems may share one.
	Name() string
	Init() error
	Update(dt time.Duration) error
	Shutdown() error
}

// Strategy selects how a system's Update is executed each frame.
type Strategy int

const (
	// MainThread runs the update inline on the thread driving Manager.Update.
	MainThread Strategy = iota
	// ThreadPool submits the update to the shared worker pool.
	ThreadPool
	// DedicatedThread gives the system its own goroutine looping at a target
	// interval and joining the frame barrier each iteration.
	DedicatedThread
	// Background runs on the pool but outside the frame barrier; the frame
	// does not wait for it.
	Background
	// Hybrid defers to the manager, which picks one of the above from the
	// system's name and execution history every frame.
	Hybrid
)

func (s Strategy) String() string {
	switch s {
	case MainThread:
		return "main"
	case ThreadPool:
		return "pool"
	case DedicatedThread:
		return "dedicated"
	case Background:
		return "background"
	case Hybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// ParseStrategy maps scenario/config spellings onto a Strategy.
func ParseStrategy(s string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "main", "inline", "main_thread":
		return MainThread, true
	case "pool", "thread_pool":
		return ThreadPool, true
	case "dedicated", "dedicated_thread":
		return DedicatedThread, true
	case "background":
		return Background, true
	case "hybrid", "":
		return Hybrid, true
	default:
		return Hybrid, false
	}
}

// name fragments steering hybrid strategy resolution. Systems matching the
// first set prefer a dedicated thread; the second set is forced inline so it
// stays on the driver thread.
var (
	dedicatedNameHints = []string{"Render", "Physics", "Audio"}
	inlineNameHints    = []string{"UI", "Input", "Event"}
)

func nameMatchesAny(name string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(name, h) {
			return true
		}
	}
	return false
}
