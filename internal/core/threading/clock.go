package threading

import (
	"math"
	"sync/atomic"
	"time"
)

// atomicFloat64 is a float stored as its IEEE 754 bits so it can be read and
// written atomically. Add uses a compare-and-swap retry loop because there is
// no native atomic float addition.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (f *atomicFloat64) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

func (f *atomicFloat64) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

func (f *atomicFloat64) Add(delta float64) {
	for {
		old := f.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if f.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// GameClock tracks elapsed game time, the current delta and a frame counter.
// Tick is single-writer (only the manager's driver thread calls it); the
// queries are safe from any thread.
type GameClock struct {
	gameTime  atomicFloat64 // seconds since start/reset
	deltaTime atomicFloat64 // seconds between the last two ticks
	frame     atomic.Uint64

	startTime time.Time
	lastTick  time.Time
}

func NewGameClock() *GameClock {
	now := time.Now()
	return &GameClock{startTime: now, lastTick: now}
}

// Tick captures the current time, computes the delta since the previous tick,
// accumulates elapsed game time and advances the frame counter.
func (c *GameClock) Tick() {
	now := time.Now()
	delta := now.Sub(c.lastTick).Seconds()
	c.deltaTime.Store(delta)
	c.gameTime.Add(delta)
	c.frame.Add(1)
	c.lastTick = now
}

// Reset zeroes elapsed time, delta and the frame counter and re-anchors the
// start time.
func (c *GameClock) Reset() {
	now := time.Now()
	c.startTime = now
	c.lastTick = now
	c.gameTime.Store(0)
	c.deltaTime.Store(0)
	c.frame.Store(0)
}

func (c *GameClock) GameTime() float64 { return c.gameTime.Load() }

// Delta returns the last tick-to-tick interval.
func (c *GameClock) Delta() time.Duration {
	return time.Duration(c.deltaTime.Load() * float64(time.Second))
}

func (c *GameClock) Frame() uint64 { return c.frame.Load() }

// FPS is the instantaneous 1/delta rate, 0 before the first tick.
func (c *GameClock) FPS() float64 {
	d := c.deltaTime.Load()
	if d > 0 {
		return 1.0 / d
	}
	return 0
}
