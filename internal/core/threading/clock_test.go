package threading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGameClockTickAdvances(t *testing.T) {
	c := NewGameClock()
	assert.Equal(t, uint64(0), c.Frame())
	assert.Equal(t, 0.0, c.FPS(), "no delta before the first tick")

	time.Sleep(5 * time.Millisecond)
	c.Tick()

	assert.Equal(t, uint64(1), c.Frame())
	assert.Greater(t, c.Delta(), time.Duration(0))
	assert.Greater(t, c.GameTime(), 0.0)
	assert.Greater(t, c.FPS(), 0.0)

	c.Tick()
	assert.Equal(t, uint64(2), c.Frame())
}

func TestGameClockAccumulatesGameTime(t *testing.T) {
	c := NewGameClock()
	time.Sleep(2 * time.Millisecond)
	c.Tick()
	first := c.GameTime()
	time.Sleep(2 * time.Millisecond)
	c.Tick()
	assert.Greater(t, c.GameTime(), first)
}

func TestGameClockReset(t *testing.T) {
	c := NewGameClock()
	time.Sleep(time.Millisecond)
	c.Tick()
	c.Reset()

	assert.Equal(t, uint64(0), c.Frame())
	assert.Equal(t, 0.0, c.GameTime())
	assert.Equal(t, time.Duration(0), c.Delta())
	assert.Equal(t, 0.0, c.FPS())
}

func TestAtomicFloat64Add(t *testing.T) {
	var f atomicFloat64
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			for j := 0; j < 1000; j++ {
				f.Add(0.5)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	assert.InDelta(t, 2000.0, f.Load(), 1e-6)
}
