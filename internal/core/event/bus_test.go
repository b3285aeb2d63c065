package event

import (
	"sync"
	"testing"

	"github.com/antonzymin-eng/Game-sub016/internal/core/ecs"
	"github.com/stretchr/testify/assert"
)

func TestEventsBecomeVisibleAfterSwap(t *testing.T) {
	b := NewBus()

	var got []PopulationChanged
	Subscribe(b, func(ev PopulationChanged) { got = append(got, ev) })

	Emit(b, PopulationChanged{Old: 10, New: 12})

	b.DispatchAll()
	assert.Empty(t, got, "events emitted this frame are not visible yet")

	b.SwapBuffers()
	b.DispatchAll()
	assert.Len(t, got, 1)
	assert.Equal(t, int64(12), got[0].New)

	// The buffer was consumed; a second dispatch delivers nothing new.
	b.SwapBuffers()
	b.DispatchAll()
	assert.Len(t, got, 1)
}

func TestDispatchRoutesByType(t *testing.T) {
	b := NewBus()

	var pops, trades int
	Subscribe(b, func(PopulationChanged) { pops++ })
	Subscribe(b, func(TradeCompleted) { trades++ })

	Emit(b, PopulationChanged{})
	Emit(b, TradeCompleted{Volume: 3})
	Emit(b, TradeCompleted{Volume: 7})

	b.SwapBuffers()
	b.DispatchAll()

	assert.Equal(t, 1, pops)
	assert.Equal(t, 2, trades)
}

func TestEmitIsSafeFromManyThreads(t *testing.T) {
	b := NewBus()

	var mu sync.Mutex
	total := 0
	Subscribe(b, func(TradeCompleted) {
		mu.Lock()
		total++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				Emit(b, TradeCompleted{From: ecs.EntityID(1), To: ecs.EntityID(2)})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 400, b.Pending())
	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, 400, total)
	assert.Equal(t, 0, b.Pending())
}
