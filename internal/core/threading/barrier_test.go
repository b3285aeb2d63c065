package threading

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameBarrierReleasesAllParticipants(t *testing.T) {
	const n = 4
	b := NewFrameBarrier(n)

	var released atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Wait()
			released.Add(1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(n), released.Load())
	assert.Equal(t, uint64(1), b.Epoch())
	assert.True(t, b.FrameReady())
}

func TestFrameBarrierEpochStrictlyIncreasesPerCycle(t *testing.T) {
	const n = 3
	const cycles = 5
	b := NewFrameBarrier(n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := 0; c < cycles; c++ {
				b.Wait()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(cycles), b.Epoch())
}

func TestFrameBarrierHoldsUntilLastArrival(t *testing.T) {
	b := NewFrameBarrier(2)

	done := make(chan struct{})
	go func() {
		b.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("waiter released before all participants arrived")
	case <-time.After(50 * time.Millisecond):
	}

	b.Wait() // second arrival releases both
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter not released after last arrival")
	}
}

func TestFrameBarrierBeginFrameClearsReadyFlag(t *testing.T) {
	b := NewFrameBarrier(1)
	b.Wait()
	require.True(t, b.FrameReady())
	b.BeginFrame()
	assert.False(t, b.FrameReady())
	b.EndFrame() // no-op
	assert.False(t, b.FrameReady())
}

func TestFrameBarrierShrinkingTargetReleasesWaiters(t *testing.T) {
	b := NewFrameBarrier(3)

	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			b.Wait()
			done <- struct{}{}
		}()
	}

	// Let both park, then drop the target below the waiting count.
	time.Sleep(50 * time.Millisecond)
	b.SetParticipants(1)

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("waiter not drained after target shrank")
		}
	}
	assert.Equal(t, uint64(1), b.Epoch())
}

func TestFrameBarrierTargetChangeAppliesToNextFrame(t *testing.T) {
	b := NewFrameBarrier(1)
	b.Wait()
	require.Equal(t, uint64(1), b.Epoch())

	b.SetParticipants(2)
	done := make(chan struct{})
	go func() {
		b.Wait()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("single waiter released with target of two")
	case <-time.After(50 * time.Millisecond):
	}
	b.Wait()
	<-done
	assert.Equal(t, uint64(2), b.Epoch())
}

func TestFrameBarrierCancelledWaiterLeavesOthersParked(t *testing.T) {
	b := NewFrameBarrier(3)

	var leave atomic.Bool
	completed := make(chan bool, 1)
	go func() {
		completed <- b.WaitOrCancel(leave.Load)
	}()

	parked := make(chan struct{})
	go func() {
		b.Wait()
		close(parked)
	}()
	time.Sleep(50 * time.Millisecond)

	leave.Store(true)
	b.Interrupt()

	assert.False(t, <-completed, "cancelled waiter must not report a completed frame")
	assert.Equal(t, uint64(0), b.Epoch(), "cancellation must not advance the epoch")

	select {
	case <-parked:
		t.Fatal("unrelated waiter released by the cancellation")
	case <-time.After(50 * time.Millisecond):
	}

	// The leaver gave its slot back, so one more arrival completes the frame.
	b.Wait()
	<-parked
	assert.Equal(t, uint64(1), b.Epoch())
}

func TestFrameBarrierInterruptDoesNotReleaseWaiters(t *testing.T) {
	b := NewFrameBarrier(2)

	done := make(chan struct{})
	go func() {
		b.Wait()
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)

	b.Interrupt()
	select {
	case <-done:
		t.Fatal("waiter released by a bare interrupt")
	case <-time.After(50 * time.Millisecond):
	}

	b.Wait()
	<-done
	assert.Equal(t, uint64(1), b.Epoch())
}

func TestFrameBarrierResignCompletesFrameForRemainingWaiters(t *testing.T) {
	b := NewFrameBarrier(3)

	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			b.Wait()
			done <- struct{}{}
		}()
	}
	time.Sleep(50 * time.Millisecond)

	b.Resign()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("waiters not released after the last slot resigned")
		}
	}
	assert.Equal(t, uint64(1), b.Epoch())
}
