package threading

import "sync"

// FrameBarrier is a reusable rendezvous point. Every participant of the
// current frame blocks in Wait until the last one arrives, at which point the
// epoch advances and all of them are released together.
//
// Waiters block on an epoch predicate rather than a bare condition signal, so
// spurious or missed wakeups cannot release a thread into the wrong frame.
type FrameBarrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	target     int
	waiting    int
	epoch      uint64
	frameReady bool
}

func NewFrameBarrier(participants int) *FrameBarrier {
	b := &FrameBarrier{target: participants}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// SetParticipants changes the target count for subsequent frames. If the new
// target is already met by threads currently waiting, the frame completes
// immediately; this is what lets a shrinking participant set (demotion,
// shutdown) drain the barrier instead of deadlocking it.
func (b *FrameBarrier) SetParticipants(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = n
	if b.waiting > 0 && b.waiting >= b.target {
		b.release()
	}
}

// Wait blocks the caller until all participants of the current frame have
// arrived. The last arrival advances the epoch and wakes everyone.
func (b *FrameBarrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	arrival := b.epoch
	b.waiting++
	if b.waiting >= b.target {
		b.release()
		return
	}
	for b.epoch == arrival {
		b.cond.Wait()
	}
}

// release completes the current frame. Caller holds mu.
func (b *FrameBarrier) release() {
	b.waiting = 0
	b.epoch++
	b.frameReady = true
	b.cond.Broadcast()
}

// WaitOrCancel arrives like Wait but abandons the rendezvous once cancelled
// reports true, handing back both its arrival and its participant slot so
// the remaining participants can still complete the frame on their own.
// Returns false when the wait was cancelled, true when the frame completed.
// A cancellation is targeted: it never advances the epoch and never releases
// other waiters unless they are, with the slot gone, genuinely all present.
func (b *FrameBarrier) WaitOrCancel(cancelled func() bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cancelled() {
		b.resignLocked()
		return false
	}
	arrival := b.epoch
	b.waiting++
	if b.waiting >= b.target {
		b.release()
		return true
	}
	for b.epoch == arrival {
		b.cond.Wait()
		if b.epoch != arrival {
			break
		}
		if cancelled() {
			b.waiting--
			b.resignLocked()
			return false
		}
	}
	return true
}

// Interrupt wakes every parked waiter so cancellable waits re-check their
// predicates. Waiters whose frame has not completed go straight back to
// sleep; the epoch is untouched.
func (b *FrameBarrier) Interrupt() {
	b.mu.Lock()
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Resign removes one participant slot without arriving, completing the frame
// if everyone still enrolled has already arrived. Called by a participant
// that finished its share of the frame but is leaving before its rendezvous.
func (b *FrameBarrier) Resign() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resignLocked()
}

// resignLocked shrinks the target by one slot. Caller holds mu.
func (b *FrameBarrier) resignLocked() {
	b.target--
	if b.waiting > 0 && b.waiting >= b.target {
		b.release()
	}
}

// BeginFrame clears the frame-ready flag ahead of this frame's rendezvous.
func (b *FrameBarrier) BeginFrame() {
	b.mu.Lock()
	b.frameReady = false
	b.mu.Unlock()
}

// EndFrame is a no-op kept for symmetry with BeginFrame; the barrier advances
// itself when the last participant arrives.
func (b *FrameBarrier) EndFrame() {}

// Epoch returns the monotonically increasing frame generation counter.
func (b *FrameBarrier) Epoch() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.epoch
}

// FrameReady reports whether the current frame's rendezvous has completed.
func (b *FrameBarrier) FrameReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frameReady
}
