package threading

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestErrorTrackerDisablesExactlyAtThreshold(t *testing.T) {
	tr := newErrorTracker(3, 30*time.Second, zap.NewNop())
	errBoom := errors.New("boom")

	assert.False(t, tr.record("Trade", errBoom))
	assert.False(t, tr.disabled("Trade"))
	assert.False(t, tr.record("Trade", errBoom))
	assert.False(t, tr.disabled("Trade"), "not disabled before the threshold")

	assert.True(t, tr.record("Trade", errBoom), "third error crosses the threshold")
	assert.True(t, tr.disabled("Trade"))

	info := tr.info("Trade")
	assert.Equal(t, uint64(3), info.Count)
	assert.True(t, info.Disabled)
	assert.Equal(t, "boom", info.LastError)
}

func TestErrorTrackerWindowRestartsSpreadOutErrors(t *testing.T) {
	tr := newErrorTracker(3, 10*time.Second, zap.NewNop())

	now := time.Unix(1000, 0)
	tr.now = func() time.Time { return now }

	tr.record("Population", errors.New("e1"))
	now = now.Add(4 * time.Second)
	tr.record("Population", errors.New("e2"))

	// Third error lands outside the window measured from the first: the
	// count restarts instead of tripping the breaker.
	now = now.Add(8 * time.Second)
	assert.False(t, tr.record("Population", errors.New("e3")))
	assert.False(t, tr.disabled("Population"))
	assert.Equal(t, uint64(1), tr.info("Population").Count)
}

func TestErrorTrackerBurstWithinWindowDisables(t *testing.T) {
	tr := newErrorTracker(3, 10*time.Second, zap.NewNop())

	now := time.Unix(2000, 0)
	tr.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		tr.record("Diplomacy", errors.New("e"))
		now = now.Add(time.Second)
	}
	assert.True(t, tr.disabled("Diplomacy"))
}

func TestErrorTrackerNoAutomaticReenable(t *testing.T) {
	tr := newErrorTracker(1, time.Second, zap.NewNop())
	tr.record("Trade", errors.New("e"))
	assert.True(t, tr.disabled("Trade"))

	// Stays disabled until an explicit reset.
	tr.record("Trade", errors.New("e"))
	assert.True(t, tr.disabled("Trade"))

	tr.reset()
	assert.False(t, tr.disabled("Trade"))
	assert.Equal(t, uint64(0), tr.info("Trade").Count)
}

func TestErrorTrackerUnknownName(t *testing.T) {
	tr := newErrorTracker(5, time.Second, zap.NewNop())
	assert.False(t, tr.disabled("ghost"))
	assert.Equal(t, SystemErrorInfo{}, tr.info("ghost"))
}
