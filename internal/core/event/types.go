package event

import "github.com/antonzymin-eng/Game-sub016/internal/core/ecs"

// PopulationChanged fires when a province's population crosses a growth step.
type PopulationChanged struct {
	Province ecs.EntityID
	Old      int64
	New      int64
}

// TradeCompleted fires when a trade route settles for the frame.
type TradeCompleted struct {
	From   ecs.EntityID
	To     ecs.EntityID
	Volume float64
}
