package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/antonzymin-eng/Game-sub016/internal/core/ecs"
	"github.com/antonzymin-eng/Game-sub016/internal/core/event"
)

// TradeSystem moves wealth from the richest trading province to the poorest
// each frame, at a volume scaled by the buyer's population and the seller's
// trade power. Emits a TradeCompleted event per transfer.
type TradeSystem struct {
	bus        *event.Bus
	economies  *ecs.Store[Economy]
	population *ecs.Store[Population]
	log        *zap.Logger
}

func NewTradeSystem(bus *event.Bus, economies *ecs.Store[Economy], population *ecs.Store[Population], log *zap.Logger) *TradeSystem {
	return &TradeSystem{bus: bus, economies: economies, population: population, log: log}
}

func (s *TradeSystem) Name() string { return "TradeSystem" }

func (s *TradeSystem) Init() error { return nil }

func (s *TradeSystem) Update(dt time.Duration) error {
	type trader struct {
		id     ecs.EntityID
		wealth float64
		power  float64
		pop    int64
	}

	var richest, poorest *trader
	ecs.Each2(s.economies, s.population, func(id ecs.EntityID, e *Economy, p Population) {
		t := trader{id: id, wealth: e.Wealth, power: e.TradePower, pop: p.Count}
		if richest == nil || t.wealth > richest.wealth {
			c := t
			richest = &c
		}
		if poorest == nil || t.wealth < poorest.wealth {
			c := t
			poorest = &c
		}
	})
	if richest == nil || richest.id == poorest.id {
		return nil
	}

	volume := richest.power * float64(poorest.pop) * 1e-6 * dt.Seconds()
	if volume <= 0 || volume > richest.wealth {
		return nil
	}

	s.economies.Mutate(richest.id, func(e *Economy) { e.Wealth -= volume })
	s.economies.Mutate(poorest.id, func(e *Economy) { e.Wealth += volume })
	event.Emit(s.bus, event.TradeCompleted{From: richest.id, To: poorest.id, Volume: volume})
	return nil
}

func (s *TradeSystem) Shutdown() error { return nil }
