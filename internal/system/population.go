package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/antonzymin-eng/Game-sub016/internal/core/ecs"
	"github.com/antonzymin-eng/Game-sub016/internal/core/event"
)

// One simulated year passes every minute of wall time.
const secondsPerYear = 60.0

// PopulationSystem grows each province's population by its growth rate and
// emits a PopulationChanged event whenever the integer head count moves.
type PopulationSystem struct {
	bus   *event.Bus
	store *ecs.Store[Population]
	log   *zap.Logger
}

func NewPopulationSystem(bus *event.Bus, store *ecs.Store[Population], log *zap.Logger) *PopulationSystem {
	return &PopulationSystem{bus: bus, store: store, log: log}
}

func (s *PopulationSystem) Name() string { return "PopulationSystem" }

func (s *PopulationSystem) Init() error {
	// Seed the fractional accumulator from the integer counts.
	s.store.Each(func(_ ecs.EntityID, p *Population) {
		if p.Exact == 0 {
			p.Exact = float64(p.Count)
		}
	})
	return nil
}

func (s *PopulationSystem) Update(dt time.Duration) error {
	years := dt.Seconds() / secondsPerYear
	s.store.Each(func(id ecs.EntityID, p *Population) {
		p.Exact += p.Exact * p.GrowthRate * years
		next := int64(p.Exact)
		if next != p.Count {
			old := p.Count
			p.Count = next
			event.Emit(s.bus, event.PopulationChanged{Province: id, Old: old, New: next})
		}
	})
	return nil
}

func (s *PopulationSystem) Shutdown() error {
	s.log.Debug("population system stopped", zap.Int("provinces", s.store.Len()))
	return nil
}
