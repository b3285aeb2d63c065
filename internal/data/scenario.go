package data

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/antonzymin-eng/Game-sub016/internal/core/threading"
)

// Scenario describes the simulation to boot: which systems run, how they are
// scheduled, and the initial province layout.
type Scenario struct {
	Name      string          `yaml:"name"`
	Systems   []SystemEntry   `yaml:"systems"`
	Provinces []ProvinceEntry `yaml:"provinces"`
}

type SystemEntry struct {
	Name           string   `yaml:"name"`
	Strategy       string   `yaml:"strategy"`
	Critical       bool     `yaml:"critical"`
	TargetInterval Duration `yaml:"target_interval"`
	Script         string   `yaml:"script"`
}

// Duration accepts either a duration string ("50ms") or integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("duration must be a string or integer nanoseconds")
	}
	*d = Duration(n)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type ProvinceEntry struct {
	Name       string  `yaml:"name"`
	Population int64   `yaml:"population"`
	GrowthRate float64 `yaml:"growth_rate"`
	Wealth     float64 `yaml:"wealth"`
}

func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &sc, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("missing name")
	}
	seen := make(map[string]struct{}, len(s.Systems))
	for i, sys := range s.Systems {
		if sys.Name == "" {
			return fmt.Errorf("system %d: missing name", i)
		}
		if _, dup := seen[sys.Name]; dup {
			return fmt.Errorf("system %q listed twice", sys.Name)
		}
		seen[sys.Name] = struct{}{}
		if sys.Strategy != "" {
			if _, ok := threading.ParseStrategy(sys.Strategy); !ok {
				return fmt.Errorf("system %q: unknown strategy %q", sys.Name, sys.Strategy)
			}
		}
	}
	for i, p := range s.Provinces {
		if p.Name == "" {
			return fmt.Errorf("province %d: missing name", i)
		}
		if p.Population < 0 {
			return fmt.Errorf("province %q: negative population", p.Name)
		}
	}
	return nil
}

// StrategyFor resolves an entry's strategy, defaulting to Hybrid so the
// scheduler decides placement for unannotated systems.
func (e SystemEntry) StrategyFor() threading.Strategy {
	if e.Strategy == "" {
		return threading.Hybrid
	}
	st, ok := threading.ParseStrategy(e.Strategy)
	if !ok {
		return threading.Hybrid
	}
	return st
}
