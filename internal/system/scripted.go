package system

import (
	"time"

	"github.com/antonzymin-eng/Game-sub016/internal/scripting"
)

// ScriptedSystem adapts a Lua script to the scheduler's system interface.
// The engine's VM is single-owner; the scheduler never runs two updates of
// the same system concurrently, so no extra locking is needed here.
type ScriptedSystem struct {
	name   string
	engine *scripting.Engine
}

func NewScriptedSystem(name string, engine *scripting.Engine) *ScriptedSystem {
	return &ScriptedSystem{name: name, engine: engine}
}

func (s *ScriptedSystem) Name() string { return s.name }

func (s *ScriptedSystem) Init() error {
	return s.engine.CallInit()
}

func (s *ScriptedSystem) Update(dt time.Duration) error {
	return s.engine.CallUpdate(dt)
}

func (s *ScriptedSystem) Shutdown() error {
	defer s.engine.Close()
	return s.engine.CallShutdown()
}
