// Package scripting embeds gopher-lua so simulation behavior can be written
// as data. Each script gets its own VM; a VM is never shared between
// goroutines, so scripted systems stay safe under pooled or dedicated
// scheduling as long as one system owns one engine.
package scripting

import (
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Hook names a script may define. All are optional except on_update.
const (
	initFunc     = "on_init"
	updateFunc   = "on_update"
	shutdownFunc = "on_shutdown"
)

// Engine wraps a single gopher-lua VM bound to one script file.
type Engine struct {
	vm   *lua.LState
	log  *zap.Logger
	path string
}

// NewEngine creates a VM, registers the host API, and runs the script's
// top-level chunk.
func NewEngine(path string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log, path: path}
	e.registerLog()

	if err := vm.DoFile(path); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load script %s: %w", path, err)
	}
	if vm.GetGlobal(updateFunc) == lua.LNil {
		vm.Close()
		return nil, fmt.Errorf("script %s: missing %s", path, updateFunc)
	}
	e.log.Debug("loaded lua script", zap.String("file", path))
	return e, nil
}

// Register exposes a Go function to the script under the given global name.
// Must be called before the functions are used from Lua, typically right
// after NewEngine.
func (e *Engine) Register(name string, fn lua.LGFunction) {
	e.vm.SetGlobal(name, e.vm.NewFunction(fn))
}

// registerLog installs log_info/log_warn so scripts report through zap
// instead of print.
func (e *Engine) registerLog() {
	e.vm.SetGlobal("log_info", e.vm.NewFunction(func(L *lua.LState) int {
		e.log.Info(L.CheckString(1), zap.String("script", e.path))
		return 0
	}))
	e.vm.SetGlobal("log_warn", e.vm.NewFunction(func(L *lua.LState) int {
		e.log.Warn(L.CheckString(1), zap.String("script", e.path))
		return 0
	}))
}

// CallInit runs on_init if the script defines it.
func (e *Engine) CallInit() error {
	return e.callOptional(initFunc)
}

// CallUpdate runs on_update(dt_seconds).
func (e *Engine) CallUpdate(dt time.Duration) error {
	fn := e.vm.GetGlobal(updateFunc)
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(dt.Seconds())); err != nil {
		return fmt.Errorf("lua %s: %w", updateFunc, err)
	}
	return nil
}

// CallShutdown runs on_shutdown if the script defines it.
func (e *Engine) CallShutdown() error {
	return e.callOptional(shutdownFunc)
}

func (e *Engine) callOptional(name string) error {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		return nil
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}); err != nil {
		return fmt.Errorf("lua %s: %w", name, err)
	}
	return nil
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
