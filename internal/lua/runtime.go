package lua

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"

	"github.com/mpataki/arena/internal/logging"
	"github.com/mpataki/arena/internal/models"
)

// ErrAgentFailed marks a failure the script reported itself, via fail()
// or by returning nil plus a reason.
var ErrAgentFailed = errors.New("agent reported failure")

// Runtime executes a Lua agent script in a sandboxed state. The script
// must define handle(task) and return the agent's output.
type Runtime struct {
	agent  models.AgentRef
	task   models.Task
	logger logging.Logger

	failReason string
	failed     bool
}

func NewRuntime(agent models.AgentRef, task models.Task, logger logging.Logger) *Runtime {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Runtime{
		agent:  agent,
		task:   task,
		logger: logger,
	}
}

// Execute loads the script at scriptPath and calls its handle function.
func (r *Runtime) Execute(ctx context.Context, scriptPath string) (string, error) {
	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}
	return r.ExecuteString(ctx, string(script))
}

func (r *Runtime) ExecuteString(ctx context.Context, script string) (string, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	defer L.Close()
	if ctx != nil {
		L.SetContext(ctx)
	}

	r.openSafeLibs(L)
	r.registerAPI(L)

	if err := L.DoString(script); err != nil {
		return "", fmt.Errorf("failed to load script: %w", err)
	}

	handle := L.GetGlobal("handle")
	if handle.Type() != lua.LTFunction {
		return "", fmt.Errorf("script must define a 'handle' function")
	}

	L.Push(handle)
	L.Push(lua.LString(r.task))
	if err := L.PCall(1, 2, nil); err != nil {
		if r.failed {
			return "", fmt.Errorf("%w: %s", ErrAgentFailed, r.failReason)
		}
		return "", fmt.Errorf("handle failed: %w", err)
	}

	ret, reason := L.Get(-2), L.Get(-1)
	L.Pop(2)

	if ret == lua.LNil && reason != lua.LNil {
		return "", fmt.Errorf("%w: %s", ErrAgentFailed, reason.String())
	}
	switch v := ret.(type) {
	case lua.LString:
		return string(v), nil
	case *lua.LNilType:
		return "", nil
	default:
		return v.String(), nil
	}
}

// openSafeLibs loads base, table, string and math without file access,
// dynamic loading or randomness.
func (r *Runtime) openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)

	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)
	L.SetGlobal("print", lua.LNil) // use log()

	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	math := L.GetGlobal("math")
	if tbl, ok := math.(*lua.LTable); ok {
		L.SetField(tbl, "random", lua.LNil)
		L.SetField(tbl, "randomseed", lua.LNil)
	}
}

func (r *Runtime) registerAPI(L *lua.LState) {
	L.SetGlobal("fail", L.NewFunction(r.luaFail))
	L.SetGlobal("context", L.NewFunction(r.luaContext))
	L.SetGlobal("log", L.NewFunction(r.luaLog))
}

// luaFail implements fail(reason?)
func (r *Runtime) luaFail(L *lua.LState) int {
	r.failReason = L.OptString(1, "agent failed")
	r.failed = true
	L.RaiseError("fail: %s", r.failReason)
	return 0
}

// luaContext implements context()
func (r *Runtime) luaContext(L *lua.LState) int {
	tbl := L.NewTable()
	L.SetField(tbl, "agent", lua.LString(r.agent))
	L.SetField(tbl, "task", lua.LString(r.task))
	L.Push(tbl)
	return 1
}

// luaLog implements log(message)
func (r *Runtime) luaLog(L *lua.LState) int {
	r.logger.Log("lua[%s]: %s", r.agent, L.CheckString(1))
	return 0
}

// ScriptPath returns the conventional script location for agent in dir.
func ScriptPath(dir string, agent models.AgentRef) string {
	return filepath.Join(dir, string(agent)+".lua")
}
