package walker

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"github.com/Mshel/randomwalker/internal/protocol"
	lua "github.com/yuin/gopher-lua"
)

const luaEntryPoint = "next_move"

var ErrInvalidMove = errors.New("invalid move")

// LuaStrategy delegates the choice to a script function:
//
//	function next_move(turn)
//	    return ({"N", "S", "E", "W"})[random(4)]
//	end
//
// turn has the fields turn, width and height (nil when the first tick had no config).
// random(n) returns an integer in 1..n drawn from the agent's generator.
type LuaStrategy struct {
	luaState *lua.LState
	rng      *rand.Rand
}

func NewLuaStrategy(path string, rng *rand.Rand) (*LuaStrategy, error) {
	s := newLuaState(rng)
	if err := s.luaState.DoFile(path); err != nil {
		s.Close()
		return nil, fmt.Errorf("could not load lua strategy %s: %w", path, err)
	}
	return s.checkEntryPoint()
}

// NewLuaStrategyFromSource is NewLuaStrategy for an in-memory script.
func NewLuaStrategyFromSource(source string, rng *rand.Rand) (*LuaStrategy, error) {
	s := newLuaState(rng)
	if err := s.luaState.DoString(source); err != nil {
		s.Close()
		return nil, fmt.Errorf("could not parse lua strategy: %w", err)
	}
	return s.checkEntryPoint()
}

func newLuaState(rng *rand.Rand) *LuaStrategy {
	s := &LuaStrategy{
		luaState: lua.NewState(),
		rng:      rng,
	}
	s.luaState.SetGlobal("random", s.luaState.NewFunction(s.luaRandom))
	return s
}

func (s *LuaStrategy) checkEntryPoint() (*LuaStrategy, error) {
	if s.luaState.GetGlobal(luaEntryPoint).Type() != lua.LTFunction {
		s.Close()
		return nil, fmt.Errorf("lua strategy does not define %s(turn)", luaEntryPoint)
	}
	return s, nil
}

func (s *LuaStrategy) luaRandom(L *lua.LState) int {
	n := L.CheckInt(1)
	if n < 1 {
		L.ArgError(1, "upper bound must be positive")
		return 0
	}
	L.Push(lua.LNumber(s.rng.Intn(n) + 1))
	return 1
}

func (s *LuaStrategy) NextMove(turn Turn) (protocol.Move, error) {
	L := s.luaState

	var width, height *json.Number
	if turn.Config != nil {
		width, height = turn.Config.Width, turn.Config.Height
	}

	turnTable := L.NewTable()
	L.SetField(turnTable, "turn", lua.LNumber(turn.Index))
	L.SetField(turnTable, "width", luaNumber(width))
	L.SetField(turnTable, "height", luaNumber(height))

	err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal(luaEntryPoint),
		NRet:    1,
		Protect: true,
	}, turnTable)
	if err != nil {
		return "", fmt.Errorf("could not execute lua strategy: %w", err)
	}

	ret := L.Get(-1)
	L.Pop(1)

	token, ok := ret.(lua.LString)
	if !ok {
		return "", fmt.Errorf("lua strategy returned %s, expected string: %w", ret.Type().String(), ErrInvalidMove)
	}
	move := protocol.Move(token)
	if !move.Valid() {
		return "", fmt.Errorf("lua strategy returned %q: %w", string(token), ErrInvalidMove)
	}
	return move, nil
}

func (s *LuaStrategy) Close() {
	s.luaState.Close()
}

func luaNumber(n *json.Number) lua.LValue {
	if n == nil {
		return lua.LNil
	}
	f, err := n.Float64()
	if err != nil {
		return lua.LNil
	}
	return lua.LNumber(f)
}
