package walker

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"

	"github.com/Mshel/randomwalker/internal/protocol"
	"github.com/charmbracelet/log"
)

const (
	DefaultName = "Go"
	DefaultSeed = 1

	bannerFormat = "Random walker (%s) launching on a %sx%s map"
)

var ErrMalformedRecord = errors.New("malformed record")

type Options struct {
	// Name is the implementation name shown in the launch banner.
	Name string
	Seed int64
	// Lenient turns a malformed record into a warning instead of a fatal error.
	Lenient bool
	// StrategyPath points at a lua script; empty means uniform random moves.
	StrategyPath string
}

func DefaultOptions() Options {
	return Options{
		Name: DefaultName,
		Seed: DefaultSeed,
	}
}

// firstRecord only looks at the keys the banner needs.
type firstRecord struct {
	Config *protocol.Config `json:"config"`
}

// Agent is the read-decide-write loop. The generator and the first tick flag
// belong to one Agent, so several agents can run side by side.
type Agent struct {
	out  *bufio.Writer
	diag *log.Logger

	name     string
	lenient  bool
	rng      *rand.Rand
	strategy Strategy
	closer   func()

	isFirstTick bool
	turn        int
	config      *protocol.Config
}

// NewDiagnosticLogger returns a logger suited for the diagnostic channel:
// no timestamps, so the banner line is exactly the banner.
func NewDiagnosticLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: false,
		Level:           log.InfoLevel,
	})
}

func NewAgent(out io.Writer, diag *log.Logger, opts Options) (*Agent, error) {
	if opts.Name == "" {
		opts.Name = DefaultName
	}

	agent := &Agent{
		out:         bufio.NewWriter(out),
		diag:        diag,
		name:        opts.Name,
		lenient:     opts.Lenient,
		rng:         rand.New(rand.NewSource(opts.Seed)),
		isFirstTick: true,
		closer:      func() {},
	}

	if opts.StrategyPath == "" {
		agent.strategy = NewRandomStrategy(agent.rng)
		return agent, nil
	}

	luaStrategy, err := NewLuaStrategy(opts.StrategyPath, agent.rng)
	if err != nil {
		return nil, err
	}
	agent.strategy = luaStrategy
	agent.closer = luaStrategy.Close
	return agent, nil
}

// Run consumes newline delimited records until the end of in.
// It returns nil at end of input and the first fatal error otherwise.
func (a *Agent) Run(in io.Reader) error {
	reader := bufio.NewReader(in)
	for {
		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("read input: %w", readErr)
		}

		if len(line) > 0 {
			if err := a.HandleLine(bytes.TrimRight(line, "\r\n")); err != nil {
				return err
			}
		}

		if readErr != nil {
			return nil
		}
	}
}

// HandleLine runs one turn: parse, announce on the first tick, move, flush.
func (a *Agent) HandleLine(line []byte) error {
	if err := a.parse(line); err != nil {
		if !a.lenient {
			return err
		}
		a.diag.Warn("Skipping record", "turn", a.turn, "error", err)
	}

	if a.isFirstTick {
		a.diag.Printf(bannerFormat, a.name, a.config.RenderWidth(), a.config.RenderHeight())
		a.isFirstTick = false
	}

	move, err := a.strategy.NextMove(Turn{Index: a.turn, Config: a.config})
	if err != nil {
		return fmt.Errorf("turn %d: %w", a.turn, err)
	}
	a.diag.Debug("Move selected", "turn", a.turn, "move", move)

	if _, err := a.out.WriteString(move.String() + "\n"); err != nil {
		return fmt.Errorf("write move: %w", err)
	}
	if err := a.out.Flush(); err != nil {
		return fmt.Errorf("flush move: %w", err)
	}

	a.turn++
	return nil
}

func (a *Agent) parse(line []byte) error {
	if !a.isFirstTick {
		if !json.Valid(line) {
			return fmt.Errorf("turn %d: invalid json: %w", a.turn, ErrMalformedRecord)
		}
		return nil
	}

	var record firstRecord
	if err := json.Unmarshal(line, &record); err != nil {
		return fmt.Errorf("turn %d: %w: %w", a.turn, ErrMalformedRecord, err)
	}
	a.config = record.Config
	return nil
}

func (a *Agent) Turns() int {
	return a.turn
}

func (a *Agent) Close() {
	a.closer()
}
