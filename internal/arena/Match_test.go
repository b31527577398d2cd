package arena

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"os"
	"strings"
	"testing"

	"github.com/Mshel/randomwalker/internal/protocol"
	"github.com/Mshel/randomwalker/internal/walker"
	"github.com/charmbracelet/log"
)

// scriptedConn replays canned replies and records the ticks it was sent.
type scriptedConn struct {
	replies []string
	sent    []protocol.Tick
	closed  bool
}

func (c *scriptedConn) Exchange(_ context.Context, line []byte) (string, error) {
	var tick protocol.Tick
	if err := json.Unmarshal(line, &tick); err != nil {
		return "", err
	}
	c.sent = append(c.sent, tick)
	if len(c.replies) == 0 {
		return "", ErrAgentExited
	}
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return reply, nil
}

func (c *scriptedConn) Close() error {
	c.closed = true
	return nil
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func smallConfig(width, height, ticks int) Config {
	cfg := DefaultConfig()
	cfg.Width = width
	cfg.Height = height
	cfg.MaxTicks = ticks
	return cfg
}

func TestMatchAppliesMoves(t *testing.T) {
	conn := &scriptedConn{replies: []string{"N", "E", "WAIT", "S", "W"}}
	m := NewMatch(smallConfig(5, 5, 5), conn, quietLogger())

	if m.Position != (Point{X: 2, Y: 2}) {
		t.Fatalf("match should start in the centre, got %+v", m.Position)
	}

	result, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Final != (Point{X: 2, Y: 2}) {
		t.Errorf("final position = %+v", result.Final)
	}
	if result.Ticks != 5 || result.Moves != "NE.SW" {
		t.Errorf("ticks = %d moves = %q", result.Ticks, result.Moves)
	}
	// centre, (2,1), (3,1), (3,2)
	if result.Visited != 4 {
		t.Errorf("visited = %d, want 4", result.Visited)
	}
	if result.Agent != "builtin" || result.Width != 5 {
		t.Errorf("unexpected result metadata: %+v", result)
	}
}

func TestMatchSendsConfigOnFirstTickOnly(t *testing.T) {
	conn := &scriptedConn{replies: []string{"N", "N", "N"}}
	cfg := smallConfig(7, 3, 3)
	cfg.Seed = 42
	m := NewMatch(cfg, conn, quietLogger())

	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(conn.sent) != 3 {
		t.Fatalf("expected 3 ticks, got %d", len(conn.sent))
	}
	first := conn.sent[0]
	if first.Config == nil {
		t.Fatal("first tick must carry the config")
	}
	if first.Config.RenderWidth() != "7" || first.Config.RenderHeight() != "3" {
		t.Errorf("config = %sx%s", first.Config.RenderWidth(), first.Config.RenderHeight())
	}
	if protocol.Render(first.Config.BotSeed) != "2773067681" {
		t.Errorf("bot seed = %s", protocol.Render(first.Config.BotSeed))
	}
	for i, tick := range conn.sent[1:] {
		if tick.Config != nil {
			t.Errorf("tick %d should not carry a config", i+1)
		}
		if tick.Tick != i+1 {
			t.Errorf("tick number = %d, want %d", tick.Tick, i+1)
		}
	}
	// the map is 3 high and the bot starts on row 1, so only the first N lands
	if conn.sent[2].Bot != [2]int{3, 0} {
		t.Errorf("bot position on tick 2 = %v", conn.sent[2].Bot)
	}
}

func TestMatchClampsAndCountsInvalid(t *testing.T) {
	conn := &scriptedConn{replies: []string{"W", "W", "jump", ""}}
	m := NewMatch(smallConfig(2, 1, 4), conn, quietLogger())

	var steps []StepResult
	for !m.Done() {
		step, err := m.Step(context.Background())
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		steps = append(steps, step)
	}

	if !steps[0].Moved || steps[1].Moved {
		t.Errorf("first W should move to x=0, second should hit the edge: %+v", steps[:2])
	}
	if !steps[2].Invalid || !steps[3].Invalid {
		t.Errorf("expected invalid replies: %+v", steps[2:])
	}

	result := m.Result()
	if result.Invalid != 2 || result.Moves != "WW??" {
		t.Errorf("invalid = %d moves = %q", result.Invalid, result.Moves)
	}
	if result.Coverage() != 100 {
		t.Errorf("coverage = %.1f", result.Coverage())
	}

	if _, err := m.Step(context.Background()); err == nil {
		t.Error("stepping a finished match should fail")
	}
}

func TestMatchStopsWhenAgentExits(t *testing.T) {
	conn := &scriptedConn{replies: []string{"N"}}
	m := NewMatch(smallConfig(5, 5, 10), conn, quietLogger())

	result, err := m.Run(context.Background())
	if !errors.Is(err, ErrAgentExited) {
		t.Fatalf("expected ErrAgentExited, got %v", err)
	}
	if result.Ticks != 1 {
		t.Errorf("partial result should have 1 tick, got %d", result.Ticks)
	}
}

func TestMatchWithLocalWalker(t *testing.T) {
	conn, err := StartLocal(walker.DefaultOptions(), quietLogger())
	if err != nil {
		t.Fatalf("StartLocal: %v", err)
	}

	m := NewMatch(smallConfig(9, 9, 30), conn, quietLogger())
	result, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(result.Moves) != 30 || result.Invalid != 0 {
		t.Fatalf("moves = %q invalid = %d", result.Moves, result.Invalid)
	}

	reference := rand.New(rand.NewSource(walker.DefaultSeed))
	for i, c := range result.Moves {
		want := protocol.Moves[reference.Intn(4)]
		if string(c) != want.String() {
			t.Fatalf("move %d = %c, want %s", i, c, want)
		}
	}
}

func TestLocalConnSurfacesAgentFailure(t *testing.T) {
	conn, err := StartLocal(walker.DefaultOptions(), quietLogger())
	if err != nil {
		t.Fatalf("StartLocal: %v", err)
	}

	if _, err := conn.Exchange(context.Background(), []byte("{not json")); !errors.Is(err, walker.ErrMalformedRecord) {
		t.Errorf("expected the agent's parse error, got %v", err)
	}
	if err := conn.Close(); !errors.Is(err, walker.ErrMalformedRecord) {
		t.Errorf("Close should report the agent error, got %v", err)
	}
}

// TestHelperProcess is not a real test: ProcessConn tests re-execute the test
// binary with WALKER_HELPER_PROCESS=1 to get a walker on the other end of a pipe.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("WALKER_HELPER_PROCESS") != "1" {
		return
	}
	agent, err := walker.NewAgent(os.Stdout, walker.NewDiagnosticLogger(os.Stderr), walker.DefaultOptions())
	if err != nil {
		os.Exit(2)
	}
	if err := agent.Run(os.Stdin); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

func helperArgv(t *testing.T) []string {
	t.Helper()
	t.Setenv("WALKER_HELPER_PROCESS", "1")
	return []string{os.Args[0], "-test.run=^TestHelperProcess$"}
}

func TestProcessConnRunsChildAgent(t *testing.T) {
	var logs strings.Builder
	logger := log.NewWithOptions(&logs, log.Options{})

	ctx := context.Background()
	conn, err := StartProcess(ctx, helperArgv(t), logger)
	if err != nil {
		t.Fatalf("StartProcess: %v", err)
	}

	m := NewMatch(smallConfig(6, 4, 5), conn, logger)
	result, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(result.Moves) != 5 || result.Invalid != 0 {
		t.Errorf("moves = %q invalid = %d", result.Moves, result.Invalid)
	}
	if !strings.Contains(logs.String(), "Random walker (Go) launching on a 6x4 map") {
		t.Errorf("banner should be forwarded to the arena log, got %q", logs.String())
	}
}

func TestStartProcessRejectsEmptyCommand(t *testing.T) {
	if _, err := StartProcess(context.Background(), nil, quietLogger()); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestExchangeRefusedAfterCancellation(t *testing.T) {
	// nobody reads agentIn, so the write blocks until the pipe is closed
	agentIn, toAgent := io.Pipe()
	defer agentIn.Close()
	lines := &lineIO{w: toAgent, r: bufio.NewReader(strings.NewReader("N\n"))}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := lines.exchange(ctx, []byte("{}")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	_, err := lines.exchange(context.Background(), []byte("{}"))
	if !errors.Is(err, ErrConnBroken) || !errors.Is(err, context.Canceled) {
		t.Errorf("expected ErrConnBroken wrapping the cancellation, got %v", err)
	}
}

func TestMatchExchangeDoesNotAdvance(t *testing.T) {
	conn := &scriptedConn{replies: []string{"E"}}
	m := NewMatch(smallConfig(5, 5, 3), conn, quietLogger())

	reply, err := m.Exchange(context.Background())
	if err != nil || reply != "E" {
		t.Fatalf("Exchange = %q, %v", reply, err)
	}
	if m.Tick != 0 || m.Position != (Point{X: 2, Y: 2}) {
		t.Fatalf("Exchange must not change the match: tick %d position %+v", m.Tick, m.Position)
	}

	step := m.Apply(reply)
	if !step.Moved || m.Tick != 1 || m.Position != (Point{X: 3, Y: 2}) {
		t.Errorf("Apply: step %+v tick %d position %+v", step, m.Tick, m.Position)
	}
}
