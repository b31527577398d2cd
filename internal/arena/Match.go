package arena

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Mshel/randomwalker/internal/protocol"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

type Point struct {
	X, Y int
}

// StepResult describes what happened during one tick.
type StepResult struct {
	Tick    int
	Reply   string
	Command protocol.Command
	Moved   bool
	Invalid bool
}

// Result is the summary of a finished (or aborted) match.
type Result struct {
	ID         uuid.UUID
	Agent      string
	Width      int
	Height     int
	Ticks      int
	Final      Point
	Visited    int
	Invalid    int
	Moves      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Coverage is the share of the map the agent has stepped on, in percent.
func (r Result) Coverage() float64 {
	return float64(r.Visited) * 100 / float64(r.Width*r.Height)
}

// Match drives a single agent over an open grid for cfg.MaxTicks ticks.
type Match struct {
	ID       uuid.UUID
	Position Point
	Visited  map[Point]bool
	Tick     int
	Invalid  int

	cfg       Config
	conn      Conn
	logger    *log.Logger
	moves     strings.Builder
	startedAt time.Time
	finished  time.Time
}

func NewMatch(cfg Config, conn Conn, logger *log.Logger) *Match {
	start := Point{X: cfg.Width / 2, Y: cfg.Height / 2}
	return &Match{
		ID:        uuid.New(),
		Position:  start,
		Visited:   map[Point]bool{start: true},
		cfg:       cfg,
		conn:      conn,
		logger:    logger,
		startedAt: time.Now(),
	}
}

func (m *Match) Config() Config {
	return m.cfg
}

func (m *Match) Done() bool {
	return m.Tick >= m.cfg.MaxTicks
}

func (m *Match) tickRecord() protocol.Tick {
	tick := protocol.Tick{
		Tick:       m.Tick,
		Bot:        [2]int{m.Position.X, m.Position.Y},
		Initiative: true,
	}
	if m.Tick == 0 {
		tick.Config = &protocol.Config{
			Width:    protocol.Number(int64(m.cfg.Width)),
			Height:   protocol.Number(int64(m.cfg.Height)),
			MaxTicks: protocol.Number(int64(m.cfg.MaxTicks)),
			BotSeed:  protocol.Number(int64(BotSeed(m.cfg.Seed))),
		}
	}
	return tick
}

// Step sends the current tick to the agent and applies its reply.
// Moves that would leave the map are ignored, like moves into a wall.
func (m *Match) Step(ctx context.Context) (StepResult, error) {
	line, err := m.Exchange(ctx)
	if err != nil {
		return StepResult{}, err
	}
	return m.Apply(line), nil
}

// Exchange sends the current tick and waits for the agent's reply without
// changing the match. Apply the reply before the next Exchange.
func (m *Match) Exchange(ctx context.Context) (string, error) {
	if m.Done() {
		return "", errors.New("match already finished")
	}

	payload, err := json.Marshal(m.tickRecord())
	if err != nil {
		return "", fmt.Errorf("encode tick %d: %w", m.Tick, err)
	}

	line, err := m.conn.Exchange(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("tick %d: %w", m.Tick, err)
	}
	return line, nil
}

// Apply plays the agent's reply to the current tick and advances the match.
func (m *Match) Apply(line string) StepResult {
	result := StepResult{Tick: m.Tick, Reply: line}
	command, parseErr := protocol.ParseCommand(line)
	switch {
	case parseErr != nil:
		m.Invalid++
		result.Invalid = true
		m.logger.Warn("Invalid command from agent", "tick", m.Tick, "reply", line)
		m.moves.WriteByte('?')
	case command.Wait:
		result.Command = command
		m.moves.WriteByte('.')
	default:
		result.Command = command
		result.Moved = m.apply(command.Move)
		m.moves.WriteString(command.Move.String())
	}

	m.Tick++
	if m.Done() {
		m.finished = time.Now()
	}
	return result
}

// Abort stamps the finish time of a match that stopped early.
func (m *Match) Abort() {
	if m.finished.IsZero() {
		m.finished = time.Now()
	}
}

func (m *Match) apply(move protocol.Move) bool {
	d := move.Delta()
	next := Point{X: m.Position.X + d.Dx, Y: m.Position.Y + d.Dy}
	if next.X < 0 || next.Y < 0 || next.X >= m.cfg.Width || next.Y >= m.cfg.Height {
		return false
	}
	m.Position = next
	m.Visited[next] = true
	return true
}

// Run steps until the match is done. On error the partial result is still returned.
func (m *Match) Run(ctx context.Context) (Result, error) {
	for !m.Done() {
		if _, err := m.Step(ctx); err != nil {
			m.Abort()
			return m.Result(), err
		}
	}
	return m.Result(), nil
}

func (m *Match) Result() Result {
	finished := m.finished
	if finished.IsZero() {
		finished = time.Now()
	}
	return Result{
		ID:         m.ID,
		Agent:      m.cfg.AgentLabel(),
		Width:      m.cfg.Width,
		Height:     m.cfg.Height,
		Ticks:      m.Tick,
		Final:      m.Position,
		Visited:    len(m.Visited),
		Invalid:    m.Invalid,
		Moves:      m.moves.String(),
		StartedAt:  m.startedAt,
		FinishedAt: finished,
	}
}
