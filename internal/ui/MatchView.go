package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Mshel/randomwalker/internal/arena"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	voidColor    = "233"
	mapViewStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("240"))

	statusPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("8")).
				Padding(1, 2)

	walkerTile  = lipgloss.NewStyle().Background(lipgloss.Color(voidColor)).Foreground(lipgloss.Color("208")).Bold(true).Render("@")
	visitedTile = lipgloss.NewStyle().Background(lipgloss.Color(voidColor)).Foreground(lipgloss.Color("31")).Render("·")
	voidTile    = lipgloss.NewStyle().Background(lipgloss.Color(voidColor)).Render(" ")

	headingStyle = lipgloss.NewStyle().Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true)
)

const statusPanelWidth = 34

type stepMsg struct{}

// stepDoneMsg carries the agent's reply back to the event loop.
type stepDoneMsg struct {
	reply string
	err   error
}

// MatchModel plays a match one tick per interval and draws it.
// The agent is awaited in a command so the view keeps handling keys
// while a slow agent thinks; quitting cancels the pending exchange.
type MatchModel struct {
	ctx      context.Context
	cancel   context.CancelFunc
	match    *arena.Match
	interval time.Duration
	progress progress.Model

	lastStep     arena.StepResult
	err          error
	waiting      bool
	finished     bool
	interrupted  bool
	screenWidth  int
	screenHeight int
}

func NewMatchModel(ctx context.Context, match *arena.Match, interval time.Duration) MatchModel {
	ctx, cancel := context.WithCancel(ctx)
	return MatchModel{
		ctx:      ctx,
		cancel:   cancel,
		match:    match,
		interval: interval,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(statusPanelWidth-6)),
	}
}

func (m MatchModel) Init() tea.Cmd {
	return m.nextStep()
}

func (m MatchModel) nextStep() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return stepMsg{}
	})
}

// awaitReply only reads the match; the reply is applied back in Update.
func (m MatchModel) awaitReply() tea.Cmd {
	ctx, match := m.ctx, m.match
	return func() tea.Msg {
		reply, err := match.Exchange(ctx)
		return stepDoneMsg{reply: reply, err: err}
	}
}

func (m MatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.interrupted = !m.finished
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.screenWidth = msg.Width
		m.screenHeight = msg.Height

	case stepMsg:
		if m.finished || m.waiting {
			return m, nil
		}
		m.waiting = true
		return m, m.awaitReply()

	case stepDoneMsg:
		m.waiting = false
		if m.finished {
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
			m.finished = true
			m.match.Abort()
			m.cancel()
			return m, tea.Quit
		}
		m.lastStep = m.match.Apply(msg.reply)
		if m.match.Done() {
			m.finished = true
			m.cancel()
			return m, tea.Quit
		}
		return m, m.nextStep()
	}

	return m, nil
}

// Err is the error that stopped the match early, if any.
func (m MatchModel) Err() error {
	return m.err
}

func (m MatchModel) Finished() bool {
	return m.finished
}

// Interrupted reports whether the user quit before the match ended.
func (m MatchModel) Interrupted() bool {
	return m.interrupted
}

func (m MatchModel) View() string {
	cfg := m.match.Config()

	viewW, viewH := cfg.Width, cfg.Height
	if m.screenWidth > 0 {
		viewW = min(viewW, max(1, m.screenWidth-statusPanelWidth-4))
	}
	if m.screenHeight > 0 {
		viewH = min(viewH, max(1, m.screenHeight-2))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		mapViewStyle.Render(m.renderMap(viewW, viewH)),
		statusPanelStyle.Width(statusPanelWidth).Render(m.renderStatusPanel()),
	)
}

// renderMap draws a viewW x viewH window of the map centred on the walker.
func (m MatchModel) renderMap(viewW, viewH int) string {
	cfg := m.match.Config()
	pos := m.match.Position

	startCol := min(max(0, pos.X-viewW/2), cfg.Width-viewW)
	startRow := min(max(0, pos.Y-viewH/2), cfg.Height-viewH)

	var sb strings.Builder
	for row := startRow; row < startRow+viewH; row++ {
		for col := startCol; col < startCol+viewW; col++ {
			p := arena.Point{X: col, Y: row}
			switch {
			case p == pos:
				sb.WriteString(walkerTile)
			case m.match.Visited[p]:
				sb.WriteString(visitedTile)
			default:
				sb.WriteString(voidTile)
			}
		}
		if row < startRow+viewH-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (m MatchModel) renderStatusPanel() string {
	cfg := m.match.Config()
	result := m.match.Result()

	var status strings.Builder
	status.WriteString(headingStyle.Render("--- Match ---") + "\n")
	status.WriteString(fmt.Sprintf("Agent: %s\n", result.Agent))
	status.WriteString(fmt.Sprintf("Map: %dx%d\n", cfg.Width, cfg.Height))
	status.WriteString(fmt.Sprintf("Tick: %d/%d\n", result.Ticks, cfg.MaxTicks))
	status.WriteString(fmt.Sprintf("Position: %d,%d\n", result.Final.X, result.Final.Y))
	status.WriteString(fmt.Sprintf("Last reply: %q\n", m.lastStep.Reply))
	status.WriteString(fmt.Sprintf("Explored: %.1f %%\n", result.Coverage()))
	status.WriteString(fmt.Sprintf("Invalid replies: %d\n", result.Invalid))
	status.WriteString("\n" + m.progress.ViewAs(float64(result.Ticks)/float64(cfg.MaxTicks)) + "\n")

	if m.err != nil {
		status.WriteString("\n" + errorStyle.Render("Agent failed: "+m.err.Error()) + "\n")
	}

	status.WriteString("\n" + lipgloss.NewStyle().Faint(true).Render("Q / Ctrl+C: Quit"))
	return status.String()
}
