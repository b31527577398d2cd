package arena

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/Mshel/randomwalker/internal/walker"
	"github.com/charmbracelet/log"
)

var ErrAgentExited = errors.New("agent closed its output")

// Conn is one agent seen from the arena: a tick goes in, a reply line comes out.
// Once an Exchange returns because its ctx ended, later calls fail with ErrConnBroken.
type Conn interface {
	Exchange(ctx context.Context, line []byte) (string, error)
	Close() error
}

// ErrConnBroken is returned by every exchange after one was interrupted by
// its context: the abandoned read may still consume the agent's next line.
var ErrConnBroken = errors.New("agent connection unusable after an interrupted exchange")

type reply struct {
	line string
	err  error
}

// lineIO is the request/reply framing shared by both Conn kinds.
// It is not safe for concurrent exchanges.
type lineIO struct {
	w      io.Writer
	r      *bufio.Reader
	broken error
}

// exchange writes one line and reads one line back. The I/O runs in its own
// goroutine so a stuck agent cannot outlive ctx; the caller's Close unblocks it.
func (l *lineIO) exchange(ctx context.Context, line []byte) (string, error) {
	if l.broken != nil {
		return "", fmt.Errorf("%w: %w", ErrConnBroken, l.broken)
	}

	replies := make(chan reply, 1)
	go func() {
		if _, err := l.w.Write(append(line, '\n')); err != nil {
			replies <- reply{err: fmt.Errorf("send tick: %w", err)}
			return
		}
		text, err := l.r.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && text != "") {
			if errors.Is(err, io.EOF) {
				err = ErrAgentExited
			}
			replies <- reply{err: fmt.Errorf("read reply: %w", err)}
			return
		}
		replies <- reply{line: strings.TrimRight(text, "\r\n")}
	}()

	select {
	case <-ctx.Done():
		l.broken = ctx.Err()
		return "", ctx.Err()
	case rep := <-replies:
		return rep.line, rep.err
	}
}

// ProcessConn talks to an agent running as a child process.
type ProcessConn struct {
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	lines      lineIO
	stderrDone chan struct{}
	logger     *log.Logger
}

// StartProcess launches argv and forwards each line the agent writes on
// stderr to logger.
func StartProcess(ctx context.Context, argv []string, logger *log.Logger) (*ProcessConn, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty agent command", ErrInvalidConfig)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("agent stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("agent stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("agent stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start agent %s: %w", argv[0], err)
	}

	conn := &ProcessConn{
		cmd:        cmd,
		stdin:      stdin,
		lines:      lineIO{w: stdin, r: bufio.NewReader(stdout)},
		stderrDone: make(chan struct{}),
		logger:     logger.With("agent", argv[0], "pid", cmd.Process.Pid),
	}
	go conn.forwardStderr(stderr)

	conn.logger.Debug("Agent started")
	return conn, nil
}

func (c *ProcessConn) forwardStderr(stderr io.Reader) {
	defer close(c.stderrDone)
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		c.logger.Info(scanner.Text())
	}
}

func (c *ProcessConn) Exchange(ctx context.Context, line []byte) (string, error) {
	return c.lines.exchange(ctx, line)
}

// Close closes the agent's stdin and gives it agentExitGrace to exit before killing it.
func (c *ProcessConn) Close() error {
	_ = c.stdin.Close()

	select {
	case <-c.stderrDone:
	case <-time.After(agentExitGrace):
		c.logger.Warn("Agent still running after stdin closed, killing it")
		_ = c.cmd.Process.Kill()
		_ = c.cmd.Wait()
		return nil
	}

	if err := c.cmd.Wait(); err != nil {
		return fmt.Errorf("agent exited: %w", err)
	}
	return nil
}

// LocalConn runs a walker.Agent in the arena's own process.
type LocalConn struct {
	toAgent *io.PipeWriter
	lines   lineIO
	done    chan error
}

func StartLocal(opts walker.Options, logger *log.Logger) (*LocalConn, error) {
	agentIn, toAgent := io.Pipe()
	fromAgent, agentOut := io.Pipe()

	agent, err := walker.NewAgent(agentOut, logger, opts)
	if err != nil {
		return nil, err
	}

	conn := &LocalConn{
		toAgent: toAgent,
		lines:   lineIO{w: toAgent, r: bufio.NewReader(fromAgent)},
		done:    make(chan error, 1),
	}

	go func() {
		runErr := agent.Run(agentIn)
		agent.Close()
		// unblock both directions so the arena sees the failure instead of hanging
		agentOut.CloseWithError(runErr)
		agentIn.CloseWithError(ErrAgentExited)
		conn.done <- runErr
	}()

	return conn, nil
}

func (c *LocalConn) Exchange(ctx context.Context, line []byte) (string, error) {
	return c.lines.exchange(ctx, line)
}

func (c *LocalConn) Close() error {
	_ = c.toAgent.Close()
	select {
	case err := <-c.done:
		return err
	case <-time.After(agentExitGrace):
		return errors.New("in-process agent did not stop")
	}
}
