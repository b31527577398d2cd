package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/Mshel/randomwalker/internal/walker"
)

func execute(t *testing.T, input string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := rootCmd()
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestWalkerCommandDefaults(t *testing.T) {
	stdout, stderr, err := execute(t, "{\"config\":{\"width\":5,\"height\":7}}\n{}\n{}\n")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	moves := strings.Fields(stdout)
	if len(moves) != 3 {
		t.Fatalf("expected 3 moves, got %q", stdout)
	}
	if strings.TrimSpace(stderr) != "Random walker (Go) launching on a 5x7 map" {
		t.Errorf("unexpected diagnostics %q", stderr)
	}
}

func TestWalkerCommandMalformedInput(t *testing.T) {
	stdout, _, err := execute(t, "{not json\n")
	if !errors.Is(err, walker.ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord, got %v", err)
	}
	if stdout != "" {
		t.Errorf("no move expected, got %q", stdout)
	}
}

func TestWalkerCommandFlags(t *testing.T) {
	stdout, stderr, err := execute(t, "{not json\n{}\n", "--lenient", "--name", "Go lenient", "--seed", "7")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(strings.Fields(stdout)) != 2 {
		t.Errorf("expected 2 moves, got %q", stdout)
	}
	if !strings.Contains(stderr, "Random walker (Go lenient) launching on a <nil>x<nil> map") {
		t.Errorf("unexpected diagnostics %q", stderr)
	}

	if _, _, err := execute(t, "{}\n", "--log-level", "loud"); err == nil {
		t.Error("expected an error for an unknown log level")
	}
	if _, _, err := execute(t, "{}\n", "extra"); err == nil {
		t.Error("walker takes no positional arguments")
	}
}
