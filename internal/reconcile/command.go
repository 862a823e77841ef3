package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/mvp-joe/splitter/internal/source"
)

// DefaultCommandTimeout bounds one external checker invocation.
const DefaultCommandTimeout = 30 * time.Second

// CommandChecker asks an external program for types. The program receives a
// JSON request on stdin and answers with a JSON response on stdout:
//
//	request:  {"query": {...}, "source": "<module text>"}
//	response: {"type": "string"} or {"error": "reason"}
//
// An empty type means the program could not infer one.
type CommandChecker struct {
	Command []string
	Dir     string
	Timeout time.Duration
}

// NewCommandChecker creates a checker running argv in dir.
func NewCommandChecker(argv []string, dir string, timeout time.Duration) (*CommandChecker, error) {
	if len(argv) == 0 {
		return nil, errors.New("checker command is empty")
	}
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &CommandChecker{Command: argv, Dir: dir, Timeout: timeout}, nil
}

type commandRequest struct {
	Query  Query  `json:"query"`
	Source string `json:"source"`
}

type commandResponse struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

// TypeOf implements Checker.
func (c *CommandChecker) TypeOf(ctx context.Context, m *source.Module, q Query) (string, error) {
	input, err := json.Marshal(commandRequest{Query: q, Source: string(m.Src)})
	if err != nil {
		return "", fmt.Errorf("failed to encode query: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, c.Command[0], c.Command[1:]...)
	cmd.Dir = c.Dir
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if execCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("type checker timed out (%s)", c.Timeout)
		}
		if stderr.Len() > 0 {
			return "", fmt.Errorf("type checker error: %s", strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("type checker failed: %w", err)
	}

	var resp commandResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return "", fmt.Errorf("invalid type checker output: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrCannotInfer, resp.Error)
	}
	if resp.Type == "" {
		return "", ErrCannotInfer
	}
	return strings.TrimSpace(resp.Type), nil
}
