// Package format hands rewritten files to an external code formatter.
package format

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout is the maximum time allowed for one formatter invocation.
const DefaultTimeout = 30 * time.Second

// PathPlaceholder in a command's arguments is replaced with the file path.
// Commands without it get the path appended.
const PathPlaceholder = "{path}"

// ErrNotInstalled is returned when the formatter binary cannot be found.
var ErrNotInstalled = errors.New("formatter not installed")

// Formatter formats one file in place.
type Formatter interface {
	Format(ctx context.Context, path string) error
}

// Nop is a Formatter that does nothing.
type Nop struct{}

// Format implements Formatter.
func (Nop) Format(context.Context, string) error { return nil }

// Command runs an external formatter such as prettier or biome.
type Command struct {
	Argv    []string
	Dir     string
	Timeout time.Duration
}

// NewCommand creates a Command formatter. An empty argv yields Nop.
func NewCommand(argv []string, dir string, timeout time.Duration) Formatter {
	if len(argv) == 0 {
		return Nop{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Command{Argv: argv, Dir: dir, Timeout: timeout}
}

// Format runs the formatter on path.
//
// Errors:
// - Binary not found: ErrNotInstalled
// - Timeout: formatter exceeded its timeout
// - Execution failed: formatter exited non-zero, stderr included when present
func (c *Command) Format(ctx context.Context, path string) error {
	bin, err := exec.LookPath(c.Argv[0])
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotInstalled, c.Argv[0])
	}

	execCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, bin, BuildArgs(c.Argv[1:], path)...)
	cmd.Dir = c.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("formatter timed out (%s)", c.Timeout)
		}
		if stderr.Len() > 0 {
			return fmt.Errorf("formatter error: %s", strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("formatter failed: %w", err)
	}
	return nil
}

// BuildArgs substitutes path into args.
func BuildArgs(args []string, path string) []string {
	out := make([]string, 0, len(args)+1)
	substituted := false
	for _, a := range args {
		if strings.Contains(a, PathPlaceholder) {
			a = strings.ReplaceAll(a, PathPlaceholder, path)
			substituted = true
		}
		out = append(out, a)
	}
	if !substituted {
		out = append(out, path)
	}
	return out
}
