package simulator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/joho/godotenv"
)

// Runner executes one invocation to completion and returns its standard
// output. It is the process boundary of the tool; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, inv *Invocation) ([]byte, error)
}

// ExecRunner runs the simulator as a local process.
type ExecRunner struct {
	// Timeout bounds one invocation. Zero waits indefinitely.
	Timeout time.Duration
	// Env is appended to the inherited environment.
	Env []string
}

func (r *ExecRunner) Run(ctx context.Context, inv *Invocation) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.Executable, inv.Args...)
	cmd.Dir = inv.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		pe := &ProcessError{Command: inv.String(), ExitCode: -1, Stderr: stderr.String(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			pe.ExitCode = exitErr.ExitCode()
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			pe.TimedOut = true
		}
		return out, pe
	}
	return out, nil
}

// LoadEnvFile reads a dotenv file into KEY=VALUE pairs, sorted by key.
func LoadEnvFile(path string) ([]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env, nil
}
