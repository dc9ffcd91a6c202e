package simulator

import (
	"fmt"
	"strings"
)

// ProcessError reports an external process that could not be started,
// exited with a non-zero status or was killed by its timeout.
type ProcessError struct {
	Command  string
	ExitCode int
	TimedOut bool
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	var b strings.Builder
	switch {
	case e.TimedOut:
		fmt.Fprintf(&b, "process timed out: %s", e.Command)
	case e.ExitCode > 0:
		fmt.Fprintf(&b, "process exited with status %d: %s", e.ExitCode, e.Command)
	default:
		fmt.Fprintf(&b, "process failed: %s", e.Command)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, " (stderr: %s)", s)
	}
	return b.String()
}

func (e *ProcessError) Unwrap() error { return e.Err }

// OutputFormatError reports a result line that could not be parsed.
type OutputFormatError struct {
	Output string
	Reason string
}

func (e *OutputFormatError) Error() string {
	out := strings.TrimSpace(e.Output)
	if len(out) > 200 {
		out = out[:200] + "..."
	}
	return fmt.Sprintf("unparseable output %q: %s", out, e.Reason)
}
