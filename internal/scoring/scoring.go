package scoring

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/signalnine/replaybench/internal/simulator"
)

// Format selects how the scoring script's "name value" lines are split.
type Format string

const (
	// FormatStrict takes the last whitespace-separated token as the value
	// and the rest of the line as the name.
	FormatStrict Format = "strict"
	// FormatLegacy splits on a run of spaces as long as the line's total
	// space count, as the first scoring scripts expected.
	FormatLegacy Format = "legacy"
)

// EvaluationMetrics are the metrics the evaluation workflow requires from
// the scoring script, in output order.
var EvaluationMetrics = []string{
	"AUC", "d_th", "d", "TPR", "FPR", "ACC_th", "ACC", "F1_th", "F1",
	"KAPPA_th", "KAPPA", "QDIS", "ADIS", "TSS_th", "TSS",
}

type Metrics map[string]float64

// Require returns the values of names in order, failing on the first one
// missing.
func (m Metrics) Require(names ...string) ([]float64, error) {
	vals := make([]float64, len(names))
	for i, n := range names {
		v, ok := m[n]
		if !ok {
			return nil, &simulator.OutputFormatError{Reason: fmt.Sprintf("metric %q missing from scoring output", n)}
		}
		vals[i] = v
	}
	return vals, nil
}

// Scorer runs an external scoring script against a working directory.
type Scorer struct {
	Interpreter string
	Script      string
	Format      Format
}

// Command returns the command line for workDir and extra arguments.
func (s *Scorer) Command(workDir string, extra ...string) []string {
	var argv []string
	if s.Interpreter != "" {
		argv = append(argv, s.Interpreter)
	}
	argv = append(argv, s.Script, workDir)
	return append(argv, extra...)
}

// Run executes the script and returns its raw standard output.
func (s *Scorer) Run(ctx context.Context, workDir string, extra ...string) ([]byte, error) {
	argv := s.Command(workDir, extra...)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		pe := &simulator.ProcessError{Command: strings.Join(argv, " "), ExitCode: -1, Stderr: stderr.String(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			pe.ExitCode = exitErr.ExitCode()
		}
		return out, pe
	}
	return out, nil
}

// Score runs the script and parses its metric table.
func (s *Scorer) Score(ctx context.Context, workDir string, extra ...string) (Metrics, error) {
	out, err := s.Run(ctx, workDir, extra...)
	if err != nil {
		return nil, err
	}
	return ParseMetrics(string(out), s.Format)
}

// ParseMetrics reads a header line followed by "name value" lines.
func ParseMetrics(text string, format Format) (Metrics, error) {
	lines := strings.Split(strings.Trim(text, "\n"), "\n")
	m := Metrics{}
	for _, raw := range lines[1:] {
		line := strings.TrimRight(raw, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		var name, value string
		var ok bool
		if format == FormatLegacy {
			name, value, ok = splitLegacy(line)
		} else {
			name, value, ok = splitStrict(line)
		}
		if !ok {
			return nil, &simulator.OutputFormatError{Output: text, Reason: fmt.Sprintf("line %q is not a name/value pair", line)}
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, &simulator.OutputFormatError{Output: text, Reason: fmt.Sprintf("metric %q: %q is not a number", name, value)}
		}
		m[name] = v
	}
	return m, nil
}

func splitStrict(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	i := strings.LastIndexAny(line, " \t")
	if i < 0 {
		return "", "", false
	}
	name := strings.TrimSpace(line[:i])
	if name == "" {
		return "", "", false
	}
	return name, line[i+1:], true
}

func splitLegacy(line string) (string, string, bool) {
	line = strings.Trim(line, " ")
	n := strings.Count(line, " ")
	if n == 0 {
		return "", "", false
	}
	parts := strings.Split(line, strings.Repeat(" ", n))
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
