package simulator

import (
	"fmt"
	"strconv"
	"strings"
)

// Metric names of a simulator result line, in output order.
var MetricNames = []string{"likelihood", "empty_likelihood", "max_likelihood", "empty_score", "score"}

// Result is the outcome of one simulator invocation.
type Result struct {
	Likelihood      float64
	EmptyLikelihood float64
	MaxLikelihood   float64
	EmptyScore      float64
	Score           float64
	Seed            int64
}

// Values returns the metrics in MetricNames order.
func (r *Result) Values() []float64 {
	return []float64{r.Likelihood, r.EmptyLikelihood, r.MaxLikelihood, r.EmptyScore, r.Score}
}

// ParseOutput reads the first non-blank line of the simulator output:
// likelihood, empty_likelihood, max_likelihood, empty_score, score.
func ParseOutput(text string) (*Result, error) {
	var line string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}
	fields := strings.Fields(line)
	if len(fields) < len(MetricNames) {
		return nil, &OutputFormatError{
			Output: text,
			Reason: fmt.Sprintf("expected %d values, got %d", len(MetricNames), len(fields)),
		}
	}
	vals := make([]float64, len(MetricNames))
	for i := range MetricNames {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, &OutputFormatError{
				Output: text,
				Reason: fmt.Sprintf("%s: %q is not a number", MetricNames[i], fields[i]),
			}
		}
		vals[i] = v
	}
	return &Result{
		Likelihood:      vals[0],
		EmptyLikelihood: vals[1],
		MaxLikelihood:   vals[2],
		EmptyScore:      vals[3],
		Score:           vals[4],
	}, nil
}
