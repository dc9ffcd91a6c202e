package trial

import (
	"context"
	"fmt"

	"github.com/signalnine/replaybench/internal/params"
	"github.com/signalnine/replaybench/internal/simulator"
)

// Simulator runs one stochastic trial of a parameter set.
type Simulator interface {
	Run(ctx context.Context, set *params.Set) (*simulator.Result, error)
}

// Summary aggregates the trials of one parameter set.
type Summary struct {
	Score           RunningStatistic
	EmptyLikelihood RunningStatistic
	MaxLikelihood   RunningStatistic
	// Scores holds the raw score of every trial, in order.
	Scores []float64
}

// Error identifies the trial that aborted a batch.
type Error struct {
	Trial int
	Reps  int
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("trial %d/%d: %v", e.Trial, e.Reps, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Run executes reps sequential trials of set. onTrial, when non-nil, is
// called after each successful trial with its 1-based index so the caller
// can persist the raw result before the next trial starts. The first
// failure aborts the batch: a missing trial would bias the variance.
func Run(ctx context.Context, sim Simulator, set *params.Set, reps int, onTrial func(i int, r *simulator.Result) error) (*Summary, error) {
	sum := &Summary{Scores: make([]float64, 0, reps)}
	for i := 1; i <= reps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, &Error{Trial: i, Reps: reps, Err: err}
		}
		res, err := sim.Run(ctx, set)
		if err != nil {
			return nil, &Error{Trial: i, Reps: reps, Err: err}
		}
		sum.Score.Add(res.Score)
		sum.EmptyLikelihood.Add(res.EmptyLikelihood)
		sum.MaxLikelihood.Add(res.MaxLikelihood)
		sum.Scores = append(sum.Scores, res.Score)
		if onTrial != nil {
			if err := onTrial(i, res); err != nil {
				return nil, &Error{Trial: i, Reps: reps, Err: err}
			}
		}
	}
	return sum, nil
}
