// Package evaluation runs the post-validation workflows on the best model of
// a rebuilt parameter table: a single replay, the score distribution of
// repeated replays, and the complete evaluation of saved simulator states.
package evaluation

import (
	"context"
	"fmt"

	"github.com/signalnine/replaybench/internal/params"
	"github.com/signalnine/replaybench/internal/scoring"
	"github.com/signalnine/replaybench/internal/simulator"
	"github.com/signalnine/replaybench/internal/trial"
)

// DefaultKey selects on the replay mean written by a validation sweep.
const DefaultKey = "replay_mean"

// Scorer runs the external scoring script against a working directory.
type Scorer interface {
	Run(ctx context.Context, workDir string, extra ...string) ([]byte, error)
	Score(ctx context.Context, workDir string, extra ...string) (scoring.Metrics, error)
}

var _ Scorer = (*scoring.Scorer)(nil)

// Best loads the table at path and returns its set with the smallest key.
func Best(path, key string) (*params.Set, error) {
	if key == "" {
		key = DefaultKey
	}
	t, err := params.Load(path)
	if err != nil {
		return nil, err
	}
	best, err := params.SelectBest(t.Sets, key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Path, err)
	}
	return best, nil
}

// RunBest replays set once. The caller configures the simulator to save
// its outputs and states into the working directory.
func RunBest(ctx context.Context, sim trial.Simulator, set *params.Set) (*simulator.Result, error) {
	res, err := sim.Run(ctx, set)
	if err != nil {
		return nil, fmt.Errorf("running best model: %w", err)
	}
	return res, nil
}

// RepError identifies the repetition a workflow stopped at. Rows of earlier
// repetitions are on disk.
type RepError struct {
	Rep  int
	Reps int
	Err  error
}

func (e *RepError) Error() string {
	return fmt.Sprintf("repetition %d/%d: %v", e.Rep, e.Reps, e.Err)
}

func (e *RepError) Unwrap() error { return e.Err }
