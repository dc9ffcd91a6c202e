package evaluation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/signalnine/replaybench/internal/params"
	"github.com/signalnine/replaybench/internal/result"
	"github.com/signalnine/replaybench/internal/scoring"
	"github.com/signalnine/replaybench/internal/simulator"
	"github.com/signalnine/replaybench/internal/trial"
)

const ScoreDistributionFile = "score_distribution.txt"

// ScoreDistributionColumns is the header of the score distribution: the
// repetition, the simulator metrics, then the scoring metrics.
var ScoreDistributionColumns = append(append([]string{"REP"}, simulator.MetricNames...), scoring.EvaluationMetrics...)

type Options struct {
	// Reps is the number of repetitions.
	Reps int
	// WorkDir receives the simulator outputs and is handed to the scoring
	// script.
	WorkDir string
	// OutDir receives the artifact.
	OutDir     string
	SyncWrites bool
	// Progress is called before each repetition.
	Progress func(rep, reps int)
}

// Evaluate replays set opts.Reps times, scores the saved outputs after each
// replay and appends one row per repetition to the score distribution. It
// returns the artifact path.
func Evaluate(ctx context.Context, sim trial.Simulator, scorer Scorer, set *params.Set, opts Options) (path string, err error) {
	if opts.Reps < 1 {
		return "", fmt.Errorf("evaluation reps must be positive, got %d", opts.Reps)
	}
	out, err := result.CreateArtifact(opts.OutDir, ScoreDistributionFile, strings.Join(ScoreDistributionColumns, " "), opts.SyncWrites)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", out.Path, cerr)
		}
	}()

	for i := 1; i <= opts.Reps; i++ {
		if opts.Progress != nil {
			opts.Progress(i, opts.Reps)
		}
		row, err := evaluateOnce(ctx, sim, scorer, set, opts.WorkDir)
		if err != nil {
			return out.Path, &RepError{Rep: i, Reps: opts.Reps, Err: err}
		}
		if err := out.WriteRow(append([]string{strconv.Itoa(i)}, row...)...); err != nil {
			return out.Path, err
		}
	}
	return out.Path, nil
}

func evaluateOnce(ctx context.Context, sim trial.Simulator, scorer Scorer, set *params.Set, workDir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := sim.Run(ctx, set)
	if err != nil {
		return nil, err
	}
	metrics, err := scorer.Score(ctx, workDir)
	if err != nil {
		return nil, fmt.Errorf("scoring: %w", err)
	}
	scores, err := metrics.Require(scoring.EvaluationMetrics...)
	if err != nil {
		return nil, err
	}
	var row []string
	for _, v := range append(res.Values(), scores...) {
		row = append(row, result.FormatFloat(v))
	}
	return row, nil
}
