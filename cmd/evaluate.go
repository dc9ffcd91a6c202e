package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/signalnine/replaybench/internal/config"
	"github.com/signalnine/replaybench/internal/evaluation"
	"github.com/signalnine/replaybench/internal/result"
	"github.com/signalnine/replaybench/internal/scoring"
)

var (
	evalSim         simFlags
	flagEvalTable   string
	flagEvalKey     string
	flagEvalScript  string
	flagEvalReps    int
	flagScoreFormat string
)

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Build the score distribution of the best validated model",
		Long: "Replay the best model of --validation --eval-reps times. After each replay the " +
			"evaluation script scores the saved outputs and a row is appended to score_distribution.txt.",
		Args: cobra.NoArgs,
		RunE: runEvaluate,
	}
	evalSim.register(cmd)
	cmd.Flags().StringVar(&flagEvalTable, "validation", "", "rebuilt parameter table written by validate")
	cmd.Flags().StringVar(&flagEvalKey, "key", "", "field selecting the best model (default replay_mean)")
	cmd.Flags().StringVar(&flagEvalScript, "model-eval", "", "evaluation script")
	cmd.Flags().IntVar(&flagEvalReps, "eval-reps", 0, "number of evaluation repetitions")
	cmd.Flags().StringVar(&flagScoreFormat, "score-format", "", "scoring output format (strict, legacy)")
	return cmd
}

// newScorer checks script and returns a scorer running it with the
// configured interpreter.
func newScorer(cfg *config.Config, script string) (*scoring.Scorer, error) {
	if script == "" {
		return nil, fmt.Errorf("a scoring script is required")
	}
	if err := config.CheckFile("scoring script", script); err != nil {
		return nil, err
	}
	abs, err := absPath(script)
	if err != nil {
		return nil, fmt.Errorf("resolving scoring script: %w", err)
	}
	return &scoring.Scorer{
		Interpreter: cfg.Scoring.Interpreter,
		Script:      abs,
		Format:      scoring.Format(cfg.Scoring.Format),
	}, nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if flagScoreFormat != "" {
		cfg.Scoring.Format = flagScoreFormat
	}
	if err := evalSim.apply(cfg); err != nil {
		return err
	}
	if flagEvalScript != "" {
		cfg.Scoring.EvaluateScript = flagEvalScript
	}
	if flagEvalReps > 0 {
		cfg.Evaluation.Reps = flagEvalReps
	}
	if cfg.Evaluation.Reps < 1 {
		return fmt.Errorf("evaluation reps must be positive, got %d", cfg.Evaluation.Reps)
	}
	scorer, err := newScorer(cfg, cfg.Scoring.EvaluateScript)
	if err != nil {
		return err
	}
	best, err := selectBest(cfg, flagEvalTable, flagEvalKey)
	if err != nil {
		return err
	}

	runDir, err := prepareRunDir(cfg, evalSim.out)
	if err != nil {
		return err
	}
	sim, master, err := newSimulator(cfg, runDir, true, false)
	if err != nil {
		return err
	}
	fmt.Printf("Run directory: %s\n", runDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := result.NewManifest("evaluate", map[string]string{
		"validation": flagEvalTable,
		"input":      cfg.Simulator.InputDir,
		"model-run":  cfg.Simulator.Executable,
		"model-eval": scorer.Script,
		"model-reps": strconv.Itoa(cfg.Simulator.Reps),
		"eval-reps":  strconv.Itoa(cfg.Evaluation.Reps),
		"key":        cfg.Evaluation.Key,
	})
	m.MasterSeed = master
	return recordRun(runDir, m, func() ([]string, error) {
		path, err := evaluation.Evaluate(ctx, sim, scorer, best, evaluation.Options{
			Reps:       cfg.Evaluation.Reps,
			WorkDir:    runDir,
			OutDir:     runDir,
			SyncWrites: cfg.Validation.SyncWrites,
			Progress: func(rep, reps int) {
				logrus.Infof("repetition %d/%d", rep, reps)
			},
		})
		if path == "" {
			return nil, err
		}
		return []string{path}, err
	})
}
