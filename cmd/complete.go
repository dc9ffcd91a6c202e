package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/signalnine/replaybench/internal/evaluation"
	"github.com/signalnine/replaybench/internal/result"
)

var (
	completeSim        simFlags
	flagCompleteTable  string
	flagCompleteKey    string
	flagCompleteScript string
	flagScoreReps      int
	flagNbParams       int
	flagCompleteFormat string
)

func newCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Run the complete evaluation of the best validated model",
		Long: "Replay the best model of --validation --score-reps times, saving all states. After " +
			"each replay the complete evaluation script writes complete_evaluation.txt, which is " +
			"appended to complete_evaluation_all.txt.",
		Args: cobra.NoArgs,
		RunE: runComplete,
	}
	completeSim.register(cmd)
	cmd.Flags().StringVar(&flagCompleteTable, "validation", "", "rebuilt parameter table written by validate")
	cmd.Flags().StringVar(&flagCompleteKey, "key", "", "field selecting the best model (default replay_mean)")
	cmd.Flags().StringVar(&flagCompleteScript, "model-score", "", "complete evaluation script")
	cmd.Flags().IntVar(&flagScoreReps, "score-reps", 0, "number of score repetitions")
	cmd.Flags().IntVar(&flagNbParams, "nb-params", 0, "number of optimized parameters")
	cmd.Flags().StringVar(&flagCompleteFormat, "score-format", "", "scoring output format (strict, legacy)")
	return cmd
}

func runComplete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if flagCompleteFormat != "" {
		cfg.Scoring.Format = flagCompleteFormat
	}
	if err := completeSim.apply(cfg); err != nil {
		return err
	}
	if flagCompleteScript != "" {
		cfg.Scoring.CompleteScript = flagCompleteScript
	}
	if flagScoreReps > 0 {
		cfg.Evaluation.ScoreReps = flagScoreReps
	}
	if flagNbParams > 0 {
		cfg.Evaluation.NbParams = flagNbParams
	}
	if cfg.Evaluation.ScoreReps < 1 {
		return fmt.Errorf("score reps must be positive, got %d", cfg.Evaluation.ScoreReps)
	}
	if cfg.Evaluation.NbParams < 1 {
		return fmt.Errorf("number of optimized parameters must be positive, got %d", cfg.Evaluation.NbParams)
	}
	scorer, err := newScorer(cfg, cfg.Scoring.CompleteScript)
	if err != nil {
		return err
	}
	best, err := selectBest(cfg, flagCompleteTable, flagCompleteKey)
	if err != nil {
		return err
	}

	runDir, err := prepareRunDir(cfg, completeSim.out)
	if err != nil {
		return err
	}
	sim, master, err := newSimulator(cfg, runDir, true, true)
	if err != nil {
		return err
	}
	fmt.Printf("Run directory: %s\n", runDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := result.NewManifest("complete", map[string]string{
		"validation":  flagCompleteTable,
		"input":       cfg.Simulator.InputDir,
		"model-run":   cfg.Simulator.Executable,
		"model-score": scorer.Script,
		"model-reps":  strconv.Itoa(cfg.Simulator.Reps),
		"score-reps":  strconv.Itoa(cfg.Evaluation.ScoreReps),
		"nb-params":   strconv.Itoa(cfg.Evaluation.NbParams),
		"key":         cfg.Evaluation.Key,
	})
	m.MasterSeed = master
	return recordRun(runDir, m, func() ([]string, error) {
		path, err := evaluation.Complete(ctx, sim, scorer, best, evaluation.CompleteOptions{
			Options: evaluation.Options{
				Reps:       cfg.Evaluation.ScoreReps,
				WorkDir:    runDir,
				OutDir:     runDir,
				SyncWrites: cfg.Validation.SyncWrites,
				Progress: func(rep, reps int) {
					logrus.Infof("repetition %d/%d", rep, reps)
				},
			},
			NbParams: cfg.Evaluation.NbParams,
		})
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, err
		}
		return []string{path}, err
	})
}
