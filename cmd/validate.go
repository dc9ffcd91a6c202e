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
	"github.com/signalnine/replaybench/internal/result"
	"github.com/signalnine/replaybench/internal/validation"
)

var (
	validateSim    simFlags
	flagModels     string
	flagValReps    int
	flagValRange   int
	flagValKey     string
	flagSyncWrites bool
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Replay the best-scoring parameter sets and rebuild the table",
		Long: "Group the parameter sets of --models by optimizer score, replay every set of the " +
			"best --validation-range groups --validation-reps times and write estimations_all.txt, " +
			"estimations_mean.txt and rebuilt_list_of_parameter_sets.txt.",
		Args: cobra.NoArgs,
		RunE: runValidate,
	}
	validateSim.register(cmd)
	cmd.Flags().StringVar(&flagModels, "models", "", "parameter table to validate")
	cmd.Flags().IntVar(&flagValReps, "validation-reps", 0, "trials per parameter set")
	cmd.Flags().IntVar(&flagValRange, "validation-range", 0, "number of distinct scores to replay, best first")
	cmd.Flags().StringVar(&flagValKey, "key", "", "field to group and order by (default score)")
	cmd.Flags().BoolVar(&flagSyncWrites, "sync", false, "fsync every artifact row")
	return cmd
}

func applyValidationFlags(cfg *config.Config) error {
	v := &cfg.Validation
	if flagValReps > 0 {
		v.Reps = flagValReps
	}
	if flagValRange > 0 {
		v.Range = flagValRange
	}
	if flagValKey != "" {
		v.Key = flagValKey
	}
	if flagSyncWrites {
		v.SyncWrites = true
	}
	if flagModels == "" {
		return fmt.Errorf("--models is required")
	}
	if err := config.CheckFile("parameter table", flagModels); err != nil {
		return err
	}
	if v.Reps < 1 {
		return fmt.Errorf("validation reps must be positive, got %d", v.Reps)
	}
	if v.Range < 1 {
		return fmt.Errorf("validation range must be positive, got %d", v.Range)
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := validateSim.apply(cfg); err != nil {
		return err
	}
	if err := applyValidationFlags(cfg); err != nil {
		return err
	}

	sim, master, err := newSimulator(cfg, "", false, false)
	if err != nil {
		return err
	}
	driver := validation.NewDriver(sim, validation.Options{
		Key:        cfg.Validation.Key,
		Range:      cfg.Validation.Range,
		Reps:       cfg.Validation.Reps,
		SyncWrites: cfg.Validation.SyncWrites,
		Progress: func(p validation.Progress) {
			logrus.Infof("%.1f%% | score %s (%d/%d) | set %d/%d",
				p.Percent, p.Key, p.Group, p.Range, p.Set, p.GroupSize)
		},
	})
	// The table is checked before anything is written.
	if err := driver.Load(flagModels); err != nil {
		return err
	}
	runDir, err := prepareRunDir(cfg, validateSim.out)
	if err != nil {
		return err
	}
	sim.Options.WorkDir = runDir
	driver.SetOutDir(runDir)

	fmt.Printf("Run directory: %s\n", runDir)
	fmt.Printf("Replaying %d of %d distinct scores, %d trials per set\n",
		cfg.Validation.Range, len(driver.Groups()), cfg.Validation.Reps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := result.NewManifest("validate", map[string]string{
		"models":           flagModels,
		"input":            cfg.Simulator.InputDir,
		"model-run":        cfg.Simulator.Executable,
		"model-reps":       strconv.Itoa(cfg.Simulator.Reps),
		"validation-reps":  strconv.Itoa(cfg.Validation.Reps),
		"validation-range": strconv.Itoa(cfg.Validation.Range),
		"key":              cfg.Validation.Key,
	})
	m.MasterSeed = master
	return recordRun(runDir, m, func() ([]string, error) {
		rep, err := driver.Run(ctx)
		if rep == nil {
			return nil, err
		}
		if err == nil {
			fmt.Printf("Replayed %d sets in %d groups (%d trials)\n", rep.Sets, rep.Groups, rep.Trials)
		}
		return rep.Artifacts, err
	})
}
