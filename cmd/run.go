package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/signalnine/replaybench/internal/config"
	"github.com/signalnine/replaybench/internal/evaluation"
	"github.com/signalnine/replaybench/internal/params"
	"github.com/signalnine/replaybench/internal/result"
	"github.com/signalnine/replaybench/internal/simulator"
)

var (
	runSim        simFlags
	flagRunTable  string
	flagSelectKey string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay the best validated model once, saving its outputs and states",
		Args:  cobra.NoArgs,
		RunE:  runBestModel,
	}
	runSim.register(cmd)
	cmd.Flags().StringVar(&flagRunTable, "validation", "", "rebuilt parameter table written by validate")
	cmd.Flags().StringVar(&flagSelectKey, "key", "", "field selecting the best model (default replay_mean)")
	return cmd
}

// selectBest checks the rebuilt table and returns its best set.
func selectBest(cfg *config.Config, table, key string) (*params.Set, error) {
	if key != "" {
		cfg.Evaluation.Key = key
	}
	if table == "" {
		return nil, fmt.Errorf("--validation is required")
	}
	if err := config.CheckFile("validated parameter table", table); err != nil {
		return nil, err
	}
	return evaluation.Best(table, cfg.Evaluation.Key)
}

func runBestModel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := runSim.apply(cfg); err != nil {
		return err
	}
	best, err := selectBest(cfg, flagRunTable, flagSelectKey)
	if err != nil {
		return err
	}
	runDir, err := prepareRunDir(cfg, runSim.out)
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

	m := result.NewManifest("run", map[string]string{
		"validation": flagRunTable,
		"input":      cfg.Simulator.InputDir,
		"model-run":  cfg.Simulator.Executable,
		"model-reps": strconv.Itoa(cfg.Simulator.Reps),
		"key":        cfg.Evaluation.Key,
	})
	m.MasterSeed = master
	return recordRun(runDir, m, func() ([]string, error) {
		res, err := evaluation.RunBest(ctx, sim, best)
		if err != nil {
			return nil, err
		}
		printResult(res)
		return nil, nil
	})
}

func printResult(res *simulator.Result) {
	for i, v := range res.Values() {
		fmt.Printf("%-17s %s\n", simulator.MetricNames[i], result.FormatFloat(v))
	}
	fmt.Printf("%-17s %d\n", "seed", res.Seed)
}
