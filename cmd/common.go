package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/signalnine/replaybench/internal/config"
	"github.com/signalnine/replaybench/internal/docker"
	"github.com/signalnine/replaybench/internal/result"
	"github.com/signalnine/replaybench/internal/simulator"
)

// loadConfig reads the config file and sets up logging. The default config
// path may be absent; an explicit --config must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(cfgFile, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	logrus.SetLevel(lvl)
	return cfg, nil
}

// simFlags are the simulator settings shared by every workflow that replays
// parameter sets. Set flags override the config file.
type simFlags struct {
	input      string
	executable string
	reps       int
	seed       int64
	backend    string
	timeout    time.Duration
	envFile    string
	out        string
}

func (f *simFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.input, "input", "", "directory holding map.txt, network.txt and sample.txt")
	fl.StringVar(&f.executable, "model-run", "", "simulator executable")
	fl.IntVar(&f.reps, "model-reps", 0, "repetitions inside each simulator invocation")
	fl.Int64Var(&f.seed, "seed", 0, "master seed for reproducible seed streams (0 draws one)")
	fl.StringVar(&f.backend, "backend", "", "simulator backend (exec, docker)")
	fl.DurationVar(&f.timeout, "timeout", 0, "per-invocation timeout (0 waits indefinitely)")
	fl.StringVar(&f.envFile, "env-file", "", "dotenv file added to the simulator environment")
	fl.StringVar(&f.out, "out", "", "output directory (default: a new run under results.dir)")
}

func (f *simFlags) apply(cfg *config.Config) error {
	s := &cfg.Simulator
	if f.input != "" {
		s.InputDir = f.input
	}
	if f.executable != "" {
		s.Executable = f.executable
	}
	if f.reps > 0 {
		s.Reps = f.reps
	}
	if f.seed != 0 {
		cfg.Seed = f.seed
	}
	if f.backend != "" {
		s.Backend = f.backend
	}
	if f.timeout > 0 {
		s.Timeout = f.timeout
	}
	if f.envFile != "" {
		s.EnvFile = f.envFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return cfg.CheckSimulator()
}

// newSimulator wires the configured backend. Paths are made absolute since
// the simulator runs inside workDir. It returns the master seed in use.
func newSimulator(cfg *config.Config, workDir string, saveOutputs, saveAllStates bool) (*simulator.Simulator, int64, error) {
	s := cfg.Simulator
	inputDir, err := filepath.Abs(s.InputDir)
	if err != nil {
		return nil, 0, fmt.Errorf("resolving input dir: %w", err)
	}
	executable := s.Executable
	if (s.Backend == config.BackendExec || s.Docker.MountExecutable) && strings.ContainsRune(executable, os.PathSeparator) {
		if executable, err = filepath.Abs(executable); err != nil {
			return nil, 0, fmt.Errorf("resolving executable: %w", err)
		}
	}

	var env []string
	if s.EnvFile != "" {
		if env, err = simulator.LoadEnvFile(s.EnvFile); err != nil {
			return nil, 0, err
		}
	}

	var runner simulator.Runner
	switch s.Backend {
	case config.BackendDocker:
		runner = &docker.SimulatorRunner{
			Image:           s.Docker.Image,
			InputDir:        inputDir,
			MountExecutable: s.Docker.MountExecutable,
			Env:             env,
			Timeout:         s.Timeout,
			CPULimit:        s.Docker.CPULimit,
			MemoryLimit:     s.Docker.MemoryLimit,
			UserID:          fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
		}
	default:
		runner = &simulator.ExecRunner{Timeout: s.Timeout, Env: env}
	}

	master := cfg.Seed
	if master == 0 {
		master = time.Now().UnixNano()
	}
	opts := &simulator.Options{
		Executable:    executable,
		InputDir:      inputDir,
		Reps:          s.Reps,
		WorkDir:       workDir,
		SaveOutputs:   saveOutputs,
		SaveAllStates: saveAllStates,
	}
	logrus.Debugf("simulator backend %s, master seed %d", s.Backend, master)
	return simulator.New(opts, runner, simulator.NewRandSeeds(master)), master, nil
}

// prepareRunDir returns out, created if needed, or a fresh run directory
// under the results dir.
func prepareRunDir(cfg *config.Config, out string) (string, error) {
	if out == "" {
		return result.CreateRunDir(cfg.Results.Dir)
	}
	abs, err := filepath.Abs(out)
	if err != nil {
		return "", fmt.Errorf("resolving output dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	return abs, nil
}

// recordRun writes a running manifest, executes fn, then records its outcome
// and artifacts. The workflow error wins over a manifest write error.
func recordRun(runDir string, m *result.Manifest, fn func() ([]string, error)) error {
	if err := result.WriteManifest(runDir, m); err != nil {
		return err
	}
	artifacts, runErr := fn()
	for _, a := range artifacts {
		if rel, err := filepath.Rel(runDir, a); err == nil {
			a = rel
		}
		m.Artifacts = append(m.Artifacts, a)
	}
	m.Finish(runErr)
	if err := result.WriteManifest(runDir, m); err != nil {
		if runErr != nil {
			logrus.Warnf("writing manifest: %v", err)
			return runErr
		}
		return err
	}
	return runErr
}

// absPath resolves a script path; an empty path stays empty.
func absPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return filepath.Abs(path)
}
