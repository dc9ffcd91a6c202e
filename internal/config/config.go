package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalnine/replaybench/internal/scoring"
	"github.com/signalnine/replaybench/internal/simulator"
)

// Simulator backends.
const (
	BackendExec   = "exec"
	BackendDocker = "docker"
)

type Config struct {
	Simulator  Simulator  `yaml:"simulator"`
	Scoring    Scoring    `yaml:"scoring"`
	Validation Validation `yaml:"validation"`
	Evaluation Evaluation `yaml:"evaluation"`
	Results    Results    `yaml:"results"`
	// Seed makes the per-invocation seeds reproducible. Zero seeds from the
	// clock.
	Seed     int64  `yaml:"seed"`
	LogLevel string `yaml:"log_level"`
}

type Simulator struct {
	Executable string `yaml:"executable"`
	// InputDir holds map.txt, network.txt and sample.txt.
	InputDir string `yaml:"input_dir"`
	// Reps is forwarded as -reps to every invocation.
	Reps    int           `yaml:"reps"`
	Timeout time.Duration `yaml:"timeout"`
	// EnvFile is a dotenv file whose variables are added to the simulator
	// environment.
	EnvFile string `yaml:"env_file"`
	Backend string `yaml:"backend"`
	Docker  Docker `yaml:"docker"`
}

type Docker struct {
	Image string `yaml:"image"`
	// MountExecutable bind-mounts the host executable into the container.
	MountExecutable bool    `yaml:"mount_executable"`
	CPULimit        float64 `yaml:"cpu_limit"`
	MemoryLimit     int64   `yaml:"memory_limit"`
}

type Scoring struct {
	Interpreter    string `yaml:"interpreter"`
	EvaluateScript string `yaml:"evaluate_script"`
	CompleteScript string `yaml:"complete_script"`
	Format         string `yaml:"format"`
}

type Validation struct {
	Key        string `yaml:"key"`
	Range      int    `yaml:"range"`
	Reps       int    `yaml:"reps"`
	SyncWrites bool   `yaml:"sync_writes"`
}

type Evaluation struct {
	Key       string `yaml:"key"`
	Reps      int    `yaml:"reps"`
	ScoreReps int    `yaml:"score_reps"`
	NbParams  int    `yaml:"nb_params"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadOrDefault loads path, falling back to Default when path does not
// exist and was not asked for explicitly.
func LoadOrDefault(path string, explicit bool) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !explicit {
		return Default(), nil
	}
	return Load(path)
}

// Validate fills defaults and checks the values that do not depend on the
// workflow. Counts left at zero are checked by the workflow that needs them.
func (c *Config) Validate() error {
	applyDefaults(c)
	switch c.Simulator.Backend {
	case BackendExec:
	case BackendDocker:
		if c.Simulator.Docker.Image == "" {
			return fmt.Errorf("simulator.docker.image is required for the docker backend")
		}
	default:
		return fmt.Errorf("simulator.backend: unknown backend %q", c.Simulator.Backend)
	}
	switch scoring.Format(c.Scoring.Format) {
	case scoring.FormatStrict, scoring.FormatLegacy:
	default:
		return fmt.Errorf("scoring.format: unknown format %q", c.Scoring.Format)
	}
	if c.Simulator.Reps < 0 || c.Validation.Reps < 0 || c.Validation.Range < 0 ||
		c.Evaluation.Reps < 0 || c.Evaluation.ScoreReps < 0 || c.Evaluation.NbParams < 0 {
		return fmt.Errorf("counts must not be negative")
	}
	if c.Simulator.Timeout < 0 {
		return fmt.Errorf("simulator.timeout must not be negative")
	}
	return nil
}

func applyDefaults(c *Config) {
	if c.Simulator.Backend == "" {
		c.Simulator.Backend = BackendExec
	}
	if c.Scoring.Interpreter == "" {
		c.Scoring.Interpreter = "Rscript"
	}
	if c.Scoring.Format == "" {
		c.Scoring.Format = string(scoring.FormatStrict)
	}
	if c.Validation.Key == "" {
		c.Validation.Key = "score"
	}
	if c.Evaluation.Key == "" {
		c.Evaluation.Key = "replay_mean"
	}
	if c.Results.Dir == "" {
		c.Results.Dir = "results"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// CheckSimulator verifies that the simulator is fully configured and that
// its input resources exist.
func (c *Config) CheckSimulator() error {
	s := &c.Simulator
	if s.Executable == "" {
		return fmt.Errorf("simulator executable is required")
	}
	if s.InputDir == "" {
		return fmt.Errorf("simulator input directory is required")
	}
	if s.Reps < 1 {
		return fmt.Errorf("simulator reps must be positive, got %d", s.Reps)
	}
	if s.Backend == BackendExec || s.Docker.MountExecutable {
		if err := CheckFile("simulator executable", s.Executable); err != nil {
			return err
		}
	}
	opts := simulator.Options{InputDir: s.InputDir}
	for _, path := range opts.InputFiles() {
		if err := CheckFile("input file", path); err != nil {
			return err
		}
	}
	if s.EnvFile != "" {
		if err := CheckFile("simulator env file", s.EnvFile); err != nil {
			return err
		}
	}
	return nil
}

// CheckFile reports a missing or non-regular file.
func CheckFile(what, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s %s does not exist", what, path)
		}
		return fmt.Errorf("%s %s: %w", what, path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s %s is not a regular file", what, path)
	}
	return nil
}
