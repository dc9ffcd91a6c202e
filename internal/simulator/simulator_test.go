package simulator_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/replaybench/internal/params"
	"github.com/signalnine/replaybench/internal/simulator"
)

var fullHeader = []string{
	"score", "typeofdata", "iters", "law", "optimfunc", "humanactivity",
	"xintro", "yintro", "pintro", "lambda", "mu", "sigma", "gamma",
	"w1", "w2", "w3", "w4", "w5", "w6", "wmin",
}

func fullSet(t *testing.T) *params.Set {
	t.Helper()
	s, err := params.NewSet(fullHeader, []string{
		"12.5", "PRESENCE_ONLY", "30", "LOG_NORMAL", "LSS", "YES",
		"0.1", "0.2", "0.3", "1.5", "2.5", "0.7", "0.9",
		"1", "2", "3", "4", "5", "6", "0.01",
	})
	require.NoError(t, err)
	return s
}

func TestBuild(t *testing.T) {
	opts := &simulator.Options{Executable: "/bin/model_run", InputDir: "in", Reps: 7, WorkDir: "/tmp/w"}
	inv, err := simulator.Build(opts, fullSet(t), 4242)
	require.NoError(t, err)

	want := []string{
		"-map", filepath.Join("in", "map.txt"),
		"-network", filepath.Join("in", "network.txt"),
		"-sample", filepath.Join("in", "sample.txt"),
		"-typeofdata", "PRESENCE_ONLY",
		"-seed", "4242",
		"-reps", "7",
		"-iters", "30",
		"-law", "LOG_NORMAL",
		"-optimfunc", "LSS",
		"-humanactivity", "YES",
		"-xintro", "0.1",
		"-yintro", "0.2",
		"-pintro", "0.3",
		"-lambda", "1.5",
		"-mu", "2.5",
		"-sigma", "0.7",
		"-gamma", "0.9",
		"-w1", "1", "-w2", "2", "-w3", "3", "-w4", "4", "-w5", "5", "-w6", "6",
		"-wmin", "0.01",
	}
	assert.Equal(t, want, inv.Args)
	assert.Equal(t, "/bin/model_run", inv.Executable)
	assert.Equal(t, "/tmp/w", inv.Dir)
	assert.EqualValues(t, 4242, inv.Seed)
	assert.True(t, strings.HasPrefix(inv.String(), "/bin/model_run -map "))
}

func TestBuildSaveFlags(t *testing.T) {
	opts := &simulator.Options{Executable: "m", InputDir: ".", Reps: 1, SaveOutputs: true, SaveAllStates: true}
	inv, err := simulator.Build(opts, fullSet(t), 1)
	require.NoError(t, err)
	n := len(inv.Args)
	assert.Equal(t, []string{"-save-outputs", "-save-all-states"}, inv.Args[n-2:])
}

func TestBuildMissingField(t *testing.T) {
	s, err := params.NewSet([]string{"score", "typeofdata"}, []string{"1", "PRESENCE_ONLY"})
	require.NoError(t, err)
	_, err = simulator.Build(&simulator.Options{Executable: "m"}, s, 1)
	var fErr *params.FieldError
	require.ErrorAs(t, err, &fErr)
	assert.Equal(t, "iters", fErr.Field)
}

func TestRandSeedsRange(t *testing.T) {
	seeds := simulator.NewRandSeeds(99)
	for i := 0; i < 10000; i++ {
		s := seeds.Seed()
		require.GreaterOrEqual(t, s, int64(simulator.MinSeed))
		require.Less(t, s, int64(simulator.MaxSeed))
	}
}

func TestRandSeedsReproducible(t *testing.T) {
	a, b := simulator.NewRandSeeds(7), simulator.NewRandSeeds(7)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Seed(), b.Seed())
	}
}

func TestParseOutput(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    []float64
		wantErr bool
	}{
		{"canonical", "10 1 20 0.5 5.0\n", []float64{10, 1, 20, 0.5, 5}, false},
		{"leading blank line", "\n  -1.5e2 2 3 4 5  \n", []float64{-150, 2, 3, 4, 5}, false},
		{"extra tokens ignored", "1 2 3 4 5 6\n", []float64{1, 2, 3, 4, 5}, false},
		{"four tokens", "10 1 20 0.5\n", nil, true},
		{"not a number", "10 1 x 0.5 5\n", nil, true},
		{"empty", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := simulator.ParseOutput(tt.text)
			if tt.wantErr {
				var fErr *simulator.OutputFormatError
				assert.ErrorAs(t, err, &fErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Values())
		})
	}
}

type fakeRunner struct {
	out   string
	err   error
	calls []*simulator.Invocation
}

func (f *fakeRunner) Run(ctx context.Context, inv *simulator.Invocation) ([]byte, error) {
	f.calls = append(f.calls, inv)
	return []byte(f.out), f.err
}

func TestSimulatorRunDrawsFreshSeeds(t *testing.T) {
	runner := &fakeRunner{out: "10 1 20 0.5 5.0\n"}
	sim := simulator.New(&simulator.Options{Executable: "m", Reps: 1}, runner, simulator.NewRandSeeds(3))

	var seeds []int64
	for i := 0; i < 5; i++ {
		res, err := sim.Run(context.Background(), fullSet(t))
		require.NoError(t, err)
		assert.Equal(t, 5.0, res.Score)
		seeds = append(seeds, res.Seed)
	}
	require.Len(t, runner.calls, 5)
	for i, inv := range runner.calls {
		assert.Equal(t, seeds[i], inv.Seed)
	}
}

func TestSimulatorRunPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	sim := simulator.New(&simulator.Options{Executable: "m"}, &fakeRunner{err: boom}, simulator.NewRandSeeds(1))
	_, err := sim.Run(context.Background(), fullSet(t))
	assert.ErrorIs(t, err, boom)

	sim.Runner = &fakeRunner{out: "1 2 3 4\n"}
	_, err = sim.Run(context.Background(), fullSet(t))
	var fErr *simulator.OutputFormatError
	assert.ErrorAs(t, err, &fErr)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "model_run.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestExecRunner(t *testing.T) {
	script := writeScript(t, "echo \"$@\" > args.txt\necho oops >&2\necho '10 1 20 0.5 5.0'\n")
	dir := t.TempDir()
	inv := &simulator.Invocation{Executable: script, Args: []string{"-seed", "12"}, Dir: dir}

	out, err := (&simulator.ExecRunner{}).Run(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, "10 1 20 0.5 5.0\n", string(out))

	args, err := os.ReadFile(filepath.Join(dir, "args.txt"))
	require.NoError(t, err)
	assert.Equal(t, "-seed 12\n", string(args))
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	script := writeScript(t, "echo '10 1 20 0.5 5.0'\necho failed >&2\nexit 3\n")
	_, err := (&simulator.ExecRunner{}).Run(context.Background(), &simulator.Invocation{Executable: script})
	var pErr *simulator.ProcessError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, 3, pErr.ExitCode)
	assert.Contains(t, pErr.Error(), "failed")
}

func TestExecRunnerMissingExecutable(t *testing.T) {
	_, err := (&simulator.ExecRunner{}).Run(context.Background(), &simulator.Invocation{
		Executable: filepath.Join(t.TempDir(), "missing"),
	})
	var pErr *simulator.ProcessError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, -1, pErr.ExitCode)
}

func TestExecRunnerTimeout(t *testing.T) {
	script := writeScript(t, "exec sleep 10\n")
	r := &simulator.ExecRunner{Timeout: 200 * time.Millisecond}
	start := time.Now()
	_, err := r.Run(context.Background(), &simulator.Invocation{Executable: script})
	var pErr *simulator.ProcessError
	require.ErrorAs(t, err, &pErr)
	assert.True(t, pErr.TimedOut)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecRunnerEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "sim.env")
	require.NoError(t, os.WriteFile(envFile, []byte("# comment\nOMP_NUM_THREADS=2\nexport MODEL_TAG=\"abc\"\n"), 0o644))
	env, err := simulator.LoadEnvFile(envFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"MODEL_TAG=abc", "OMP_NUM_THREADS=2"}, env)

	script := writeScript(t, "echo \"$OMP_NUM_THREADS $MODEL_TAG\"\n")
	out, err := (&simulator.ExecRunner{Env: env}).Run(context.Background(), &simulator.Invocation{Executable: script})
	require.NoError(t, err)
	assert.Equal(t, "2 abc\n", string(out))
}

func TestLoadEnvFileMissing(t *testing.T) {
	_, err := simulator.LoadEnvFile(filepath.Join(t.TempDir(), "none.env"))
	assert.Error(t, err)
}
