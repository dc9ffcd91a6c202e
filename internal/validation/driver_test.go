package validation_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/replaybench/internal/params"
	"github.com/signalnine/replaybench/internal/simulator"
	"github.com/signalnine/replaybench/internal/trial"
	"github.com/signalnine/replaybench/internal/validation"
)

// stubSim answers every trial with outputs[call % len(outputs)], except for
// call failAt (1-based), which returns failOutput.
type stubSim struct {
	outputs    []string
	failAt     int
	failOutput string
	calls      int
	seen       []string
}

func (s *stubSim) Run(ctx context.Context, set *params.Set) (*simulator.Result, error) {
	s.calls++
	id, _ := set.Value("a")
	s.seen = append(s.seen, id)
	out := s.outputs[(s.calls-1)%len(s.outputs)]
	if s.failAt == s.calls {
		out = s.failOutput
	}
	return simulator.ParseOutput(out)
}

var _ trial.Simulator = (*stubSim)(nil)

func writeTable(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "list_of_parameter_sets.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestSweepEndToEnd(t *testing.T) {
	out := t.TempDir()
	sim := &stubSim{outputs: []string{"10 1 20 0.5 5.0"}}
	d := validation.NewDriver(sim, validation.Options{Range: 1, Reps: 2, OutDir: out})
	assert.Equal(t, validation.Idle, d.State())

	require.NoError(t, d.Load(writeTable(t, "score a b", "1.0 x y", "2.0 z w")))
	assert.Equal(t, validation.GroupsLoaded, d.State())

	rep, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, validation.Done, d.State())
	assert.Equal(t, &validation.Report{
		Groups: 1, Sets: 1, Trials: 2,
		Artifacts: []string{
			filepath.Join(out, validation.RawTrialsFile),
			filepath.Join(out, validation.MeanFile),
			filepath.Join(out, validation.RebuiltFile),
		},
	}, rep)

	assert.Equal(t, []string{"cmaes replay", "1.0 5.0", "1.0 5.0"}, readLines(t, filepath.Join(out, validation.RawTrialsFile)))
	assert.Equal(t, []string{"cmaes replay_mean replay_var", "1.0 5.0 0.0"}, readLines(t, filepath.Join(out, validation.MeanFile)))
	assert.Equal(t, []string{
		"score a b replay_mean replay_var empty max",
		"1.0 x y 5.0 0.0 1.0 20.0",
	}, readLines(t, filepath.Join(out, validation.RebuiltFile)))

	_, err = d.Run(context.Background())
	assert.Error(t, err, "a finished driver must be loaded again")
}

func TestSweepTiesAreNotMerged(t *testing.T) {
	out := t.TempDir()
	sim := &stubSim{outputs: []string{"0 1 2 0 4", "0 1 2 0 6", "0 3 4 0 10"}}
	d := validation.NewDriver(sim, validation.Options{Range: 1, Reps: 3, OutDir: out})
	require.NoError(t, d.Load(writeTable(t, "score a", "3.14 first", "9 other", "3.14 second")))

	_, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "first", "first", "second", "second", "second"}, sim.seen)

	means := readLines(t, filepath.Join(out, validation.MeanFile))
	require.Len(t, means, 3)
	assert.True(t, strings.HasPrefix(means[1], "3.14 "))
	assert.True(t, strings.HasPrefix(means[2], "3.14 "))

	rebuilt := readLines(t, filepath.Join(out, validation.RebuiltFile))
	require.Len(t, rebuilt, 3)
	assert.True(t, strings.HasPrefix(rebuilt[1], "3.14 first "))
	assert.True(t, strings.HasPrefix(rebuilt[2], "3.14 second "))

	raw := readLines(t, filepath.Join(out, validation.RawTrialsFile))
	assert.Len(t, raw, 1+6)
}

func TestSweepOrderAndRange(t *testing.T) {
	out := t.TempDir()
	sim := &stubSim{outputs: []string{"0 0 0 0 1"}}
	var progress []validation.Progress
	d := validation.NewDriver(sim, validation.Options{
		Range: 2, Reps: 1, OutDir: out,
		Progress: func(p validation.Progress) { progress = append(progress, p) },
	})
	require.NoError(t, d.Load(writeTable(t, "score a", "5 e", "-1 b", "2 c", "-1 d", "10 f")))

	var keys []string
	for _, g := range d.Groups() {
		keys = append(keys, g.Key)
	}
	assert.Equal(t, []string{"-1", "2", "5", "10"}, keys)

	rep, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Groups)
	assert.Equal(t, 3, rep.Sets)
	assert.Equal(t, []string{"b", "d", "c"}, sim.seen)

	require.Len(t, progress, 3)
	assert.Equal(t, validation.Progress{Group: 1, Range: 2, Key: "-1", GroupSize: 2, Set: 2, Percent: 50}, progress[1])
	assert.Equal(t, 100.0, progress[2].Percent)
}

func TestLoadRangeError(t *testing.T) {
	for _, rng := range []int{0, 3} {
		d := validation.NewDriver(&stubSim{}, validation.Options{Range: rng, Reps: 1, OutDir: t.TempDir()})
		err := d.Load(writeTable(t, "score a", "1 x", "1 y", "2 z"))
		var rErr *validation.RangeError
		require.ErrorAs(t, err, &rErr)
		assert.Equal(t, 2, rErr.Available)
		assert.Equal(t, validation.Idle, d.State())
	}
}

func TestLoadErrors(t *testing.T) {
	d := validation.NewDriver(&stubSim{}, validation.Options{Range: 1, Reps: 1})

	var mErr *params.MalformedTableError
	assert.ErrorAs(t, d.Load(writeTable(t, "score a", "1 x y")), &mErr)

	assert.ErrorIs(t, d.Load(writeTable(t, "score a")), params.ErrEmptyTable)

	var fErr *params.FieldError
	assert.ErrorAs(t, d.Load(writeTable(t, "cost a", "1 x")), &fErr)

	_, err := d.Run(context.Background())
	assert.Error(t, err, "run before a successful load")
}

func TestSweepCustomKey(t *testing.T) {
	out := t.TempDir()
	sim := &stubSim{outputs: []string{"0 0 0 0 1"}}
	d := validation.NewDriver(sim, validation.Options{Key: "replay_mean", Range: 1, Reps: 1, OutDir: out})
	require.NoError(t, d.Load(writeTable(t, "score replay_mean a", "1 0.7 x", "2 0.3 y")))
	_, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, sim.seen)
	assert.Equal(t, "0.3 1.0 0.0", readLines(t, filepath.Join(out, validation.MeanFile))[1])
}

func TestSweepFailureKeepsFlushedRows(t *testing.T) {
	out := t.TempDir()
	sim := &stubSim{outputs: []string{"10 1 20 0.5 5.0"}, failAt: 4, failOutput: "10 1 20 0.5"}
	d := validation.NewDriver(sim, validation.Options{Range: 2, Reps: 3, OutDir: out})
	require.NoError(t, d.Load(writeTable(t, "score a", "1.0 x", "2.0 y")))

	rep, err := d.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, validation.Failed, d.State())
	assert.Equal(t, 4, sim.calls, "the sweep stops at the failing trial")

	var fErr *simulator.OutputFormatError
	assert.ErrorAs(t, err, &fErr)
	var sErr *validation.SweepError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, 2, sErr.Group)
	assert.Equal(t, "2.0", sErr.Key)
	var tErr *trial.Error
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, 1, tErr.Trial)
	assert.Contains(t, err.Error(), out)

	assert.Equal(t, 1, rep.Groups)
	assert.Equal(t, []string{"cmaes replay", "1.0 5.0", "1.0 5.0", "1.0 5.0"}, readLines(t, filepath.Join(out, validation.RawTrialsFile)))
	assert.Equal(t, []string{"cmaes replay_mean replay_var", "1.0 5.0 0.0"}, readLines(t, filepath.Join(out, validation.MeanFile)))
	assert.Len(t, readLines(t, filepath.Join(out, validation.RebuiltFile)), 2)
}

func TestSweepFailureMidGroup(t *testing.T) {
	out := t.TempDir()
	sim := &stubSim{outputs: []string{"0 0 0 0 2"}, failAt: 2, failOutput: "0 0 0 0"}
	d := validation.NewDriver(sim, validation.Options{Range: 1, Reps: 3, OutDir: out})
	require.NoError(t, d.Load(writeTable(t, "score a", "1.0 x")))

	_, err := d.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"cmaes replay", "1.0 2.0"}, readLines(t, filepath.Join(out, validation.RawTrialsFile)))
	assert.Equal(t, []string{"cmaes replay_mean replay_var"}, readLines(t, filepath.Join(out, validation.MeanFile)))
	assert.Equal(t, []string{"score a replay_mean replay_var empty max"}, readLines(t, filepath.Join(out, validation.RebuiltFile)))
}

func TestSweepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sim := &stubSim{outputs: []string{"0 0 0 0 1"}}
	d := validation.NewDriver(sim, validation.Options{
		Range: 2, Reps: 2, OutDir: t.TempDir(),
		Progress: func(p validation.Progress) {
			if p.Group == 2 {
				cancel()
			}
		},
	})
	require.NoError(t, d.Load(writeTable(t, "score a", "1 x", "2 y")))
	rep, err := d.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, rep.Groups)
	assert.Equal(t, 2, sim.calls)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "sweeping", validation.Sweeping.String())
	assert.Equal(t, "state(9)", validation.State(9).String())
}
