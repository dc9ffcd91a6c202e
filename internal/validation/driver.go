package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/signalnine/replaybench/internal/params"
	"github.com/signalnine/replaybench/internal/result"
	"github.com/signalnine/replaybench/internal/simulator"
	"github.com/signalnine/replaybench/internal/trial"
)

// DefaultKey is the optimizer score field of a CMA-ES parameter table.
const DefaultKey = "score"

type State int

const (
	Idle State = iota
	GroupsLoaded
	Sweeping
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case GroupsLoaded:
		return "groups-loaded"
	case Sweeping:
		return "sweeping"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Options struct {
	// Key is the field parameter sets are grouped and ordered by.
	Key string
	// Range is the number of distinct scores to sweep, best first.
	Range int
	// Reps is the number of trials per parameter set.
	Reps   int
	OutDir string
	// SyncWrites fsyncs every artifact row.
	SyncWrites bool
	// Progress is called before each parameter set is replayed.
	Progress func(Progress)
}

type Progress struct {
	Group     int
	Range     int
	Key       string
	GroupSize int
	Set       int
	Percent   float64
}

// Report summarises a completed sweep.
type Report struct {
	Groups    int
	Sets      int
	Trials    int
	Artifacts []string
}

// RangeError reports a sweep wider than the number of distinct scores.
type RangeError struct {
	Requested int
	Available int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("validation range %d is outside [1, %d distinct scores]", e.Requested, e.Available)
}

// SweepError locates the parameter set a sweep stopped at. Groups before
// Group completed and their rows are on disk.
type SweepError struct {
	Group     int
	Key       string
	Set       int
	GroupSize int
	OutDir    string
	Err       error
}

func (e *SweepError) Error() string {
	return fmt.Sprintf("sweep in %s stopped at group %d (score %s, set %d/%d): %v",
		e.OutDir, e.Group, e.Key, e.Set, e.GroupSize, e.Err)
}

func (e *SweepError) Unwrap() error { return e.Err }

// Driver replays the best-scoring groups of a parameter table. A driver
// sweeps once; load again to start over.
type Driver struct {
	opts   Options
	sim    trial.Simulator
	state  State
	table  *params.Table
	groups []*params.Group
}

func NewDriver(sim trial.Simulator, opts Options) *Driver {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	return &Driver{opts: opts, sim: sim}
}

func (d *Driver) State() State { return d.state }

// SetOutDir changes where the next sweep writes its artifacts. An empty dir
// is the current directory.
func (d *Driver) SetOutDir(dir string) { d.opts.OutDir = dir }

// Groups returns the distinct-score groups in sweep order.
func (d *Driver) Groups() []*params.Group { return d.groups }

// Load reads the parameter table at path and prepares the sweep.
func (d *Driver) Load(path string) error {
	t, err := params.Load(path)
	if err != nil {
		return err
	}
	return d.LoadTable(t)
}

func (d *Driver) LoadTable(t *params.Table) error {
	if d.state == Sweeping {
		return errors.New("cannot load while sweeping")
	}
	d.state, d.table, d.groups = Idle, nil, nil

	if len(t.Sets) == 0 {
		return fmt.Errorf("%s: %w", t.Path, params.ErrEmptyTable)
	}
	groups, err := params.GroupByKey(t.Sets, d.opts.Key)
	if err != nil {
		return fmt.Errorf("%s: %w", t.Path, err)
	}
	params.SortGroups(groups)
	if d.opts.Range < 1 || d.opts.Range > len(groups) {
		return &RangeError{Requested: d.opts.Range, Available: len(groups)}
	}
	d.table, d.groups, d.state = t, groups, GroupsLoaded
	return nil
}

// Run sweeps the first Range groups. Every parameter set of a group gets its
// own trial batch and its own summary rows.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	if d.state != GroupsLoaded {
		return nil, fmt.Errorf("cannot run sweep in state %s", d.state)
	}
	if d.opts.Reps < 1 {
		return nil, fmt.Errorf("validation reps must be positive, got %d", d.opts.Reps)
	}
	d.state = Sweeping

	rep, err := d.sweep(ctx)
	if err != nil {
		d.state = Failed
		return rep, err
	}
	d.state = Done
	return rep, nil
}

func (d *Driver) sweep(ctx context.Context) (rep *Report, err error) {
	var raw, mean, rebuilt *result.Artifact
	defer func() {
		for _, a := range []*result.Artifact{raw, mean, rebuilt} {
			if cerr := a.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("closing %s: %w", a.Path, cerr)
			}
		}
	}()

	syncWrites := d.opts.SyncWrites
	if raw, err = result.CreateArtifact(d.opts.OutDir, RawTrialsFile, RawTrialsHeader, syncWrites); err != nil {
		return nil, err
	}
	if mean, err = result.CreateArtifact(d.opts.OutDir, MeanFile, MeanHeader, syncWrites); err != nil {
		return nil, err
	}
	rebuiltHeader := append(append([]string{}, d.table.Header...), RebuiltColumns...)
	if rebuilt, err = result.CreateArtifact(d.opts.OutDir, RebuiltFile, strings.Join(rebuiltHeader, " "), syncWrites); err != nil {
		return nil, err
	}

	rep = &Report{Artifacts: []string{raw.Path, mean.Path, rebuilt.Path}}
	for i := 0; i < d.opts.Range; i++ {
		g := d.groups[i]
		for j, set := range g.Sets {
			if d.opts.Progress != nil {
				d.opts.Progress(Progress{
					Group:     i + 1,
					Range:     d.opts.Range,
					Key:       g.Key,
					GroupSize: len(g.Sets),
					Set:       j + 1,
					Percent:   float64(i+1) / float64(d.opts.Range) * 100,
				})
			}
			fail := func(err error) error {
				return &SweepError{Group: i + 1, Key: g.Key, Set: j + 1, GroupSize: len(g.Sets), OutDir: d.opts.OutDir, Err: err}
			}

			sum, err := trial.Run(ctx, d.sim, set, d.opts.Reps, func(_ int, r *simulator.Result) error {
				return raw.WriteRow(g.Key, result.FormatFloat(r.Score))
			})
			if err != nil {
				return rep, fail(err)
			}
			rep.Trials += len(sum.Scores)

			replayMean := result.FormatFloat(sum.Score.Mean())
			replayVar := result.FormatFloat(sum.Score.Variance())
			if err := mean.WriteRow(g.Key, replayMean, replayVar); err != nil {
				return rep, fail(err)
			}
			row := append(append([]string{}, set.Values()...),
				replayMean,
				replayVar,
				result.FormatFloat(sum.EmptyLikelihood.Mean()),
				result.FormatFloat(sum.MaxLikelihood.Mean()),
			)
			if err := rebuilt.WriteRow(row...); err != nil {
				return rep, fail(err)
			}
			rep.Sets++
		}
		rep.Groups++
	}
	return rep, nil
}
