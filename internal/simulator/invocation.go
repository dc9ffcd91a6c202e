package simulator

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/signalnine/replaybench/internal/params"
)

// Input resources expected inside Options.InputDir.
const (
	MapFile     = "map.txt"
	NetworkFile = "network.txt"
	SampleFile  = "sample.txt"
)

// ParameterFlags lists, in command line order, the table fields forwarded to
// the simulator after -seed and -reps. Each becomes "-<field> <value>".
var ParameterFlags = []string{
	"iters", "law", "optimfunc", "humanactivity",
	"xintro", "yintro", "pintro",
	"lambda", "mu", "sigma", "gamma",
	"w1", "w2", "w3", "w4", "w5", "w6", "wmin",
}

// Options are the run-level constants of every invocation.
type Options struct {
	Executable    string
	InputDir      string
	Reps          int
	WorkDir       string
	SaveOutputs   bool
	SaveAllStates bool
}

// InputFiles returns the three fixed input resources.
func (o *Options) InputFiles() []string {
	return []string{
		filepath.Join(o.InputDir, MapFile),
		filepath.Join(o.InputDir, NetworkFile),
		filepath.Join(o.InputDir, SampleFile),
	}
}

type Invocation struct {
	Executable string
	Args       []string
	Seed       int64
	Dir        string
}

func (inv *Invocation) String() string {
	return strings.Join(append([]string{inv.Executable}, inv.Args...), " ")
}

// Build maps a parameter set and a seed to the simulator command line.
func Build(opts *Options, set *params.Set, seed int64) (*Invocation, error) {
	files := opts.InputFiles()
	typeOfData, err := set.Value("typeofdata")
	if err != nil {
		return nil, err
	}
	args := []string{
		"-map", files[0],
		"-network", files[1],
		"-sample", files[2],
		"-typeofdata", typeOfData,
		"-seed", strconv.FormatInt(seed, 10),
		"-reps", strconv.Itoa(opts.Reps),
	}
	for _, field := range ParameterFlags {
		v, err := set.Value(field)
		if err != nil {
			return nil, fmt.Errorf("building invocation: %w", err)
		}
		args = append(args, "-"+field, v)
	}
	if opts.SaveOutputs {
		args = append(args, "-save-outputs")
	}
	if opts.SaveAllStates {
		args = append(args, "-save-all-states")
	}
	return &Invocation{
		Executable: opts.Executable,
		Args:       args,
		Seed:       seed,
		Dir:        opts.WorkDir,
	}, nil
}
