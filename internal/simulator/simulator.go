package simulator

import (
	"context"

	"github.com/signalnine/replaybench/internal/params"
)

// Simulator replays parameter sets through a Runner, drawing a fresh seed
// for every invocation.
type Simulator struct {
	Options *Options
	Runner  Runner
	Seeds   SeedSource
}

func New(opts *Options, runner Runner, seeds SeedSource) *Simulator {
	return &Simulator{Options: opts, Runner: runner, Seeds: seeds}
}

// Run executes one trial of set and parses its result line.
func (s *Simulator) Run(ctx context.Context, set *params.Set) (*Result, error) {
	inv, err := Build(s.Options, set, s.Seeds.Seed())
	if err != nil {
		return nil, err
	}
	out, err := s.Runner.Run(ctx, inv)
	if err != nil {
		return nil, err
	}
	res, err := ParseOutput(string(out))
	if err != nil {
		return nil, err
	}
	res.Seed = inv.Seed
	return res, nil
}
