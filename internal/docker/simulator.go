package docker

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/signalnine/replaybench/internal/simulator"
)

// SimulatorRunner runs simulator invocations inside a container. The input
// and work directories are bind-mounted at their absolute host paths.
type SimulatorRunner struct {
	Image    string
	InputDir string
	// MountExecutable binds the host executable into the container. Leave
	// false when the image already provides it.
	MountExecutable bool
	Env             []string
	Timeout         time.Duration
	CPULimit        float64
	MemoryLimit     int64
	UserID          string
}

func (r *SimulatorRunner) Run(ctx context.Context, inv *simulator.Invocation) ([]byte, error) {
	opts, err := r.runOpts(inv)
	if err != nil {
		return nil, &simulator.ProcessError{Command: inv.String(), ExitCode: -1, Err: err}
	}
	res, err := RunContainer(ctx, opts)
	if err != nil {
		return nil, &simulator.ProcessError{Command: inv.String(), ExitCode: -1, Err: err}
	}
	if res.TimedOut || res.ExitCode != 0 {
		return res.Output, &simulator.ProcessError{
			Command:  inv.String(),
			ExitCode: res.ExitCode,
			TimedOut: res.TimedOut,
			Stderr:   string(res.Stderr),
			Err:      ctx.Err(),
		}
	}
	return res.Output, nil
}

func (r *SimulatorRunner) runOpts(inv *simulator.Invocation) (*RunOpts, error) {
	input, err := filepath.Abs(r.InputDir)
	if err != nil {
		return nil, fmt.Errorf("resolving input dir: %w", err)
	}
	mounts := []Mount{{Source: input, Target: input, ReadOnly: true}}

	workDir := ""
	if inv.Dir != "" {
		workDir, err = filepath.Abs(inv.Dir)
		if err != nil {
			return nil, fmt.Errorf("resolving work dir: %w", err)
		}
		mounts = append(mounts, Mount{Source: workDir, Target: workDir})
	}

	executable := inv.Executable
	if r.MountExecutable {
		executable, err = filepath.Abs(inv.Executable)
		if err != nil {
			return nil, fmt.Errorf("resolving executable: %w", err)
		}
		mounts = append(mounts, Mount{Source: executable, Target: executable, ReadOnly: true})
	}

	return &RunOpts{
		Image:       r.Image,
		Command:     append([]string{executable}, absInputArgs(inv.Args, r.InputDir, input)...),
		WorkDir:     workDir,
		Env:         r.Env,
		Timeout:     r.Timeout,
		Mounts:      mounts,
		CPULimit:    r.CPULimit,
		MemoryLimit: r.MemoryLimit,
		UserID:      r.UserID,
	}, nil
}

// absInputArgs rewrites the -map/-network/-sample values to absolute paths
// under the mounted input directory.
func absInputArgs(args []string, inputDir, absInput string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i+1 < len(out); i++ {
		switch out[i] {
		case "-map", "-network", "-sample":
			if !filepath.IsAbs(out[i+1]) {
				rel, err := filepath.Rel(inputDir, out[i+1])
				if err == nil {
					out[i+1] = filepath.Join(absInput, rel)
				}
			}
			i++
		}
	}
	return out
}
