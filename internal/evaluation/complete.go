package evaluation

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/signalnine/replaybench/internal/params"
	"github.com/signalnine/replaybench/internal/result"
	"github.com/signalnine/replaybench/internal/trial"
)

const (
	// CompleteFile is written into the working directory by the complete
	// evaluation script after each repetition.
	CompleteFile = "complete_evaluation.txt"
	// CompleteAllFile concatenates CompleteFile over all repetitions.
	CompleteAllFile = "complete_evaluation_all.txt"
)

type CompleteOptions struct {
	Options
	// NbParams is the number of optimized parameters, forwarded to the
	// script after the number of iterations.
	NbParams int
}

// Complete replays set opts.Reps times, runs the complete evaluation script
// after each replay and appends its table to CompleteAllFile. The first
// header is kept with a "rep" column prepended; every row is prefixed with
// its repetition. It returns the artifact path.
func Complete(ctx context.Context, sim trial.Simulator, scorer Scorer, set *params.Set, opts CompleteOptions) (path string, err error) {
	if opts.Reps < 1 {
		return "", fmt.Errorf("score reps must be positive, got %d", opts.Reps)
	}
	if opts.NbParams < 1 {
		return "", fmt.Errorf("number of optimized parameters must be positive, got %d", opts.NbParams)
	}
	iters, err := set.Value("iters")
	if err != nil {
		return "", err
	}

	path = filepath.Join(opts.OutDir, CompleteAllFile)
	var out *result.Artifact
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	for i := 1; i <= opts.Reps; i++ {
		if opts.Progress != nil {
			opts.Progress(i, opts.Reps)
		}
		fail := func(err error) error { return &RepError{Rep: i, Reps: opts.Reps, Err: err} }
		if err := ctx.Err(); err != nil {
			return path, fail(err)
		}
		if _, err := sim.Run(ctx, set); err != nil {
			return path, fail(err)
		}
		// A table left by the previous repetition must not be read twice.
		tablePath := filepath.Join(opts.WorkDir, CompleteFile)
		if err := os.Remove(tablePath); err != nil && !os.IsNotExist(err) {
			return path, fail(err)
		}
		if _, err := scorer.Run(ctx, opts.WorkDir, iters, strconv.Itoa(opts.NbParams)); err != nil {
			return path, fail(fmt.Errorf("complete evaluation script: %w", err))
		}
		header, rows, err := readCompleteTable(tablePath)
		if err != nil {
			return path, fail(err)
		}
		if out == nil {
			if out, err = result.CreateArtifact(opts.OutDir, CompleteAllFile, "rep "+header, opts.SyncWrites); err != nil {
				return path, err
			}
		}
		for _, row := range rows {
			if err := out.WriteLine(strconv.Itoa(i) + " " + row); err != nil {
				return path, err
			}
		}
	}
	return path, nil
}

// readCompleteTable returns the header line and the non-blank data lines.
func readCompleteTable(path string) (string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("reading complete evaluation table: %w", err)
	}
	defer f.Close()

	var header string
	var rows []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if header == "" {
			header = line
			continue
		}
		rows = append(rows, line)
	}
	if err := sc.Err(); err != nil {
		return "", nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if header == "" {
		return "", nil, fmt.Errorf("%s: empty complete evaluation table", path)
	}
	return header, rows, nil
}
