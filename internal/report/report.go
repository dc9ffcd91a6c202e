package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/montanaflynn/stats"

	"github.com/signalnine/replaybench/internal/params"
	"github.com/signalnine/replaybench/internal/result"
	"github.com/signalnine/replaybench/internal/validation"
)

// GroupSummary describes the raw replay scores of one optimizer score.
// Tied parameter sets share a group.
type GroupSummary struct {
	Score    string  `json:"score"`
	Trials   int     `json:"trials"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	StdDev   float64 `json:"stddev"`
	Median   float64 `json:"median"`
	P5       float64 `json:"p5"`
	P95      float64 `json:"p95"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

// Generate summarises the raw trials of a validation run directory.
func Generate(runDir, format string, w io.Writer) error {
	summaries, err := Summarise(filepath.Join(runDir, validation.RawTrialsFile))
	if err != nil {
		return err
	}
	switch format {
	case "markdown":
		return writeMarkdown(summaries, w)
	case "json":
		return writeJSON(summaries, w)
	default:
		return writeTable(summaries, w)
	}
}

// Summarise reads a raw trials file and returns one summary per score, in
// sweep order.
func Summarise(path string) ([]GroupSummary, error) {
	t, err := params.Load(path)
	if err != nil {
		return nil, err
	}
	keyField, valueField := rawColumns()
	groups, err := params.GroupByKey(t.Sets, keyField)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	params.SortGroups(groups)

	summaries := make([]GroupSummary, 0, len(groups))
	for _, g := range groups {
		data := make(stats.Float64Data, 0, len(g.Sets))
		for _, s := range g.Sets {
			v, err := s.Float(valueField)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			data = append(data, v)
		}
		s, err := summarise(data)
		if err != nil {
			return nil, fmt.Errorf("%s: score %s: %w", path, g.Key, err)
		}
		s.Score = g.Key
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func rawColumns() (string, string) {
	cols := strings.Fields(validation.RawTrialsHeader)
	return cols[0], cols[1]
}

func summarise(data stats.Float64Data) (GroupSummary, error) {
	s := GroupSummary{Trials: data.Len()}
	var err error
	if s.Mean, err = stats.Mean(data); err != nil {
		return s, err
	}
	if s.Variance, err = stats.PopulationVariance(data); err != nil {
		return s, err
	}
	if s.StdDev, err = stats.StandardDeviationPopulation(data); err != nil {
		return s, err
	}
	if s.Median, err = stats.Median(data); err != nil {
		return s, err
	}
	// Nearest rank is defined for any group size; interpolation is not
	// below twenty trials.
	if s.P5, err = stats.PercentileNearestRank(data, 5); err != nil {
		return s, err
	}
	if s.P95, err = stats.PercentileNearestRank(data, 95); err != nil {
		return s, err
	}
	if s.Min, err = stats.Min(data); err != nil {
		return s, err
	}
	if s.Max, err = stats.Max(data); err != nil {
		return s, err
	}
	return s, nil
}

func writeTable(summaries []GroupSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tTRIALS\tMEAN\tVARIANCE\tSTDDEV\tMEDIAN\tP5\tP95")
	fmt.Fprintln(tw, strings.Repeat("-", 80))
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Score, s.Trials, result.FormatFloat(s.Mean), result.FormatFloat(s.Variance),
			result.FormatFloat(s.StdDev), result.FormatFloat(s.Median),
			result.FormatFloat(s.P5), result.FormatFloat(s.P95))
	}
	return tw.Flush()
}

func writeMarkdown(summaries []GroupSummary, w io.Writer) error {
	fmt.Fprintln(w, "| Score | Trials | Mean | Variance | StdDev | Median | P5 | P95 |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|---|")
	for _, s := range summaries {
		fmt.Fprintf(w, "| %s | %d | %s | %s | %s | %s | %s | %s |\n",
			s.Score, s.Trials, result.FormatFloat(s.Mean), result.FormatFloat(s.Variance),
			result.FormatFloat(s.StdDev), result.FormatFloat(s.Median),
			result.FormatFloat(s.P5), result.FormatFloat(s.P95))
	}
	return nil
}

func writeJSON(summaries []GroupSummary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}
