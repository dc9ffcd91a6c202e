package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalnine/replaybench/internal/params"
)

var flagListKey string

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <parameter-table>",
		Short: "List the distinct score groups of a parameter table in sweep order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			key := cfg.Validation.Key
			if flagListKey != "" {
				key = flagListKey
			}
			t, err := params.Load(args[0])
			if err != nil {
				return err
			}
			groups, err := params.GroupByKey(t.Sets, key)
			if err != nil {
				return fmt.Errorf("%s: %w", t.Path, err)
			}
			params.SortGroups(groups)
			return writeGroups(os.Stdout, key, groups)
		},
	}
	cmd.Flags().StringVar(&flagListKey, "key", "", "field to group and order by (default score)")
	return cmd
}

func writeGroups(w io.Writer, key string, groups []*params.Group) error {
	if _, err := fmt.Fprintf(w, "%d distinct %s values\n", len(groups), key); err != nil {
		return err
	}
	for i, g := range groups {
		if _, err := fmt.Fprintf(w, "  %3d. %s (%d sets)\n", i+1, g.Key, len(g.Sets)); err != nil {
			return err
		}
	}
	return nil
}
