package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "replaybench",
		Short:        "Replay, validate and evaluate calibrated simulator parameter sets",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "replaybench.yaml", "config file path")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")
	root.AddCommand(newValidateCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newCompleteCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newListCmd())
	return root
}
