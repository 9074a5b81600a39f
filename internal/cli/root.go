// Package cli wires the audit pipeline, storage, and HTTP agent into the
// browsetrace-audit command tree.
package cli

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type globalState struct {
	log *logrus.Logger
	fs  afero.Fs
}

func newRootCommand(gs *globalState) *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "browsetrace-audit",
		Short:         "Audit captured browser traces for page-performance timings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if verbose {
				gs.log.SetLevel(logrus.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newAuditCommand(gs))
	rootCmd.AddCommand(newServeCommand(gs))
	return rootCmd
}

// Execute runs the command tree and exits non-zero on error.
func Execute() {
	gs := &globalState{
		log: logrus.New(),
		fs:  afero.NewOsFs(),
	}
	gs.log.SetOutput(os.Stderr)

	if err := newRootCommand(gs).Execute(); err != nil {
		gs.log.Error(err.Error())
		os.Exit(1)
	}
}
