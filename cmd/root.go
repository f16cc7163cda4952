// Package cmd wires the prverify command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags.
var version = "dev"

var (
	flagToken   string
	flagVerbose bool
)

// NewRootCmd builds the CLI command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "prverify",
		Short:   "Automated PR verification in isolated Docker environments",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if flagVerbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		},
	}
	root.PersistentFlags().StringVar(&flagToken, "token", os.Getenv("GITHUB_TOKEN"), "GitHub API token (defaults to GITHUB_TOKEN)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(newRunCmd())
	root.AddCommand(newBatchCmd())
	root.AddCommand(newDetectCmd())
	root.AddCommand(newGenerateComposeCmd())
	root.AddCommand(newRunComposeCmd())
	root.AddCommand(newRunAllComposeCmd())
	root.AddCommand(newListComposeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the prverify version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "prverify %s\n", version)
		},
	}
}
