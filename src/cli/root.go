package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"commvault-ops/src/invocation"
)

// NewRootCmd returns the root cobra command for the commvault-ops CLI.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commvault-ops [ARGS_FILE]",
		Short: "Run Commvault CommCell operations from one input record",
		Long: "Logs in to a CommCell, resolves the named entities and runs one operation on them.\n" +
			"Given a single ARGS_FILE (as Ansible passes it), the file is read as the input record.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			in, err := invocation.ReadFile(args[0], cmd.InOrStdin())
			if err != nil {
				return a.emit(invocation.FailureRecord(err))
			}
			return a.emit(a.execute(contextOf(cmd), in, false))
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	addGlobalFlags(cmd)

	cmd.AddCommand(newVersionCmd(stdout))
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newOperationsCmd(stdout))

	return cmd
}

// Execute runs the CLI with the process stdio.
func Execute() int {
	root := NewRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		// a failure record already went to stdout
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}
	return 0
}
