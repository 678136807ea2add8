package app

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Run executes the loomdrop command line with args.
func Run(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdout)
}

func execute(ctx context.Context, args []string, out io.Writer) error {
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(out)
	return root.ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "loomdrop",
		Short:         "Resolve Loom share links into downloadable videos",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newFetchCommand(),
		newEventsCommand(),
	)
	return root
}
