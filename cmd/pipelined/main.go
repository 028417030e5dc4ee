// Command pipelined runs the pipeline API server and its companion tasks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/pipeline-service/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// newRootCommand builds the command tree.  Running the root with no
// subcommand starts the server.
func newRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "pipelined",
		Short:         "Pipeline management API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				return config.LoadDotEnv()
			}
			return config.LoadDotEnv(envFile)
		},
		RunE: runServe,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env when present)")

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newConsumeCommand(),
	)
	return root
}
