// Package cli wires the service's commands: serve (the default), migrate and
// seed.
package cli

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFile string
}

// NewRootCommand creates the root command. Running it without a subcommand
// starts the server.
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}
	serve := &serveOptions{}

	root := &cobra.Command{
		Use:           "n8n-ingest",
		Short:         "n8n node ingestion API",
		Long:          `Receives workflow runs and approval requests from n8n and renders HTML to PDF.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts, serve)
		},
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env", "", "Path to .env file")
	serve.bindFlags(root)

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newMigrateCommand(opts))
	root.AddCommand(newSeedCommand(opts))
	return root
}
