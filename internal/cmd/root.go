package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/turbolytics/resultset/internal/cmd/schema"
	"github.com/turbolytics/resultset/pkg/persistence"
)

type options struct {
	types *persistence.Types
}

type Option func(*options)

// WithTypes makes the hydration targets in types available to served queries,
// alongside the ones declared in the config file.
func WithTypes(types *persistence.Types) Option {
	return func(o *options) {
		o.types = types
	}
}

func NewRootCommand(opts ...Option) *cobra.Command {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var cmd = &cobra.Command{
		Use:   "resultset",
		Short: "Runs configured queries and serves, prints or exports their results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}

	cmd.AddCommand(newQueryCommand())
	cmd.AddCommand(newExportCommand())
	cmd.AddCommand(newServeCommand(o))
	cmd.AddCommand(schema.NewCommand())

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(opts ...Option) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand(opts...)
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Println(err)
		os.Exit(1)
	}
}
