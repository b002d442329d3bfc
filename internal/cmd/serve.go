package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/turbolytics/resultset/internal"
	"github.com/turbolytics/resultset/internal/config"
	"github.com/turbolytics/resultset/internal/server"
)

func newServeCommand(o *options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the configured queries over HTTP",
	}
	v := bindConfigFlag(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c, l, err := loadConfig(v, "resultset.server")
		if err != nil {
			return err
		}
		defer l.Sync()

		s, closeSources, err := newServer(ctx, c, o, l)
		if err != nil {
			return err
		}
		defer closeSources()

		if addr == "" {
			addr = c.Server.Addr
		}
		if addr == "" {
			addr = ":8080"
		}

		return s.Start(ctx, addr)
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Address to listen on, overrides server.addr")

	return cmd
}

// newServer opens every configured source and registers the configured
// queries and types. The returned func closes the sources.
func newServer(ctx context.Context, c *config.Config, o *options, l *zap.Logger) (*server.Server, func(), error) {
	sources := make(map[string]internal.Source, len(c.Sources))
	closeSources := func() {
		for _, s := range sources {
			if err := s.Close(ctx); err != nil {
				l.Error("closing source", zap.String("source", s.Name()), zap.Error(err))
			}
		}
	}

	for _, sc := range c.Sources {
		s, err := config.InitializeSource(ctx, sc, l.Named(sc.Name))
		if err != nil {
			closeSources()
			return nil, nil, err
		}
		sources[sc.Name] = s
	}

	types := config.InitializeTypes(c.Types, o.types)

	s := server.NewServer(l, types)
	for _, q := range c.Queries {
		s.RegisterQuery(server.Query{
			Name:   q.Name,
			Source: sources[q.Source],
			Target: q.Target(),
			Args:   q.Args(),
		})
	}

	return s, closeSources, nil
}
