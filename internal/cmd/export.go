package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/turbolytics/resultset/internal/config"
	"github.com/turbolytics/resultset/internal/export"
)

func newExportCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Runs a configured query and preserves the result in the configured repository",
	}
	v := bindConfigFlag(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c, l, err := loadConfig(v, "resultset.export")
		if err != nil {
			return err
		}
		defer l.Sync()

		id := uuid.Must(uuid.NewUUID())

		q, err := c.Query(name)
		if err != nil {
			return err
		}

		sc, err := c.Source(q.Source)
		if err != nil {
			return err
		}

		source, err := config.InitializeSource(ctx, sc, l)
		if err != nil {
			return err
		}
		defer source.Close(ctx)

		repository, err := config.InitializeRepository(ctx, c.Repository, id.String(), l)
		if err != nil {
			return err
		}
		if closer, ok := repository.(interface{ Close(context.Context) error }); ok {
			defer func() {
				if err := closer.Close(ctx); err != nil {
					l.Error("closing repository", zap.Error(err))
				}
			}()
		}

		encoder, err := config.InitializeEncoder(c.Export, l)
		if err != nil {
			return err
		}

		e := export.New(
			export.WithLogger(l),
			export.WithRepository(repository),
			export.WithEncoder(encoder),
		)

		l.Info("starting export", zap.String("id", id.String()), zap.String("query", q.Name))

		cat, err := e.Export(ctx, id.String(), source, q.Name, q.Target(), q.Args()...)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), cat.ID)
		return nil
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Name of the configured query")
	cmd.MarkFlagRequired("name")

	return cmd
}
