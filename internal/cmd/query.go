package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/turbolytics/resultset/internal"
	"github.com/turbolytics/resultset/internal/config"
)

func newQueryCommand() *cobra.Command {
	var name string
	var single bool
	var count bool

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Runs a configured query and prints the result as JSON",
	}
	v := bindConfigFlag(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c, l, err := loadConfig(v, "resultset.query")
		if err != nil {
			return err
		}
		defer l.Sync()

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

		l.Debug("running query", zap.String("query", q.Name), zap.String("source", sc.Name))

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		if count {
			n, err := internal.Count(ctx, source, q.Target(), q.Args()...)
			if err != nil {
				return err
			}
			return enc.Encode(map[string]int{"count": n})
		}

		result, err := source.Query(ctx, q.Target(), q.Args()...)
		if err != nil {
			return err
		}

		if single {
			item, err := result.SingleResult()
			if err != nil {
				return err
			}
			return enc.Encode(item)
		}

		items := result.ToSlice()
		if items == nil {
			items = []any{}
		}
		return enc.Encode(items)
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Name of the configured query")
	cmd.Flags().BoolVar(&single, "single", false, "Expect exactly one result")
	cmd.Flags().BoolVar(&count, "count", false, "Print the number of results instead of the results")
	cmd.MarkFlagsMutuallyExclusive("single", "count")
	cmd.MarkFlagRequired("name")

	return cmd
}
