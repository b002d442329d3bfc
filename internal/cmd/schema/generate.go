package schema

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/turbolytics/resultset/internal/config"
	"github.com/turbolytics/resultset/internal/parquet"
)

const informationSchemaColumns = `SELECT column_name AS column_name, data_type AS data_type,
  numeric_precision AS numeric_precision, numeric_scale AS numeric_scale, is_nullable AS is_nullable
FROM information_schema.columns WHERE table_name = %s ORDER BY ordinal_position`

const sqliteColumns = `SELECT name AS column_name, type AS data_type,
  NULL AS numeric_precision, NULL AS numeric_scale,
  CASE WHEN "notnull" = 1 OR pk > 0 THEN 'NO' ELSE 'YES' END AS is_nullable
FROM pragma_table_info(?) ORDER BY cid`

// columnsStatement returns the column catalog query for the source's dialect.
func columnsStatement(s config.Source) (string, error) {
	switch s.Type {
	case "postgres":
		return fmt.Sprintf(informationSchemaColumns, "$1"), nil
	case "sql", "":
		switch s.Driver {
		case "pgx", "":
			return fmt.Sprintf(informationSchemaColumns, "$1"), nil
		case "mysql":
			return fmt.Sprintf(informationSchemaColumns, "?"), nil
		case "sqlite":
			return sqliteColumns, nil
		}
	}
	return "", fmt.Errorf("source %q of type %q has no column catalog", s.Name, s.Type)
}

func schemaFromSource(ctx context.Context, v *viper.Viper, l *zap.Logger) (parquet.Schema, error) {
	path := v.GetString("config")
	if path == "" {
		return nil, fmt.Errorf("a config file is required to read a table, set --config or RESULTSET_CONFIG")
	}

	c, err := config.NewFromFile(path)
	if err != nil {
		return nil, err
	}

	sc, err := c.Source(v.GetString("source"))
	if err != nil {
		return nil, err
	}

	statement, err := columnsStatement(sc)
	if err != nil {
		return nil, err
	}

	// the catalog statement is fixed, the read-only parser does not need to vet it
	sc.ReadOnly = false
	source, err := config.InitializeSource(ctx, sc, l)
	if err != nil {
		return nil, err
	}
	defer source.Close(ctx)

	result, err := source.Query(ctx, statement, v.GetString("table"))
	if err != nil {
		return nil, err
	}

	columns, err := parquet.ColumnsFromCollection(result)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", v.GetString("table"), err)
	}
	return parquet.ColumnsToSchema(columns)
}

func newGenerateCommand() *cobra.Command {
	v := viper.New()

	var cmd = &cobra.Command{
		Use:   "generate",
		Short: "Generates a parquet export schema from a CREATE TABLE statement or a table of a configured source",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, _ := zap.NewDevelopment()
			defer logger.Sync()
			l := logger.Named("schema.generate")
			l.Debug(
				"generating schema",
				zap.String("db", v.GetString("db")),
				zap.String("table", v.GetString("table")),
			)

			var s parquet.Schema
			var err error

			switch {
			case v.GetString("table") != "":
				s, err = schemaFromSource(cmd.Context(), v, l)
			case v.GetString("db") == "postgres", v.GetString("db") == "mysql":
				s, err = parquet.SchemaFromCreateTable(v.GetString("query"))
			default:
				err = fmt.Errorf("unsupported db: %q", v.GetString("db"))
			}
			if err != nil {
				return err
			}

			cfg := config.Export{
				Format: "parquet",
				Parquet: config.Parquet{
					Schema: config.SchemaToConfigFields(s),
				},
			}
			bs, err := yaml.Marshal(map[string]any{"export": cfg})
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), string(bs))
			return nil
		},
	}

	cmd.PersistentFlags().StringP("db", "", "postgres", "The database the create table statement is from")
	cmd.PersistentFlags().StringP("query", "q", "", "The CREATE TABLE statement to generate the schema from")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to config file, used with --table")
	cmd.PersistentFlags().StringP("source", "s", "", "Configured source to read the table from")
	cmd.PersistentFlags().StringP("table", "t", "", "Table to generate the schema from")
	for _, name := range []string{"db", "query", "config", "source", "table"} {
		v.BindPFlag(name, cmd.PersistentFlags().Lookup(name))
	}
	v.SetEnvPrefix("RESULTSET")
	v.AutomaticEnv()
	return cmd
}
