package parquet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/turbolytics/resultset/pkg/persistence"
)

// Column is one row of a column catalog query:
//
//	select column_name, data_type, numeric_precision, numeric_scale, is_nullable
//	from INFORMATION_SCHEMA.COLUMNS where table_name = ...
type Column struct {
	Name             string `db:"column_name"`
	DataType         string `db:"data_type"`
	NumericPrecision *int   `db:"numeric_precision"`
	NumericScale     *int   `db:"numeric_scale"`
	IsNullable       string `db:"is_nullable"`
}

// ColumnsFromCollection hydrates the records of a column catalog query.
func ColumnsFromCollection(c *persistence.ResultCollection) ([]Column, error) {
	if c.Count() == 0 {
		return nil, fmt.Errorf("no columns found")
	}

	hydrated, err := c.HydrateResultItemsAs(persistence.StructType[Column]())
	if err != nil {
		return nil, err
	}

	columns := make([]Column, 0, hydrated.Count())
	for item := range hydrated.Items() {
		columns = append(columns, *item.(*Column))
	}
	return columns, nil
}

func (c Column) Field() (Field, error) {
	var precision, scale int
	if c.NumericPrecision != nil {
		precision = *c.NumericPrecision
	}
	if c.NumericScale != nil {
		scale = *c.NumericScale
	}
	return newField(c.Name, c.DataType, c.IsNullable == "YES", precision, scale)
}

func ColumnsToSchema(columns []Column) (Schema, error) {
	var schema Schema
	for _, column := range columns {
		f, err := column.Field()
		if err != nil {
			return nil, err
		}
		schema = append(schema, f)
	}
	return schema, nil
}

// PostgresSQLParserColumnToField maps a column of a parsed CREATE TABLE statement.
func PostgresSQLParserColumnToField(col *sqlparser.ColumnDefinition) (Field, error) {
	precision, err := sqlValInt(col.Type.Length)
	if err != nil {
		return Field{}, fmt.Errorf("column %s: %w", col.Name.String(), err)
	}
	scale, err := sqlValInt(col.Type.Scale)
	if err != nil {
		return Field{}, fmt.Errorf("column %s: %w", col.Name.String(), err)
	}
	return newField(col.Name.String(), col.Type.Type, !bool(col.Type.NotNull), precision, scale)
}

// SchemaFromCreateTable parses a CREATE TABLE statement into a schema.
func SchemaFromCreateTable(statement string) (Schema, error) {
	stmt, err := sqlparser.Parse(statement)
	if err != nil {
		return nil, err
	}

	create, ok := stmt.(*sqlparser.DDL)
	if !ok || create.Action != sqlparser.CreateStr || create.TableSpec == nil {
		return nil, fmt.Errorf("expected a CREATE TABLE statement")
	}

	var s Schema
	for _, col := range create.TableSpec.Columns {
		f, err := PostgresSQLParserColumnToField(col)
		if err != nil {
			return nil, err
		}
		s = append(s, f)
	}
	return s, nil
}

func sqlValInt(v *sqlparser.SQLVal) (int, error) {
	if v == nil {
		return 0, nil
	}
	return strconv.Atoi(string(v.Val))
}

func newField(name, dataType string, nullable bool, precision, scale int) (Field, error) {
	f := Field{
		Name: name,
	}

	dtParts := strings.Split(strings.ToLower(dataType), " ")
	base, _, _ := strings.Cut(dtParts[0], "(")
	switch base {
	case "integer", "int", "bigint":
		f.Type = "INT64"
	case "smallint", "tinyint", "mediumint":
		f.Type = "INT32"
	case "character", "char", "varchar", "text":
		f.Type = "BYTE_ARRAY"
		f.ConvertedType = "UTF8"
	case "timestamp", "datetime":
		f.Type = "INT64"
		f.ConvertedType = "TIMESTAMP_MILLIS"
	case "date":
		f.Type = "INT32"
		f.ConvertedType = "DATE"
	case "numeric", "decimal":
		f.Type = "INT64"
		f.ConvertedType = "DECIMAL"
		f.Precision = precision
		f.Scale = scale
	case "real", "double":
		f.Type = "DOUBLE"
	case "float":
		f.Type = "FLOAT"
	case "boolean", "bool", "bit":
		f.Type = "BOOLEAN"
	default:
		return Field{}, fmt.Errorf("unsupported data type: %q", dataType)
	}

	if nullable {
		f.RepetitionType = "OPTIONAL"
	} else {
		f.RepetitionType = "REQUIRED"
	}

	return f, nil
}
