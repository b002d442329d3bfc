package sql

import (
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Drivers registered with database/sql by this package.
var Drivers = []string{"pgx", "sqlite", "mysql"}
