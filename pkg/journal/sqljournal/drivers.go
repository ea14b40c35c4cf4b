package sqljournal

import (
	// Registered under "pgx" via its database/sql-compatible stdlib shim;
	// chosen by PoolConfig.DriverName, never imported unqualified since the
	// pgx-native API isn't used here.
	_ "github.com/jackc/pgx/v5/stdlib"
	// Registered under "postgres".
	_ "github.com/lib/pq"
	// Registered under "sqlite3", the default for a single-process
	// console/embedded deployment with no database server to run.
	_ "github.com/mattn/go-sqlite3"
)

// DriverPgx, DriverPostgres, and DriverSQLite name the database/sql driver
// strings the three blank imports above register, for callers building a
// PoolConfig without having to know each driver package's registration
// name by heart.
const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)
