// Package all wires every built-in storage backend into the storage factory.
//
// Importing it (usually as a blank import from a main package) runs the init
// functions of each backend, which register their openers:
//
//   - "redshift", "postgres" (sparkify/internal/storage/postgres)
//   - "sqlite"               (sparkify/internal/storage/sqlite)
//   - "mssql"                (sparkify/internal/storage/mssql)
//
// A binary that needs only a subset can import the backend packages
// directly instead.
package all

import (
	_ "sparkify/internal/storage/mssql"
	_ "sparkify/internal/storage/postgres"
	_ "sparkify/internal/storage/sqlite"
)
