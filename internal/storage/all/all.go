// Package all registers every export backend with the storage factory.
package all

import (
	_ "tabetl/internal/storage/mssql"
	_ "tabetl/internal/storage/postgres"
	_ "tabetl/internal/storage/sqlite"
)
