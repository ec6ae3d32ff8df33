// Package all wires every built-in storage backend into the storage registry.
// Import it for side effects only:
//
//	import _ "github.com/afonsolelis/etl-completa-airflow/internal/storage/all"
//
// after which storage.Open accepts the kinds "postgres", "sqlite" and "mssql".
package all

import (
	_ "github.com/afonsolelis/etl-completa-airflow/internal/storage/mssql"
	_ "github.com/afonsolelis/etl-completa-airflow/internal/storage/postgres"
	_ "github.com/afonsolelis/etl-completa-airflow/internal/storage/sqlite"
)
