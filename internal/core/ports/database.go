// internal/core/ports/database.go
package ports

import (
	"context"
	"database/sql"
)

// Database abstracts the connection pool used by the Postgres document driver
type Database interface {
	SQL() *sql.DB
	Close()
	Ping(ctx context.Context) error
	Health(ctx context.Context) map[string]interface{}
}
