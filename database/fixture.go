// Package database provides the knowledge graph table fixture used by
// integration tests. The job itself never creates or alters tables; the
// python_package_index table is owned by the knowledge graph.
package database

import (
	"context"
	_ "embed"

	"github.com/jackc/pgx/v5"
)

//go:embed schema/python_package_index.up.sql
var schemaUp string

//go:embed schema/python_package_index.down.sql
var schemaDown string

// ApplySchema creates the python_package_index table
func ApplySchema(ctx context.Context, db *pgx.Conn) error {
	_, err := db.Exec(ctx, schemaUp)
	return err
}

// DropSchema drops the python_package_index table
func DropSchema(ctx context.Context, db *pgx.Conn) error {
	_, err := db.Exec(ctx, schemaDown)
	return err
}
