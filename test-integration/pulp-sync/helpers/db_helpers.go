package helpers

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/thoth-station/pulp-repository-sync-job/database"
	"github.com/thoth-station/pulp-repository-sync-job/internal/store"
)

// DatabaseHelper manages the knowledge graph database of the suite
type DatabaseHelper struct {
	container  *postgres.PostgresContainer
	conn       *pgx.Conn
	connString string
}

// StartDatabase starts a Postgres container and creates the schema
func StartDatabase(ctx context.Context) (*DatabaseHelper, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("knowledge_graph"),
		postgres.WithUsername("thoth"),
		postgres.WithPassword("thoth"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = tc.TerminateContainer(container)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		_ = tc.TerminateContainer(container)
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if err := database.ApplySchema(ctx, conn); err != nil {
		_ = conn.Close(ctx)
		_ = tc.TerminateContainer(container)
		return nil, err
	}

	return &DatabaseHelper{container: container, conn: conn, connString: connString}, nil
}

// OpenStore opens a store on the database
func (d *DatabaseHelper) OpenStore(ctx context.Context) (*store.PostgresStore, error) {
	return store.Open(ctx, d.connString)
}

// Reset empties the python_package_index table
func (d *DatabaseHelper) Reset(ctx context.Context) error {
	if _, err := d.conn.Exec(ctx, "TRUNCATE python_package_index RESTART IDENTITY"); err != nil {
		return fmt.Errorf("failed to truncate python_package_index: %w", err)
	}
	return nil
}

// Seed inserts an enabled index as if it had been registered earlier
func (d *DatabaseHelper) Seed(ctx context.Context, url string) error {
	_, err := d.conn.Exec(ctx,
		"INSERT INTO python_package_index (url, verify_ssl, enabled) VALUES ($1, TRUE, TRUE)", url)
	if err != nil {
		return fmt.Errorf("failed to seed %s: %w", url, err)
	}
	return nil
}

// Stop closes the connection and removes the container
func (d *DatabaseHelper) Stop(ctx context.Context) error {
	_ = d.conn.Close(ctx)
	return tc.TerminateContainer(d.container)
}
