// Package store provides access to the Python package indexes known to the
// knowledge graph database.
package store

import (
	"context"
	"errors"
)

// ErrConstraintViolation is returned when the database rejects a registration
var ErrConstraintViolation = errors.New("constraint violation")

// PythonPackageIndex is a Python package index record of the knowledge graph
type PythonPackageIndex struct {
	ID              int64   `db:"id"`
	URL             string  `db:"url"`
	WarehouseAPIURL *string `db:"warehouse_api_url"`
	VerifySSL       bool    `db:"verify_ssl"`
	Enabled         bool    `db:"enabled"`
}

// RegisterParams describes a Python package index to register
type RegisterParams struct {
	URL string
	// WarehouseAPIURL is the Warehouse JSON API of the index, nil when it has none
	WarehouseAPIURL *string
	VerifySSL       bool
	Enabled         bool
}

// Store is the subset of the knowledge graph used by the sync job
//
//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go Store
type Store interface {
	// GetPythonPackageIndexAll returns every registered Python package index
	GetPythonPackageIndexAll(ctx context.Context) ([]PythonPackageIndex, error)

	// RegisterPythonPackageIndex registers a new Python package index. It reports
	// false without error when an index with the same URL already exists.
	RegisterPythonPackageIndex(ctx context.Context, params RegisterParams) (bool, error)

	// Close releases the database connection
	Close()
}
