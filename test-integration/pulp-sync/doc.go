// Package integration provides end-to-end tests of the pulp repository sync
// pipeline: a Pulp stub served over TLS, a Postgres container holding the
// python_package_index table and the registrar between them.
package integration
