// Package sync registers the simple indexes served by a Pulp instance as
// Python package indexes in the knowledge graph.
//
// A Registrar runs a single pass:
//
//  1. load the URLs of every index already known to the store, once
//  2. range the simple index URLs listed by the Pulp instance
//  3. skip URLs that are already known and register the others
//
// The known set is never refreshed during a pass, and two URLs that are
// identical within one listing are deduplicated by the store itself, which
// ignores a registration for a URL it already holds.
//
// Any failure aborts the pass. Registrations made before the failure are kept.
package sync
