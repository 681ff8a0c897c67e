// Package postgres implements the sqlbridge Database contract over a
// PostgreSQL server using the pgx native connection pool.
//
// The wire protocol accepts only strictly positional, numbered parameter
// markers ($1, $2, ...), so every query passes through the numbered rewrite
// before dispatch: %s and ? occurrences are replaced left to right with
// $1, $2, ... in scan order.
//
// Fetch operations run inside a transaction that is explicitly rolled back
// before the connection returns to the pool, so a pooled connection never
// parks with a read transaction open.
package postgres
