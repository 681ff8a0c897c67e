// Package mysql implements the sqlbridge Database contract over a MySQL
// server.
//
// Concurrency is bounded by the driver's native connection pool, sized by
// MaxParallelQueries. Execute and fetch operations acquire and release a
// pooled connection per call; a scoped transaction checks one connection
// out for its whole lifetime.
//
// This is the only engine with an automatic retry: when the driver reports
// a lost server connection ("server has gone away", error 2006, or a bad
// connection), the broken connection is discarded and the whole operation
// retried once, bounded by RetryBudget. The other engines do not retry.
//
// Parameter binding accepts either positional values or, as a single
// map[string]any argument, named :param markers.
package mysql
