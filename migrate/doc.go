// Package migrate applies ordered schema migrations through the sqlbridge
// Database contract.
//
// Migration files are plain SQL, multiple statements separated by ";".
// Filenames sort lexically and apply in that order; each successfully
// applied file's name is recorded verbatim in the migrations table, which
// is the source of truth for "already applied": a file is never re-run.
//
// # Atomicity
//
// Each file runs in its own scoped transaction. If file N fails:
//   - Files 1 to N-1 remain applied
//   - File N's transaction is rolled back
//   - Files N+1 onwards are not attempted
//
// The run aborts with the failing filename attached. Re-running Apply after
// fixing the issue continues from N.
package migrate
