package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sqlbridge/sqlbridge"
)

// openFileDB opens a file-mode adapter against a temp directory and
// registers cleanup.
func openFileDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(context.Background(), Config{Path: dbPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	mustExec(t, db, "CREATE TABLE items (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL)")
	return db
}

// openMemoryDB opens a memory-mode adapter and registers cleanup.
func openMemoryDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), Config{MemoryMode: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	mustExec(t, db, "CREATE TABLE items (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL)")
	return db
}

func mustExec(t *testing.T, db *DB, query string, args ...any) sqlbridge.ExecResult {
	t.Helper()
	res, err := db.Exec(context.Background(), query, args...)
	if err != nil {
		t.Fatalf("Exec(%q) error = %v", query, err)
	}
	return res
}

func countItems(t *testing.T, db *DB) int {
	t.Helper()
	rec, err := db.FetchOne(context.Background(), "SELECT COUNT(*) AS n FROM items")
	if err != nil {
		t.Fatalf("FetchOne(count) error = %v", err)
	}
	n, ok := rec["n"].(int64)
	if !ok {
		t.Fatalf("count column = %T(%v), want int64", rec["n"], rec["n"])
	}
	return int(n)
}

func TestOpen_CreatesDatabaseFile(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "test.db")

	db, err := Open(context.Background(), Config{Path: dbPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestExec_CommitsImmediately(t *testing.T) {
	for _, mode := range []struct {
		name string
		open func(*testing.T) *DB
	}{
		{"file mode", openFileDB},
		{"memory mode", openMemoryDB},
	} {
		t.Run(mode.name, func(t *testing.T) {
			db := mode.open(t)

			res := mustExec(t, db, "INSERT INTO items (name) VALUES (?)", "widget")
			if res.LastInsertID != 1 {
				t.Errorf("LastInsertID = %d, want 1", res.LastInsertID)
			}
			if res.RowsAffected != 1 {
				t.Errorf("RowsAffected = %d, want 1", res.RowsAffected)
			}

			if got := countItems(t, db); got != 1 {
				t.Errorf("row count = %d, want 1", got)
			}
		})
	}
}

func TestExecNoCommit_MemoryMode_PendingUntilCommit(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()

	if _, err := db.ExecNoCommit(ctx, "INSERT INTO items (name) VALUES (?)", "pending"); err != nil {
		t.Fatalf("ExecNoCommit() error = %v", err)
	}

	// The pending transaction's own view includes the row.
	if got := countItems(t, db); got != 1 {
		t.Errorf("pending view row count = %d, want 1", got)
	}

	if err := db.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if got := countItems(t, db); got != 1 {
		t.Errorf("committed row count = %d, want 1", got)
	}
}

func TestExecNoCommit_MemoryMode_RollbackDiscards(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()

	if _, err := db.ExecNoCommit(ctx, "INSERT INTO items (name) VALUES (?)", "doomed"); err != nil {
		t.Fatalf("ExecNoCommit() error = %v", err)
	}
	if err := db.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	if got := countItems(t, db); got != 0 {
		t.Errorf("row count after rollback = %d, want 0", got)
	}
}

func TestExecNoCommit_FileMode_Discarded(t *testing.T) {
	db := openFileDB(t)
	ctx := context.Background()

	// File mode has no persistent connection to keep work pending on; the
	// statement's transaction is rolled back before release.
	if _, err := db.ExecNoCommit(ctx, "INSERT INTO items (name) VALUES (?)", "gone"); err != nil {
		t.Fatalf("ExecNoCommit() error = %v", err)
	}

	if got := countItems(t, db); got != 0 {
		t.Errorf("row count = %d, want 0", got)
	}
}

func TestFetchOne_NoRow(t *testing.T) {
	db := openFileDB(t)

	rec, err := db.FetchOne(context.Background(), "SELECT * FROM items WHERE name = ?", "absent")
	if err != nil {
		t.Fatalf("FetchOne() error = %v", err)
	}
	if rec != nil {
		t.Errorf("FetchOne() = %v, want nil for zero matches", rec)
	}
}

func TestFetchOne_UniqueMatch(t *testing.T) {
	db := openFileDB(t)
	mustExec(t, db, "INSERT INTO items (name) VALUES (?)", "unique")

	rec, err := db.FetchOne(context.Background(), "SELECT id, name FROM items WHERE name = ?", "unique")
	if err != nil {
		t.Fatalf("FetchOne() error = %v", err)
	}
	if rec == nil {
		t.Fatal("FetchOne() = nil, want the matching row")
	}
	if rec["name"] != "unique" {
		t.Errorf("name = %v, want %q", rec["name"], "unique")
	}
}

func TestFetchAll_Empty(t *testing.T) {
	db := openFileDB(t)

	records, err := db.FetchAll(context.Background(), "SELECT * FROM items")
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if records == nil {
		t.Fatal("FetchAll() = nil, want empty slice")
	}
	if len(records) != 0 {
		t.Errorf("len = %d, want 0", len(records))
	}
}

func TestFetchAll_ReturnsAllRows(t *testing.T) {
	db := openFileDB(t)
	for i := 0; i < 3; i++ {
		mustExec(t, db, "INSERT INTO items (name) VALUES (?)", fmt.Sprintf("item-%d", i))
	}

	records, err := db.FetchAll(context.Background(), "SELECT * FROM items ORDER BY id")
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len = %d, want 3", len(records))
	}
	if records[0]["name"] != "item-0" {
		t.Errorf("first row name = %v, want %q", records[0]["name"], "item-0")
	}
}

func TestTx_CommitPersistsAllInserts(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			db := openFileDB(t)
			ctx := context.Background()

			err := sqlbridge.WithTx(ctx, db, func(tx sqlbridge.Tx) error {
				for i := 0; i < n; i++ {
					if _, err := tx.Exec(ctx, "INSERT INTO items (name) VALUES (?)", fmt.Sprintf("tx-%d", i)); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				t.Fatalf("WithTx() error = %v", err)
			}

			if got := countItems(t, db); got != n {
				t.Errorf("row count = %d, want %d", got, n)
			}
		})
	}
}

func TestTx_ErrorRollsBackEverything(t *testing.T) {
	db := openFileDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := sqlbridge.WithTx(ctx, db, func(tx sqlbridge.Tx) error {
		for i := 0; i < 4; i++ {
			if _, err := tx.Exec(ctx, "INSERT INTO items (name) VALUES (?)", fmt.Sprintf("tx-%d", i)); err != nil {
				return err
			}
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	if got := countItems(t, db); got != 0 {
		t.Errorf("row count after rollback = %d, want 0", got)
	}
}

func TestTx_PanicRollsBack(t *testing.T) {
	db := openFileDB(t)
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected the panic to propagate")
			}
		}()
		_ = sqlbridge.WithTx(ctx, db, func(tx sqlbridge.Tx) error {
			if _, err := tx.Exec(ctx, "INSERT INTO items (name) VALUES (?)", "panicky"); err != nil {
				return err
			}
			panic("mid-transaction failure")
		})
	}()

	if got := countItems(t, db); got != 0 {
		t.Errorf("row count after panic = %d, want 0", got)
	}
}

func TestTx_FetchReadsCapturedResultSet(t *testing.T) {
	db := openFileDB(t)
	ctx := context.Background()
	mustExec(t, db, "INSERT INTO items (name) VALUES (?)", "captured")

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer tx.Close(ctx, nil) //nolint:errcheck // Test cleanup

	// Before any statement: no results, not an error.
	rec, err := tx.FetchOne(ctx)
	if err != nil || rec != nil {
		t.Errorf("FetchOne before exec = (%v, %v), want (nil, nil)", rec, err)
	}

	n, err := tx.Exec(ctx, "SELECT id, name FROM items")
	if err != nil {
		t.Fatalf("tx Exec(select) error = %v", err)
	}
	if n != 1 {
		t.Errorf("captured count = %d, want 1", n)
	}

	all, err := tx.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(all) != 1 || all[0]["name"] != "captured" {
		t.Errorf("FetchAll() = %v, want the captured row", all)
	}

	// A write clears the captured set.
	if _, err := tx.Exec(ctx, "INSERT INTO items (name) VALUES (?)", "clears"); err != nil {
		t.Fatalf("tx Exec(insert) error = %v", err)
	}
	rec, err = tx.FetchOne(ctx)
	if err != nil || rec != nil {
		t.Errorf("FetchOne after write = (%v, %v), want (nil, nil)", rec, err)
	}
}

func TestTx_ReentrantCommit(t *testing.T) {
	db := openFileDB(t)
	ctx := context.Background()

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if _, err := tx.Exec(ctx, "INSERT INTO items (name) VALUES (?)", "first"); err != nil {
		t.Fatalf("tx Exec() error = %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	// The scope stays usable after the explicit commit.
	if _, err := tx.Exec(ctx, "INSERT INTO items (name) VALUES (?)", "second"); err != nil {
		t.Fatalf("tx Exec() after commit error = %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	if err := tx.Close(ctx, nil); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Only the first insert survives: the second was rolled back.
	if got := countItems(t, db); got != 1 {
		t.Errorf("row count = %d, want 1", got)
	}
}

func TestBegin_MemoryModeRefused(t *testing.T) {
	db := openMemoryDB(t)

	_, err := db.Begin(context.Background())
	if !errors.Is(err, sqlbridge.ErrMemoryModeTransaction) {
		t.Errorf("Begin() error = %v, want ErrMemoryModeTransaction", err)
	}
}

func TestExec_WrapsQueryError(t *testing.T) {
	db := openFileDB(t)

	_, err := db.Exec(context.Background(), "INSERT INTO no_such_table (x) VALUES (1)")
	var qerr *sqlbridge.QueryError
	if !errors.As(err, &qerr) {
		t.Fatalf("expected *QueryError, got %v", err)
	}
	if qerr.Query == "" {
		t.Error("QueryError should carry the offending query text")
	}
}

func TestExec_BeforeConnect(t *testing.T) {
	db := New(Config{Path: filepath.Join(t.TempDir(), "x.db")})

	_, err := db.Exec(context.Background(), "SELECT 1")
	if !errors.Is(err, sqlbridge.ErrNotConnected) {
		t.Errorf("Exec() before Connect error = %v, want ErrNotConnected", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	db := openFileDB(t)

	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}

func TestFileMode_ConcurrentOperations(t *testing.T) {
	db := openFileDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := db.Exec(ctx, "INSERT INTO items (name) VALUES (?)", fmt.Sprintf("c-%d", i)); err != nil {
				t.Errorf("concurrent Exec() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := countItems(t, db); got != 20 {
		t.Errorf("row count = %d, want 20", got)
	}
}
