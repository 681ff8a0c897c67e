// Package rowscan converts database/sql result sets into column-name-keyed
// records. Text and blob columns arrive from some drivers as []byte; text is
// normalised to string so records compare and marshal predictably.
package rowscan

import (
	"database/sql"
	"fmt"

	"github.com/sqlbridge/sqlbridge"
)

// Records drains rows into a slice of records. The caller retains ownership
// of rows and must close them; Records consumes every row and surfaces the
// iteration error, if any. An empty result yields an empty, non-nil slice.
func Records(rows *sql.Rows) ([]sqlbridge.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	records := make([]sqlbridge.Record, 0)
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		rec := make(sqlbridge.Record, len(cols))
		for i, col := range cols {
			rec[col] = normalize(values[i])
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return records, nil
}

// normalize converts driver []byte text values to string.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
