// Package db provides shared database helpers for bulk COPY and upsert
// operations against the zensus and analytics schemas.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyInto bulk-inserts rows into a table using the PostgreSQL COPY
// protocol. The table name may be schema-qualified ("zensus.ref_grid_100m").
// COPY is the fastest path for the reference-layer loaders, which insert
// millions of grid cells per run.
func CopyInto(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	copySource := pgx.CopyFromRows(rows)
	n, err := pool.CopyFrom(ctx, tableIdentifier(table), columns, copySource)
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}

	return n, nil
}

// tableIdentifier builds a pgx.Identifier from a possibly schema-qualified
// table name.
func tableIdentifier(table string) pgx.Identifier {
	if schema, name, ok := splitTable(table); ok {
		return pgx.Identifier{schema, name}
	}
	return pgx.Identifier{table}
}
