package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "zensus.fact_zensus_100m_heizungsart",
		Columns:      []string{"grid_id", "fernheizung"},
		ConflictKeys: []string{"grid_id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "zensus.fact_zensus_100m_heizungsart",
		ConflictKeys: []string{"grid_id"},
	}, [][]any{{"a", 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   "zensus.fact_zensus_100m_heizungsart",
		Columns: []string{"grid_id", "fernheizung"},
	}, [][]any{{"a", 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_FullPath(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"grid_id", "fernheizung", "zentralheizung"}
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_zensus_fact_zensus_100m_heizungsart"}, cols).WillReturnResult(2)
	mock.ExpectExec("DELETE FROM").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{
		{"CRS3035RES100mN2691650E4341150", int64(12), int64(30)},
		{"CRS3035RES100mN2691650E4341250", int64(7), int64(18)},
	}
	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "zensus.fact_zensus_100m_heizungsart",
		Columns:      cols,
		ConflictKeys: []string{"grid_id"},
	}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"grid_id", "fernheizung"}
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_zensus_fact_zensus_100m_heizungsart"}, cols).WillReturnError(errors.New("bad row"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "zensus.fact_zensus_100m_heizungsart",
		Columns:      cols,
		ConflictKeys: []string{"grid_id"},
	}, [][]any{{"x", int64(1)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"scratch", `"scratch"`},
		{"zensus.ref_grid_100m", `"zensus"."ref_grid_100m"`},
		{"analytics.fact_lwu_weighted_stats", `"analytics"."fact_lwu_weighted_stats"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeTable(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"grid_id", "gas", "heizoel"})
	assert.Equal(t, `"grid_id", "gas", "heizoel"`, result)
}
