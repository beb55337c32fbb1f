package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/LW1989/red-data-database/internal/db"
	"github.com/LW1989/red-data-database/internal/geo"
	"github.com/LW1989/red-data-database/internal/model"
	"github.com/LW1989/red-data-database/internal/zensus"
)

const statsTable = "analytics.fact_lwu_weighted_stats"

// PostgresStore implements Store against the zensus/analytics schemas.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

var _ Store = (*PostgresStore)(nil)

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool, e.g. a pgxmock pool in
// tests. Close is a no-op on the wrapped pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool exposes the underlying pool for the ETL loaders and migrations,
// which write tables the Store interface does not cover.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// ListProperties returns every property parcel with its decoded
// geometry. Parcels whose stored geometry is missing or undecodable
// come back with an empty geometry; they still flow through a stats run
// and produce a null row.
func (s *PostgresStore) ListProperties(ctx context.Context) ([]model.Property, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT property_id, COALESCE(original_id, ''), geom
		 FROM zensus.ref_lwu_properties
		 ORDER BY property_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list properties")
	}
	defer rows.Close()

	var props []model.Property
	var undecodable int
	for rows.Next() {
		var p model.Property
		var raw []byte
		if err := rows.Scan(&p.ID, &p.OriginalID, &raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan property")
		}
		if len(raw) > 0 {
			g, decErr := geo.FromEWKB(raw)
			if decErr != nil {
				undecodable++
			} else {
				p.Geom = g
			}
		}
		props = append(props, p)
	}
	if undecodable > 0 {
		zap.L().Warn("properties with undecodable geometry",
			zap.String("component", "store"),
			zap.Int("count", undecodable),
		)
	}
	return props, eris.Wrap(rows.Err(), "postgres: list properties iterate")
}

// CandidateCells returns the grid cells whose centers fall inside the
// given extent. Callers widen the extent by half a cell so every square
// that can touch the target geometry is included.
func (s *PostgresStore) CandidateCells(ctx context.Context, size zensus.GridSize, bounds geo.Rect) ([]model.GridCell, error) {
	if !size.Valid() {
		return nil, eris.Errorf("postgres: invalid grid size %q", size)
	}

	query := fmt.Sprintf(
		`SELECT grid_id, x_mp, y_mp FROM %s
		 WHERE x_mp BETWEEN $1 AND $2 AND y_mp BETWEEN $3 AND $4`,
		sanitizeTable(size.RefTable()),
	)
	rows, err := s.pool.Query(ctx, query, bounds.MinX, bounds.MaxX, bounds.MinY, bounds.MaxY)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: candidate cells %s", size)
	}
	defer rows.Close()

	var cells []model.GridCell
	for rows.Next() {
		var c model.GridCell
		var x, y int64
		if err := rows.Scan(&c.GridID, &x, &y); err != nil {
			return nil, eris.Wrap(err, "postgres: scan grid cell")
		}
		c.X, c.Y = float64(x), float64(y)
		cells = append(cells, c)
	}
	return cells, eris.Wrap(rows.Err(), "postgres: candidate cells iterate")
}

// ScalarFacts returns value and density per grid cell for a scalar
// metric. Rows with a null value, null density or non-positive density
// are excluded here: they can never contribute weight.
func (s *PostgresStore) ScalarFacts(ctx context.Context, table, valueColumn, densityColumn string, year int, gridIDs []string) (map[string]model.ScalarFact, error) {
	if len(gridIDs) == 0 {
		return map[string]model.ScalarFact{}, nil
	}

	valueCol := pgx.Identifier{valueColumn}.Sanitize()
	densityCol := pgx.Identifier{densityColumn}.Sanitize()
	query := fmt.Sprintf(
		`SELECT grid_id, %s::float8, %s::float8 FROM %s
		 WHERE year = $1 AND grid_id = ANY($2)
		   AND %s IS NOT NULL AND %s IS NOT NULL AND %s > 0`,
		valueCol, densityCol, sanitizeTable(table),
		valueCol, densityCol, densityCol,
	)
	rows, err := s.pool.Query(ctx, query, year, gridIDs)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: scalar facts %s", table)
	}
	defer rows.Close()

	facts := make(map[string]model.ScalarFact)
	for rows.Next() {
		var gridID string
		var value, density float64
		if err := rows.Scan(&gridID, &value, &density); err != nil {
			return nil, eris.Wrap(err, "postgres: scan scalar fact")
		}
		v, d := value, density
		facts[gridID] = model.ScalarFact{Value: &v, Density: &d}
	}
	return facts, eris.Wrap(rows.Err(), "postgres: scalar facts iterate")
}

// CategoryFacts returns the named category columns per grid cell,
// preserving column order. NULL category values stay nil.
func (s *PostgresStore) CategoryFacts(ctx context.Context, table string, columns []string, year int, gridIDs []string) (map[string][]*float64, error) {
	if len(gridIDs) == 0 {
		return map[string][]*float64{}, nil
	}

	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = pgx.Identifier{c}.Sanitize() + "::float8"
	}
	query := fmt.Sprintf(
		`SELECT grid_id, %s FROM %s WHERE year = $1 AND grid_id = ANY($2)`,
		strings.Join(cols, ", "), sanitizeTable(table),
	)
	rows, err := s.pool.Query(ctx, query, year, gridIDs)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: category facts %s", table)
	}
	defer rows.Close()

	facts := make(map[string][]*float64)
	for rows.Next() {
		var gridID string
		values := make([]*float64, len(columns))
		dest := make([]any, 0, len(columns)+1)
		dest = append(dest, &gridID)
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan category fact")
		}
		facts[gridID] = values
	}
	return facts, eris.Wrap(rows.Err(), "postgres: category facts iterate")
}

// UpsertStatistics writes one chunk of result rows in a single
// transaction, replacing any prior row per property id.
func (s *PostgresStore) UpsertStatistics(ctx context.Context, columns []string, stats []model.WeightedStatistic) error {
	if len(stats) == 0 {
		return nil
	}

	allCols := make([]string, 0, len(columns)+2)
	allCols = append(allCols, "property_id")
	allCols = append(allCols, columns...)
	allCols = append(allCols, "created_at")

	rows := make([][]any, 0, len(stats))
	for i := range stats {
		stat := &stats[i]
		row := make([]any, 0, len(allCols))
		row = append(row, stat.PropertyID)
		for _, col := range columns {
			v := stat.Value(col)
			if v == nil {
				row = append(row, nil)
			} else {
				row = append(row, *v)
			}
		}
		createdAt := stat.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		row = append(row, createdAt)
		rows = append(rows, row)
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        statsTable,
		Columns:      allCols,
		ConflictKeys: []string{"property_id"},
	}, rows)
	return eris.Wrap(err, "postgres: upsert statistics")
}

// GetStatistic returns the stored result row for one property, or nil
// when none exists. Result columns are read dynamically so a registry
// override with extra groups needs no code change here.
func (s *PostgresStore) GetStatistic(ctx context.Context, propertyID string) (*model.WeightedStatistic, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT * FROM %s WHERE property_id = $1`, sanitizeTable(statsTable)),
		propertyID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get statistic %s", propertyID)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, eris.Wrap(rows.Err(), "postgres: get statistic iterate")
	}
	stat, err := scanStatistic(rows)
	if err != nil {
		return nil, err
	}
	return stat, eris.Wrap(rows.Err(), "postgres: get statistic iterate")
}

// ListStatistics pages through stored results ordered by property id.
func (s *PostgresStore) ListStatistics(ctx context.Context, filter StatFilter) ([]model.WeightedStatistic, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT * FROM %s ORDER BY property_id LIMIT $1`, sanitizeTable(statsTable))
	args := []any{limit}
	if filter.Offset > 0 {
		query += ` OFFSET $2`
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list statistics")
	}
	defer rows.Close()

	var stats []model.WeightedStatistic
	for rows.Next() {
		stat, err := scanStatistic(rows)
		if err != nil {
			return nil, err
		}
		stats = append(stats, *stat)
	}
	return stats, eris.Wrap(rows.Err(), "postgres: list statistics iterate")
}

// scanStatistic reads the current row into a WeightedStatistic using
// the result set's own column names.
func scanStatistic(rows pgx.Rows) (*model.WeightedStatistic, error) {
	values, err := rows.Values()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: read statistic row")
	}

	stat := &model.WeightedStatistic{Values: make(map[string]*float64)}
	for i, fd := range rows.FieldDescriptions() {
		switch fd.Name {
		case "property_id":
			if s, ok := values[i].(string); ok {
				stat.PropertyID = s
			}
		case "created_at":
			if t, ok := values[i].(time.Time); ok {
				stat.CreatedAt = t
			}
		default:
			if values[i] == nil {
				stat.Values[fd.Name] = nil
				continue
			}
			switch v := values[i].(type) {
			case float64:
				f := v
				stat.Values[fd.Name] = &f
			case float32:
				f := float64(v)
				stat.Values[fd.Name] = &f
			case int64:
				f := float64(v)
				stat.Values[fd.Name] = &f
			}
		}
	}
	return stat, nil
}

// CoverageSummary reports the property count, the stored result rows,
// and per metric group how many rows carry a positive confidence.
// Groups are discovered from the result table's confidence columns, so
// the summary tracks whatever registry produced the table.
func (s *PostgresStore) CoverageSummary(ctx context.Context) (*model.Coverage, error) {
	cov := &model.Coverage{WithData: make(map[string]int)}

	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM zensus.ref_lwu_properties`,
	).Scan(&cov.Properties); err != nil {
		return nil, eris.Wrap(err, "postgres: count properties")
	}
	if err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s`, sanitizeTable(statsTable)),
	).Scan(&cov.Rows); err != nil {
		return nil, eris.Wrap(err, "postgres: count statistics")
	}

	groups, err := s.confidenceColumns(ctx)
	if err != nil {
		return nil, err
	}
	for group, col := range groups {
		var n int
		query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s > 0`,
			sanitizeTable(statsTable), pgx.Identifier{col}.Sanitize())
		if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "postgres: coverage for %s", group)
		}
		cov.WithData[group] = n
	}
	return cov, nil
}

// confidenceColumns maps metric group name to its confidence column,
// read from the result table definition.
func (s *PostgresStore) confidenceColumns(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = 'analytics' AND table_name = 'fact_lwu_weighted_stats'
		 ORDER BY ordinal_position`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: read statistic columns")
	}
	defer rows.Close()

	groups := make(map[string]string)
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, eris.Wrap(err, "postgres: scan statistic column")
		}
		for _, suffix := range []string{"_total_flats", "_total_buildings"} {
			if group, ok := strings.CutSuffix(col, suffix); ok {
				groups[group] = col
			}
		}
	}
	return groups, eris.Wrap(rows.Err(), "postgres: read statistic columns iterate")
}

// TableCount is one fact table's row count for the status report.
type TableCount struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// FactTableCounts lists the loaded census fact tables with their row
// counts, ordered by table name.
func (s *PostgresStore) FactTableCounts(ctx context.Context) ([]TableCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = 'zensus' AND table_name LIKE 'fact_zensus_%'
		 ORDER BY table_name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list fact tables")
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan fact table name")
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list fact tables iterate")
	}

	counts := make([]TableCount, 0, len(names))
	for _, name := range names {
		var n int64
		query := fmt.Sprintf(`SELECT count(*) FROM %s`, pgx.Identifier{"zensus", name}.Sanitize())
		if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "postgres: count %s", name)
		}
		counts = append(counts, TableCount{Table: "zensus." + name, Rows: n})
	}
	return counts, nil
}

// sanitizeTable quotes a possibly schema-qualified table name.
func sanitizeTable(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}
