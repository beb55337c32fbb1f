package zensus

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/LW1989/red-data-database/internal/db"
)

// DefaultChunkSize bounds how many rows go into one upsert transaction.
const DefaultChunkSize = 50000

// LoaderConfig tunes a census load.
type LoaderConfig struct {
	ChunkSize  int
	SampleSize int
	Charset    string
	Format     Format
}

// Loader streams census CSVs into fact tables.
type Loader struct {
	pool db.Pool
	cfg  LoaderConfig
	log  *zap.Logger
}

// NewLoader builds a Loader, filling in defaults for zero config values.
func NewLoader(pool db.Pool, cfg LoaderConfig) *Loader {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = DefaultSampleSize
	}
	if cfg.Charset == "" {
		cfg.Charset = "utf-8"
	}
	if cfg.Format == (Format{}) {
		cfg.Format = GermanFormat
	}
	return &Loader{
		pool: pool,
		cfg:  cfg,
		log:  zap.L().With(zap.String("component", "zensus")),
	}
}

// NormalizeStats tallies parse outcomes across one load.
type NormalizeStats struct {
	Integers  int64 // values accepted on the integer path
	Decimals  int64 // values accepted on the decimal path
	Nulls     int64 // fields stored as NULL (sentinels, rejects, malformed)
	Anomalies int64 // malformed numeric text, a subset of Nulls
}

// RowFailure records one row that could not be persisted after the per-row
// retry.
type RowFailure struct {
	GridID string
	Err    string
}

// LoadSummary reports the outcome of loading one file. Partial success is
// the normal case: row failures are listed, not escalated.
type LoadSummary struct {
	File         string
	Table        string
	GridSize     GridSize
	RowsRead     int64
	RowsUpserted int64
	SkippedLines int64 // malformed CSV lines
	SkippedRows  int64 // rows without a usable grid id
	Stats        NormalizeStats
	Failures     []RowFailure
}

// Load loads a single CSV or every CSV under a directory.
func (l *Loader) Load(ctx context.Context, path string, recursive bool) ([]*LoadSummary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, eris.Wrapf(err, "zensus: stat %s", path)
	}
	if info.IsDir() {
		return l.LoadDir(ctx, path, recursive)
	}
	sum, err := l.LoadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return []*LoadSummary{sum}, nil
}

// LoadDir loads every CSV file in dir. Individual file failures are logged
// and collected; loading continues with the remaining files.
func (l *Loader) LoadDir(ctx context.Context, dir string, recursive bool) ([]*LoadSummary, error) {
	files, err := findCSVFiles(dir, recursive)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, eris.Errorf("zensus: no CSV files found in %s", dir)
	}

	l.log.Info("loading census files", zap.String("dir", dir), zap.Int("files", len(files)))

	var (
		summaries []*LoadSummary
		failed    int
	)
	for _, f := range files {
		sum, err := l.LoadFile(ctx, f)
		if err != nil {
			if ctx.Err() != nil {
				return summaries, eris.Wrap(err, "zensus: load cancelled")
			}
			failed++
			l.log.Error("failed to load file", zap.String("file", f), zap.Error(err))
			continue
		}
		summaries = append(summaries, sum)
	}

	if failed > 0 {
		return summaries, eris.Errorf("zensus: %d of %d files failed", failed, len(files))
	}
	return summaries, nil
}

// LoadFile loads one census CSV into its fact table: detect the dataset,
// infer the schema from a leading sample, create the table if needed, then
// upsert in chunks. A failed chunk is retried row by row; rows that still
// fail are reported in the summary and the load continues.
func (l *Loader) LoadFile(ctx context.Context, path string) (*LoadSummary, error) {
	ds, err := DetectDataset(path)
	if err != nil {
		return nil, err
	}

	log := l.log.With(zap.String("file", filepath.Base(path)), zap.String("table", ds.Table))
	log.Info("loading census file", zap.String("grid_size", string(ds.GridSize)), zap.Int("year", ds.Year))

	c, err := OpenCSV(path, l.cfg.Charset)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	sum := &LoadSummary{File: path, Table: ds.Table, GridSize: ds.GridSize}

	// Buffer the leading rows so the schema is committed before any row is
	// parsed with it.
	var sample [][]string
	for len(sample) < l.cfg.SampleSize {
		record, err := c.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			sum.SkippedLines++
			continue
		}
		if err != nil {
			return nil, eris.Wrapf(err, "zensus: read %s", path)
		}
		sample = append(sample, record)
	}

	schema, err := BuildSchema(ds, c.Header, sample, l.cfg.Format)
	if err != nil {
		return nil, err
	}
	if !schema.HasCoords() {
		log.Warn("center coordinate columns missing, keeping source grid ids as-is")
	}

	if _, err := l.pool.Exec(ctx, schema.CreateSQL()); err != nil {
		return nil, eris.Wrapf(err, "zensus: create table %s", ds.Table)
	}

	upsert := db.UpsertConfig{
		Table:        ds.Table,
		Columns:      schema.InsertColumns(),
		ConflictKeys: schema.ConflictKeys(),
	}

	batch := make([][]any, 0, l.cfg.ChunkSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "zensus: load cancelled")
		}
		l.upsertChunk(ctx, upsert, batch, sum, log)
		batch = batch[:0]
		return nil
	}

	process := func(record []string) error {
		sum.RowsRead++
		row, _, err := schema.BuildRow(record, l.cfg.Format, &sum.Stats)
		if err != nil {
			sum.SkippedRows++
			return nil
		}
		batch = append(batch, row)
		if len(batch) >= l.cfg.ChunkSize {
			return flush()
		}
		return nil
	}

	for _, record := range sample {
		if err := process(record); err != nil {
			return sum, err
		}
	}
	for {
		record, err := c.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			sum.SkippedLines++
			continue
		}
		if err != nil {
			return sum, eris.Wrapf(err, "zensus: read %s", path)
		}
		if err := process(record); err != nil {
			return sum, err
		}
	}
	if err := flush(); err != nil {
		return sum, err
	}

	log.Info("load complete",
		zap.Int64("rows_read", sum.RowsRead),
		zap.Int64("rows_upserted", sum.RowsUpserted),
		zap.Int64("skipped_lines", sum.SkippedLines),
		zap.Int64("nulls", sum.Stats.Nulls),
		zap.Int64("anomalies", sum.Stats.Anomalies),
		zap.Int("row_failures", len(sum.Failures)),
	)
	return sum, nil
}

// InspectSchema detects the dataset behind one census CSV and infers
// its fact table schema from a leading sample, without touching the
// database. This is the same detection and inference the loader
// commits before parsing its first row.
func InspectSchema(path string, cfg LoaderConfig) (*TableSchema, error) {
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = DefaultSampleSize
	}
	if cfg.Charset == "" {
		cfg.Charset = "utf-8"
	}
	if cfg.Format == (Format{}) {
		cfg.Format = GermanFormat
	}

	ds, err := DetectDataset(path)
	if err != nil {
		return nil, err
	}

	c, err := OpenCSV(path, cfg.Charset)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	var sample [][]string
	for len(sample) < cfg.SampleSize {
		record, err := c.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			continue
		}
		if err != nil {
			return nil, eris.Wrapf(err, "zensus: read %s", path)
		}
		sample = append(sample, record)
	}

	return BuildSchema(ds, c.Header, sample, cfg.Format)
}

// upsertChunk writes one chunk. On chunk failure every row is retried once
// in its own transaction; rows that still fail become RowFailures.
func (l *Loader) upsertChunk(ctx context.Context, cfg db.UpsertConfig, rows [][]any, sum *LoadSummary, log *zap.Logger) {
	n, err := db.BulkUpsert(ctx, l.pool, cfg, rows)
	if err == nil {
		sum.RowsUpserted += n
		return
	}

	log.Warn("chunk upsert failed, retrying rows individually",
		zap.Int("rows", len(rows)), zap.Error(err))

	for _, row := range rows {
		if _, rowErr := db.BulkUpsert(ctx, l.pool, cfg, [][]any{row}); rowErr != nil {
			gridID, _ := row[0].(string)
			sum.Failures = append(sum.Failures, RowFailure{GridID: gridID, Err: rowErr.Error()})
			continue
		}
		sum.RowsUpserted++
	}
}

func findCSVFiles(dir string, recursive bool) ([]string, error) {
	var files []string
	if recursive {
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".csv") {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, eris.Wrapf(err, "zensus: walk %s", dir)
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, eris.Wrapf(err, "zensus: read dir %s", dir)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
	}
	sort.Strings(files)
	return files, nil
}
