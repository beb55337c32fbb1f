package stats

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/LW1989/red-data-database/internal/model"
	"github.com/LW1989/red-data-database/internal/store"
)

// DefaultChunkSize is the writer's default rows-per-transaction.
const DefaultChunkSize = 500

// Writer funnels computed statistics into the result table in bounded
// chunks. Each chunk is one upsert transaction; a failed chunk is
// retried once per row so a single poisoned row cannot sink the run.
type Writer struct {
	store     store.Store
	columns   []string
	chunkSize int
}

// NewWriter builds a writer for the given output columns. chunkSize
// values below one fall back to the default.
func NewWriter(st store.Store, columns []string, chunkSize int) *Writer {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	return &Writer{store: st, columns: columns, chunkSize: chunkSize}
}

// WriteReport is the writer's tally for one run.
type WriteReport struct {
	Written  int
	Failures []model.RowFailure
}

// Drain consumes statistics until the channel closes and upserts them
// chunk by chunk. Cancellation is honored between chunks: a canceled
// context stops further writes but never abandons a transaction
// half-committed.
func (w *Writer) Drain(ctx context.Context, in <-chan model.WeightedStatistic) WriteReport {
	log := zap.L().With(zap.String("component", "stats_writer"))

	var report WriteReport
	chunk := make([]model.WeightedStatistic, 0, w.chunkSize)

	for stat := range in {
		if ctx.Err() != nil {
			continue
		}
		chunk = append(chunk, stat)
		if len(chunk) >= w.chunkSize {
			w.flush(ctx, log, chunk, &report)
			chunk = chunk[:0]
		}
	}
	if ctx.Err() == nil && len(chunk) > 0 {
		w.flush(ctx, log, chunk, &report)
	}
	return report
}

func (w *Writer) flush(ctx context.Context, log *zap.Logger, chunk []model.WeightedStatistic, report *WriteReport) {
	now := time.Now().UTC()
	for i := range chunk {
		chunk[i].CreatedAt = now
	}

	err := w.store.UpsertStatistics(ctx, w.columns, chunk)
	if err == nil {
		report.Written += len(chunk)
		return
	}
	log.Warn("chunk upsert failed, retrying rows individually",
		zap.Int("rows", len(chunk)),
		zap.Error(err),
	)

	for _, stat := range chunk {
		if rowErr := w.store.UpsertStatistics(ctx, w.columns, []model.WeightedStatistic{stat}); rowErr != nil {
			report.Failures = append(report.Failures, model.RowFailure{
				PropertyID: stat.PropertyID,
				Err:        rowErr.Error(),
			})
			log.Warn("statistic row rejected",
				zap.String("property_id", stat.PropertyID),
				zap.Error(rowErr),
			)
			continue
		}
		report.Written++
	}
}
