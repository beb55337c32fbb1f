package stats

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LW1989/red-data-database/internal/model"
	"github.com/LW1989/red-data-database/internal/store"
	"github.com/LW1989/red-data-database/internal/zensus"
)

// DefaultConcurrency is the worker count when none is configured.
const DefaultConcurrency = 8

// Options tunes a stats run.
type Options struct {
	GridSize    zensus.GridSize
	Year        int
	Concurrency int
	ChunkSize   int
	Audit       bool
}

// Engine runs the full per-property aggregation: overlaps, weighted
// sums, result rows. Every property in the reference table produces a
// row, populated or null.
type Engine struct {
	store    store.Store
	journal  store.Journal
	registry *Registry
	opts     Options
}

// NewEngine wires an engine. journal may be nil when no local journal
// is configured; registry nil means the default census groups.
func NewEngine(st store.Store, journal store.Journal, registry *Registry, opts Options) *Engine {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if opts.GridSize == "" {
		opts.GridSize = zensus.Grid100m
	}
	if opts.Year == 0 {
		opts.Year = zensus.DefaultYear
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.ChunkSize < 1 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &Engine{store: st, journal: journal, registry: registry, opts: opts}
}

// propertyOutcome carries one worker's counters back to the summary.
type propertyOutcome struct {
	cells      int
	nullGroups []string
}

// Run processes every property and returns the run summary. Properties
// that fail to resolve or persist are reported in the summary and the
// journal; only cancellation aborts the run.
func (e *Engine) Run(ctx context.Context) (*model.RunSummary, error) {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("component", "stats"), zap.String("run_id", runID))
	started := time.Now().UTC()

	e.journalCreate(ctx, log, &model.StatsRun{ID: runID, Status: model.RunStatusRunning, StartedAt: started})

	properties, err := e.store.ListProperties(ctx)
	if err != nil {
		e.journalFinish(ctx, log, runID, model.RunStatusFailed, model.RunSummary{})
		return nil, eris.Wrap(err, "stats: list properties")
	}

	log.Info("stats run started",
		zap.Int("properties", len(properties)),
		zap.Int("groups", len(e.registry.Groups)),
		zap.Int("year", e.opts.Year),
		zap.Int("concurrency", e.opts.Concurrency),
	)

	summary := model.RunSummary{Properties: len(properties)}
	var mu sync.Mutex

	resolver := NewOverlapResolver(e.store, e.opts.GridSize)
	writer := NewWriter(e.store, e.registry.Columns(), e.opts.ChunkSize)

	out := make(chan model.WeightedStatistic, e.opts.Concurrency*2)
	writerDone := make(chan WriteReport, 1)
	go func() {
		writerDone <- writer.Drain(ctx, out)
	}()

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for _, prop := range properties {
		g.Go(func() error {
			stat, outcome, propErr := e.processProperty(gCtx, log, resolver, runID, prop)
			if propErr != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				failure := model.RowFailure{PropertyID: prop.ID, Err: propErr.Error()}
				mu.Lock()
				summary.Failures = append(summary.Failures, failure)
				mu.Unlock()
				e.journalFailure(gCtx, log, runID, failure)
				log.Warn("property aggregation failed",
					zap.String("property_id", prop.ID),
					zap.Error(propErr),
				)
				return nil
			}

			mu.Lock()
			summary.Processed++
			summary.CellsMatched += outcome.cells
			if outcome.cells == 0 {
				summary.NoOverlap++
			}
			for _, name := range outcome.nullGroups {
				summary.AddNullGroup(name)
			}
			mu.Unlock()

			select {
			case out <- stat:
				return nil
			case <-gCtx.Done():
				return gCtx.Err()
			}
		})
	}

	runErr := g.Wait()
	close(out)
	report := <-writerDone

	summary.RowsWritten = report.Written
	for _, failure := range report.Failures {
		summary.Failures = append(summary.Failures, failure)
		e.journalFailure(ctx, log, runID, failure)
	}

	status := model.RunStatusComplete
	if runErr != nil {
		status = model.RunStatusFailed
	}
	e.journalFinish(ctx, log, runID, status, summary)

	if runErr != nil {
		return &summary, eris.Wrap(runErr, "stats: run aborted")
	}

	log.Info("stats run complete",
		zap.Int("properties", summary.Properties),
		zap.Int("processed", summary.Processed),
		zap.Int("no_overlap", summary.NoOverlap),
		zap.Int("cells_matched", summary.CellsMatched),
		zap.Int("rows_written", summary.RowsWritten),
		zap.Int("failures", len(summary.Failures)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return &summary, nil
}

// processProperty aggregates every metric group for one property.
func (e *Engine) processProperty(ctx context.Context, log *zap.Logger, resolver *OverlapResolver, runID string, prop model.Property) (model.WeightedStatistic, propertyOutcome, error) {
	var outcome propertyOutcome

	overlaps, err := resolver.Resolve(ctx, prop)
	if err != nil {
		return model.WeightedStatistic{}, outcome, err
	}
	outcome.cells = len(overlaps)

	gridIDs := make([]string, len(overlaps))
	for i, ov := range overlaps {
		gridIDs[i] = ov.GridID
	}

	stat := model.WeightedStatistic{
		PropertyID: prop.ID,
		Values:     make(map[string]*float64, len(e.registry.Columns())),
	}

	var traces []model.AuditTrace
	for _, grp := range e.registry.Groups {
		var confidence float64
		var contribs []Contribution

		switch grp.Kind {
		case KindScalar:
			var cells []ScalarCell
			if len(gridIDs) > 0 {
				facts, factErr := e.store.ScalarFacts(ctx, grp.Table, grp.ValueColumn, grp.DensityColumn, e.opts.Year, gridIDs)
				if factErr != nil {
					return model.WeightedStatistic{}, outcome, eris.Wrapf(factErr, "stats: fetch %s facts", grp.Name)
				}
				for _, ov := range overlaps {
					fact, ok := facts[ov.GridID]
					if !ok {
						continue
					}
					cells = append(cells, ScalarCell{GridID: ov.GridID, Ratio: ov.Ratio, Value: fact.Value, Density: fact.Density})
				}
			}
			result, resultContribs := AggregateScalar(cells)
			stat.Values[grp.OutputValue] = result.Value
			confidence = result.Confidence
			contribs = resultContribs

		case KindCategorical:
			var cells []CategoryCell
			if len(gridIDs) > 0 {
				facts, factErr := e.store.CategoryFacts(ctx, grp.Table, grp.Categories, e.opts.Year, gridIDs)
				if factErr != nil {
					return model.WeightedStatistic{}, outcome, eris.Wrapf(factErr, "stats: fetch %s facts", grp.Name)
				}
				for _, ov := range overlaps {
					values, ok := facts[ov.GridID]
					if !ok {
						continue
					}
					cells = append(cells, CategoryCell{GridID: ov.GridID, Ratio: ov.Ratio, Values: values})
				}
			}
			result, resultContribs := AggregateCategories(cells, len(grp.Categories))
			for i, cat := range grp.Categories {
				stat.Values[grp.CategoryColumn(cat)] = result.Proportions[i]
			}
			confidence = result.Confidence
			contribs = resultContribs
		}

		conf := confidence
		stat.Values[grp.Confidence] = &conf
		if confidence == 0 {
			outcome.nullGroups = append(outcome.nullGroups, grp.Name)
		}

		if e.opts.Audit {
			for _, c := range contribs {
				traces = append(traces, model.AuditTrace{
					PropertyID: prop.ID,
					GridID:     c.GridID,
					Group:      grp.Name,
					Ratio:      c.Ratio,
					Density:    c.Density,
					Weight:     c.Weight,
					Value:      c.Value,
				})
			}
		}
	}

	if e.opts.Audit && e.journal != nil && len(traces) > 0 {
		if journalErr := e.journal.AppendTraces(ctx, runID, traces); journalErr != nil {
			log.Warn("audit trace write failed",
				zap.String("property_id", prop.ID),
				zap.Error(journalErr),
			)
		}
	}

	return stat, outcome, nil
}

func (e *Engine) journalCreate(ctx context.Context, log *zap.Logger, run *model.StatsRun) {
	if e.journal == nil {
		return
	}
	if err := e.journal.CreateRun(ctx, run); err != nil {
		log.Warn("journal create failed", zap.Error(err))
	}
}

func (e *Engine) journalFinish(ctx context.Context, log *zap.Logger, runID string, status model.RunStatus, summary model.RunSummary) {
	if e.journal == nil {
		return
	}
	if err := e.journal.FinishRun(ctx, runID, status, summary); err != nil {
		log.Warn("journal finish failed", zap.Error(err))
	}
}

func (e *Engine) journalFailure(ctx context.Context, log *zap.Logger, runID string, failure model.RowFailure) {
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordFailure(ctx, runID, failure); err != nil {
		log.Warn("journal failure record failed", zap.Error(err))
	}
}
