package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/LW1989/red-data-database/internal/stats"
	"github.com/LW1989/red-data-database/internal/store"
)

// openStore connects to Postgres using the loaded configuration.
func openStore(ctx context.Context) (*store.PostgresStore, error) {
	st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "connect to store")
	}
	return st, nil
}

// openJournal opens the local run journal. A missing journal is not
// fatal for stats runs, so callers log and continue on error.
func openJournal() (*store.SQLiteJournal, error) {
	j, err := store.NewSQLiteJournal(cfg.Journal.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open run journal")
	}
	return j, nil
}

// optionalJournal opens the journal and degrades to nil on failure.
func optionalJournal() *store.SQLiteJournal {
	j, err := openJournal()
	if err != nil {
		zap.L().Warn("run journal unavailable, continuing without it",
			zap.String("path", cfg.Journal.Path),
			zap.Error(err),
		)
		return nil
	}
	return j
}

// loadRegistry returns the configured metric registry: the groups file
// when set, the default census groups otherwise.
func loadRegistry() (*stats.Registry, error) {
	if cfg.Stats.GroupsFile == "" {
		return stats.DefaultRegistry(), nil
	}
	return stats.LoadRegistry(cfg.Stats.GroupsFile)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal output")
	}
	fmt.Println(string(data))
	return nil
}
