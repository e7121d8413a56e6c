package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/featureindex/internal/duckdb"
	"github.com/inodb/featureindex/internal/feature"
	"github.com/inodb/featureindex/internal/index"
	"github.com/inodb/featureindex/internal/metrics"
	"github.com/inodb/featureindex/internal/search"
)

// app holds the database, the in-memory index rebuilt from it and the
// search engine over that index.
type app struct {
	db     *duckdb.Store
	ix     *index.Index
	engine *search.Engine
	logger *zap.Logger
}

// openApp opens the database and, when load is set, rebuilds the index from
// the persisted entries. Files whose entries fail to build are logged and
// left out of the index.
func openApp(ctx context.Context, load bool) (*app, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}

	db, err := duckdb.Open(viper.GetString("db.path"))
	if err != nil {
		return nil, err
	}

	ix := index.New()
	ix.SetLogger(logger)
	engine := search.New(ix, db, searchConfig())
	engine.SetLogger(logger)

	a := &app{db: db, ix: ix, engine: engine, logger: logger}
	if load {
		if err := a.load(ctx); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) load(ctx context.Context) error {
	return a.db.LoadAll(ctx, func(id feature.FileID, entries []*feature.Entry) error {
		if _, err := a.ix.Build(id, entries); err != nil {
			a.logger.Warn("skipping file on reload", zap.Int64("file_id", int64(id)), zap.Error(err))
		}
		return nil
	})
}

// close writes the metrics textfile, if configured, and closes the database.
func (a *app) close() error {
	if path := viper.GetString("metrics.textfile"); path != "" {
		reg := prometheus.NewRegistry()
		if err := metrics.Register(reg); err != nil {
			a.logger.Warn("register metrics", zap.Error(err))
		} else if err := prometheus.WriteToTextfile(path, reg); err != nil {
			a.logger.Warn("write metrics textfile", zap.String("path", path), zap.Error(err))
		}
	}
	a.logger.Sync()
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
