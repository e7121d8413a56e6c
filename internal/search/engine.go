// Package search answers filtered, paginated, grouped and cross-file queries
// over the feature index.
package search

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inodb/featureindex/internal/catalog"
	"github.com/inodb/featureindex/internal/feature"
	"github.com/inodb/featureindex/internal/filter"
	"github.com/inodb/featureindex/internal/index"
	"github.com/inodb/featureindex/internal/metrics"
	"github.com/inodb/featureindex/internal/query"
	"github.com/inodb/featureindex/internal/store"
)

// ErrStoreTimeout marks a store whose evaluation exceeded the per-store
// budget. Its contribution is dropped; the query still succeeds.
var ErrStoreTimeout = errors.New("store evaluation timed out")

// Config tunes the engine.
type Config struct {
	// Workers bounds concurrent per-store evaluations. 0 means runtime.NumCPU().
	Workers int
	// StoreTimeout is the per-store budget. 0 disables it.
	StoreTimeout time.Duration
	// MaxResults caps feature name searches; larger totals set ExceedsLimit.
	MaxResults int
	// PageSize is used when a filter leaves PageSize at 0.
	PageSize int
	// CatalogCacheSize bounds the merged catalogs kept per file set.
	CatalogCacheSize int
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() Config {
	return Config{
		Workers:          runtime.NumCPU(),
		StoreTimeout:     30 * time.Second,
		MaxResults:       100,
		PageSize:         50,
		CatalogCacheSize: 128,
	}
}

// Result is one page of a filtered, merged result set.
type Result struct {
	Entries      []*feature.Entry `json:"entries"`
	TotalCount   int              `json:"total_count"`
	ExceedsLimit bool             `json:"exceeds_limit,omitempty"`
}

// Engine fans queries out over the stores of an index.
type Engine struct {
	ix       *index.Index
	resolver Resolver
	cfg      Config
	logger   *zap.Logger

	// snapshots caches merged catalogs by file IDs and store generations.
	snapshots *lru.Cache[string, *catalog.Snapshot]

	// evaluate runs the planner against one store.
	evaluate func(*store.Store, *filter.Filter) []*feature.Entry
}

// New creates an engine over ix. resolver may be nil when only explicit file
// scopes are used.
func New(ix *index.Index, resolver Resolver, cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultConfig().MaxResults
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultConfig().PageSize
	}
	if cfg.CatalogCacheSize <= 0 {
		cfg.CatalogCacheSize = DefaultConfig().CatalogCacheSize
	}
	snapshots, _ := lru.New[string, *catalog.Snapshot](cfg.CatalogCacheSize)
	return &Engine{
		ix:        ix,
		resolver:  resolver,
		cfg:       cfg,
		logger:    zap.NewNop(),
		snapshots: snapshots,
		evaluate:  query.Evaluate,
	}
}

// SetLogger sets the logger for skipped stores and query errors.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.logger = l
}

// handles resolves scope to the committed handles. Files without a store are
// skipped.
func (e *Engine) handles(ctx context.Context, scope Scope) ([]*index.Handle, error) {
	ids, err := e.fileIDs(ctx, scope)
	if err != nil {
		return nil, err
	}
	handles := make([]*index.Handle, 0, len(ids))
	for _, id := range ids {
		h, err := e.ix.Get(id)
		if err != nil {
			metrics.StoresSkipped.WithLabelValues("unavailable").Inc()
			e.logger.Debug("skipping file without store", zap.Int64("file_id", int64(id)))
			continue
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// collect evaluates f on every handle and merges the per-store results in the
// order f asks for.
func (e *Engine) collect(ctx context.Context, handles []*index.Handle, f *filter.Filter) ([]*feature.Entry, error) {
	lists, err := e.fanOut(ctx, handles, f)
	if err != nil {
		return nil, err
	}
	if f.Sort.IsDefault() {
		return query.MergeSorted(lists, feature.CompareDefault), nil
	}
	return query.SortAll(lists, query.Comparator(f.Sort)), nil
}

// fanOut runs the per-store evaluations on at most cfg.Workers goroutines.
// Stores are disjoint, so results need no locking beyond their own slot.
// Cancelling ctx stops stores that have not started.
func (e *Engine) fanOut(ctx context.Context, handles []*index.Handle, f *filter.Filter) ([][]*feature.Entry, error) {
	lists := make([][]*feature.Entry, len(handles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	for i, h := range handles {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entries, err := e.evaluateStore(gctx, h, f)
			if errors.Is(err, ErrStoreTimeout) {
				metrics.StoresSkipped.WithLabelValues("timeout").Inc()
				e.logger.Warn("dropping slow store from query",
					zap.Int64("file_id", int64(h.FileID)),
					zap.Duration("timeout", e.cfg.StoreTimeout))
				return nil
			}
			if err != nil {
				return err
			}
			lists[i] = entries
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("evaluate stores: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evaluate stores: %w", err)
	}
	return lists, nil
}

// evaluateStore runs one store evaluation under the per-store budget. The scan
// itself is bounded and not interrupted; on timeout its result is discarded.
func (e *Engine) evaluateStore(ctx context.Context, h *index.Handle, f *filter.Filter) ([]*feature.Entry, error) {
	done := make(chan []*feature.Entry, 1)
	go func() {
		done <- e.evaluate(h.Store, f)
	}()

	var timeout <-chan time.Time
	if e.cfg.StoreTimeout > 0 {
		t := time.NewTimer(e.cfg.StoreTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case entries := <-done:
		return entries, nil
	case <-timeout:
		return nil, fmt.Errorf("file %d: %w", h.FileID, ErrStoreTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// validate checks f and, when any store is present, that every field it names
// was observed in those stores.
func validate(f *filter.Filter, snap *catalog.Snapshot) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if snap == nil {
		return nil
	}
	for _, name := range f.CategoricalFields() {
		if !snap.HasCategorical(name) {
			return &filter.UnknownFieldError{Field: name, Kind: "categorical"}
		}
	}
	for _, name := range f.NumericFields() {
		if !snap.HasNumeric(name) {
			return &filter.UnknownFieldError{Field: name, Kind: "numeric"}
		}
	}
	for _, name := range f.InfoFields() {
		if !snap.HasInfo(name) {
			return &filter.UnknownFieldError{Field: name, Kind: "info"}
		}
	}
	if name := f.Sort.Field; !query.IsBuiltinField(name) && !knownField(snap, name) {
		return &filter.UnknownFieldError{Field: name, Kind: "sort"}
	}
	return nil
}

func knownField(snap *catalog.Snapshot, name string) bool {
	return snap.HasCategorical(name) || snap.HasNumeric(name) || snap.HasInfo(name)
}

// snapshotOf returns the merged catalog of handles, or nil when there are
// none. A rebuilt store has a new generation, so stale entries are never hit.
// The result is shared through the cache and must not be modified.
func (e *Engine) snapshotOf(handles []*index.Handle) *catalog.Snapshot {
	if len(handles) == 0 {
		return nil
	}
	var key strings.Builder
	for _, h := range handles {
		key.WriteString(strconv.FormatInt(int64(h.FileID), 10))
		key.WriteByte(':')
		key.WriteString(strconv.FormatUint(h.Generation, 10))
		key.WriteByte(',')
	}
	if snap, ok := e.snapshots.Get(key.String()); ok {
		return snap
	}
	snap := catalog.Merge(catalogsOf(handles)...)
	e.snapshots.Add(key.String(), snap)
	return snap
}

// observe records the outcome of an operation.
func (e *Engine) observe(op string, start time.Time, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, filter.ErrUnknownField), errors.Is(err, filter.ErrInvalidFilter), errors.Is(err, ErrEmptyScope):
		result = "rejected"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = "cancelled"
	default:
		result = "error"
	}
	metrics.Queries.WithLabelValues(op, result).Inc()
	metrics.QueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if result == "error" {
		e.logger.Error("query failed", zap.String("op", op), zap.Error(err))
	}
}
