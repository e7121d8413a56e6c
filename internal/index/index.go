// Package index keeps the committed record store and field catalog of every
// indexed file. Rebuilding a file swaps its handle atomically: readers holding
// the old handle keep a whole, stale view and never see a partial build.
package index

import (
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/inodb/featureindex/internal/catalog"
	"github.com/inodb/featureindex/internal/feature"
	"github.com/inodb/featureindex/internal/metrics"
	"github.com/inodb/featureindex/internal/store"
)

// ErrStoreUnavailable is returned for a file with no committed store.
var ErrStoreUnavailable = errors.New("store unavailable")

// Handle is an immutable snapshot of one file's index.
type Handle struct {
	FileID     feature.FileID
	Store      *store.Store
	Catalog    *catalog.Catalog
	Generation uint64
	BuiltAt    time.Time
}

// Index maps file IDs to their current handle.
type Index struct {
	handles    *xsync.MapOf[feature.FileID, *Handle]
	generation atomic.Uint64
	logger     *zap.Logger
}

// New creates an empty index.
func New() *Index {
	return &Index{
		handles: xsync.NewMapOf[feature.FileID, *Handle](),
		logger:  zap.NewNop(),
	}
}

// SetLogger sets the logger for build and removal messages.
func (ix *Index) SetLogger(l *zap.Logger) {
	ix.logger = l
}

// Build indexes entries for fileID off to the side and then replaces the
// file's handle. The catalog is filled by a single sequential pass. On error
// the previous handle, if any, stays in place.
func (ix *Index) Build(fileID feature.FileID, entries []*feature.Entry) (*Handle, error) {
	s, err := store.Build(fileID, entries)
	if err != nil {
		metrics.Builds.WithLabelValues("malformed").Inc()
		ix.logger.Warn("index build rejected",
			zap.Int64("file_id", int64(fileID)),
			zap.Error(err))
		return nil, fmt.Errorf("build store: %w", err)
	}

	c := catalog.New()
	for e := range s.All() {
		c.Observe(e)
	}

	h := &Handle{
		FileID:     fileID,
		Store:      s,
		Catalog:    c,
		Generation: ix.generation.Add(1),
		BuiltAt:    time.Now(),
	}

	old, replaced := ix.handles.LoadAndStore(fileID, h)
	delta := s.Size()
	if replaced {
		delta -= old.Store.Size()
	} else {
		metrics.IndexedFiles.Inc()
	}
	metrics.IndexedEntries.Add(float64(delta))
	metrics.Builds.WithLabelValues("ok").Inc()

	ix.logger.Info("index committed",
		zap.Int64("file_id", int64(fileID)),
		zap.Int("entries", s.Size()),
		zap.Bool("replaced", replaced),
		zap.Uint64("generation", h.Generation))
	return h, nil
}

// Remove deregisters fileID. It reports whether a handle was present.
func (ix *Index) Remove(fileID feature.FileID) bool {
	old, ok := ix.handles.LoadAndDelete(fileID)
	if !ok {
		return false
	}
	metrics.IndexedFiles.Dec()
	metrics.IndexedEntries.Sub(float64(old.Store.Size()))
	ix.logger.Info("index removed", zap.Int64("file_id", int64(fileID)))
	return true
}

// Get returns the current handle of fileID.
func (ix *Index) Get(fileID feature.FileID) (*Handle, error) {
	h, ok := ix.handles.Load(fileID)
	if !ok {
		return nil, fmt.Errorf("file %d: %w", fileID, ErrStoreUnavailable)
	}
	return h, nil
}

// FileIDs returns the indexed file IDs in ascending order.
func (ix *Index) FileIDs() []feature.FileID {
	ids := make([]feature.FileID, 0, ix.handles.Size())
	ix.handles.Range(func(id feature.FileID, _ *Handle) bool {
		ids = append(ids, id)
		return true
	})
	slices.Sort(ids)
	return ids
}

// Len returns the number of indexed files.
func (ix *Index) Len() int {
	return ix.handles.Size()
}
