package search

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/inodb/featureindex/internal/catalog"
	"github.com/inodb/featureindex/internal/feature"
	"github.com/inodb/featureindex/internal/filter"
	"github.com/inodb/featureindex/internal/index"
	"github.com/inodb/featureindex/internal/query"
)

// Filter returns one page of the entries of scope matching f, merged across
// files, with the total size of the filtered set.
func (e *Engine) Filter(ctx context.Context, f *filter.Filter, scope Scope) (res *Result, err error) {
	defer func(start time.Time) { e.observe("filter", start, err) }(time.Now())

	if f == nil {
		f = &filter.Filter{}
	}
	handles, err := e.handles(ctx, scope)
	if err != nil {
		return nil, err
	}
	if err := validate(f, e.snapshotOf(handles)); err != nil {
		return nil, err
	}

	all, err := e.collect(ctx, handles, f)
	if err != nil {
		return nil, err
	}
	size := f.PageSize
	if size == 0 {
		size = e.cfg.PageSize
	}
	return &Result{
		Entries:    query.Paginate(all, f.Offset, size),
		TotalCount: len(all),
	}, nil
}

// Group counts the entries of scope matching f by a field. Pagination fields
// of f are ignored: the whole filtered set is grouped.
func (e *Engine) Group(ctx context.Context, f *filter.Filter, scope Scope, by query.GroupBy) (groups []query.Group, err error) {
	defer func(start time.Time) { e.observe("group", start, err) }(time.Now())

	if f == nil {
		f = &filter.Filter{}
	}
	handles, err := e.handles(ctx, scope)
	if err != nil {
		return nil, err
	}
	snap := e.snapshotOf(handles)
	if err := validate(f, snap); err != nil {
		return nil, err
	}
	if err := validateGroupBy(by, snap); err != nil {
		return nil, err
	}

	// Grouping is order-independent, so skip any custom sort.
	unsorted := *f
	unsorted.Sort = filter.SortKey{}
	all, err := e.collect(ctx, handles, &unsorted)
	if err != nil {
		return nil, err
	}
	return query.GroupEntries(all, by)
}

func validateGroupBy(by query.GroupBy, snap *catalog.Snapshot) error {
	switch by.Field {
	case "":
		return fmt.Errorf("%w: empty group field", filter.ErrInvalidFilter)
	case filter.FieldEnd, filter.FieldFileID:
		return fmt.Errorf("%w: cannot group by %s", filter.ErrInvalidFilter, by.Field)
	case filter.FieldPosition, filter.FieldStart:
		if by.BucketWidth < 1 {
			return fmt.Errorf("%w: grouping by %s needs a bucket width >= 1", filter.ErrInvalidFilter, by.Field)
		}
		return nil
	}
	if query.IsBuiltinField(by.Field) || snap == nil {
		return nil
	}
	if !knownField(snap, by.Field) {
		return &filter.UnknownFieldError{Field: by.Field, Kind: "group"}
	}
	if snap.HasNumeric(by.Field) && by.BucketWidth <= 0 {
		return fmt.Errorf("%w: numeric field %s needs a bucket width", filter.ErrInvalidFilter, by.Field)
	}
	return nil
}

// SearchGenes returns the distinct identifiers of scope containing text,
// case-insensitively, in ascending order.
func (e *Engine) SearchGenes(ctx context.Context, text string, scope Scope) (genes []string, err error) {
	defer func(start time.Time) { e.observe("genes", start, err) }(time.Now())

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty gene search text", filter.ErrInvalidFilter)
	}
	handles, err := e.handles(ctx, scope)
	if err != nil {
		return nil, err
	}

	f := &filter.Filter{Identifiers: []string{text}}
	lists, err := e.fanOut(ctx, handles, f)
	if err != nil {
		return nil, err
	}

	m := filter.NewMatcher(f)
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, entry := range list {
			for _, id := range entry.Identifiers {
				if m.MatchIdentifier(id) {
					seen[id] = struct{}{}
				}
			}
		}
	}
	genes = make([]string, 0, len(seen))
	for id := range seen {
		genes = append(genes, id)
	}
	slices.Sort(genes)
	return genes, nil
}

// SearchByReference finds entries whose identifiers contain identifier across
// every file aligned to the reference. At most MaxResults entries are
// returned; ExceedsLimit reports that more matched.
func (e *Engine) SearchByReference(ctx context.Context, identifier string, ref feature.ReferenceID) (res *Result, err error) {
	defer func(start time.Time) { e.observe("reference", start, err) }(time.Now())

	if e.resolver == nil {
		return nil, fmt.Errorf("resolve reference %d: no resolver configured", ref)
	}
	ids, err := e.resolver.ReferenceFiles(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolve reference %d: %w", ref, err)
	}
	if len(ids) == 0 {
		return &Result{}, nil
	}
	return e.searchFeatures(ctx, identifier, Files(ids...))
}

// SearchInProject is SearchByReference over the files of a project.
func (e *Engine) SearchInProject(ctx context.Context, identifier string, project feature.ProjectID) (res *Result, err error) {
	defer func(start time.Time) { e.observe("project", start, err) }(time.Now())
	return e.searchFeatures(ctx, identifier, Project(project))
}

func (e *Engine) searchFeatures(ctx context.Context, identifier string, scope Scope) (*Result, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("%w: empty feature search text", filter.ErrInvalidFilter)
	}
	handles, err := e.handles(ctx, scope)
	if err != nil {
		return nil, err
	}
	all, err := e.collect(ctx, handles, &filter.Filter{Identifiers: []string{identifier}})
	if err != nil {
		return nil, err
	}
	return &Result{
		Entries:      query.Paginate(all, 0, e.cfg.MaxResults),
		TotalCount:   len(all),
		ExceedsLimit: len(all) > e.cfg.MaxResults,
	}, nil
}

// FilterCatalog merges the field catalogs of the files of scope. Files without
// a store contribute nothing. The result is the caller's to modify.
func (e *Engine) FilterCatalog(ctx context.Context, scope Scope) (snap *catalog.Snapshot, err error) {
	defer func(start time.Time) { e.observe("catalog", start, err) }(time.Now())

	handles, err := e.handles(ctx, scope)
	if err != nil {
		return nil, err
	}
	if len(handles) == 0 {
		return catalog.Merge(), nil
	}
	return e.snapshotOf(handles).Clone(), nil
}

func catalogsOf(handles []*index.Handle) []*catalog.Catalog {
	catalogs := make([]*catalog.Catalog, len(handles))
	for i, h := range handles {
		catalogs[i] = h.Catalog
	}
	return catalogs
}
