// Package catalog records which filterable fields and values a file contains.
package catalog

import (
	"maps"
	"slices"
	"sort"

	"github.com/inodb/featureindex/internal/feature"
)

// Range is the observed [Min, Max] of a numeric field.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Catalog accumulates the observed fields of one file. Observe is called by a
// single writer during a build; after the build the catalog is only read.
type Catalog struct {
	categorical map[string]map[string]struct{}
	numeric     map[string]Range
	info        map[string]struct{}
	types       map[feature.Type]struct{}
	chroms      map[string]struct{}
	entries     int
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		categorical: make(map[string]map[string]struct{}),
		numeric:     make(map[string]Range),
		info:        make(map[string]struct{}),
		types:       make(map[feature.Type]struct{}),
		chroms:      make(map[string]struct{}),
	}
}

// Observe widens the catalog with e. Value sets only grow and numeric ranges
// only widen.
func (c *Catalog) Observe(e *feature.Entry) {
	c.entries++
	for name, v := range e.Categorical {
		set, ok := c.categorical[name]
		if !ok {
			set = make(map[string]struct{})
			c.categorical[name] = set
		}
		set[v] = struct{}{}
	}
	for name, v := range e.Numeric {
		r, ok := c.numeric[name]
		if !ok {
			c.numeric[name] = Range{Min: v, Max: v}
			continue
		}
		r.Min = min(r.Min, v)
		r.Max = max(r.Max, v)
		c.numeric[name] = r
	}
	for k := range e.Info {
		c.info[k] = struct{}{}
	}
	if e.Type != "" {
		c.types[e.Type] = struct{}{}
	}
	c.chroms[feature.NormalizeChrom(e.Chrom)] = struct{}{}
}

// Entries returns the number of observed entries.
func (c *Catalog) Entries() int { return c.entries }

// Snapshot is a merged, read-only view over one or more catalogs, used to
// validate queries and to render filter options.
type Snapshot struct {
	Categorical map[string][]string `json:"categorical"`
	Numeric     map[string]Range    `json:"numeric"`
	InfoKeys    []string            `json:"info_keys"`
	Types       []feature.Type      `json:"types"`
	Chromosomes []string            `json:"chromosomes"`
}

// Merge unions catalogs: value sets by set-union, numeric ranges by min/max.
// Only the already aggregated per-file summaries are read.
func Merge(catalogs ...*Catalog) *Snapshot {
	categorical := make(map[string]map[string]struct{})
	numeric := make(map[string]Range)
	info := make(map[string]struct{})
	types := make(map[feature.Type]struct{})
	chroms := make(map[string]struct{})

	for _, c := range catalogs {
		if c == nil {
			continue
		}
		for name, set := range c.categorical {
			dst, ok := categorical[name]
			if !ok {
				dst = make(map[string]struct{}, len(set))
				categorical[name] = dst
			}
			for v := range set {
				dst[v] = struct{}{}
			}
		}
		for name, r := range c.numeric {
			cur, ok := numeric[name]
			if !ok {
				numeric[name] = r
				continue
			}
			numeric[name] = Range{Min: min(cur.Min, r.Min), Max: max(cur.Max, r.Max)}
		}
		for k := range c.info {
			info[k] = struct{}{}
		}
		for t := range c.types {
			types[t] = struct{}{}
		}
		for ch := range c.chroms {
			chroms[ch] = struct{}{}
		}
	}

	s := &Snapshot{
		Categorical: make(map[string][]string, len(categorical)),
		Numeric:     numeric,
		InfoKeys:    sortedKeys(info),
		Chromosomes: sortedKeys(chroms),
	}
	for name, set := range categorical {
		s.Categorical[name] = sortedKeys(set)
	}
	for t := range types {
		s.Types = append(s.Types, t)
	}
	sort.Slice(s.Types, func(i, j int) bool { return s.Types[i] < s.Types[j] })
	sort.Slice(s.Chromosomes, func(i, j int) bool {
		return feature.CompareChrom(s.Chromosomes[i], s.Chromosomes[j]) < 0
	})
	return s
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Categorical: make(map[string][]string, len(s.Categorical)),
		Numeric:     maps.Clone(s.Numeric),
		InfoKeys:    slices.Clone(s.InfoKeys),
		Types:       slices.Clone(s.Types),
		Chromosomes: slices.Clone(s.Chromosomes),
	}
	for name, values := range s.Categorical {
		c.Categorical[name] = slices.Clone(values)
	}
	return c
}

// Snapshot returns a view of this catalog alone.
func (c *Catalog) Snapshot() *Snapshot {
	return Merge(c)
}

// HasCategorical reports whether the categorical field was observed.
func (s *Snapshot) HasCategorical(name string) bool {
	_, ok := s.Categorical[name]
	return ok
}

// HasNumeric reports whether the numeric field was observed.
func (s *Snapshot) HasNumeric(name string) bool {
	_, ok := s.Numeric[name]
	return ok
}

// HasInfo reports whether the info key was observed.
func (s *Snapshot) HasInfo(name string) bool {
	i := sort.SearchStrings(s.InfoKeys, name)
	return i < len(s.InfoKeys) && s.InfoKeys[i] == name
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
