package filter

import (
	"strings"

	"github.com/inodb/featureindex/internal/feature"
)

// Matcher is a Filter prepared for repeated per-entry evaluation.
// Stages run in a fixed order so the most selective checks reject first.
type Matcher struct {
	f           *Filter
	chrom       string
	identifiers []string
	allow       map[string]map[string]struct{}
}

// NewMatcher compiles f. A nil filter matches everything.
func NewMatcher(f *Filter) *Matcher {
	if f == nil {
		f = &Filter{}
	}
	m := &Matcher{f: f}
	if f.Chrom != "" {
		m.chrom = feature.NormalizeChrom(f.Chrom)
	}
	for _, id := range f.Identifiers {
		m.identifiers = append(m.identifiers, strings.ToLower(id))
	}
	for name, values := range f.Categorical {
		if len(values) == 0 {
			continue
		}
		if m.allow == nil {
			m.allow = make(map[string]map[string]struct{})
		}
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		m.allow[name] = set
	}
	return m
}

// Chrom returns the canonical chromosome constraint, "" if unconstrained.
func (m *Matcher) Chrom() string { return m.chrom }

// Match runs every stage in order.
func (m *Matcher) Match(e *feature.Entry) bool {
	return m.MatchChrom(e) &&
		m.MatchRange(e) &&
		m.MatchCategorical(e) &&
		m.MatchNumeric(e) &&
		m.MatchInfo(e) &&
		m.MatchIdentifiers(e)
}

// MatchChrom is stage 1.
func (m *Matcher) MatchChrom(e *feature.Entry) bool {
	return m.chrom == "" || e.Chrom == m.chrom
}

// MatchRange is stage 2: overlap, not containment.
func (m *Matcher) MatchRange(e *feature.Entry) bool {
	r := m.f.Range
	return r == nil || e.Overlaps(r.Start, r.End)
}

// MatchCategorical is stage 3. An entry lacking a constrained field fails.
func (m *Matcher) MatchCategorical(e *feature.Entry) bool {
	for name, set := range m.allow {
		v, ok := e.Categorical[name]
		if !ok {
			return false
		}
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}

// MatchNumeric is stage 4. An entry lacking a constrained field fails.
func (m *Matcher) MatchNumeric(e *feature.Entry) bool {
	for name, r := range m.f.Numeric {
		v, ok := e.Numeric[name]
		if !ok || !r.Contains(v) {
			return false
		}
	}
	return true
}

// MatchInfo requires exact equality on every constrained info key.
func (m *Matcher) MatchInfo(e *feature.Entry) bool {
	for k, want := range m.f.Info {
		if got, ok := e.Info[k]; !ok || got != want {
			return false
		}
	}
	return true
}

// MatchIdentifiers is the last stage.
func (m *Matcher) MatchIdentifiers(e *feature.Entry) bool {
	if len(m.identifiers) == 0 {
		return true
	}
	for _, id := range e.Identifiers {
		if m.MatchIdentifier(id) {
			return true
		}
	}
	return false
}

// MatchIdentifier reports whether a single identifier satisfies the
// identifier constraint.
func (m *Matcher) MatchIdentifier(id string) bool {
	if len(m.identifiers) == 0 {
		return true
	}
	lower := strings.ToLower(id)
	for _, q := range m.identifiers {
		if m.f.Strict {
			if lower == q {
				return true
			}
		} else if strings.Contains(lower, q) {
			return true
		}
	}
	return false
}
