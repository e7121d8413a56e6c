package output

import (
	"io"

	"github.com/goccy/go-json"

	"github.com/inodb/featureindex/internal/feature"
)

// Entry is the JSON form of a feature entry.
type Entry struct {
	FileID      feature.FileID     `json:"file_id"`
	Chrom       string             `json:"chrom"`
	Start       int64              `json:"start"`
	End         int64              `json:"end"`
	Type        feature.Type       `json:"type,omitempty"`
	Identifiers []string           `json:"identifiers,omitempty"`
	Categorical map[string]string  `json:"categorical,omitempty"`
	Numeric     map[string]float64 `json:"numeric,omitempty"`
	Info        map[string]string  `json:"info,omitempty"`
}

// FromEntry converts an entry for encoding.
func FromEntry(e *feature.Entry) Entry {
	return Entry{
		FileID:      e.FileID,
		Chrom:       e.Chrom,
		Start:       e.Start,
		End:         e.End,
		Type:        e.Type,
		Identifiers: e.Identifiers,
		Categorical: e.Categorical,
		Numeric:     e.Numeric,
		Info:        e.Info,
	}
}

// Page is the JSON form of a result page.
type Page struct {
	Entries      []Entry `json:"entries"`
	TotalCount   int     `json:"total_count"`
	ExceedsLimit bool    `json:"exceeds_limit,omitempty"`
}

// NewPage converts a result page for encoding.
func NewPage(entries []*feature.Entry, total int, exceeds bool) Page {
	p := Page{
		Entries:      make([]Entry, len(entries)),
		TotalCount:   total,
		ExceedsLimit: exceeds,
	}
	for i, e := range entries {
		p.Entries[i] = FromEntry(e)
	}
	return p
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
