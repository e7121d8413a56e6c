// Package feature defines the indexed genomic record shared by every index layer.
package feature

import (
	"fmt"
	"strings"
)

// FileID identifies a registered source file (VCF, GTF, GFF3).
type FileID int64

// ProjectID identifies a project, a named set of files.
type ProjectID int64

// ReferenceID identifies a reference genome that gene files are attached to.
type ReferenceID int64

// Type is the kind of feature an entry describes.
type Type string

// Feature types. The set is open: loaders may emit any GTF/GFF feature column
// value, these are the ones the index knows by name.
const (
	TypeVariation  Type = "VARIATION"
	TypeGene       Type = "GENE"
	TypeTranscript Type = "TRANSCRIPT"
	TypeExon       Type = "EXON"
	TypeCDS        Type = "CDS"
	TypeUTR        Type = "UTR"
	TypeOther      Type = "OTHER"
)

// ParseType maps a GTF/GFF feature column (or a user supplied name) to a Type.
func ParseType(s string) Type {
	switch strings.ToLower(s) {
	case "variation", "variant":
		return TypeVariation
	case "gene":
		return TypeGene
	case "transcript", "mrna":
		return TypeTranscript
	case "exon":
		return TypeExon
	case "cds":
		return TypeCDS
	case "utr", "five_prime_utr", "three_prime_utr":
		return TypeUTR
	}
	return TypeOther
}

// Entry is one indexed unit: a variant or an annotated gene feature.
// Entries are immutable once handed to a store.
type Entry struct {
	FileID      FileID             // Owning source file
	Chrom       string             // Canonical chromosome (see NormalizeChrom)
	Start       int64              // 1-based inclusive start
	End         int64              // 1-based inclusive end
	Type        Type               // Feature kind
	Identifiers []string           // Gene symbols, variant IDs
	Categorical map[string]string  // Closed-vocabulary fields, e.g. FILTER
	Numeric     map[string]float64 // Range-filterable fields, e.g. QUAL
	Info        map[string]string  // Everything else, equality-filterable
}

// FirstIdentifier returns the first identifier or "" if there is none.
func (e *Entry) FirstIdentifier() string {
	if len(e.Identifiers) == 0 {
		return ""
	}
	return e.Identifiers[0]
}

// Overlaps reports whether [start, end] overlaps the entry's span.
func (e *Entry) Overlaps(start, end int64) bool {
	return e.Start <= end && e.End >= start
}

// Location formats the entry as chrom:start-end.
func (e *Entry) Location() string {
	return fmt.Sprintf("%s:%d-%d", e.Chrom, e.Start, e.End)
}
