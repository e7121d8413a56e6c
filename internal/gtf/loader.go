// Package gtf reads GTF and GFF3 gene annotation files into feature entries.
package gtf

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/inodb/featureindex/internal/feature"
)

// Format is an annotation file dialect.
type Format int

const (
	// GTF attributes are `key "value";` pairs.
	GTF Format = iota
	// GFF3 attributes are `key=value;` pairs with URL escaping.
	GFF3
)

// DetectFormat picks the dialect from the file name.
func DetectFormat(path string) Format {
	p := strings.TrimSuffix(strings.ToLower(path), ".gz")
	if strings.HasSuffix(p, ".gff3") || strings.HasSuffix(p, ".gff") {
		return GFF3
	}
	return GTF
}

// Loader reads gene, transcript, exon, CDS and UTR records.
type Loader struct {
	path    string
	format  Format
	all     bool
	skipped int
}

// NewLoader creates a loader for path, detecting the dialect from its name.
func NewLoader(path string) *Loader {
	return &Loader{path: path, format: DetectFormat(path)}
}

// KeepAll keeps feature types other than the recognized ones as OTHER.
func (l *Loader) KeepAll(all bool) { l.all = all }

// Skipped returns the number of malformed lines skipped by the last load.
func (l *Loader) Skipped() int { return l.skipped }

// Load reads every entry of the file.
func (l *Loader) Load() ([]*feature.Entry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open annotation file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(l.path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}
	return l.Read(reader)
}

// Read parses annotation lines from r.
func (l *Loader) Read(r io.Reader) ([]*feature.Entry, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	l.skipped = 0
	var entries []*feature.Entry
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// GFF3 embeds sequences after this directive.
		if strings.HasPrefix(line, ">") {
			break
		}

		e, ok, err := l.parseLine(line)
		if err != nil {
			l.skipped++
			continue
		}
		if ok {
			entries = append(entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan annotation file: %w", err)
	}
	return entries, nil
}

// featureTypes maps column 3 onto entry types.
var featureTypes = map[string]feature.Type{
	"gene":            feature.TypeGene,
	"transcript":      feature.TypeTranscript,
	"mRNA":            feature.TypeTranscript,
	"exon":            feature.TypeExon,
	"CDS":             feature.TypeCDS,
	"UTR":             feature.TypeUTR,
	"five_prime_UTR":  feature.TypeUTR,
	"three_prime_UTR": feature.TypeUTR,
	"five_prime_utr":  feature.TypeUTR,
	"three_prime_utr": feature.TypeUTR,
}

// Attributes read into identifiers, in identifier order.
var identifierKeys = []string{"gene_name", "Name", "gene_id", "transcript_id", "ID"}

// Attributes promoted to categorical fields.
var categoricalKeys = map[string]bool{
	"gene_type":          true,
	"gene_biotype":       true,
	"biotype":            true,
	"transcript_type":    true,
	"transcript_biotype": true,
}

// parseLine reports ok=false for feature types that are not kept.
func (l *Loader) parseLine(line string) (*feature.Entry, bool, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 9 {
		return nil, false, fmt.Errorf("expected 9 fields, got %d", len(fields))
	}

	typ, known := featureTypes[fields[2]]
	if !known {
		if !l.all {
			return nil, false, nil
		}
		typ = feature.TypeOther
	}

	start, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("parse start: %w", err)
	}
	end, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("parse end: %w", err)
	}

	var attrs map[string]string
	if l.format == GFF3 {
		attrs = parseGFF3Attributes(fields[8])
	} else {
		attrs = parseAttributes(fields[8])
	}

	e := &feature.Entry{
		Chrom: fields[0],
		Start: start,
		End:   end,
		Type:  typ,
		Categorical: map[string]string{
			"source":  fields[1],
			"feature": fields[2],
		},
	}
	if fields[6] == "+" || fields[6] == "-" {
		e.Categorical["strand"] = fields[6]
	}
	if fields[5] != "." {
		if score, err := strconv.ParseFloat(fields[5], 64); err == nil {
			e.Numeric = map[string]float64{"score": score}
		}
	}

	for _, key := range identifierKeys {
		v, ok := attrs[key]
		if !ok {
			continue
		}
		delete(attrs, key)
		id := cleanID(v)
		if id != "" && !slices.Contains(e.Identifiers, id) {
			e.Identifiers = append(e.Identifiers, id)
		}
	}
	for key, v := range attrs {
		switch {
		case categoricalKeys[key]:
			e.Categorical[key] = v
		case key == "exon_number" || key == "level":
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				if e.Numeric == nil {
					e.Numeric = make(map[string]float64)
				}
				e.Numeric[key] = n
				continue
			}
			fallthrough
		default:
			if e.Info == nil {
				e.Info = make(map[string]string)
			}
			e.Info[key] = v
		}
	}
	return e, true, nil
}

// parseAttributes parses GTF attribute column.
// Format: key "value"; key "value"; ...
// Repeated keys such as tag are joined with commas.
func parseAttributes(attrStr string) map[string]string {
	attrs := make(map[string]string)

	for _, part := range strings.Split(attrStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, ok := strings.Cut(part, " ")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), "\"")

		if prev, ok := attrs[key]; ok {
			value = prev + "," + value
		}
		attrs[key] = value
	}

	return attrs
}

// parseGFF3Attributes parses `key=value;key=value` with percent escapes.
func parseGFF3Attributes(attrStr string) map[string]string {
	attrs := make(map[string]string)
	for _, part := range strings.Split(attrStr, ";") {
		part = strings.TrimSpace(part)
		key, value, ok := strings.Cut(part, "=")
		if !ok || key == "" {
			continue
		}
		if v, err := url.PathUnescape(value); err == nil {
			value = v
		}
		attrs[key] = value
	}
	return attrs
}

// cleanID drops the Ensembl version suffix and GFF3 type prefixes.
// e.g., "gene:ENSG00000133703.14" -> "ENSG00000133703"
func cleanID(id string) string {
	if _, rest, ok := strings.Cut(id, ":"); ok && !strings.Contains(rest, ":") {
		id = rest
	}
	if strings.HasPrefix(id, "ENS") {
		if idx := strings.LastIndex(id, "."); idx != -1 {
			id = id[:idx]
		}
	}
	return id
}
