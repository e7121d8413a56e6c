// Package output writes query results, groups and catalogs for the CLI.
package output

import (
	"bufio"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/inodb/featureindex/internal/catalog"
	"github.com/inodb/featureindex/internal/feature"
	"github.com/inodb/featureindex/internal/query"
)

// TabWriter writes entries in tab-delimited format. Fields named in the
// constructor get their own column; every other field goes into the
// trailing Fields column as key=value pairs.
type TabWriter struct {
	w       *bufio.Writer
	fields  []string
	columns []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer, fields ...string) *TabWriter {
	columns := []string{
		"#Chrom",
		"Start",
		"End",
		"Type",
		"File_ID",
		"Identifiers",
	}
	columns = append(columns, fields...)
	columns = append(columns, "Fields")
	return &TabWriter{
		w:       bufio.NewWriter(w),
		fields:  fields,
		columns: columns,
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single entry.
func (tw *TabWriter) Write(e *feature.Entry) error {
	values := []string{
		e.Chrom,
		strconv.FormatInt(e.Start, 10),
		strconv.FormatInt(e.End, 10),
		orDash(string(e.Type)),
		strconv.FormatInt(int64(e.FileID), 10),
		orDash(strings.Join(e.Identifiers, ",")),
	}
	for _, f := range tw.fields {
		v, _ := fieldString(e, f)
		values = append(values, orDash(v))
	}
	values = append(values, orDash(tw.rest(e)))

	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// WriteAll writes the header and then every entry.
func (tw *TabWriter) WriteAll(entries []*feature.Entry) error {
	if err := tw.WriteHeader(); err != nil {
		return err
	}
	for _, e := range entries {
		if err := tw.Write(e); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// rest formats the fields without a column of their own.
func (tw *TabWriter) rest(e *feature.Entry) string {
	var keys []string
	for k := range e.Categorical {
		keys = append(keys, k)
	}
	for k := range e.Numeric {
		keys = append(keys, k)
	}
	for k := range e.Info {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)

	var parts []string
	for _, k := range keys {
		if slices.Contains(tw.fields, k) {
			continue
		}
		v, _ := fieldString(e, k)
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ";")
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

// WriteGroups writes grouping rows as Value<TAB>Count.
func WriteGroups(w io.Writer, groups []query.Group) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("#Value\tCount\n")
	for _, g := range groups {
		bw.WriteString(g.Value + "\t" + strconv.Itoa(g.Count) + "\n")
	}
	return bw.Flush()
}

// WriteLines writes one value per line.
func WriteLines(w io.Writer, values []string) error {
	bw := bufio.NewWriter(w)
	for _, v := range values {
		bw.WriteString(v + "\n")
	}
	return bw.Flush()
}

// WriteCatalog writes one Kind<TAB>Field<TAB>Values row per field.
func WriteCatalog(w io.Writer, snap *catalog.Snapshot) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("#Kind\tField\tValues\n")

	names := make([]string, 0, len(snap.Categorical))
	for name := range snap.Categorical {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		bw.WriteString("categorical\t" + name + "\t" + strings.Join(snap.Categorical[name], ",") + "\n")
	}

	names = names[:0]
	for name := range snap.Numeric {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		r := snap.Numeric[name]
		bw.WriteString("numeric\t" + name + "\t" + formatFloat(r.Min) + "-" + formatFloat(r.Max) + "\n")
	}

	for _, key := range snap.InfoKeys {
		bw.WriteString("info\t" + key + "\t-\n")
	}
	types := make([]string, len(snap.Types))
	for i, t := range snap.Types {
		types[i] = string(t)
	}
	bw.WriteString("types\t-\t" + orDash(strings.Join(types, ",")) + "\n")
	bw.WriteString("chromosomes\t-\t" + orDash(strings.Join(snap.Chromosomes, ",")) + "\n")
	return bw.Flush()
}

// fieldString returns the value of a categorical, numeric or info field.
func fieldString(e *feature.Entry, name string) (string, bool) {
	if v, ok := e.Categorical[name]; ok {
		return v, true
	}
	if v, ok := e.Numeric[name]; ok {
		return formatFloat(v), true
	}
	if v, ok := e.Info[name]; ok {
		return v, true
	}
	return "", false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
