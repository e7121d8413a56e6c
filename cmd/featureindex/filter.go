package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inodb/featureindex/internal/feature"
	"github.com/inodb/featureindex/internal/filter"
	"github.com/inodb/featureindex/internal/output"
	"github.com/inodb/featureindex/internal/search"
)

// scopeFlags select the files a query runs against.
type scopeFlags struct {
	files   []int64
	project int64
}

func (s *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64SliceVar(&s.files, "files", nil, "File IDs to query (comma-separated)")
	cmd.Flags().Int64Var(&s.project, "project", 0, "Query the files of this project")
}

func (s *scopeFlags) scope() search.Scope {
	sc := search.Scope{ProjectID: feature.ProjectID(s.project)}
	for _, id := range s.files {
		sc.FileIDs = append(sc.FileIDs, feature.FileID(id))
	}
	return sc
}

// filterFlags hold the raw constraint flags shared by filter and group.
type filterFlags struct {
	chrom       string
	start, end  int64
	identifiers []string
	strict      bool
	categorical []string
	numeric     []string
	info        []string
}

func (ff *filterFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&ff.chrom, "chrom", "", "Chromosome (chr prefix optional)")
	f.Int64Var(&ff.start, "start", 0, "Range start, 1-based inclusive (requires --end)")
	f.Int64Var(&ff.end, "end", 0, "Range end, inclusive (requires --start)")
	f.StringArrayVar(&ff.identifiers, "id", nil, "Identifier to match (repeatable)")
	f.BoolVar(&ff.strict, "strict", true, "Match identifiers exactly; --strict=false matches substrings")
	f.StringArrayVar(&ff.categorical, "cat", nil, "Categorical constraint FIELD=v1,v2 (repeatable)")
	f.StringArrayVar(&ff.numeric, "num", nil, "Numeric constraint FIELD=min:max, either bound optional (repeatable)")
	f.StringArrayVar(&ff.info, "info", nil, "Info constraint KEY=VALUE (repeatable)")
}

// build turns the flags into a filter.
func (ff *filterFlags) build() (*filter.Filter, error) {
	f := &filter.Filter{
		Chrom:       ff.chrom,
		Identifiers: ff.identifiers,
		Strict:      ff.strict,
	}
	if ff.start != 0 || ff.end != 0 {
		if ff.start == 0 || ff.end == 0 {
			return nil, fmt.Errorf("%w: --start and --end must be given together", filter.ErrInvalidFilter)
		}
		f.Range = &filter.Range{Start: ff.start, End: ff.end}
	}

	for _, s := range ff.categorical {
		name, values, err := splitConstraint(s)
		if err != nil {
			return nil, err
		}
		if f.Categorical == nil {
			f.Categorical = make(map[string][]string)
		}
		f.Categorical[name] = append(f.Categorical[name], strings.Split(values, ",")...)
	}
	for _, s := range ff.numeric {
		name, r, err := parseNumRange(s)
		if err != nil {
			return nil, err
		}
		if f.Numeric == nil {
			f.Numeric = make(map[string]filter.NumRange)
		}
		f.Numeric[name] = r
	}
	for _, s := range ff.info {
		key, value, err := splitConstraint(s)
		if err != nil {
			return nil, err
		}
		if f.Info == nil {
			f.Info = make(map[string]string)
		}
		f.Info[key] = value
	}
	return f, nil
}

func splitConstraint(s string) (string, string, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", "", fmt.Errorf("%w: constraint %q is not FIELD=VALUE", filter.ErrInvalidFilter, s)
	}
	return name, value, nil
}

// parseNumRange parses FIELD=min:max. A single number means min = max.
func parseNumRange(s string) (string, filter.NumRange, error) {
	name, value, err := splitConstraint(s)
	if err != nil {
		return "", filter.NumRange{}, err
	}
	lo, hi, isRange := strings.Cut(value, ":")
	if !isRange {
		hi = lo
	}

	var r filter.NumRange
	for _, b := range []struct {
		text string
		dst  **float64
	}{{lo, &r.Min}, {hi, &r.Max}} {
		if b.text == "" {
			continue
		}
		v, err := strconv.ParseFloat(b.text, 64)
		if err != nil {
			return "", filter.NumRange{}, fmt.Errorf("%w: bad bound %q in %q", filter.ErrInvalidFilter, b.text, s)
		}
		*b.dst = &v
	}
	if r.Min == nil && r.Max == nil {
		return "", filter.NumRange{}, fmt.Errorf("%w: %q has no bounds", filter.ErrInvalidFilter, s)
	}
	return name, r, nil
}

// parseSortKey parses FIELD or FIELD:desc.
func parseSortKey(s string) (filter.SortKey, error) {
	field, dir, _ := strings.Cut(s, ":")
	switch strings.ToLower(dir) {
	case "", "asc":
		return filter.SortKey{Field: field}, nil
	case "desc":
		return filter.SortKey{Field: field, Desc: true}, nil
	}
	return filter.SortKey{}, fmt.Errorf("%w: sort direction %q", filter.ErrInvalidFilter, dir)
}

// writeEntries renders a page in the requested format.
func writeEntries(w io.Writer, format string, columns []string, res *search.Result) error {
	switch format {
	case "tab":
		return output.NewTabWriter(w, columns...).WriteAll(res.Entries)
	case "json":
		return output.WriteJSON(w, output.NewPage(res.Entries, res.TotalCount, res.ExceedsLimit))
	case "bed":
		return output.NewBEDWriter(w).WriteAll(res.Entries)
	}
	return fmt.Errorf("%w: unknown output format %q", errUsage, format)
}

func newFilterCmd() *cobra.Command {
	var (
		sf      scopeFlags
		ff      filterFlags
		offset  int
		size    int
		sortKey string
		format  string
		columns []string
	)

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Filter entries across indexed files",
		Long: `Run a filtered, sorted and paginated query across the files of a project or
an explicit file list. Every given constraint must hold. The total match
count is printed to stderr for tab and BED output.`,
		Example: `  featureindex filter --project 10 --chrom 12 --start 25000000 --end 26000000
  featureindex filter --files 1,2 --cat FILTER=PASS --num QUAL=30: --sort QUAL:desc
  featureindex filter --project 10 --id kra --strict=false --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ff.build()
			if err != nil {
				return err
			}
			f.Offset = offset
			f.PageSize = size
			if sortKey != "" {
				if f.Sort, err = parseSortKey(sortKey); err != nil {
					return err
				}
			}

			a, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.engine.Filter(cmd.Context(), f, sf.scope())
			if err != nil {
				return err
			}
			if format != "json" {
				fmt.Fprintf(cmd.ErrOrStderr(), "# %d of %d entries\n", len(res.Entries), res.TotalCount)
			}
			return writeEntries(cmd.OutOrStdout(), format, columns, res)
		},
	}

	sf.register(cmd)
	ff.register(cmd)
	fl := cmd.Flags()
	fl.IntVar(&offset, "offset", 0, "Page offset")
	fl.IntVar(&size, "size", 0, "Page size (default: search.page_size)")
	fl.StringVar(&sortKey, "sort", "", "Sort field, optionally FIELD:desc")
	fl.StringVar(&format, "format", "tab", "Output format: tab, json, bed")
	fl.StringSliceVar(&columns, "columns", nil, "Fields to print as their own tab columns")
	return cmd
}
