package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/featureindex/internal/duckdb"
	"github.com/inodb/featureindex/internal/feature"
	"github.com/inodb/featureindex/internal/gtf"
	"github.com/inodb/featureindex/internal/maf"
	"github.com/inodb/featureindex/internal/vcf"
)

type indexOptions struct {
	format       string
	reference    int64
	project      int64
	splitAlleles bool
	keepAll      bool
	force        bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index <file>...",
		Short: "Index VCF, MAF, GTF or GFF3 files",
		Long: `Parse and index files. A file whose size and modification time are unchanged
since it was last indexed is skipped unless --force is given. A file with a
malformed record (start after end) is rejected and its previous index kept.`,
		Example: `  featureindex index --reference 1 --project 10 sample.vcf.gz
  featureindex index --reference 1 gencode.v46.annotation.gtf.gz`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			var failed int
			for _, path := range args {
				id, skipped, err := indexFile(cmd.Context(), a, path, opts)
				if err != nil {
					failed++
					a.logger.Error("index failed", zap.String("path", path), zap.Error(err))
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					continue
				}
				status := "indexed"
				if skipped {
					status = "unchanged"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", id, status, path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed to index", failed, len(args))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.format, "format", "auto", "Input format: auto, vcf, maf, gtf, gff3")
	f.Int64Var(&opts.reference, "reference", 0, "Reference genome ID the file is aligned to")
	f.Int64Var(&opts.project, "project", 0, "Add the file to this project")
	f.BoolVar(&opts.splitAlleles, "split-alleles", false, "Index each alternate allele of a VCF record separately")
	f.BoolVar(&opts.keepAll, "all-features", false, "Keep every GTF/GFF3 feature type, not only genes, transcripts, exons, CDS and UTRs")
	f.BoolVar(&opts.force, "force", false, "Re-index even if the file is unchanged")
	return cmd
}

// indexFile parses path, builds its store and persists it. It reports the
// file ID and whether the file was skipped as unchanged.
func indexFile(ctx context.Context, a *app, path string, opts indexOptions) (feature.FileID, bool, error) {
	fp, err := duckdb.StatFile(path)
	if err != nil {
		return 0, false, fmt.Errorf("stat file: %w", err)
	}

	existing, err := a.db.FileByPath(ctx, path)
	if err != nil && !errors.Is(err, duckdb.ErrFileNotFound) {
		return 0, false, err
	}
	if existing != nil && existing.Unchanged(fp) && !opts.force {
		if opts.project != 0 {
			if err := a.db.AddToProject(ctx, feature.ProjectID(opts.project), existing.ID); err != nil {
				return 0, false, err
			}
		}
		return existing.ID, true, nil
	}

	format := opts.format
	if format == "auto" {
		format = detectFormat(path)
	}

	var entries []*feature.Entry
	switch format {
	case "vcf":
		entries, err = vcf.ReadFile(path, vcf.Options{SplitAlleles: opts.splitAlleles})
	case "maf":
		entries, err = maf.ReadFile(path)
	case "gtf", "gff3":
		l := gtf.NewLoader(path)
		l.KeepAll(opts.keepAll)
		entries, err = l.Load()
		if err == nil && l.Skipped() > 0 {
			a.logger.Warn("skipped malformed annotation lines", zap.String("path", path), zap.Int("lines", l.Skipped()))
		}
	default:
		return 0, false, fmt.Errorf("%w: unknown input format %q", errUsage, format)
	}
	if err != nil {
		return 0, false, err
	}

	var id feature.FileID
	if existing != nil {
		id = existing.ID
	}
	// The fingerprint stays zero until the entries are saved, so a run that
	// fails midway is never taken for an unchanged file.
	rec, err := a.db.RegisterFile(ctx, duckdb.File{
		ID:          id,
		Path:        path,
		Format:      format,
		ReferenceID: feature.ReferenceID(opts.reference),
	})
	if err != nil {
		return 0, false, err
	}

	// Validate by building the store before any entries are persisted.
	if _, err := a.ix.Build(rec.ID, entries); err != nil {
		return 0, false, errors.Join(err, rollback(ctx, a, rec.ID, existing))
	}
	if err := a.db.SaveEntries(ctx, rec.ID, entries); err != nil {
		a.ix.Remove(rec.ID)
		return 0, false, errors.Join(err, rollback(ctx, a, rec.ID, existing))
	}
	rec.Size, rec.ModTime = fp.Size, fp.ModTime
	if rec, err = a.db.RegisterFile(ctx, *rec); err != nil {
		return 0, false, err
	}
	if opts.project != 0 {
		if err := a.db.AddToProject(ctx, feature.ProjectID(opts.project), rec.ID); err != nil {
			return 0, false, err
		}
	}
	a.logger.Info("file indexed",
		zap.String("path", path),
		zap.Int64("file_id", int64(rec.ID)),
		zap.Int("entries", len(entries)))
	return rec.ID, false, nil
}

// rollback restores the registry after a failed build or save: a new file is
// removed and an existing one gets its previous record back.
func rollback(ctx context.Context, a *app, id feature.FileID, existing *duckdb.File) error {
	if existing == nil {
		if _, err := a.db.RemoveFile(ctx, id); err != nil {
			return fmt.Errorf("roll back registration of file %d: %w", id, err)
		}
		return nil
	}
	if _, err := a.db.RegisterFile(ctx, *existing); err != nil {
		return fmt.Errorf("restore record of file %d: %w", id, err)
	}
	return nil
}

// detectFormat guesses the input format from the file extension.
func detectFormat(path string) string {
	p := strings.TrimSuffix(strings.ToLower(path), ".gz")
	p = strings.TrimSuffix(p, ".bgz")
	switch {
	case strings.HasSuffix(p, ".vcf"):
		return "vcf"
	case strings.HasSuffix(p, ".maf"):
		return "maf"
	case strings.HasSuffix(p, ".gff3"), strings.HasSuffix(p, ".gff"):
		return "gff3"
	case strings.HasSuffix(p, ".gtf"):
		return "gtf"
	}
	return "vcf"
}
