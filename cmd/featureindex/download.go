package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// GENCODE release served by the EBI FTP mirror.
const (
	gencodeBaseURL = "https://ftp.ebi.ac.uk/pub/databases/gencode/Gencode_human/release_46"
	gencodeVersion = "v46"
)

// gencodeURL returns the comprehensive annotation GTF for the assembly.
func gencodeURL(assembly string) (string, error) {
	switch strings.ToUpper(assembly) {
	case "GRCH37":
		return fmt.Sprintf("%s/GRCh37_mapping/gencode.%slift37.annotation.gtf.gz", gencodeBaseURL, gencodeVersion), nil
	case "GRCH38":
		return fmt.Sprintf("%s/gencode.%s.annotation.gtf.gz", gencodeBaseURL, gencodeVersion), nil
	}
	return "", fmt.Errorf("%w: unknown assembly %q (want GRCh37 or GRCh38)", errUsage, assembly)
}

func newDownloadCmd() *cobra.Command {
	var (
		assembly  string
		outputDir string
		index     bool
		opts      indexOptions
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download a GENCODE gene annotation",
		Long: `Download the GENCODE ` + gencodeVersion + ` annotation GTF (~50MB) for an assembly into
~/.featureindex/<assembly>/ and optionally index it.`,
		Example: `  featureindex download
  featureindex download --assembly GRCh37 --index --reference 37`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := gencodeURL(assembly)
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = filepath.Dir(viper.GetString("db.path"))
			}
			destDir := filepath.Join(outputDir, strings.ToLower(assembly))
			if err := os.MkdirAll(destDir, 0755); err != nil {
				return fmt.Errorf("create directory %s: %w", destDir, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Downloading GENCODE %s annotation for %s to %s\n", gencodeVersion, assembly, destDir)
			dest := filepath.Join(destDir, filepath.Base(url))
			if err := downloadFile(cmd.Context(), out, url, dest); err != nil {
				return fmt.Errorf("download GTF: %w", err)
			}
			if !index {
				fmt.Fprintf(out, "To index it, run:\n  featureindex index %s\n", dest)
				return nil
			}

			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()
			opts.format = "gtf"
			id, _, err := indexFile(cmd.Context(), a, dest, opts)
			if err != nil {
				return err
			}
			a.logger.Info("annotation indexed", zap.String("assembly", assembly), zap.Int64("file_id", int64(id)))
			fmt.Fprintf(out, "%d\t%s\n", id, dest)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&assembly, "assembly", "GRCh38", "Genome assembly: GRCh37 or GRCh38")
	f.StringVar(&outputDir, "output", "", "Output directory (default: next to the index database)")
	f.BoolVar(&index, "index", false, "Index the annotation after downloading")
	f.Int64Var(&opts.reference, "reference", 0, "Reference genome ID for the indexed annotation")
	f.Int64Var(&opts.project, "project", 0, "Add the indexed annotation to this project")
	f.BoolVar(&opts.keepAll, "all-features", false, "Keep every feature type")
	return cmd
}

// downloadFile downloads url to destPath, reporting progress to out. An
// existing destPath is kept.
func downloadFile(ctx context.Context, out io.Writer, url, destPath string) error {
	if info, err := os.Stat(destPath); err == nil {
		fmt.Fprintf(out, "  %s already exists (%s), skipping\n", filepath.Base(destPath), formatSize(info.Size()))
		return nil
	}

	fmt.Fprintf(out, "  Downloading %s...\n", filepath.Base(destPath))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 30 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error: %s", resp.Status)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	pw := &progressWriter{out: out, total: resp.ContentLength, lastPrint: time.Now()}
	_, err = io.Copy(f, io.TeeReader(resp.Body, pw))
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download failed: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}

	fmt.Fprintf(out, "\n    Done: %s\n", formatSize(pw.downloaded))
	return nil
}

// progressWriter prints download progress at most once a second.
type progressWriter struct {
	out        io.Writer
	total      int64
	downloaded int64
	lastPrint  time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	pw.downloaded += int64(len(p))
	if time.Since(pw.lastPrint) > time.Second {
		if pw.total > 0 {
			pct := float64(pw.downloaded) / float64(pw.total) * 100
			fmt.Fprintf(pw.out, "\r    Progress: %s / %s (%.1f%%)  ",
				formatSize(pw.downloaded), formatSize(pw.total), pct)
		} else {
			fmt.Fprintf(pw.out, "\r    Progress: %s  ", formatSize(pw.downloaded))
		}
		pw.lastPrint = time.Now()
	}
	return len(p), nil
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
