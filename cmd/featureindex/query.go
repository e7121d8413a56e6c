package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inodb/featureindex/internal/feature"
	"github.com/inodb/featureindex/internal/output"
	"github.com/inodb/featureindex/internal/query"
	"github.com/inodb/featureindex/internal/search"
)

func newGroupCmd() *cobra.Command {
	var (
		sf     scopeFlags
		ff     filterFlags
		by     query.GroupBy
		format string
	)

	cmd := &cobra.Command{
		Use:   "group",
		Short: "Count matching entries per field value",
		Long: `Count the entries matching a filter per value of one field. Position and
numeric fields are bucketed by --width. Entries without a value are counted
as "unspecified".`,
		Example: `  featureindex group --project 10 --by FILTER
  featureindex group --project 10 --by position --width 1000000 --chrom 12`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ff.build()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			groups, err := a.engine.Group(cmd.Context(), f, sf.scope(), by)
			if err != nil {
				return err
			}
			switch format {
			case "json":
				return output.WriteJSON(cmd.OutOrStdout(), groups)
			case "tab":
				return output.WriteGroups(cmd.OutOrStdout(), groups)
			}
			return fmt.Errorf("%w: unknown output format %q", errUsage, format)
		},
	}

	sf.register(cmd)
	ff.register(cmd)
	cmd.Flags().StringVar(&by.Field, "by", "", "Field to group by")
	cmd.Flags().Float64Var(&by.BucketWidth, "width", 0, "Bucket width for position and numeric fields")
	cmd.Flags().StringVar(&format, "format", "tab", "Output format: tab, json")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var (
		reference int64
		project   int64
		format    string
	)

	cmd := &cobra.Command{
		Use:   "search <identifier>",
		Short: "Find features by identifier across a reference or project",
		Long: `Find the entries whose identifiers contain the given text, across every file
aligned to a reference genome or every file of a project. At most
search.max_results entries are returned.`,
		Example: `  featureindex search --reference 38 BRAF
  featureindex search --project 10 rs121913529`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (reference == 0) == (project == 0) {
				return fmt.Errorf("%w: give exactly one of --reference and --project", errUsage)
			}
			a, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			var res *search.Result
			if reference != 0 {
				res, err = a.engine.SearchByReference(cmd.Context(), args[0], feature.ReferenceID(reference))
			} else {
				res, err = a.engine.SearchInProject(cmd.Context(), args[0], feature.ProjectID(project))
			}
			if err != nil {
				return err
			}
			if res.ExceedsLimit {
				a.logger.Sugar().Warnf("more than %d matches, showing the first ones", len(res.Entries))
			}
			return writeEntries(cmd.OutOrStdout(), format, nil, res)
		},
	}

	cmd.Flags().Int64Var(&reference, "reference", 0, "Search files aligned to this reference genome")
	cmd.Flags().Int64Var(&project, "project", 0, "Search the files of this project")
	cmd.Flags().StringVar(&format, "format", "tab", "Output format: tab, json, bed")
	return cmd
}

func newGenesCmd() *cobra.Command {
	var (
		sf     scopeFlags
		format string
	)

	cmd := &cobra.Command{
		Use:   "genes <text>",
		Short: "List identifiers containing text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			genes, err := a.engine.SearchGenes(cmd.Context(), args[0], sf.scope())
			if err != nil {
				return err
			}
			if format == "json" {
				return output.WriteJSON(cmd.OutOrStdout(), genes)
			}
			return output.WriteLines(cmd.OutOrStdout(), genes)
		},
	}

	sf.register(cmd)
	cmd.Flags().StringVar(&format, "format", "tab", "Output format: tab, json")
	return cmd
}

func newCatalogCmd() *cobra.Command {
	var (
		sf     scopeFlags
		format string
	)

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show the filterable fields and their values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			snap, err := a.engine.FilterCatalog(cmd.Context(), sf.scope())
			if err != nil {
				return err
			}
			if format == "json" {
				return output.WriteJSON(cmd.OutOrStdout(), snap)
			}
			return output.WriteCatalog(cmd.OutOrStdout(), snap)
		},
	}

	sf.register(cmd)
	cmd.Flags().StringVar(&format, "format", "tab", "Output format: tab, json")
	return cmd
}
