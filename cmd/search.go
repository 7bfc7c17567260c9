package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/agentic-research/sodacat-web/internal/search"
	"github.com/agentic-research/sodacat-web/internal/searchdb"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

func newSearchCmd(root *rootOptions) *cobra.Command {
	var (
		dataDir string
		dbPath  string
		limit   int
		all     bool
	)
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search chips, blocks, registers and fields by name",
		Long: `Search runs the browser's tiered name search against a generated data
directory. With --db, it instead looks names up by token in a search database
written by "build --search-db".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("data") {
				cfg.OutputDir = dataDir
			}
			out := cmd.OutOrStdout()

			if dbPath != "" {
				return lookupDB(out, dbPath, args[0], limit)
			}

			s := search.New(osfs.New(cfg.OutputDir))
			var hits []search.Hit
			if all {
				hits, err = s.SearchAll(args[0])
				if len(hits) > search.AllLimit {
					fmt.Fprintf(out, "showing first %d of %d results\n", search.AllLimit, len(hits))
					hits = hits[:search.AllLimit]
				}
			} else {
				hits, err = s.Search(args[0], limit)
			}
			if err != nil {
				return err
			}
			for _, h := range hits {
				fmt.Fprintf(out, "%-8s %-24s %-40s %s\n", h.Type, h.Name, h.Detail(), h.Route())
			}
			if len(hits) == 0 {
				fmt.Fprintln(out, "no results")
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&dataDir, "data", "d", "data", "Generated data directory")
	flags.StringVar(&dbPath, "db", "", "Search database written by build --search-db")
	flags.IntVarP(&limit, "limit", "n", search.DefaultLimit, "Maximum number of results")
	flags.BoolVar(&all, "all", false, "Search every tier, like the full results page")
	return cmd
}

func lookupDB(out io.Writer, dbPath, query string, limit int) error {
	db, err := searchdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	entries, err := db.Lookup(query, limit)
	if err != nil && !errors.Is(err, searchdb.ErrNotFound) {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%-8s %-24s %s\n", e.Type, e.Name, e.Route())
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "no results")
	}
	return nil
}
