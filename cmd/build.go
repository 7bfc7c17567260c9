package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/agentic-research/sodacat-web/internal/config"
	"github.com/agentic-research/sodacat-web/internal/ingest"
	"github.com/agentic-research/sodacat-web/internal/searchdb"
	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

func newBuildCmd(root *rootOptions) *cobra.Command {
	var (
		sodacatDir string
		outputDir  string
		searchDB   string
		threshold  int
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build index.json, search tiers, block and chip documents from a sodaCat checkout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("sodacat-dir") {
				cfg.SodacatDir = sodacatDir
			}
			if flags.Changed("output-dir") {
				cfg.OutputDir = outputDir
			}
			if flags.Changed("search-db") {
				cfg.SearchDB = searchDB
			}
			if flags.Changed("summary-threshold") {
				cfg.SummaryThreshold = threshold
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runBuild(cmd.OutOrStdout(), cfg, root.logger(cmd, cfg))
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&sodacatDir, "sodacat-dir", "s", "", "Path to the sodaCat checkout (contains svd/ and models/)")
	flags.StringVarP(&outputDir, "output-dir", "o", "data", "Directory to write the generated tree to")
	flags.StringVar(&searchDB, "search-db", "", "Also write a SQLite search database to this file")
	flags.IntVar(&threshold, "summary-threshold", ingest.DefaultSummaryThreshold, "Block size in bytes above which a summary is written")
	return cmd
}

func runBuild(stdout io.Writer, cfg *config.Config, logger *slog.Logger) (err error) {
	if _, err := os.Stat(cfg.SodacatDir); err != nil {
		return fmt.Errorf("sodaCat directory: %w", err)
	}

	engine := ingest.NewEngine(osfs.New(cfg.SodacatDir), osfs.New(cfg.OutputDir), logger)
	engine.SummaryThreshold = cfg.SummaryThreshold

	// Configuration errors must leave the output dir and any previous search
	// database as they were.
	if err := engine.Prepare(); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var writer *searchdb.Writer
	tmpDB := cfg.SearchDB + ".tmp"
	if cfg.SearchDB != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.SearchDB), 0o755); err != nil {
			return fmt.Errorf("create search db dir: %w", err)
		}
		if err := os.Remove(tmpDB); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale search db: %w", err)
		}
		if writer, err = searchdb.NewWriter(tmpDB); err != nil {
			return err
		}
		engine.Sink = writer
		defer func() {
			if err != nil {
				_ = os.Remove(tmpDB)
			}
		}()
	}

	start := time.Now()
	stats, err := engine.Build()
	if writer != nil {
		if cerr := writer.Close(); err == nil {
			err = cerr
		}
		if err == nil {
			if err = os.Rename(tmpDB, cfg.SearchDB); err != nil {
				err = fmt.Errorf("install search db: %w", err)
			}
		}
	}
	if err != nil {
		return err
	}

	elapsed := time.Since(start)

	rev, rerr := ingest.SourceRevision(cfg.SodacatDir)
	if rerr != nil {
		logger.Debug("source revision unavailable", "error", rerr)
	} else {
		logger.Info("source revision", "sha", rev.SHA, "date", rev.Date, "dirty", rev.Dirty)
	}

	printStats(stdout, cfg, stats, rev, elapsed)
	return nil
}

func printStats(w io.Writer, cfg *config.Config, stats *ingest.BuildStats, rev ingest.Revision, elapsed time.Duration) {
	fmt.Fprintf(w, "Built %s from %s in %v\n", cfg.OutputDir, cfg.SodacatDir, elapsed.Round(time.Millisecond))
	if rev.SHA != "" {
		fmt.Fprintf(w, "  source:    %s %s\n", rev.Short(), rev.Subject)
	}
	fmt.Fprintf(w, "  vendors:   %d\n", stats.Vendors)
	fmt.Fprintf(w, "  files:     %d\n", stats.Files)
	fmt.Fprintf(w, "  blocks:    %d (%d aliases, %d summaries)\n", stats.Blocks, stats.Aliases, stats.Summaries)
	fmt.Fprintf(w, "  chips:     %d (%d instances resolved, %d unresolved)\n", stats.Chips, stats.Resolved, stats.Unresolved)
	fmt.Fprintf(w, "  search:    %s / %s / %s entries\n",
		humanize.Comma(int64(stats.Tier1)), humanize.Comma(int64(stats.Tier2)), humanize.Comma(int64(stats.Tier3)))

	names := make([]string, 0, len(stats.Sizes))
	for name := range stats.Sizes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if size := stats.Sizes[name]; size >= 0 {
			fmt.Fprintf(w, "  %-18s %s\n", name, humanize.Bytes(uint64(size)))
		}
	}
	if cfg.SearchDB != "" {
		fmt.Fprintf(w, "  search db: %s\n", cfg.SearchDB)
	}
}
