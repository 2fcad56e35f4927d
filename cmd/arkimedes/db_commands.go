package main

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"arkimedes/internal/arkdb"
	"arkimedes/internal/fileutil"
)

func newDBCommand(ctx *commandContext) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the local identifier mirror",
	}
	dbCmd.AddCommand(newDBLoadCommand(ctx))
	dbCmd.AddCommand(newDBDumpCommand(ctx))
	dbCmd.AddCommand(newDBFindCommand(ctx))
	dbCmd.AddCommand(newDBStatsCommand(ctx))
	return dbCmd
}

func newDBLoadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "load <file>",
		Short: "Load a batch download (ANVL, optionally gzipped) into the mirror",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			return loadIntoMirror(cmd.Context(), cmd, ctx, args[0])
		},
	}
}

// loadFile loads an ANVL file, decompressing it when it is gzipped.
func loadFile(ctx context.Context, store *arkdb.Store, path string) (arkdb.LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return arkdb.LoadStats{}, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return arkdb.LoadStats{}, fmt.Errorf("open %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}
	return store.Load(ctx, r)
}

type filterFlags struct {
	filter arkdb.Filter
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.filter.Target, "target", "", "Exact target URL")
	cmd.Flags().StringVar(&f.filter.Title, "title", "", "Title substring (case-insensitive)")
	cmd.Flags().StringVar(&f.filter.Creator, "creator", "", "Creator substring (case-insensitive)")
	cmd.Flags().BoolVar(&f.filter.Replaceable, "replaceable", false, "Only identifiers that may be recycled")
	cmd.Flags().IntVar(&f.filter.Limit, "limit", 0, "Maximum records (0 for all)")
}

func newDBDumpCommand(ctx *commandContext) *cobra.Command {
	var (
		filters    filterFlags
		outputPath string
	)
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write mirrored records as multi-record ANVL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			store, err := ctx.requireStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if outputPath == "" || outputPath == "-" {
				_, err := store.Dump(cmd.Context(), cmd.OutOrStdout(), filters.filter)
				return err
			}
			var n int
			if _, err := fileutil.WriteAtomic(outputPath, 0o644, func(w io.Writer) error {
				var err error
				n, err = store.Dump(cmd.Context(), w, filters.filter)
				return err
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d records to %s\n", n, outputPath)
			return nil
		},
	}
	filters.bind(cmd)
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (default stdout)")
	return cmd
}

func newDBFindCommand(ctx *commandContext) *cobra.Command {
	var (
		filters filterFlags
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "find [identifier]",
		Short: "Search the mirror by identifier, target, title or creator",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			store, err := ctx.requireStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var arks []arkdb.Ark
			if len(args) == 1 {
				ark, err := store.Get(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if ark == nil {
					return fmt.Errorf("%s is not in the mirror", args[0])
				}
				arks = append(arks, *ark)
			} else {
				if arks, err = store.List(cmd.Context(), filters.filter); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				docs := make([]recordJSON, 0, len(arks))
				for _, ark := range arks {
					docs = append(docs, newRecordJSON(ark.Identifier, ark.Record))
				}
				return writeJSON(out, docs)
			}
			if len(arks) == 0 {
				fmt.Fprintln(out, "No matching records")
				return nil
			}
			fmt.Fprintln(out, renderArkTable(arks))
			return nil
		},
	}
	filters.bind(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	return cmd
}

func newDBStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count mirrored and replaceable identifiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			store, err := ctx.requireStore()
			if err != nil {
				return err
			}
			defer store.Close()

			total, err := store.Count(cmd.Context(), arkdb.Filter{})
			if err != nil {
				return err
			}
			replaceable, err := store.Count(cmd.Context(), arkdb.Filter{Replaceable: true})
			if err != nil {
				return err
			}
			rows := [][]string{
				{"Database", store.Path()},
				{"Identifiers", strconv.Itoa(total)},
				{"Replaceable", strconv.Itoa(replaceable)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Mirror", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

func renderArkTable(arks []arkdb.Ark) string {
	rows := make([][]string, 0, len(arks))
	for _, ark := range arks {
		rows = append(rows, []string{
			ark.Identifier,
			truncateMessage(ark.Title, 40),
			truncateMessage(ark.Creator, 30),
			truncateMessage(ark.Target, 50),
			yesNo(ark.Replaceable),
		})
	}
	return renderTable([]string{"Identifier", "Title", "Creator", "Target", "Replaceable"}, rows, nil)
}
