package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"arkimedes/internal/ezid"
	"arkimedes/internal/fileutil"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var (
		opts         ezid.DownloadOptions
		params       []string
		outputPath   string
		pollInterval time.Duration
		pollAttempts int
		load         bool
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Request a batch download of the account's identifiers and save it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			if load && (opts.Format != "anvl" || opts.Compression != "gzip") {
				return fmt.Errorf("--load needs --format anvl --compression gzip")
			}
			for _, p := range params {
				key, value, ok := strings.Cut(p, "=")
				if !ok || strings.TrimSpace(key) == "" {
					return &ezid.ValidationError{Field: "param", Reason: fmt.Sprintf("expected key=value, got %q", p)}
				}
				if opts.Params == nil {
					opts.Params = make(map[string][]string)
				}
				opts.Params.Add(strings.TrimSpace(key), strings.TrimSpace(value))
			}

			client, err := ctx.registryClient(cmd)
			if err != nil {
				return err
			}
			runCtx := cmd.Context()
			downloadURL, err := client.RequestDownload(runCtx, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Download requested: %s\n", downloadURL)

			dst := outputPath
			if dst == "" {
				dst = ezid.DownloadFileName(downloadURL)
			}
			policy := ezid.PollPolicy{Interval: pollInterval, Attempts: pollAttempts}
			written, err := fileutil.WriteAtomic(dst, 0o644, func(w io.Writer) error {
				_, err := client.FetchDownload(runCtx, downloadURL, w, policy)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %s (%d bytes, sha256 %s)\n", written.Path, written.Size, written.SHA256)

			if load {
				return loadIntoMirror(runCtx, cmd, ctx, written.Path)
			}
			return nil
		},
	}

	defaults := ezid.DefaultPollPolicy()
	cmd.Flags().StringVar(&opts.Format, "format", "anvl", "Download format: anvl, csv or xml")
	cmd.Flags().StringVar(&opts.Compression, "compression", "gzip", "Archive compression: gzip or zip")
	cmd.Flags().StringSliceVar(&opts.Columns, "column", nil, "Column to include in a csv download (repeatable)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Extra download parameter as key=value (repeatable)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (defaults to the archive name)")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", defaults.Interval, "Delay between checks for the archive")
	cmd.Flags().IntVar(&pollAttempts, "poll-attempts", defaults.Attempts, "Checks before giving up")
	cmd.Flags().BoolVar(&load, "load", false, "Load the downloaded records into the mirror database")
	return cmd
}

func loadIntoMirror(runCtx context.Context, cmd *cobra.Command, ctx *commandContext, path string) error {
	store, err := ctx.requireStore()
	if err != nil {
		return err
	}
	defer store.Close()
	stats, err := loadFile(runCtx, store, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d records from %s into %s (%d skipped)\n",
		stats.Loaded, filepath.Base(path), store.Path(), stats.Skipped)
	return nil
}
