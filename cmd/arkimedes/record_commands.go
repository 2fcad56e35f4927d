package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"arkimedes/internal/anvl"
	"arkimedes/internal/arkdb"
	"arkimedes/internal/ezid"
)

// recordInput gathers metadata from an optional ANVL file and --field pairs.
type recordInput struct {
	file   string
	fields []string
}

func (in *recordInput) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&in.file, "file", "f", "", "Read metadata from an ANVL file (- for stdin)")
	cmd.Flags().StringArrayVar(&in.fields, "field", nil, "Metadata as key=value (repeatable)")
}

func (in recordInput) read(stdin io.Reader) (anvl.Record, error) {
	var rec anvl.Record
	if in.file != "" {
		var (
			data []byte
			err  error
		)
		if in.file == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(in.file)
		}
		if err != nil {
			return anvl.Record{}, fmt.Errorf("read metadata: %w", err)
		}
		if rec, err = anvl.Decode(string(data)); err != nil {
			return anvl.Record{}, err
		}
	}
	for _, field := range in.fields {
		key, value, ok := strings.Cut(field, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return anvl.Record{}, &ezid.ValidationError{Field: "field", Reason: fmt.Sprintf("expected key=value, got %q", field)}
		}
		rec = rec.With(key, strings.TrimSpace(value))
	}
	return rec, nil
}

// registryExecutor returns the registry client, wrapped in the mirror
// tracker when the mirror is enabled. The returned func releases the store.
func registryExecutor(cmd *cobra.Command, ctx *commandContext) (ezid.Executor, func(), error) {
	client, err := ctx.registryClient(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, err := ctx.openStore()
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return client, func() {}, nil
	}
	cfg, _ := ctx.ensureConfig()
	logger, _ := ctx.loggerFor(cmd)
	tracker := arkdb.NewTracker(client, store, arkdb.TrackerOptions{
		DuplicateCheck: cfg.Database.DuplicateCheck,
		Logger:         logger,
	})
	return tracker, func() { _ = store.Close() }, nil
}

func newMintCommand(ctx *commandContext) *cobra.Command {
	var (
		input       recordInput
		shoulder    string
		noReconcile bool
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint one identifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rec, err := input.read(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if rec.IsEmpty() {
				return &ezid.ValidationError{Field: "metadata", Reason: "give --file or at least one --field"}
			}
			rec = profileDefaults(cfg).Apply(rec)
			if cfg.Reconcile.Enabled && !noReconcile {
				logger, err := ctx.loggerFor(cmd)
				if err != nil {
					return err
				}
				reconciler, err := newReconciler(cfg, logger)
				if err != nil {
					return err
				}
				rec = reconciler.Apply(cmd.Context(), rec)
			}

			exec, release, err := registryExecutor(cmd, ctx)
			if err != nil {
				return err
			}
			defer release()
			res, err := exec.Execute(cmd.Context(), ezid.MintRequest{Shoulder: strings.TrimSpace(shoulder), Record: rec})
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res, asJSON)
		},
	}
	input.bind(cmd)
	cmd.Flags().StringVar(&shoulder, "shoulder", "", "Shoulder to mint under (defaults to registry.shoulder)")
	cmd.Flags().BoolVar(&noReconcile, "no-reconcile", false, "Skip name authority reconciliation")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func newUpdateCommand(ctx *commandContext) *cobra.Command {
	var (
		input  recordInput
		dryRun bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "update <identifier>",
		Short: "Update the metadata of one identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			identifier := strings.TrimSpace(args[0])
			rec, err := input.read(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if rec.IsEmpty() {
				return &ezid.ValidationError{Field: "metadata", Reason: "give --file or at least one --field"}
			}
			if other := rec.Identifier(); other != "" && other != identifier {
				return &ezid.ValidationError{Field: anvl.KeyIdentifier, Reason: fmt.Sprintf("metadata names %s, not %s", other, identifier)}
			}
			rec = rec.Without(anvl.KeyIdentifier)

			if dryRun {
				client, err := ctx.registryClient(cmd)
				if err != nil {
					return err
				}
				current, err := client.Query(cmd.Context(), identifier)
				if err != nil {
					return err
				}
				return printUpdatePreview(cmd.OutOrStdout(), current.Record, current.Record.Merge(rec))
			}

			exec, release, err := registryExecutor(cmd, ctx)
			if err != nil {
				return err
			}
			defer release()
			res, err := exec.Execute(cmd.Context(), ezid.UpdateRequest{Identifier: identifier, Record: rec})
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res, asJSON)
		},
	}
	input.bind(cmd)
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show the change against the current record without sending it")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func newViewCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "view <identifier> [identifier...]",
		Short: "Show the registry metadata of identifiers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			exec, release, err := registryExecutor(cmd, ctx)
			if err != nil {
				return err
			}
			defer release()

			var (
				results []ezid.Result
				errs    []error
			)
			for _, id := range args {
				res, err := exec.Execute(cmd.Context(), ezid.QueryRequest{Identifier: strings.TrimSpace(id)})
				if err != nil {
					errs = append(errs, err)
					continue
				}
				results = append(results, res)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				docs := make([]recordJSON, 0, len(results))
				for _, res := range results {
					docs = append(docs, newRecordJSON(res.Identifier, res.Record))
				}
				if err := writeJSON(out, docs); err != nil {
					return err
				}
			} else {
				records := make([]anvl.Record, 0, len(results))
				for _, res := range results {
					records = append(records, res.Record)
				}
				if err := anvl.WriteAll(out, records...); err != nil {
					return err
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	return cmd
}

func printResult(w io.Writer, res ezid.Result, asJSON bool) error {
	if asJSON {
		return writeJSON(w, newRecordJSON(res.Identifier, res.Record))
	}
	fmt.Fprintln(w, res.Identifier)
	return nil
}

func printUpdatePreview(w io.Writer, current, merged anvl.Record) error {
	before, after := anvl.Encode(current)+"\n", anvl.Encode(merged)+"\n"
	if before == after {
		fmt.Fprintln(w, "No changes")
		return nil
	}
	_, err := io.WriteString(w, renderRecordDiff(before, after, shouldColorize(w)))
	return err
}
