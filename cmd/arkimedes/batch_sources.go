package main

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"arkimedes/internal/anvl"
	"arkimedes/internal/config"
	"arkimedes/internal/deps"
	"arkimedes/internal/logging"
	"arkimedes/internal/profile"
	"arkimedes/internal/sources"
	"arkimedes/internal/tabular"
)

// Input kinds accepted by the batch command.
const (
	sourceAuto   = "auto"
	sourceTSV    = "tsv"
	sourceCSV    = "csv"
	sourceANVL   = "anvl"
	sourceEAD    = "ead"
	sourceReport = "report"
	sourceOAI    = "oai"
)

var sourceKinds = []string{sourceAuto, sourceTSV, sourceCSV, sourceANVL, sourceEAD, sourceReport, sourceOAI}

type inputOptions struct {
	kind    string
	set     string
	targets string
}

// batchInput is a restartable row sequence plus the name used in messages.
type batchInput struct {
	name string
	rows func() iter.Seq2[tabular.Row, error]
}

// scan reads the whole input once so a malformed row fails the run before
// any row reaches the registry.
func (in batchInput) scan() error {
	for _, err := range in.rows() {
		if err != nil {
			return fmt.Errorf("batch: read input: %w", err)
		}
	}
	return nil
}

func profileDefaults(cfg *config.Config) profile.Defaults {
	return profile.Defaults{
		Publisher: cfg.Defaults.Publisher,
		Type:      cfg.Defaults.Type,
		Profile:   cfg.Defaults.Profile,
		MirrorERC: cfg.Defaults.MirrorERC,
	}
}

// detectSource picks an input kind from the first location's extension.
func detectSource(locations []string) (string, error) {
	if len(locations) == 0 {
		return "", errors.New("no input given (pass a file or use --source oai)")
	}
	loc := locations[0]
	if sources.IsURL(loc) {
		if parsed, err := url.Parse(loc); err == nil {
			loc = parsed.Path
		}
	}
	switch strings.ToLower(path.Ext(loc)) {
	case ".tsv", ".tab":
		return sourceTSV, nil
	case ".csv":
		return sourceCSV, nil
	case ".anvl", ".txt":
		return sourceANVL, nil
	case ".xml":
		return sourceEAD, nil
	case ".pdf":
		return sourceReport, nil
	}
	return "", fmt.Errorf("cannot detect input type of %q (use --source)", locations[0])
}

// loadInput resolves the batch command's positional arguments into rows.
func loadInput(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string, opts inputOptions) (batchInput, error) {
	kind := strings.ToLower(strings.TrimSpace(opts.kind))
	if kind == "" || kind == sourceAuto {
		detected, err := detectSource(args)
		if err != nil {
			return batchInput{}, err
		}
		kind = detected
	}

	var targets []string
	if opts.targets != "" {
		f, err := os.Open(opts.targets)
		if err != nil {
			return batchInput{}, fmt.Errorf("open targets: %w", err)
		}
		targets, err = sources.ReadTargets(f)
		f.Close()
		if err != nil {
			return batchInput{}, fmt.Errorf("read targets: %w", err)
		}
	}

	switch kind {
	case sourceTSV, sourceCSV:
		return tabularInput(args, kind, targets)
	case sourceANVL, sourceEAD, sourceReport, sourceOAI:
	default:
		return batchInput{}, fmt.Errorf("unknown source %q (want one of %s)", kind, strings.Join(sourceKinds, ", "))
	}

	records, err := loadRecords(ctx, cfg, logger, kind, args, opts.set)
	if err != nil {
		return batchInput{}, err
	}
	if targets != nil {
		if records, err = sources.AssignTargets(records, targets); err != nil {
			return batchInput{}, err
		}
	}
	name := kind
	if len(args) == 1 {
		name = args[0]
	}
	return batchInput{name: name, rows: func() iter.Seq2[tabular.Row, error] { return sources.Rows(records) }}, nil
}

func tabularInput(args []string, kind string, targets []string) (batchInput, error) {
	if len(args) != 1 {
		return batchInput{}, fmt.Errorf("%s input takes exactly one file", kind)
	}
	delimiter := ','
	if kind == sourceTSV {
		delimiter = '\t'
	}
	loader, err := tabular.Open(args[0], tabular.WithDelimiter(delimiter))
	if err != nil {
		return batchInput{}, err
	}
	if targets == nil {
		return batchInput{name: loader.Name(), rows: loader.Rows}, nil
	}

	rows, err := loader.Records()
	if err != nil {
		return batchInput{}, err
	}
	records := make([]anvl.Record, len(rows))
	for i, row := range rows {
		records[i] = row.Record
	}
	records, err = sources.AssignTargets(records, targets)
	if err != nil {
		return batchInput{}, err
	}
	for i := range rows {
		rows[i].Record = records[i]
	}
	return batchInput{name: loader.Name(), rows: func() iter.Seq2[tabular.Row, error] {
		return func(yield func(tabular.Row, error) bool) {
			for _, row := range rows {
				if !yield(row, nil) {
					return
				}
			}
		}
	}}, nil
}

func loadRecords(ctx context.Context, cfg *config.Config, logger *slog.Logger, kind string, args []string, set string) ([]anvl.Record, error) {
	timeout := time.Duration(cfg.Sources.TimeoutSeconds) * time.Second
	defaults := profileDefaults(cfg)

	if kind == sourceOAI {
		if len(args) > 0 {
			return nil, errors.New("oai input is configured by sources.oai_base_url; remove the file arguments")
		}
		harvester, err := sources.NewHarvester(cfg.Sources.OAIBaseURL, timeout, sources.WithFetchUserAgent(cfg.Registry.UserAgent))
		if err != nil {
			return nil, err
		}
		if set == "" {
			set = cfg.Sources.OAISet
		}
		var ms []sources.Metadata
		for rec, err := range harvester.Harvest(ctx, set) {
			if err != nil {
				return nil, fmt.Errorf("harvest: %w", err)
			}
			ms = append(ms, rec.Metadata)
		}
		logger.Info("harvest complete", logging.Int("records", len(ms)), logging.String("set", set))
		return sources.Records(ms, defaults), nil
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("%s input needs at least one file or URL", kind)
	}
	fetcher := sources.NewFetcher(timeout, sources.WithFetchUserAgent(cfg.Registry.UserAgent))
	docs, err := fetcher.FetchAll(ctx, args)
	if err != nil {
		return nil, err
	}

	switch kind {
	case sourceANVL:
		return sources.ParseANVLDocuments(docs)
	case sourceEAD:
		ms, errs := sources.ParseEADDocuments(docs)
		for _, err := range errs {
			logging.WarnWithContext(logger, "finding aid skipped", "ead_skipped", logging.Error(err))
		}
		if len(ms) == 0 && len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return sources.Records(ms, defaults), nil
	default:
		reader := reportReader(cfg)
		var (
			ms   []sources.Metadata
			errs []error
		)
		for _, doc := range docs {
			m, err := reader.Read(ctx, doc)
			if err != nil {
				logging.WarnWithContext(logger, "report skipped", "report_skipped", logging.Error(err))
				errs = append(errs, err)
				continue
			}
			ms = append(ms, m)
		}
		if len(ms) == 0 && len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return sources.Records(ms, defaults), nil
	}
}

// reportReader pairs pdftotext with pdfinfo when pdfinfo is installed, so
// document properties can stand in for fields missing from the text.
func reportReader(cfg *config.Config) sources.ReportReader {
	reader := sources.ReportReader{Extractor: sources.CommandExtractor{Binary: cfg.PDFToTextBinary()}}
	for _, status := range deps.Check(deps.Poppler(cfg.PDFToTextBinary())...) {
		if status.Name == "pdfinfo" && status.Available {
			reader.Info = sources.InfoCommand{Binary: status.Path}
		}
	}
	return reader
}
