package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"arkimedes/internal/deps"
	"arkimedes/internal/preflight"
)

var errNotReady = errors.New("readiness checks failed")

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check registry access, directories and optional tools",
		Long: `Check verifies that arkimedes can do its work: the data, log and mirror
directories are writable, the registry accepts the configured credentials,
configured name-authority and OAI-PMH endpoints answer, and the poppler
tools used for conservation reports are installed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var pinger preflight.Pinger
			if cfg.HasCredentials() {
				client, err := ctx.registryClient(cmd)
				if err != nil {
					return err
				}
				pinger = client
			}
			results := preflight.RunAll(cmd.Context(), cfg, pinger)
			tools := preflight.CheckSystemDeps(cfg)

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			var b strings.Builder
			writeSection(&b, "Readiness", preflightLines(results, colorize), colorize)
			b.WriteByte('\n')
			writeSection(&b, "Tools", dependencyLines(tools, colorize), colorize)
			if _, err := io.WriteString(out, b.String()); err != nil {
				return err
			}

			if preflight.Failed(results) || len(deps.MissingRequired(tools)) > 0 {
				return errNotReady
			}
			return nil
		},
	}
}

// checkRegistry runs the registry login check ahead of a live batch.
func checkRegistry(ctx context.Context, pinger preflight.Pinger) error {
	if r := preflight.CheckRegistry(ctx, pinger); !r.Passed {
		return fmt.Errorf("registry check failed: %s", r.Detail)
	}
	return nil
}

func preflightLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, len(results))
	for i, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		lines[i] = renderStatusLine(r.Name, kind, r.Detail, colorize)
	}
	return lines
}

// dependencyLines reports each tool. Missing optional tools are warnings;
// a trailing line names everything missing with an install hint.
func dependencyLines(statuses []deps.Status, colorize bool) []string {
	var lines, missing []string
	for _, s := range statuses {
		switch {
		case s.Available:
			msg := "Ready"
			if where := strings.TrimSpace(s.Path); where != "" {
				msg += " (command: " + where + ")"
			} else if s.Command != "" {
				msg += " (command: " + s.Command + ")"
			}
			lines = append(lines, renderStatusLine(s.Name, statusOK, msg, colorize))
		default:
			kind := statusError
			if s.Optional {
				kind = statusWarn
			}
			detail := orDefault(strings.TrimSpace(s.Detail), "not available")
			lines = append(lines, renderStatusLine(s.Name, kind, detail, colorize))
			missing = append(missing, s.Name)
		}
	}
	if len(missing) > 0 {
		hint := strings.Join(missing, ", ") + " (install poppler-utils to read conservation reports)"
		lines = append(lines, renderStatusLine("Missing tools", statusWarn, hint, colorize))
	}
	return lines
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

type statusKind int

const (
	statusOK statusKind = iota
	statusWarn
	statusError
)

var statusStyles = [...]struct {
	label string
	color string
}{
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

// renderStatusLine formats "  Label:<pad> [KIND] message" with the label
// column padded to a fixed width.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusStyles[kind]
	line := fmt.Sprintf("  %-20s [%s]", label+":", style.label)
	if message != "" {
		line += " " + message
	}
	return paint(line, style.color, colorize)
}

func writeSection(b *strings.Builder, title string, lines []string, colorize bool) {
	heading := "== " + title + " =="
	b.WriteString(paint(heading, ansiBlue, colorize))
	b.WriteByte('\n')
	b.WriteString(paint(strings.Repeat("-", len(heading)), ansiBlue, colorize))
	b.WriteByte('\n')
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

func paint(s, color string, colorize bool) string {
	if !colorize {
		return s
	}
	return color + s + ansiReset
}

// shouldColorize reports whether w is a terminal.
func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
