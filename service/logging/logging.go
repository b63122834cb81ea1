// Package logging wires the run logger: a console handler for humans and a
// per-run file that is kept next to the report.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	charmlog "github.com/charmbracelet/log"
	"github.com/gosimple/slug"
	slogmulti "github.com/samber/slog-multi"
)

// Setup installs the run logger on ctx. The run log is plain text, one
// timestamped line per record, at debug level regardless of the console level.
// The returned path is empty when the log file could not be created; the
// console logger is still installed.
func Setup(ctx context.Context, console io.Writer, level, outputDir, runID string) (context.Context, string, func()) {
	lvl, err := charmlog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = charmlog.InfoLevel
	}

	consoleHandler := charmlog.NewWithOptions(console, charmlog.Options{
		Level:           lvl,
		ReportTimestamp: true,
		Prefix:          "teardown",
	})

	logger := clog.New(consoleHandler)
	ctx = clog.WithLogger(ctx, logger)
	slog.SetDefault(&logger.Logger)

	if outputDir == "" {
		return ctx, "", func() {}
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		clog.WarnContext(ctx, "failed to create output directory", "path", outputDir, "error", err.Error())
		return ctx, "", func() {}
	}

	logPath := filepath.Join(outputDir, fmt.Sprintf("teardown-%s.log", slug.Make(runID)))
	logFile, err := os.Create(logPath)
	if err != nil {
		clog.WarnContext(ctx, "failed to create run log file", "path", logPath, "error", err.Error())
		return ctx, "", func() {}
	}

	fileHandler := charmlog.NewWithOptions(logFile, charmlog.Options{
		Level:           charmlog.DebugLevel,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmlog.TextFormatter,
	})

	logger = clog.New(slogmulti.Fanout(consoleHandler, fileHandler)).With("run_id", runID)
	ctx = clog.WithLogger(ctx, logger)
	slog.SetDefault(&logger.Logger)

	return ctx, logPath, func() {
		if err := logFile.Close(); err != nil {
			clog.WarnContext(ctx, "failed to close run log file", "path", logPath, "error", err.Error())
		}
	}
}

// With returns ctx carrying a logger enriched with args.
func With(ctx context.Context, args ...any) context.Context {
	return clog.WithLogger(ctx, clog.FromContext(ctx).With(args...))
}
