package report

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/newthinker/navsim/internal/backtest"
	"github.com/newthinker/navsim/internal/core"
	"github.com/newthinker/navsim/internal/dataset"
	"github.com/newthinker/navsim/internal/performance"
	"github.com/newthinker/navsim/internal/storage/archive"
)

// Artifacts lists the paths a Writer produced.
type Artifacts struct {
	Values   string
	Holdings string
	Metrics  string
	YAML     string
	Markdown string
}

// Paths returns the non-empty artifact paths in write order.
func (a Artifacts) Paths() []string {
	var out []string
	for _, p := range []string{a.Values, a.Holdings, a.Metrics, a.YAML, a.Markdown} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Writer persists run outputs under a storage prefix.
type Writer struct {
	storage  archive.Storage
	tables   *dataset.Tables
	format   dataset.Format
	markdown bool
	logger   *zap.Logger
}

// NewWriter creates a writer for the given table format. The markdown
// report is written when markdown is true.
func NewWriter(storage archive.Storage, format dataset.Format, markdown bool, logger ...*zap.Logger) *Writer {
	log := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		log = logger[0]
	}
	return &Writer{
		storage:  storage,
		tables:   dataset.New(storage, log),
		format:   format,
		markdown: markdown,
		logger:   log,
	}
}

// Write stores the value series, holdings, metrics and the report. result
// may be nil, in which case only metrics and the report are written.
// Artifacts of an earlier run that this call rewrites are removed first;
// without a result the value series and holdings under prefix are kept.
func (w *Writer) Write(ctx context.Context, prefix string, result *backtest.Result,
	perf *performance.Report, summary *Summary) (Artifacts, error) {
	var a Artifacts
	ext := w.format.Ext()

	if err := w.clearStale(ctx, prefix, result != nil); err != nil {
		return a, err
	}

	if result != nil {
		a.Values = path.Join(prefix, "nav"+ext)
		if err := w.tables.WriteValues(ctx, a.Values, result.Values); err != nil {
			return a, err
		}
		a.Holdings = path.Join(prefix, "holdings"+ext)
		if err := w.tables.WriteHoldings(ctx, a.Holdings, result.Holdings); err != nil {
			return a, err
		}
	}

	if perf != nil {
		a.Metrics = path.Join(prefix, "metrics"+ext)
		if err := w.tables.WriteMetrics(ctx, a.Metrics, perf.Metrics()); err != nil {
			return a, err
		}
	}

	if summary != nil {
		data, err := summary.YAML()
		if err != nil {
			return a, err
		}
		a.YAML = path.Join(prefix, "report.yaml")
		if err := w.put(ctx, a.YAML, data); err != nil {
			return a, err
		}
		if w.markdown {
			a.Markdown = path.Join(prefix, "report.md")
			if err := w.put(ctx, a.Markdown, []byte(summary.Markdown())); err != nil {
				return a, err
			}
		}
	}

	w.logger.Info("artifacts written",
		zap.String("prefix", prefix),
		zap.Strings("paths", a.Paths()),
	)
	return a, nil
}

func (w *Writer) put(ctx context.Context, p string, data []byte) error {
	if err := w.storage.Write(ctx, p, data); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("writing %s: %w", p, err))
	}
	return nil
}

// clearStale deletes the artifacts a Writer owns directly under prefix.
// The value series and holdings are only deleted when series is true.
// Other objects are left alone.
func (w *Writer) clearStale(ctx context.Context, prefix string, series bool) error {
	dir := prefix
	if dir != "" {
		dir += "/"
	}
	paths, err := w.storage.List(ctx, dir)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("listing %s: %w", prefix, err))
	}
	for _, p := range paths {
		if !owned(strings.TrimPrefix(p, dir), series) {
			continue
		}
		if err := w.storage.Delete(ctx, p); err != nil {
			return core.WrapError(core.ErrStorageFailed, fmt.Errorf("deleting %s: %w", p, err))
		}
		w.logger.Debug("stale artifact removed", zap.String("path", p))
	}
	return nil
}

// owned reports whether name is an artifact file name. nav and holdings
// tables only count when series is true.
func owned(name string, series bool) bool {
	switch name {
	case "report.yaml", "report.md":
		return true
	}
	ext := path.Ext(name)
	if ext != dataset.FormatCSV.Ext() && ext != dataset.FormatParquet.Ext() {
		return false
	}
	switch strings.TrimSuffix(name, ext) {
	case "metrics":
		return true
	case "nav", "holdings":
		return series
	}
	return false
}
