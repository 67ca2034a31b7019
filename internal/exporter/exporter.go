package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"idschooldata/pkg/contracts/domain"
)

// Exporter writes enrollment tables to files in any supported format
type Exporter struct {
	csv     *CSVWriter
	parquet *ParquetWriter
	logger  *slog.Logger
}

// NewExporter creates an exporter whose CSV output carries a UTF-8 BOM
func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		csv:     NewCSVWriter(true),
		parquet: NewParquetWriter(4),
		logger:  logger.With(slog.String("component", "exporter")),
	}
}

// Write renders table to w in format
func (e *Exporter) Write(w io.Writer, table *domain.EnrollmentTable, format Format) error {
	switch format {
	case FormatCSV:
		return e.csv.WriteTable(w, table)
	case FormatParquet:
		return e.parquet.WriteTable(w, table)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(table)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// ExportFile writes table to path, choosing the format from the
// extension. The file is written to a temporary name and renamed into
// place, so readers never see a partial export.
func (e *Exporter) ExportFile(ctx context.Context, table *domain.EnrollmentTable, path string) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := e.Write(tmp, table, format); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", format, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move export into place: %w", err)
	}

	e.logger.InfoContext(ctx, "enrollment exported",
		slog.String("path", path),
		slog.String("format", string(format)),
		slog.String("shape", string(table.Shape)),
		slog.Int("rows", table.Len()))
	return nil
}
