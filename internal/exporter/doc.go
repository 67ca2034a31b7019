// Package exporter writes enrollment tables to CSV, Parquet and JSON.
//
// CSVWriter emits a fixed column order: wide exports lead with the
// identity columns and row_total, followed by each count attribute that
// at least one record reports; tidy exports use TidyColumns. Missing and
// suppressed values are empty cells.
//
// ParquetWriter emits one SNAPPY compressed file with a schema derived
// from the same columns. Nullable columns are OPTIONAL.
//
// Example usage:
//
//	exp := exporter.NewExporter(logger)
//	err := exp.ExportFile(ctx, table, "out/enrollment_2024.parquet")
package exporter
