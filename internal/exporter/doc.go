// Package exporter persists the unified table.
//
// This package contains four main components:
//
// CSVWriter: writes the authoritative artifact as UTF-8 CSV with a single
// header row and no index column. Dates render as YYYY-MM-DD, numbers render
// as floats unless the whole column holds whole numbers, missing cells are empty.
//
// ParquetWriter: writes a SNAPPY-compressed Parquet file with typed columns.
//
// XLSXWriter: writes a single-sheet workbook for spreadsheet users.
//
// Persister: writes the CSV and then every enabled optional artifact, reporting
// each outcome in a PersistResult. Only a CSV failure is an error; optional
// artifacts fail softly with a recorded reason.
//
// Every artifact is replaced atomically through files.Manager.
//
// Example usage:
//
//	persister := exporter.NewPersister(files.NewManager(paths, logger), logger)
//	result, err := persister.Persist(ctx, merged, exporter.Targets{
//	    CSV:     paths.CSVFile,
//	    Parquet: paths.ParquetFile,
//	})
//	for _, failed := range result.Failed() {
//	    logger.Warn("artifact not written", "format", failed.Format, "error", failed.Err)
//	}
package exporter
