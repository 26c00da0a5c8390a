package exporter

import (
	"context"
	"fmt"
	"log/slog"

	"sczmerge/internal/files"
	"sczmerge/pkg/contracts/domain"
)

// Artifact formats
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
	FormatXLSX    = "xlsx"
)

// ArtifactStatus is the outcome of writing one artifact
type ArtifactStatus struct {
	Format  string
	Path    string
	Written bool
	Size    int64
	Err     error // why an optional artifact was not written
}

// PersistResult separates the authoritative CSV from the optional artifacts
type PersistResult struct {
	Primary  ArtifactStatus
	Optional []ArtifactStatus
	Rows     int
	Columns  int
}

// Written returns every artifact that exists on disk after the run
func (r *PersistResult) Written() []ArtifactStatus {
	written := make([]ArtifactStatus, 0, 1+len(r.Optional))
	if r.Primary.Written {
		written = append(written, r.Primary)
	}
	for _, a := range r.Optional {
		if a.Written {
			written = append(written, a)
		}
	}
	return written
}

// Failed returns the optional artifacts that could not be written
func (r *PersistResult) Failed() []ArtifactStatus {
	var failed []ArtifactStatus
	for _, a := range r.Optional {
		if !a.Written {
			failed = append(failed, a)
		}
	}
	return failed
}

// Targets names the artifact destinations of one run. Empty optional paths
// disable that artifact.
type Targets struct {
	CSV     string
	Parquet string
	XLSX    string
}

// tableWriter is satisfied by the per-format writers
type tableWriter interface {
	WriteTable(filePath string, t *domain.Table) (int64, error)
}

type csvTableWriter struct{ w *CSVWriter }

func (c csvTableWriter) WriteTable(filePath string, t *domain.Table) (int64, error) {
	return c.w.WriteTable(filePath, t, WriteOptions{})
}

// Persister writes the unified table to every configured artifact
type Persister struct {
	manager  *files.Manager
	primary  tableWriter
	optional map[string]tableWriter
	logger   *slog.Logger
}

// NewPersister creates a persister backed by the given file manager
func NewPersister(manager *files.Manager, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{
		manager: manager,
		primary: csvTableWriter{w: NewCSVWriter(manager)},
		optional: map[string]tableWriter{
			FormatParquet: NewParquetWriter(manager),
			FormatXLSX:    NewXLSXWriter(manager),
		},
		logger: logger.With("component", "persister"),
	}
}

// Persist writes the CSV and then each optional artifact. Only a CSV failure
// is returned as an error; optional failures are recorded in the result.
func (p *Persister) Persist(ctx context.Context, t *domain.Table, targets Targets) (*PersistResult, error) {
	result := &PersistResult{
		Rows:    t.Len(),
		Columns: t.Width(),
		Primary: ArtifactStatus{Format: FormatCSV, Path: targets.CSV},
	}

	if err := p.manager.EnsureOutputDir(); err != nil {
		result.Primary.Err = err
		return result, err
	}

	p.logger.InfoContext(ctx, "Saving CSV", slog.String("path", targets.CSV))
	size, err := p.primary.WriteTable(targets.CSV, t)
	if err != nil {
		result.Primary.Err = err
		return result, fmt.Errorf("failed to write %s: %w", targets.CSV, err)
	}
	result.Primary.Written = true
	result.Primary.Size = size

	for _, opt := range []struct {
		format string
		path   string
	}{
		{FormatParquet, targets.Parquet},
		{FormatXLSX, targets.XLSX},
	} {
		if opt.path == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		status := ArtifactStatus{Format: opt.format, Path: opt.path}
		p.logger.InfoContext(ctx, "Saving optional artifact",
			slog.String("format", opt.format),
			slog.String("path", opt.path))

		size, err := p.optional[opt.format].WriteTable(opt.path, t)
		if err != nil {
			status.Err = err
			p.logger.WarnContext(ctx, "Optional artifact not saved",
				slog.String("format", opt.format),
				slog.String("path", opt.path),
				slog.String("error", err.Error()))
		} else {
			status.Written = true
			status.Size = size
		}
		result.Optional = append(result.Optional, status)
	}

	return result, nil
}
