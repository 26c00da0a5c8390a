package dataprocessing

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"sczmerge/pkg/contracts/domain"
)

// FailurePolicy decides what happens when a single input file cannot be loaded
type FailurePolicy string

const (
	PolicyAbort FailurePolicy = "abort" // stop the run with the first failure
	PolicySkip  FailurePolicy = "skip"  // log the failure and continue without the file
)

var (
	// ErrDecode is returned when the bytes of a file are invalid in an encoding
	ErrDecode = errors.New("decode failed")
	// ErrRaggedRow is returned when a data row has more fields than the header
	ErrRaggedRow = errors.New("row has more fields than the header")
	// ErrEmptyFile is returned for files without a header row
	ErrEmptyFile = errors.New("file has no header row")
)

const utf8BOM = "\ufeff"

// LoadError wraps a failure to load one input file
type LoadError struct {
	Path string
	Err  error
}

// Error implements the error interface
func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoaderOptions configures decoding and missing-value recognition
type LoaderOptions struct {
	PrimaryEncoding  string
	FallbackEncoding string // empty disables the retry
	MissingTokens    []string
}

// LoadedFile is one input file read into a text table
type LoadedFile struct {
	Path         string
	Table        *domain.Table
	Encoding     string
	UsedFallback bool
}

// SkippedFile records an input file left out under PolicySkip
type SkippedFile struct {
	Path string
	Err  error
}

// LoadResult holds the loaded files in input order plus the skipped ones
type LoadResult struct {
	Files   []*LoadedFile
	Skipped []SkippedFile
}

// FallbackCount returns how many files needed the fallback encoding
func (r *LoadResult) FallbackCount() int {
	n := 0
	for _, f := range r.Files {
		if f.UsedFallback {
			n++
		}
	}
	return n
}

// Tables returns the loaded tables in input order
func (r *LoadResult) Tables() []*domain.Table {
	tables := make([]*domain.Table, len(r.Files))
	for i, f := range r.Files {
		tables[i] = f.Table
	}
	return tables
}

// Loader reads delimited text files into tables of text cells
type Loader struct {
	primary  textEncoding
	fallback *textEncoding
	missing  map[string]struct{}
	logger   *slog.Logger
}

// NewLoader creates a loader, rejecting unknown encodings up front
func NewLoader(opts LoaderOptions, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}

	primary, err := lookupEncoding(opts.PrimaryEncoding)
	if err != nil {
		return nil, fmt.Errorf("primary encoding: %w", err)
	}

	l := &Loader{
		primary: primary,
		missing: make(map[string]struct{}, len(opts.MissingTokens)),
		logger:  logger.With("component", "loader"),
	}

	if opts.FallbackEncoding != "" {
		fallback, err := lookupEncoding(opts.FallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("fallback encoding: %w", err)
		}
		l.fallback = &fallback
	}

	for _, token := range opts.MissingTokens {
		l.missing[token] = struct{}{}
	}

	return l, nil
}

// LoadFile reads one file. Decoding is attempted with the primary encoding and,
// when that fails, exactly once more with the fallback encoding. Every cell is
// text or missing; the provenance column carries the file's base name.
func (l *Loader) LoadFile(path string) (*LoadedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	enc := l.primary
	content, err := enc.decode(data)
	usedFallback := false
	if err != nil {
		if l.fallback == nil {
			return nil, &LoadError{Path: path, Err: err}
		}
		primaryErr := err
		enc = *l.fallback
		content, err = enc.decode(data)
		if err != nil {
			return nil, &LoadError{Path: path, Err: errors.Join(primaryErr, err)}
		}
		usedFallback = true
	}

	table, err := l.parse(filepath.Base(path), content)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	return &LoadedFile{
		Path:         path,
		Table:        table,
		Encoding:     enc.name,
		UsedFallback: usedFallback,
	}, nil
}

// parse turns decoded CSV text into a table named after the source file
func (l *Loader) parse(name, content string) (*domain.Table, error) {
	content = strings.TrimPrefix(content, utf8BOM)

	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := normalizeHeader(header)
	table, err := domain.NewTable(name, columns)
	if err != nil {
		return nil, err
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse csv: %w", err)
		}

		if len(record) > len(columns) {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d has %d fields, expected %d", ErrRaggedRow, line, len(record), len(columns))
		}

		row := make([]domain.Value, len(columns))
		for i := range row {
			if i < len(record) {
				row[i] = l.cell(record[i])
			} else {
				row[i] = domain.Missing()
			}
		}
		if err := table.AppendRow(row); err != nil {
			return nil, err
		}
	}

	provenance := domain.Text(name)
	if !table.MapColumn(domain.ProvenanceColumn, domain.KindText, func(domain.Value) domain.Value { return provenance }) {
		if err := table.AddColumn(domain.ProvenanceColumn, domain.KindText, provenance); err != nil {
			return nil, err
		}
	}

	return table, nil
}

// cell maps a raw field to a text or missing value
func (l *Loader) cell(raw string) domain.Value {
	if _, ok := l.missing[raw]; ok {
		return domain.Missing()
	}
	return domain.Text(raw)
}

// normalizeHeader trims names, names blank headers positionally and makes
// duplicates unique with .1, .2 suffixes
func normalizeHeader(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))
	taken := make(map[string]struct{}, len(header))

	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		taken[name] = struct{}{}
		columns[i] = name
	}

	for i, name := range columns {
		count, dup := seen[name]
		seen[name] = count + 1
		if !dup {
			continue
		}
		for {
			candidate := fmt.Sprintf("%s.%d", name, count)
			count++
			if _, exists := taken[candidate]; !exists {
				columns[i] = candidate
				taken[candidate] = struct{}{}
				seen[name] = count
				break
			}
		}
	}

	return columns
}

// LoadFiles loads paths with up to workers files in flight. Loaded files keep the
// order of paths regardless of completion order. Under PolicyAbort the first
// failure in path order is returned; under PolicySkip failures are collected.
func (l *Loader) LoadFiles(ctx context.Context, paths []string, workers int, policy FailurePolicy) (*LoadResult, error) {
	if workers < 1 {
		workers = 1
	}

	loaded := make([]*LoadedFile, len(paths))
	failures := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			file, err := l.LoadFile(path)
			if err != nil {
				failures[i] = err
				if policy == PolicyAbort {
					return err
				}
				return nil
			}

			if file.UsedFallback {
				l.logger.InfoContext(gctx, "Decoded with fallback encoding",
					slog.String("path", path),
					slog.String("encoding", file.Encoding))
			}
			l.logger.DebugContext(gctx, "Loaded input file",
				slog.String("path", path),
				slog.Int("rows", file.Table.Len()),
				slog.Int("columns", file.Table.Width()))

			loaded[i] = file
			return nil
		})
	}

	waitErr := g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &LoadResult{Files: make([]*LoadedFile, 0, len(paths))}
	for i, path := range paths {
		if failures[i] != nil {
			if policy == PolicyAbort {
				return nil, failures[i]
			}
			l.logger.WarnContext(ctx, "Skipping input file",
				slog.String("path", path),
				slog.String("error", failures[i].Error()))
			result.Skipped = append(result.Skipped, SkippedFile{Path: path, Err: failures[i]})
			continue
		}
		if loaded[i] != nil {
			result.Files = append(result.Files, loaded[i])
		}
	}

	if waitErr != nil {
		return nil, waitErr
	}

	return result, nil
}
