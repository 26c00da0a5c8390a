package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Paths contains every resolved, absolute path a run touches.
// This is the single source of truth for file locations; nothing else joins paths.
type Paths struct {
	InputDir    string
	OutputDir   string
	CSVFile     string
	ParquetFile string
	XLSXFile    string
}

// ResolvePaths turns the configured (possibly relative) locations into absolute paths
func (c *Config) ResolvePaths() (*Paths, error) {
	inputDir, err := filepath.Abs(c.Paths.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input directory %s: %w", c.Paths.InputDir, err)
	}

	outputSetting := c.Paths.OutputDir
	if outputSetting == "" {
		outputSetting = c.Paths.InputDir
	}
	outputDir, err := filepath.Abs(outputSetting)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory %s: %w", outputSetting, err)
	}

	return &Paths{
		InputDir:    inputDir,
		OutputDir:   outputDir,
		CSVFile:     filepath.Join(outputDir, c.Paths.CSVName),
		ParquetFile: filepath.Join(outputDir, c.Paths.ParquetName),
		XLSXFile:    filepath.Join(outputDir, c.Paths.XLSXName),
	}, nil
}

// Artifacts returns the paths of every artifact the run may write
func (p *Paths) Artifacts() []string {
	return []string{p.CSVFile, p.ParquetFile, p.XLSXFile}
}

// OutputInsideInput reports whether the output directory is a strict
// subdirectory of the input directory
func (p *Paths) OutputInsideInput() bool {
	rel, err := filepath.Rel(p.InputDir, p.OutputDir)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// LogPathResolution logs all resolved paths for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Debug("Path resolution",
		slog.String("input_dir", p.InputDir),
		slog.String("output_dir", p.OutputDir),
		slog.String("csv_file", p.CSVFile),
		slog.String("parquet_file", p.ParquetFile),
		slog.String("xlsx_file", p.XLSXFile),
		slog.Bool("output_inside_input", p.OutputInsideInput()))
}
