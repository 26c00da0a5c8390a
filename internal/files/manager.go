package files

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"sczmerge/internal/config"
)

// Manager owns the output side of a run: it creates the output directory and
// replaces artifacts so a reader never observes a partially written file.
type Manager struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewManager creates a new file manager instance
func NewManager(paths *config.Paths, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{paths: paths, logger: logger}
}

// EnsureOutputDir creates the output directory with all parent directories
func (m *Manager) EnsureOutputDir() error {
	m.logger.Debug("Ensuring output directory",
		slog.String("path", m.paths.OutputDir))

	if err := os.MkdirAll(m.paths.OutputDir, config.DirPermissions); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", m.paths.OutputDir, err)
	}
	return nil
}

// WriteAtomic writes an artifact through a temporary sibling file and renames it
// over dst once write has succeeded. On any failure dst is left untouched and the
// temporary file is removed.
func (m *Manager) WriteAtomic(dst string, write func(w io.Writer) error) (int64, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, config.DirPermissions); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	counter := &countingWriter{w: tmp}
	if err := write(counter); err != nil {
		cleanup()
		return 0, err
	}

	// Sync to ensure write is complete
	if err := tmp.Sync(); err != nil {
		cleanup()
		return 0, fmt.Errorf("failed to sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, config.FilePermissions); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to set permissions on %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to replace %s: %w", dst, err)
	}

	m.logger.Info("Writing file",
		slog.String("path", dst),
		slog.Int64("size_bytes", counter.n))

	return counter.n, nil
}

// TempPath returns a fresh path next to dst for writers that need a file name
// instead of an io.Writer. The caller renames it with Commit or drops it with Discard.
func (m *Manager) TempPath(dst string) (string, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, config.DirPermissions); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	path := tmp.Name()
	if err := tmp.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}

// Commit moves a finished temporary file over dst and returns the final size
func (m *Manager) Commit(tmpPath, dst string) (int64, error) {
	if err := os.Chmod(tmpPath, config.FilePermissions); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to set permissions on %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to replace %s: %w", dst, err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", dst, err)
	}

	m.logger.Info("Writing file",
		slog.String("path", dst),
		slog.Int64("size_bytes", info.Size()))

	return info.Size(), nil
}

// Discard removes a temporary file that will not be committed
func (m *Manager) Discard(tmpPath string) {
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("Failed to remove temporary file",
			slog.String("path", tmpPath),
			slog.String("error", err.Error()))
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
