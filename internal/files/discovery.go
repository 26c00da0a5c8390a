package files

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// DiscoveryOptions controls which files FindFiles returns
type DiscoveryOptions struct {
	// Extension is matched case-insensitively against the file suffix, dot included
	Extension string
	// ExcludePaths are exact files to skip, typically the run's own artifacts
	ExcludePaths []string
	// ExcludeDirs are subtrees to skip entirely
	ExcludeDirs []string
	// ExcludePatterns are filepath.Match globs applied to base names
	ExcludePatterns []string
}

// Discovery provides file discovery operations
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

// FindFiles walks dir recursively and returns every regular file with the
// configured extension, sorted by path component. A missing or
// unreadable directory is an error; an empty result is not.
func (d *Discovery) FindFiles(dir string, opts DiscoveryOptions) ([]FileInfo, error) {
	// If dir is already absolute, use it directly
	root := dir
	if !filepath.IsAbs(dir) {
		root = filepath.Join(d.basePath, dir)
	}
	root = filepath.Clean(root)

	for _, pattern := range opts.ExcludePatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}

	excludedFiles := make(map[string]struct{}, len(opts.ExcludePaths))
	for _, p := range opts.ExcludePaths {
		excludedFiles[filepath.Clean(p)] = struct{}{}
	}
	excludedDirs := make(map[string]struct{}, len(opts.ExcludeDirs))
	for _, p := range opts.ExcludeDirs {
		excludedDirs[filepath.Clean(p)] = struct{}{}
	}
	extension := strings.ToLower(opts.Extension)

	var files []FileInfo
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		if entry.IsDir() {
			if _, skip := excludedDirs[path]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		if !entry.Type().IsRegular() {
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(entry.Name()), extension) {
			return nil
		}
		if _, skip := excludedFiles[path]; skip {
			return nil
		}
		if matchesAny(opts.ExcludePatterns, entry.Name()) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}

		files = append(files, FileInfo{
			Path:    path,
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", root, err)
	}

	slices.SortFunc(files, func(a, b FileInfo) int {
		return comparePaths(a.Path, b.Path)
	})

	return files, nil
}

// comparePaths orders paths component by component, so a/b.csv sorts before
// a-x.csv even though '-' is lower than the separator byte
func comparePaths(a, b string) int {
	sep := string(filepath.Separator)
	return slices.Compare(strings.Split(a, sep), strings.Split(b, sep))
}

// matchesAny reports whether name matches one of the glob patterns.
// Patterns are validated up front, so Match errors cannot occur here.
func matchesAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// TotalSize returns the combined size of the files in bytes
func TotalSize(files []FileInfo) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

// Paths returns the full paths of the files, in order
func Paths(files []FileInfo) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths
}

// IsDirectory reports whether path exists and is a directory
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
