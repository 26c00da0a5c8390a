package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTree creates the given relative files (and their directories) under root
func createTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0644))
	}
}

func relPaths(t *testing.T, root string, files []FileInfo) []string {
	t.Helper()
	out := make([]string, len(files))
	for i, f := range files {
		rel, err := filepath.Rel(root, f.Path)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(rel)
	}
	return out
}

func TestNewDiscovery(t *testing.T) {
	discovery := NewDiscovery("/test/base")

	assert.NotNil(t, discovery)
	assert.Equal(t, "/test/base", discovery.basePath)
}

func TestFindFiles(t *testing.T) {
	tests := []struct {
		name     string
		files    []string
		opts     func(root string) DiscoveryOptions
		expected []string
	}{
		{
			name:     "recursive and sorted",
			files:    []string{"2021/sinan.csv", "2020/sinasc.csv", "2020/b/deep.csv", "top.csv"},
			opts:     func(string) DiscoveryOptions { return DiscoveryOptions{Extension: ".csv"} },
			expected: []string{"2020/b/deep.csv", "2020/sinasc.csv", "2021/sinan.csv", "top.csv"},
		},
		{
			name:     "directories sort by component",
			files:    []string{"a-x.csv", "a/b.csv", "a.csv", "a/c/d.csv"},
			opts:     func(string) DiscoveryOptions { return DiscoveryOptions{Extension: ".csv"} },
			expected: []string{"a/b.csv", "a/c/d.csv", "a-x.csv", "a.csv"},
		},
		{
			name:     "extension is case-insensitive",
			files:    []string{"a.CSV", "b.Csv", "c.csv", "d.txt", "e.csv.bak"},
			opts:     func(string) DiscoveryOptions { return DiscoveryOptions{Extension: ".csv"} },
			expected: []string{"a.CSV", "b.Csv", "c.csv"},
		},
		{
			name:  "artifacts in the input directory are skipped",
			files: []string{"a.csv", "dados_unificados.csv", "sub/dados_unificados.csv"},
			opts: func(root string) DiscoveryOptions {
				return DiscoveryOptions{
					Extension:    ".csv",
					ExcludePaths: []string{filepath.Join(root, "dados_unificados.csv")},
				}
			},
			expected: []string{"a.csv", "sub/dados_unificados.csv"},
		},
		{
			name:  "nested output subtree is skipped",
			files: []string{"a.csv", "unified/dados_unificados.csv", "unified/old/x.csv", "unifiedX/y.csv"},
			opts: func(root string) DiscoveryOptions {
				return DiscoveryOptions{
					Extension:   ".csv",
					ExcludeDirs: []string{filepath.Join(root, "unified")},
				}
			},
			expected: []string{"a.csv", "unifiedX/y.csv"},
		},
		{
			name:  "exclude patterns match base names",
			files: []string{"a.csv", "a_backup.csv", "sub/b_backup.csv", "sub/c.csv"},
			opts: func(string) DiscoveryOptions {
				return DiscoveryOptions{Extension: ".csv", ExcludePatterns: []string{"*_backup.csv"}}
			},
			expected: []string{"a.csv", "sub/c.csv"},
		},
		{
			name:     "no matching files",
			files:    []string{"readme.txt"},
			opts:     func(string) DiscoveryOptions { return DiscoveryOptions{Extension: ".csv"} },
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			createTree(t, root, tt.files...)

			found, err := NewDiscovery(root).FindFiles(root, tt.opts(root))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, relPaths(t, root, found))

			for _, f := range found {
				assert.Equal(t, filepath.Base(f.Path), f.Name)
				assert.Positive(t, f.Size)
			}
		})
	}
}

func TestFindFiles_RelativeToBase(t *testing.T) {
	base := t.TempDir()
	createTree(t, base, "processed/a.csv")

	found, err := NewDiscovery(base).FindFiles("processed", DiscoveryOptions{Extension: ".csv"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, filepath.Join(base, "processed", "a.csv"), found[0].Path)
}

func TestFindFiles_Errors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := NewDiscovery("").FindFiles(filepath.Join(t.TempDir(), "absent"), DiscoveryOptions{Extension: ".csv"})
		assert.Error(t, err)
	})

	t.Run("malformed pattern", func(t *testing.T) {
		root := t.TempDir()
		_, err := NewDiscovery(root).FindFiles(root, DiscoveryOptions{Extension: ".csv", ExcludePatterns: []string{"[a-"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid exclude pattern")
	})
}

func TestHelpers(t *testing.T) {
	files := []FileInfo{{Path: "/a/x.csv", Size: 10}, {Path: "/a/y.csv", Size: 5}}

	assert.Equal(t, int64(15), TotalSize(files))
	assert.Equal(t, []string{"/a/x.csv", "/a/y.csv"}, Paths(files))
	assert.True(t, IsDirectory(t.TempDir()))
	assert.False(t, IsDirectory(filepath.Join(t.TempDir(), "nope")))
}
