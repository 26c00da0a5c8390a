package dataprocessing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sczmerge/internal/shared/testutil"
	"sczmerge/pkg/contracts/domain"
)

func defaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		PrimaryEncoding:  "utf-8",
		FallbackEncoding: "latin1",
		MissingTokens:    []string{"", "NA", "NaN"},
	}
}

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	loader, err := NewLoader(defaultLoaderOptions(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return loader
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func cellStrings(t *testing.T, table *domain.Table, column string) []string {
	t.Helper()
	values, ok := table.Column(column)
	require.True(t, ok, "column %s missing", column)
	out := make([]string, len(values))
	for i, v := range values {
		if v.IsMissing() {
			out[i] = "<NA>"
		} else {
			out[i] = v.String()
		}
	}
	return out
}

func TestNewLoader(t *testing.T) {
	tests := []struct {
		name    string
		opts    LoaderOptions
		wantErr string
	}{
		{"defaults", defaultLoaderOptions(), ""},
		{"no fallback", LoaderOptions{PrimaryEncoding: "utf8"}, ""},
		{"cp1252 fallback", LoaderOptions{PrimaryEncoding: "UTF-8", FallbackEncoding: "cp1252"}, ""},
		{"unknown primary", LoaderOptions{PrimaryEncoding: "ebcdic"}, "primary encoding"},
		{"unknown fallback", LoaderOptions{PrimaryEncoding: "utf-8", FallbackEncoding: "koi8"}, "fallback encoding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, err := NewLoader(tt.opts, nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, loader)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	loader := newTestLoader(t)

	t.Run("utf-8 with missing tokens and provenance", func(t *testing.T) {
		path := writeFile(t, dir, "sinasc_2020.csv", " CODMUNRES ,PESO,OBS\n123,3000,NA\n355030,,NaN\n")

		file, err := loader.LoadFile(path)
		require.NoError(t, err)

		assert.Equal(t, "utf-8", file.Encoding)
		assert.False(t, file.UsedFallback)
		assert.Equal(t, []string{"CODMUNRES", "PESO", "OBS", domain.ProvenanceColumn}, file.Table.Columns)
		assert.Equal(t, 2, file.Table.Len())
		assert.Equal(t, []string{"123", "355030"}, cellStrings(t, file.Table, "CODMUNRES"))
		assert.Equal(t, []string{"3000", "<NA>"}, cellStrings(t, file.Table, "PESO"))
		assert.Equal(t, []string{"<NA>", "<NA>"}, cellStrings(t, file.Table, "OBS"))
		assert.Equal(t, []string{"sinasc_2020.csv", "sinasc_2020.csv"}, cellStrings(t, file.Table, domain.ProvenanceColumn))
	})

	t.Run("latin1 fallback", func(t *testing.T) {
		path := writeFile(t, dir, "latin.csv", "NOME,MUNICIPIO\nJos\xe9,S\xe3o Paulo\n")

		file, err := loader.LoadFile(path)
		require.NoError(t, err)

		assert.True(t, file.UsedFallback)
		assert.Equal(t, "latin1", file.Encoding)
		assert.Equal(t, []string{"José"}, cellStrings(t, file.Table, "NOME"))
		assert.Equal(t, []string{"São Paulo"}, cellStrings(t, file.Table, "MUNICIPIO"))
	})

	t.Run("bom is stripped", func(t *testing.T) {
		path := writeFile(t, dir, "bom.csv", "\ufeffID,VAL\n1,a\n")

		file, err := loader.LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "ID", file.Table.Columns[0])
	})

	t.Run("short rows are padded", func(t *testing.T) {
		path := writeFile(t, dir, "short.csv", "A,B,C\n1,2\n")

		file, err := loader.LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"<NA>"}, cellStrings(t, file.Table, "C"))
	})

	t.Run("header only", func(t *testing.T) {
		path := writeFile(t, dir, "header_only.csv", "A,B\n")

		file, err := loader.LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 0, file.Table.Len())
		assert.Equal(t, []string{"A", "B", domain.ProvenanceColumn}, file.Table.Columns)
	})

	t.Run("existing provenance column is overwritten", func(t *testing.T) {
		path := writeFile(t, dir, "reexport.csv", "A,__source_file\n1,old.csv\n")

		file, err := loader.LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", domain.ProvenanceColumn}, file.Table.Columns)
		assert.Equal(t, []string{"reexport.csv"}, cellStrings(t, file.Table, domain.ProvenanceColumn))
	})

	t.Run("quoted fields", func(t *testing.T) {
		path := writeFile(t, dir, "quoted.csv", "A,B\n\"x, y\",\"multi\nline\"\n")

		file, err := loader.LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"x, y"}, cellStrings(t, file.Table, "A"))
		assert.Equal(t, []string{"multi\nline"}, cellStrings(t, file.Table, "B"))
	})
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("ragged row", func(t *testing.T) {
		path := writeFile(t, dir, "ragged.csv", "A,B\n1,2\n1,2,3\n")

		_, err := newTestLoader(t).LoadFile(path)
		require.Error(t, err)

		var loadErr *LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.Equal(t, path, loadErr.Path)
		assert.ErrorIs(t, err, ErrRaggedRow)
		assert.Contains(t, err.Error(), "line 3")
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeFile(t, dir, "empty.csv", "")

		_, err := newTestLoader(t).LoadFile(path)
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := newTestLoader(t).LoadFile(filepath.Join(dir, "absent.csv"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid utf-8 without fallback", func(t *testing.T) {
		path := writeFile(t, dir, "nofallback.csv", "A\n\xff\n")
		loader, err := NewLoader(LoaderOptions{PrimaryEncoding: "utf-8"}, nil)
		require.NoError(t, err)

		_, err = loader.LoadFile(path)
		assert.ErrorIs(t, err, ErrDecode)
	})
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		name     string
		header   []string
		expected []string
	}{
		{"trimmed", []string{" A", "B ", "\tC"}, []string{"A", "B", "C"}},
		{"blank names", []string{"A", "", "  "}, []string{"A", "Unnamed: 1", "Unnamed: 2"}},
		{"duplicates", []string{"A", "A", "B", "A"}, []string{"A", "A.1", "B", "A.2"}},
		{"duplicate after trim", []string{"A", " A "}, []string{"A", "A.1"}},
		{"suffix already taken", []string{"A", "A.1", "A"}, []string{"A", "A.1", "A.2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeHeader(tt.header))
		})
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "a.csv", "X\n1\n2\n"),
		writeFile(t, dir, "b.csv", "X\n3\n"),
		writeFile(t, dir, "c.csv", "X,Y\n4,5\n6,7\n8,9\n"),
		writeFile(t, dir, "d.csv", "X\n10\n"),
	}

	for _, workers := range []int{0, 1, 3, 8} {
		result, err := newTestLoader(t).LoadFiles(context.Background(), paths, workers, PolicyAbort)
		require.NoError(t, err)
		require.Len(t, result.Files, len(paths))
		for i, f := range result.Files {
			assert.Equal(t, paths[i], f.Path, "workers=%d keeps input order", workers)
		}
		assert.Empty(t, result.Skipped)
		assert.Len(t, result.Tables(), 4)
		assert.Equal(t, 0, result.FallbackCount())
	}
}

func TestLoadFiles_FailurePolicy(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "a.csv", "X\n1\n")
	bad := writeFile(t, dir, "b.csv", "X\n1,2\n")
	latin := writeFile(t, dir, "c.csv", "X\n\xe7\n")
	paths := []string{good, bad, latin}

	t.Run("abort returns the failure", func(t *testing.T) {
		_, err := newTestLoader(t).LoadFiles(context.Background(), paths, 1, PolicyAbort)
		require.Error(t, err)

		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr))
		assert.Equal(t, bad, loadErr.Path)
	})

	t.Run("skip continues and reports", func(t *testing.T) {
		handler := testutil.NewBufferedSlogHandler(t)
		loader, err := NewLoader(defaultLoaderOptions(), slog.New(handler))
		require.NoError(t, err)

		result, err := loader.LoadFiles(context.Background(), paths, 2, PolicySkip)
		require.NoError(t, err)

		require.Len(t, result.Files, 2)
		assert.Equal(t, good, result.Files[0].Path)
		assert.Equal(t, latin, result.Files[1].Path)
		require.Len(t, result.Skipped, 1)
		assert.Equal(t, bad, result.Skipped[0].Path)
		assert.ErrorIs(t, result.Skipped[0].Err, ErrRaggedRow)
		assert.Equal(t, 1, result.FallbackCount())

		assert.True(t, handler.ContainsMessage("Skipping input file"))
		assert.True(t, handler.ContainsMessage("Decoded with fallback encoding"))
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newTestLoader(t).LoadFiles(ctx, paths, 1, PolicySkip)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
