package operations

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sczmerge/internal/config"
	"sczmerge/internal/dataprocessing"
	"sczmerge/internal/exporter"
	"sczmerge/internal/files"
	"sczmerge/internal/infrastructure"
	"sczmerge/internal/shared/testutil"
)

// memoryStore is an in-process object store
type memoryStore struct {
	mu        sync.Mutex
	bucketErr error
	keys      []string
}

func (m *memoryStore) EnsureBucket(context.Context, string) error {
	return m.bucketErr
}

func (m *memoryStore) UploadFile(_ context.Context, _, key, path, _ string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return info.Size(), nil
}

// runMerge resolves cfg, runs every merge step and returns the state
func runMerge(t *testing.T, cfg *config.Config, store *memoryStore) (*RunState, error) {
	t.Helper()
	require.NoError(t, cfg.Validate())

	paths, err := cfg.ResolvePaths()
	require.NoError(t, err)

	logger, _ := testutil.NewTestLogger(t)
	deps := Dependencies{
		Manager: files.NewManager(paths, logger),
		Logger:  logger,
	}
	if store != nil {
		deps.Store = store
	}

	state := NewRunState("test-run", cfg, paths)
	err = NewPipeline(infrastructure.NewNoopTelemetry(logger), logger, NewMergeSteps(deps)...).Run(context.Background(), state)
	return state, err
}

func readRecords(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestMergeRun_TwoFileScenario(t *testing.T) {
	inputDir := testutil.SurveillanceFixture(t)
	outputDir := filepath.Join(inputDir, "unified")

	// leftovers that must not be re-ingested
	testutil.WriteFile(t, inputDir, "unified/dados_unificados.csv", "CODMUNRES\n999999\n")
	testutil.WriteFile(t, inputDir, "unified/older_run.csv", "CODMUNRES\n888888\n")
	testutil.WriteFile(t, inputDir, "dados_unificados_backup.csv", "CODMUNRES\n777777\n")

	cfg := config.Default()
	cfg.Paths.InputDir = inputDir
	cfg.Paths.OutputDir = outputDir
	cfg.Load.ExcludePatterns = []string{"*_backup.csv"}

	state, err := runMerge(t, cfg, nil)
	require.NoError(t, err)

	require.Len(t, state.Files, 2)
	assert.Equal(t, "sinasc.csv", state.Files[0].Name)
	assert.Equal(t, "sinan.csv", state.Files[1].Name)
	assert.Equal(t, 1, state.Loaded.FallbackCount())

	records := readRecords(t, filepath.Join(outputDir, config.DefaultCSVName))
	assert.Equal(t, [][]string{
		{"CODMUNNOT", "CODMUNRES", "DT_NASC", "NOME", "PESO", "__source_file"},
		{"", "000123", "2020-01-01", "", "3000.0", "sinasc.csv"},
		{"355030", "", "", "José", "", "sinan.csv"},
	}, records)

	require.NotNil(t, state.Persisted)
	assert.True(t, state.Persisted.Primary.Written)
	assert.Equal(t, 2, state.Persisted.Rows)
	assert.Equal(t, 6, state.Persisted.Columns)
	assert.FileExists(t, filepath.Join(outputDir, config.DefaultParquetName))
	assert.NoFileExists(t, filepath.Join(outputDir, config.DefaultXLSXName))
	assert.Empty(t, state.Persisted.Failed())

	assert.Equal(t, StepStatusSkipped, state.GetStep(StepIDPublish).GetStatus())
	for _, id := range []string{StepIDDiscover, StepIDLoad, StepIDNormalize, StepIDUnify, StepIDMerge, StepIDCoerce, StepIDPersist} {
		assert.Equal(t, StepStatusCompleted, state.GetStep(id).GetStatus(), id)
	}
	assert.Equal(t, 2, state.GetStep(StepIDMerge).Metadata["rows"])
}

func TestMergeRun_RerunDoesNotIngestOwnOutput(t *testing.T) {
	inputDir := testutil.SurveillanceFixture(t)

	newConfig := func() *config.Config {
		cfg := config.Default()
		cfg.Paths.InputDir = inputDir
		cfg.Output.XLSX = true
		return cfg
	}

	first, err := runMerge(t, newConfig(), nil)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(inputDir, config.DefaultCSVName))

	second, err := runMerge(t, newConfig(), nil)
	require.NoError(t, err)

	assert.Len(t, second.Files, len(first.Files))
	assert.Equal(t, first.Persisted.Rows, second.Persisted.Rows)
}

func TestMergeRun_NoInputFiles(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.InputDir = t.TempDir()

	state, err := runMerge(t, cfg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoInputFiles)
	assert.Equal(t, ErrorTypeFatal, GetErrorType(err))
	assert.Equal(t, StepStatusSkipped, state.GetStep(StepIDPersist).GetStatus())

	_, statErr := os.Stat(filepath.Join(cfg.Paths.InputDir, config.DefaultCSVName))
	assert.True(t, os.IsNotExist(statErr), "no artifact is written")
}

func TestMergeRun_LoadFailurePolicy(t *testing.T) {
	newInput := func(t *testing.T) string {
		dir := testutil.SurveillanceFixture(t)
		testutil.WriteFile(t, dir, "c/broken.csv", "A,B\n1,2,3\n")
		return dir
	}

	t.Run("abort stops the run", func(t *testing.T) {
		cfg := config.Default()
		cfg.Paths.InputDir = newInput(t)

		_, err := runMerge(t, cfg, nil)
		require.Error(t, err)

		var loadErr *dataprocessing.LoadError
		require.True(t, errors.As(err, &loadErr))
		assert.Equal(t, "broken.csv", filepath.Base(loadErr.Path))
		assert.ErrorIs(t, err, dataprocessing.ErrRaggedRow)
	})

	t.Run("skip continues without the file", func(t *testing.T) {
		cfg := config.Default()
		cfg.Paths.InputDir = newInput(t)
		cfg.Load.OnError = config.OnErrorSkip

		state, err := runMerge(t, cfg, nil)
		require.NoError(t, err)
		assert.Len(t, state.Loaded.Skipped, 1)
		assert.Equal(t, 2, state.Persisted.Rows)
	})

	t.Run("skip with nothing loadable is fatal", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WriteFile(t, dir, "broken.csv", "A,B\n1,2,3\n")

		cfg := config.Default()
		cfg.Paths.InputDir = dir
		cfg.Load.OnError = config.OnErrorSkip

		_, err := runMerge(t, cfg, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNothingLoaded)
	})
}

func TestMergeRun_Publish(t *testing.T) {
	newConfig := func(t *testing.T) *config.Config {
		cfg := config.Default()
		cfg.Paths.InputDir = testutil.SurveillanceFixture(t)
		cfg.Paths.OutputDir = t.TempDir()
		cfg.Output.XLSX = true
		cfg.Publish.Enabled = true
		cfg.Publish.Endpoint = "localhost:9000"
		cfg.Publish.Bucket = "scz"
		cfg.Publish.Prefix = "unified"
		return cfg
	}

	t.Run("uploads every written artifact", func(t *testing.T) {
		store := &memoryStore{}
		state, err := runMerge(t, newConfig(t), store)
		require.NoError(t, err)

		assert.Equal(t, []string{
			"unified/dados_unificados.csv",
			"unified/dados_unificados.parquet",
			"unified/dados_unificados.xlsx",
		}, store.keys)
		require.Len(t, state.Uploads, 3)
		for _, u := range state.Uploads {
			assert.NoError(t, u.Err)
			assert.Positive(t, u.Size)
		}
		assert.Equal(t, StepStatusCompleted, state.GetStep(StepIDPublish).GetStatus())
	})

	t.Run("unreachable bucket does not fail the run", func(t *testing.T) {
		store := &memoryStore{bucketErr: errors.New("connection refused")}
		state, err := runMerge(t, newConfig(t), store)
		require.NoError(t, err)

		require.Len(t, state.Uploads, 3)
		for _, u := range state.Uploads {
			assert.Error(t, u.Err)
		}
		assert.Equal(t, RunStatusCompleted, state.Status)
	})
}

func TestDiscoveryOptionsFor(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		output      string
		excludeOut  bool
		excludeDirs []string
	}{
		{"output equals input", "/data", "/data", true, nil},
		{"output nested in input", "/data", "/data/out", true, []string{"/data/out"}},
		{"nested but not excluded", "/data", "/data/out", false, nil},
		{"output outside input", "/data/in", "/data/out", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.InputDir = tt.input
			cfg.Paths.OutputDir = tt.output
			cfg.Load.ExcludeOutputDir = tt.excludeOut
			paths, err := cfg.ResolvePaths()
			require.NoError(t, err)

			opts := DiscoveryOptionsFor(cfg, paths)
			assert.Equal(t, ".csv", opts.Extension)
			assert.Equal(t, paths.Artifacts(), opts.ExcludePaths)
			if tt.excludeDirs == nil {
				assert.Empty(t, opts.ExcludeDirs)
			} else {
				expected := make([]string, len(tt.excludeDirs))
				for i, d := range tt.excludeDirs {
					expected[i], _ = filepath.Abs(d)
				}
				assert.Equal(t, expected, opts.ExcludeDirs)
			}
		})
	}
}

func TestTargetsFor(t *testing.T) {
	cfg := config.Default()
	paths := &config.Paths{CSVFile: "/o/a.csv", ParquetFile: "/o/a.parquet", XLSXFile: "/o/a.xlsx"}

	assert.Equal(t, exporter.Targets{CSV: "/o/a.csv", Parquet: "/o/a.parquet"}, TargetsFor(cfg, paths))

	cfg.Output.Parquet = false
	cfg.Output.XLSX = true
	assert.Equal(t, exporter.Targets{CSV: "/o/a.csv", XLSX: "/o/a.xlsx"}, TargetsFor(cfg, paths))
}
