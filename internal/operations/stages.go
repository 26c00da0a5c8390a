package operations

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"sczmerge/internal/config"
	"sczmerge/internal/dataprocessing"
	"sczmerge/internal/exporter"
	"sczmerge/internal/files"
	"sczmerge/internal/infrastructure"
	"sczmerge/internal/publish"
	"sczmerge/pkg/contracts/domain"
)

// Step IDs
const (
	StepIDDiscover  = "discover"
	StepIDLoad      = "load"
	StepIDNormalize = "normalize"
	StepIDUnify     = "unify"
	StepIDMerge     = "merge"
	StepIDCoerce    = "coerce"
	StepIDPersist   = "persist"
	StepIDPublish   = "publish"
)

// Dependencies are the collaborators shared by the merge steps
type Dependencies struct {
	Manager *files.Manager
	Metrics *infrastructure.PipelineMetrics
	Logger  *slog.Logger
	// Store overrides the object store built from the publish config
	Store publish.ObjectStore
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = infrastructure.NewNoopTelemetry(d.Logger).Metrics
	}
	return d
}

// NewMergeSteps returns the full merge run in execution order
func NewMergeSteps(deps Dependencies) []Step {
	return []Step{
		NewDiscoverStep(deps),
		NewLoadStep(deps),
		NewNormalizeStep(deps),
		NewUnifyStep(deps),
		NewMergeStep(deps),
		NewCoerceStep(deps),
		NewPersistStep(deps),
		NewPublishStep(deps),
	}
}

// DiscoveryOptionsFor builds the discovery rules of a run. The run's own
// artifacts are always excluded; the output subtree is excluded when it sits
// strictly inside the input directory.
func DiscoveryOptionsFor(cfg *config.Config, paths *config.Paths) files.DiscoveryOptions {
	opts := files.DiscoveryOptions{
		Extension:       cfg.Load.Extension,
		ExcludePaths:    paths.Artifacts(),
		ExcludePatterns: cfg.Load.ExcludePatterns,
	}
	if cfg.Load.ExcludeOutputDir && paths.OutputInsideInput() {
		opts.ExcludeDirs = []string{paths.OutputDir}
	}
	return opts
}

// DiscoverStep lists the input files
type DiscoverStep struct {
	BaseStage
	deps Dependencies
}

// NewDiscoverStep creates the discovery step
func NewDiscoverStep(deps Dependencies) *DiscoverStep {
	return &DiscoverStep{
		BaseStage: NewBaseStage(StepIDDiscover, "Discover input files"),
		deps:      deps.withDefaults(),
	}
}

// Execute walks the input directory
func (s *DiscoverStep) Execute(ctx context.Context, state *RunState) error {
	opts := DiscoveryOptionsFor(state.Config, state.Paths)

	found, err := files.NewDiscovery(state.Paths.InputDir).FindFiles(state.Paths.InputDir, opts)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return NewFatalError(
			fmt.Sprintf("no %s files under %s", opts.Extension, state.Paths.InputDir),
			ErrNoInputFiles)
	}

	state.Files = found
	s.deps.Metrics.FilesDiscovered.Add(ctx, int64(len(found)))
	state.GetStep(s.ID()).SetMetadata("files", len(found))

	s.deps.Logger.InfoContext(ctx, "Discovered input files",
		slog.Int("count", len(found)),
		slog.String("sample", found[0].Path),
		slog.Int64("total_bytes", files.TotalSize(found)))
	return nil
}

// LoadStep reads every discovered file into a table
type LoadStep struct {
	BaseStage
	deps Dependencies
}

// NewLoadStep creates the load step
func NewLoadStep(deps Dependencies) *LoadStep {
	return &LoadStep{
		BaseStage: NewBaseStage(StepIDLoad, "Load input files"),
		deps:      deps.withDefaults(),
	}
}

// Execute loads the files under the configured failure policy
func (s *LoadStep) Execute(ctx context.Context, state *RunState) error {
	cfg := state.Config.Load
	loader, err := dataprocessing.NewLoader(dataprocessing.LoaderOptions{
		PrimaryEncoding:  cfg.PrimaryEncoding,
		FallbackEncoding: cfg.FallbackEncoding,
		MissingTokens:    cfg.MissingTokens,
	}, s.deps.Logger)
	if err != nil {
		return NewValidationError(s.ID(), err.Error())
	}

	result, err := loader.LoadFiles(ctx, files.Paths(state.Files), cfg.Workers, dataprocessing.FailurePolicy(cfg.OnError))
	if err != nil {
		return err
	}

	m := s.deps.Metrics
	m.FilesLoaded.Add(ctx, int64(len(result.Files)))
	m.FilesSkipped.Add(ctx, int64(len(result.Skipped)))
	m.FallbackDecodes.Add(ctx, int64(result.FallbackCount()))

	state.Loaded = result
	if len(result.Files) == 0 {
		return NewFatalError(
			fmt.Sprintf("all %d input files were skipped", len(result.Skipped)),
			ErrNothingLoaded)
	}
	state.Tables = result.Tables()

	step := state.GetStep(s.ID())
	step.SetMetadata("loaded", len(result.Files))
	step.SetMetadata("skipped", len(result.Skipped))
	step.SetMetadata("fallback_decodes", result.FallbackCount())
	return nil
}

// NormalizeStep applies the identifier and date rules per file
type NormalizeStep struct {
	BaseStage
	deps Dependencies
}

// NewNormalizeStep creates the normalize step
func NewNormalizeStep(deps Dependencies) *NormalizeStep {
	return &NormalizeStep{
		BaseStage: NewBaseStage(StepIDNormalize, "Normalize identifiers and dates"),
		deps:      deps.withDefaults(),
	}
}

// Execute normalizes every loaded table in place
func (s *NormalizeStep) Execute(ctx context.Context, state *RunState) error {
	normalizer := dataprocessing.NewNormalizer(state.Config.Rules)
	for _, t := range state.Tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats := normalizer.Normalize(t)
		s.deps.Logger.DebugContext(ctx, "Normalized table",
			slog.String("file", t.Name),
			slog.Int("identifier_columns", stats.IdentifierColumns),
			slog.Int("date_columns", stats.DateColumns))
	}
	return nil
}

// UnifyStep aligns every table to the sorted union of columns
type UnifyStep struct {
	BaseStage
	deps Dependencies
}

// NewUnifyStep creates the unify step
func NewUnifyStep(deps Dependencies) *UnifyStep {
	return &UnifyStep{
		BaseStage: NewBaseStage(StepIDUnify, "Unify schemas"),
		deps:      deps.withDefaults(),
	}
}

// Execute replaces the loaded tables with their unified versions
func (s *UnifyStep) Execute(ctx context.Context, state *RunState) error {
	unified, err := dataprocessing.UnifyColumns(state.Tables)
	if err != nil {
		return err
	}
	state.Tables = unified

	width := 0
	if len(unified) > 0 {
		width = unified[0].Width()
	}
	state.GetStep(s.ID()).SetMetadata("columns", width)
	s.deps.Logger.InfoContext(ctx, "Unified schemas",
		slog.Int("tables", len(unified)),
		slog.Int("columns", width))
	return nil
}

// MergeStep stacks the unified tables
type MergeStep struct {
	BaseStage
	deps Dependencies
}

// NewMergeStep creates the merge step
func NewMergeStep(deps Dependencies) *MergeStep {
	return &MergeStep{
		BaseStage: NewBaseStage(StepIDMerge, "Merge tables"),
		deps:      deps.withDefaults(),
	}
}

// Execute concatenates the tables in discovery order
func (s *MergeStep) Execute(ctx context.Context, state *RunState) error {
	name := strings.TrimSuffix(filepath.Base(state.Paths.CSVFile), filepath.Ext(state.Paths.CSVFile))
	merged, err := dataprocessing.Concat(name, state.Tables)
	if err != nil {
		return err
	}
	state.Merged = merged
	// per-file tables are no longer needed
	state.Tables = nil

	s.deps.Metrics.RowsMerged.Add(ctx, int64(merged.Len()))
	state.GetStep(s.ID()).SetMetadata("rows", merged.Len())
	s.deps.Logger.InfoContext(ctx, "Merged tables",
		slog.Int("rows", merged.Len()),
		slog.Int("columns", merged.Width()))
	return nil
}

// CoerceStep converts the numeric allowlist
type CoerceStep struct {
	BaseStage
	deps Dependencies
}

// NewCoerceStep creates the coerce step
func NewCoerceStep(deps Dependencies) *CoerceStep {
	return &CoerceStep{
		BaseStage: NewBaseStage(StepIDCoerce, "Coerce numeric columns"),
		deps:      deps.withDefaults(),
	}
}

// Execute coerces the allowlisted columns of the merged table
func (s *CoerceStep) Execute(ctx context.Context, state *RunState) error {
	columns := state.Config.Rules.ColumnsWithRule(state.Merged, domain.RuleNumeric)
	result := dataprocessing.CoerceNumeric(state.Merged, columns)
	state.Coerced = result

	s.deps.Metrics.CoercedMissingCells.Add(ctx, int64(result.CoercedToNull))
	state.GetStep(s.ID()).SetMetadata("coerced_to_missing", result.CoercedToNull)

	level := slog.LevelInfo
	if result.CoercedToNull > 0 {
		level = slog.LevelWarn
	}
	s.deps.Logger.Log(ctx, level, "Coerced numeric columns",
		slog.Any("columns", result.Columns),
		slog.Int("coerced_to_missing", result.CoercedToNull))
	return nil
}

// PersistStep writes the CSV and the enabled optional artifacts
type PersistStep struct {
	BaseStage
	deps Dependencies
}

// NewPersistStep creates the persist step
func NewPersistStep(deps Dependencies) *PersistStep {
	return &PersistStep{
		BaseStage: NewBaseStage(StepIDPersist, "Persist artifacts"),
		deps:      deps.withDefaults(),
	}
}

// TargetsFor returns the artifact destinations enabled by cfg
func TargetsFor(cfg *config.Config, paths *config.Paths) exporter.Targets {
	targets := exporter.Targets{CSV: paths.CSVFile}
	if cfg.Output.Parquet {
		targets.Parquet = paths.ParquetFile
	}
	if cfg.Output.XLSX {
		targets.XLSX = paths.XLSXFile
	}
	return targets
}

// Execute persists the merged table. Only a CSV failure fails the step.
func (s *PersistStep) Execute(ctx context.Context, state *RunState) error {
	manager := s.deps.Manager
	if manager == nil {
		manager = files.NewManager(state.Paths, s.deps.Logger)
	}

	persister := exporter.NewPersister(manager, s.deps.Logger)
	result, err := persister.Persist(ctx, state.Merged, TargetsFor(state.Config, state.Paths))
	state.Persisted = result

	if result != nil {
		s.deps.Metrics.RecordArtifact(ctx, result.Primary.Format, result.Primary.Written)
		for _, a := range result.Optional {
			s.deps.Metrics.RecordArtifact(ctx, a.Format, a.Written)
		}
	}
	if err != nil {
		return err
	}

	s.deps.Logger.InfoContext(ctx, "Unified table saved",
		slog.String("path", result.Primary.Path),
		slog.Int("rows", result.Rows),
		slog.Int("columns", result.Columns))
	return nil
}

// PublishStep uploads the written artifacts to object storage
type PublishStep struct {
	BaseStage
	deps Dependencies
}

// NewPublishStep creates the publish step
func NewPublishStep(deps Dependencies) *PublishStep {
	return &PublishStep{
		BaseStage: NewBaseStage(StepIDPublish, "Publish artifacts"),
		deps:      deps.withDefaults(),
	}
}

// Execute uploads every written artifact. Upload failures are logged and
// recorded on the state; they never fail the run.
func (s *PublishStep) Execute(ctx context.Context, state *RunState) error {
	cfg := state.Config.Publish
	if !cfg.Enabled {
		return Skip("publishing disabled")
	}
	if state.Persisted == nil {
		return Skip("nothing persisted")
	}

	store := s.deps.Store
	if store == nil {
		minioStore, err := publish.NewMinioStore(cfg)
		if err != nil {
			s.deps.Logger.WarnContext(ctx, "Object store unavailable, artifacts not published",
				slog.String("endpoint", cfg.Endpoint),
				slog.String("error", err.Error()))
			return Skip("object store unavailable")
		}
		store = minioStore
	}

	written := state.Persisted.Written()
	paths := make([]string, len(written))
	for i, a := range written {
		paths[i] = a.Path
	}

	uploads := publish.NewPublisher(store, cfg.Bucket, cfg.Prefix, s.deps.Logger).Publish(ctx, paths)
	state.Uploads = uploads

	failed := 0
	for _, u := range uploads {
		if u.Err != nil {
			failed++
		}
	}
	state.GetStep(s.ID()).SetMetadata("uploaded", len(uploads)-failed)
	if failed > 0 {
		s.deps.Metrics.StepErrors.Add(ctx, int64(failed), metric.WithAttributes(
			attribute.String("step", s.ID()),
		))
		s.deps.Logger.WarnContext(ctx, "Some artifacts were not published",
			slog.Int("failed", failed),
			slog.Int("total", len(uploads)))
	}
	return nil
}
