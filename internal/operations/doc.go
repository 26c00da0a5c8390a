// Package operations orchestrates one merge run.
//
// A run is a fixed sequence of steps executed by Pipeline against a shared
// RunState:
//
//	discover -> load -> normalize -> unify -> merge -> coerce -> persist -> publish
//
// Each step owns a StepState (pending, active, completed, failed, skipped), runs
// inside its own span and records its duration in the pipeline metrics. The
// first failing step stops the run and marks the remaining steps skipped. A step
// may also decline to run by returning Skip(reason), which is how publishing is
// turned off.
//
// Errors leaving the pipeline are *OperationError values carrying the step ID
// and a type (validation, execution, cancellation, fatal). The sentinels
// ErrNoInputFiles and ErrNothingLoaded are reachable with errors.Is.
//
// Example usage:
//
//	state := operations.NewRunState(runID, cfg, paths)
//	steps := operations.NewMergeSteps(operations.Dependencies{
//		Manager: files.NewManager(paths, logger),
//		Metrics: tel.Metrics,
//		Logger:  logger,
//	})
//	err := operations.NewPipeline(tel, logger, steps...).Run(ctx, state)
package operations
