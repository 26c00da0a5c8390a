package operations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sczmerge/internal/infrastructure"
)

// Pipeline runs its steps strictly in order. The first failing step stops the
// run and every remaining step is marked skipped.
type Pipeline struct {
	steps     []Step
	telemetry *infrastructure.Telemetry
	logger    *slog.Logger
}

// NewPipeline creates a pipeline over steps. A nil telemetry records nothing.
func NewPipeline(telemetry *infrastructure.Telemetry, logger *slog.Logger, steps ...Step) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if telemetry == nil {
		telemetry = infrastructure.NewNoopTelemetry(logger)
	}
	return &Pipeline{
		steps:     steps,
		telemetry: telemetry,
		logger:    infrastructure.WithComponent(logger, "pipeline"),
	}
}

// Steps returns the IDs of the registered steps in execution order
func (p *Pipeline) Steps() []string {
	ids := make([]string, len(p.steps))
	for i, s := range p.steps {
		ids[i] = s.ID()
	}
	return ids
}

// Run executes every step against state
func (p *Pipeline) Run(ctx context.Context, state *RunState) error {
	for _, s := range p.steps {
		state.AddStep(s.ID(), s.Name())
	}

	ctx, span := p.telemetry.Tracer.Start(ctx, "merge",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", state.ID),
			attribute.Int("run.steps", len(p.steps)),
		),
	)
	defer span.End()

	state.Start()
	p.logger.InfoContext(ctx, "pipeline_start",
		slog.Int("step_count", len(p.steps)),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)))

	for i, s := range p.steps {
		if err := ctx.Err(); err != nil {
			opErr := NewCancellationError(s.ID(), err)
			p.logger.WarnContext(ctx, "run_cancelled",
				slog.String("step", s.ID()))
			p.skipRemainingIn(state, i, fmt.Sprintf("run cancelled before %s", s.ID()))
			state.Cancel(opErr)
			infrastructure.RecordError(ctx, opErr)
			return opErr
		}

		p.logger.InfoContext(ctx, "executing_step",
			slog.String("step", s.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(p.steps)))

		if err := p.executeStep(ctx, state, s); err != nil {
			p.skipRemainingIn(state, i+1, fmt.Sprintf("previous step %s failed", s.ID()))
			if GetErrorType(err) == ErrorTypeCancellation {
				state.Cancel(err)
			} else {
				state.Fail(err)
			}
			infrastructure.RecordError(ctx, err)
			p.logger.ErrorContext(ctx, "pipeline_failed",
				slog.String("step", s.ID()),
				slog.String("error", err.Error()),
				slog.Duration("duration", state.Duration()))
			return err
		}
	}

	state.Complete()
	span.SetStatus(codes.Ok, "")
	p.logger.InfoContext(ctx, "pipeline_complete",
		slog.Duration("duration", state.Duration()))
	return nil
}

// executeStep runs one step inside its own span and records its outcome
func (p *Pipeline) executeStep(ctx context.Context, state *RunState, s Step) error {
	stepState := state.GetStep(s.ID())

	ctx, span := p.telemetry.Tracer.Start(ctx, "step."+s.ID(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("step.id", s.ID()),
			attribute.String("step.name", s.Name()),
		),
	)
	defer span.End()

	stepState.Start()
	start := time.Now()
	err := s.Execute(ctx, state)
	duration := time.Since(start)

	mem := p.telemetry.Runtime.Collect(ctx, s.ID())
	span.SetAttributes(attribute.Int64("runtime.heap_alloc_bytes", mem.HeapAlloc))

	if reason, ok := skipReason(err); ok {
		stepState.Skip(reason)
		span.SetAttributes(attribute.Bool("step.skipped", true))
		p.telemetry.Metrics.RecordStep(ctx, s.ID(), duration, nil)
		p.logger.InfoContext(ctx, "step_skipped",
			slog.String("step", s.ID()),
			slog.String("reason", reason))
		return nil
	}

	if err != nil {
		opErr := WrapError(err, s.ID())
		stepState.Fail(opErr)
		infrastructure.RecordError(ctx, opErr)
		p.telemetry.Metrics.RecordStep(ctx, s.ID(), duration, opErr)
		p.logger.ErrorContext(ctx, "step_error",
			slog.String("step", s.ID()),
			slog.String("error_type", string(opErr.Type)),
			slog.String("error", opErr.Error()),
			slog.Duration("duration", duration))
		return opErr
	}

	stepState.Complete()
	span.SetStatus(codes.Ok, "")
	p.telemetry.Metrics.RecordStep(ctx, s.ID(), duration, nil)
	p.logger.InfoContext(ctx, "step_completed_successfully",
		slog.String("step", s.ID()),
		slog.Duration("duration", duration),
		slog.Int64("heap_alloc_bytes", mem.HeapAlloc))
	return nil
}

// skipRemainingIn marks steps from index on as skipped
func (p *Pipeline) skipRemainingIn(state *RunState, from int, reason string) {
	for _, s := range p.steps[from:] {
		if st := state.GetStep(s.ID()); st != nil && st.GetStatus() == StepStatusPending {
			st.Skip(reason)
		}
	}
}
