package operations

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepState_Transitions(t *testing.T) {
	s := NewStepState("load", "Load input files")
	assert.Equal(t, StepStatusPending, s.GetStatus())
	assert.Zero(t, s.Duration())

	s.Start()
	assert.Equal(t, StepStatusActive, s.GetStatus())
	assert.NotNil(t, s.StartTime)
	assert.Nil(t, s.EndTime)

	s.Complete()
	assert.Equal(t, StepStatusCompleted, s.GetStatus())
	assert.NotNil(t, s.EndTime)
	assert.GreaterOrEqual(t, s.Duration().Nanoseconds(), int64(0))
}

func TestStepState_FailAndSkip(t *testing.T) {
	failed := NewStepState("persist", "Persist artifacts")
	failed.Start()
	cause := errors.New("disk full")
	failed.Fail(cause)
	assert.Equal(t, StepStatusFailed, failed.GetStatus())
	assert.Equal(t, cause, failed.Error)

	skipped := NewStepState("publish", "Publish artifacts")
	skipped.Skip("publishing disabled")
	assert.Equal(t, StepStatusSkipped, skipped.GetStatus())
	assert.Equal(t, "publishing disabled", skipped.Message)
}

func TestStepState_SetMetadata(t *testing.T) {
	s := NewStepState("merge", "Merge tables")
	s.SetMetadata("rows", 42)
	assert.Equal(t, 42, s.Metadata["rows"])

	var missing *StepState
	assert.NotPanics(t, func() { missing.SetMetadata("rows", 1) })
}

func TestSkip(t *testing.T) {
	reason, ok := skipReason(fmt.Errorf("publish: %w", Skip("publishing disabled")))
	assert.True(t, ok)
	assert.Equal(t, "publishing disabled", reason)

	_, ok = skipReason(errors.New("boom"))
	assert.False(t, ok)

	_, ok = skipReason(nil)
	assert.False(t, ok)
}

func TestBaseStage(t *testing.T) {
	b := NewBaseStage("unify", "Unify schemas")
	assert.Equal(t, "unify", b.ID())
	assert.Equal(t, "Unify schemas", b.Name())

	var nilStage *BaseStage
	assert.Empty(t, nilStage.ID())
	assert.Empty(t, nilStage.Name())
}
