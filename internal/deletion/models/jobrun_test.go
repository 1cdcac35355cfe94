package models

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobRun(t *testing.T) {
	start := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	a := NewJobRun(TriggerManual, start)
	b := NewJobRun(TriggerScheduled, start)

	assert.NotEqual(t, a.JobID, b.JobID, "each run gets its own id")
	assert.NotNil(t, a.Errors)
	assert.Equal(t, TriggerManual, a.Trigger)

	parsed, err := ulid.Parse(a.JobID)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(start), parsed.Time())
}

func TestCloneDoesNotShareErrors(t *testing.T) {
	run := NewJobRun(TriggerManual, time.Now())
	run.Errors = append(run.Errors, JobError{ErrorCode: "timeout"})

	cp := run.Clone()
	cp.Errors[0].ErrorCode = "changed"
	assert.Equal(t, "timeout", run.Errors[0].ErrorCode)
}
