// Package models holds the records produced by deletion job runs.
package models

import (
	"time"

	"github.com/oklog/ulid/v2"

	id "erasure/pkg/domain"
)

// Trigger records what started a run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// JobRun summarizes one invocation of the deletion job. Every invocation gets
// a fresh value; nothing is shared between runs.
type JobRun struct {
	JobID         string     `json:"jobId"`
	Trigger       Trigger    `json:"trigger"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       time.Time  `json:"endTime"`
	TotalAccounts int        `json:"totalAccounts"`
	SuccessCount  int        `json:"successCount"`
	FailureCount  int        `json:"failureCount"`
	SkippedCount  int        `json:"skippedCount"`
	Errors        []JobError `json:"errors"`
}

// JobError is one failed per-account attempt.
type JobError struct {
	AccountID    id.AccountID `json:"accountId"`
	ErrorCode    string       `json:"errorCode"`
	ErrorMessage string       `json:"errorMessage"`
}

// NewJobRun starts a run with a time-ordered id.
func NewJobRun(trigger Trigger, start time.Time) *JobRun {
	return &JobRun{
		JobID:     ulid.MustNew(ulid.Timestamp(start), ulid.DefaultEntropy()).String(),
		Trigger:   trigger,
		StartTime: start,
		Errors:    []JobError{},
	}
}

func (r *JobRun) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Clone returns a deep copy.
func (r *JobRun) Clone() *JobRun {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Errors = append([]JobError(nil), r.Errors...)
	return &cp
}

// PurgeResult is what a successful per-account purge removed.
type PurgeResult struct {
	DeletedCounts map[string]int64
	Anonymized    int64
}
