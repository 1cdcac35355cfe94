package audit

import (
	"time"

	"github.com/google/uuid"

	id "erasure/pkg/domain"
)

// Action names an account lifecycle step recorded in the audit log.
type Action string

const (
	ActionDeletionRequested Action = "DELETION_REQUESTED"
	ActionDeletionCancelled Action = "DELETION_CANCELLED"
	ActionDeletionExecuted  Action = "DELETION_EXECUTED"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionDeletionRequested, ActionDeletionCancelled, ActionDeletionExecuted:
		return true
	}
	return false
}

// Result is the outcome of the audited action.
type Result string

const (
	ResultSuccess Result = "SUCCESS"
	ResultFailed  Result = "FAILED"
)

// Entry is an immutable audit log row. The account id survives the purge so the
// trail remains attributable after personal data is gone.
type Entry struct {
	ID        uuid.UUID
	Action    Action
	AccountID id.AccountID
	Result    Result
	Timestamp time.Time
	Details   Details
}

// Details is stored as a JSON object. Empty fields are omitted.
type Details struct {
	DeleteScheduledAt *time.Time       `json:"delete_scheduled_at,omitempty"`
	Reason            string           `json:"reason,omitempty"`
	RequestID         string           `json:"request_id,omitempty"`
	Device            string           `json:"device,omitempty"`
	ClientIP          string           `json:"client_ip,omitempty"`
	JobID             string           `json:"job_id,omitempty"`
	DeletedCounts     map[string]int64 `json:"deleted_counts,omitempty"`
	Anonymized        int64            `json:"anonymized_subscriptions,omitempty"`
	DurationMS        int64            `json:"duration_ms,omitempty"`
	ErrorCode         string           `json:"error_code,omitempty"`
	ErrorMessage      string           `json:"error_message,omitempty"`
}

// Page selects a window of a listing. Page numbers start at 1.
type Page struct {
	Number int
	Size   int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPageNumber keeps (Number-1)*Size far from int overflow.
	MaxPageNumber = 1_000_000
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Number > MaxPageNumber {
		p.Number = MaxPageNumber
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) Offset() int { return (p.Number - 1) * p.Size }
