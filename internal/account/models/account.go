package models

import (
	"time"

	id "erasure/pkg/domain"
	dErrors "erasure/pkg/domain-errors"
)

// Status is the account lifecycle state.
// Transitions: ACTIVE -> PENDING_DELETE -> ACTIVE (cancel) | DELETED (purge). DELETED is absorbing.
type Status string

const (
	StatusActive        Status = "ACTIVE"
	StatusPendingDelete Status = "PENDING_DELETE"
	StatusDeleted       Status = "DELETED"
)

var allStatuses = []Status{StatusActive, StatusPendingDelete, StatusDeleted}

// AllStatuses lists statuses in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusPendingDelete, StatusDeleted:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown account status: "+raw)
	}
	return s, nil
}

// CanTransitionTo encodes the lifecycle state machine.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusActive:
		return next == StatusPendingDelete
	case StatusPendingDelete:
		return next == StatusActive || next == StatusDeleted
	default:
		return false
	}
}

// Account is the account row. Personal fields are nil once the account is tombstoned.
type Account struct {
	ID           id.AccountID
	Status       Status
	Email        *string
	Phone        *string
	Username     *string
	Nickname     *string
	AvatarURL    *string
	PasswordHash *string

	DeleteRequestedAt *time.Time
	DeleteScheduledAt *time.Time
	DeletedAt         *time.Time
	TokenVersion      int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsDue reports whether the grace period has elapsed.
func (a *Account) IsDue(now time.Time) bool {
	return a.Status == StatusPendingDelete &&
		a.DeleteScheduledAt != nil &&
		!a.DeleteScheduledAt.After(now)
}

// CanCancel reports whether a cancel issued at now would succeed.
func (a *Account) CanCancel(now time.Time) bool {
	return a.Status == StatusPendingDelete &&
		a.DeleteScheduledAt != nil &&
		a.DeleteScheduledAt.After(now)
}

// MarkPendingDelete starts the grace period and invalidates outstanding sessions.
func (a *Account) MarkPendingDelete(now time.Time, grace time.Duration) error {
	if !a.Status.CanTransitionTo(StatusPendingDelete) {
		return dErrors.New(dErrors.CodeInvalidState, "account is not active")
	}
	scheduled := now.Add(grace)
	a.Status = StatusPendingDelete
	a.DeleteRequestedAt = &now
	a.DeleteScheduledAt = &scheduled
	a.TokenVersion++
	a.UpdatedAt = now
	return nil
}

// CancelPendingDelete returns the account to ACTIVE while the grace period is open.
func (a *Account) CancelPendingDelete(now time.Time) error {
	if !a.CanCancel(now) {
		return dErrors.New(dErrors.CodeInvalidState, "deletion cannot be cancelled")
	}
	a.Status = StatusActive
	a.DeleteRequestedAt = nil
	a.DeleteScheduledAt = nil
	a.TokenVersion++
	a.UpdatedAt = now
	return nil
}

// Tombstone clears every personal field. Only id, status, deletedAt and the
// token version counter survive.
func (a *Account) Tombstone(now time.Time) error {
	if !a.Status.CanTransitionTo(StatusDeleted) {
		return dErrors.New(dErrors.CodeInvalidState, "account is not pending deletion")
	}
	a.Status = StatusDeleted
	a.DeletedAt = &now
	a.Email = nil
	a.Phone = nil
	a.Username = nil
	a.Nickname = nil
	a.AvatarURL = nil
	a.PasswordHash = nil
	a.DeleteRequestedAt = nil
	a.DeleteScheduledAt = nil
	a.CreatedAt = time.Time{}
	a.TokenVersion++
	a.UpdatedAt = now
	return nil
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Email = cloneString(a.Email)
	cp.Phone = cloneString(a.Phone)
	cp.Username = cloneString(a.Username)
	cp.Nickname = cloneString(a.Nickname)
	cp.AvatarURL = cloneString(a.AvatarURL)
	cp.PasswordHash = cloneString(a.PasswordHash)
	cp.DeleteRequestedAt = cloneTime(a.DeleteRequestedAt)
	cp.DeleteScheduledAt = cloneTime(a.DeleteScheduledAt)
	cp.DeletedAt = cloneTime(a.DeletedAt)
	return &cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
