package service

import (
	"time"

	"erasure/internal/account/models"
	id "erasure/pkg/domain"
)

type RequestResult struct {
	Status            models.Status
	DeleteScheduledAt time.Time
	// AlreadyPending is set when the request found an existing grace period.
	AlreadyPending bool
}

type CancelResult struct {
	Status models.Status
}

type DeletionStatus struct {
	Status            models.Status
	DeleteScheduledAt *time.Time
	ServerNow         time.Time
}

type Identity struct {
	AccountID         id.AccountID
	Status            models.Status
	Nickname          *string
	Email             *string
	Phone             *string
	CreatedAt         time.Time
	DeleteScheduledAt *time.Time
}
