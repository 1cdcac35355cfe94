package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "erasure/pkg/domain"
)

// Subscription is a billing record. It outlives the account: on purge the owner
// reference is replaced by a keyed, one-way anonymization key.
type Subscription struct {
	ID                   id.SubscriptionID
	AccountID            *id.AccountID
	AnonymizedAccountKey *string
	Plan                 string
	Amount               decimal.Decimal
	Currency             string
	PeriodStart          time.Time
	PeriodEnd            time.Time
	CreatedAt            time.Time
}

// IsAnonymized reports whether the owner link has been severed.
func (s *Subscription) IsAnonymized() bool {
	return s.AccountID == nil && s.AnonymizedAccountKey != nil
}
