// Package domain holds typed identifiers shared across packages.
//
// Identifiers are distinct named types over uuid.UUID so the compiler rejects
// passing an account id where a subscription id is expected. Construct them with
// the Parse* helpers at trust boundaries (HTTP params, token claims, DB scans).
package domain

import (
	"github.com/google/uuid"

	dErrors "erasure/pkg/domain-errors"
)

type (
	AccountID      uuid.UUID
	SubscriptionID uuid.UUID
)

func (id AccountID) String() string      { return uuid.UUID(id).String() }
func (id SubscriptionID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the id is the zero value.
func (id AccountID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Short returns the first eight hex characters, used for placeholders and logs.
func (id AccountID) Short() string { return id.String()[:8] }

// NewAccountID returns a random account id.
func NewAccountID() AccountID { return AccountID(uuid.New()) }

// NewSubscriptionID returns a random subscription id.
func NewSubscriptionID() SubscriptionID { return SubscriptionID(uuid.New()) }

func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s, "account ID")
	return AccountID(u), err
}

func ParseSubscriptionID(s string) (SubscriptionID, error) {
	u, err := parseUUID(s, "subscription ID")
	return SubscriptionID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

func (id AccountID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *AccountID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id SubscriptionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *SubscriptionID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
