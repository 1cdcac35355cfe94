// Package anonymize derives the stable, non-invertible key that replaces an
// account id on records that must outlive the account.
package anonymize

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	id "erasure/pkg/domain"
	dErrors "erasure/pkg/domain-errors"
)

// Anonymizer computes hex(HMAC-SHA256(secret, "account:" + accountID)).
type Anonymizer struct {
	secret []byte
}

func New(secret string) (*Anonymizer, error) {
	if secret == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "anonymization secret is required")
	}
	return &Anonymizer{secret: []byte(secret)}, nil
}

// Key is deterministic for a given secret and account id.
func (a *Anonymizer) Key(accountID id.AccountID) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte("account:" + accountID.String()))
	return hex.EncodeToString(mac.Sum(nil))
}
