package handler

import (
	"strings"
	"unicode/utf8"

	dErrors "erasure/pkg/domain-errors"
)

const maxReasonLength = 500

// DeletionRequest is the optional body of POST /account/deletion-request.
type DeletionRequest struct {
	Reason string `json:"reason"`
}

func (r *DeletionRequest) Validate() error {
	r.Reason = strings.TrimSpace(r.Reason)
	if utf8.RuneCountInString(r.Reason) > maxReasonLength {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 500 characters")
	}
	return nil
}
