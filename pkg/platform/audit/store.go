package audit

import (
	"context"
	"time"

	id "erasure/pkg/domain"
)

// Store persists audit entries. Append joins the caller's transaction when the
// context carries one; otherwise it writes standalone.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByAccount(ctx context.Context, accountID id.AccountID) ([]Entry, error)
	// ListByAction returns entries newest first plus the total number of matches.
	ListByAction(ctx context.Context, action Action, page Page) ([]Entry, int, error)
	// CountByActionResult counts entries at or after since. A zero since counts everything.
	CountByActionResult(ctx context.Context, action Action, result Result, since time.Time) (int, error)
}
