package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	id "erasure/pkg/domain"
	audit "erasure/pkg/platform/audit"
	"erasure/pkg/platform/tx"
)

// InMemoryStore keeps entries in append order. It registers with the memory
// transaction coordinator so entries written inside a rolled-back transaction vanish.
type InMemoryStore struct {
	coord     *tx.Memory
	entries   []audit.Entry
	published map[uuid.UUID]time.Time
}

type snapshot struct {
	entries   []audit.Entry
	published map[uuid.UUID]time.Time
}

func NewInMemoryStore(coord *tx.Memory) *InMemoryStore {
	s := &InMemoryStore{coord: coord, published: make(map[uuid.UUID]time.Time)}
	coord.Register(s)
	return s
}

func (s *InMemoryStore) Snapshot() any {
	published := make(map[uuid.UUID]time.Time, len(s.published))
	for k, v := range s.published {
		published[k] = v
	}
	return snapshot{entries: append([]audit.Entry(nil), s.entries...), published: published}
}

func (s *InMemoryStore) Restore(snap any) {
	restored := snap.(snapshot)
	s.entries = restored.entries
	s.published = restored.published
}

func (s *InMemoryStore) Append(ctx context.Context, entry audit.Entry) error {
	unlock := s.coord.Guard(ctx)
	defer unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) ListByAccount(ctx context.Context, accountID id.AccountID) ([]audit.Entry, error) {
	unlock := s.coord.Guard(ctx)
	defer unlock()

	var out []audit.Entry
	for _, e := range s.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListByAction(ctx context.Context, action audit.Action, page audit.Page) ([]audit.Entry, int, error) {
	unlock := s.coord.Guard(ctx)
	defer unlock()

	page = page.Normalize()
	var matched []audit.Entry
	for _, e := range s.entries {
		if e.Action == action {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	total := len(matched)
	start := page.Offset()
	if start >= total {
		return []audit.Entry{}, total, nil
	}
	end := min(start+page.Size, total)
	return matched[start:end], total, nil
}

func (s *InMemoryStore) CountByActionResult(ctx context.Context, action audit.Action, result audit.Result, since time.Time) (int, error) {
	unlock := s.coord.Guard(ctx)
	defer unlock()

	n := 0
	for _, e := range s.entries {
		if e.Action == action && e.Result == result && !e.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

// ClaimUnpublished returns up to limit undelivered entries, oldest first.
func (s *InMemoryStore) ClaimUnpublished(ctx context.Context, limit int) ([]audit.Entry, error) {
	unlock := s.coord.Guard(ctx)
	defer unlock()

	out := []audit.Entry{}
	for _, e := range s.entries {
		if _, done := s.published[e.ID]; !done {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	unlock := s.coord.Guard(ctx)
	defer unlock()
	for _, entryID := range ids {
		s.published[entryID] = at
	}
	return nil
}
