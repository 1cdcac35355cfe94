// Package store persists what the deletion job touches besides the account row:
// account-owned data, subscriptions and job run summaries.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	accountmodels "erasure/internal/account/models"
	"erasure/internal/deletion/models"
	id "erasure/pkg/domain"
	"erasure/pkg/platform/sentinel"
	"erasure/pkg/platform/tx"
)

// ErrForeignKey mirrors a foreign key violation: a parent row was deleted
// while children still referenced it.
var ErrForeignKey = errors.New("foreign key violation")

type rateLimitKey struct {
	accountID id.AccountID
	bucket    string
}

type ownedState struct {
	conversations     map[uuid.UUID]id.AccountID
	messages          map[uuid.UUID]uuid.UUID
	readings          map[uuid.UUID]id.AccountID
	chartProfiles     map[uuid.UUID]id.AccountID
	chartComputations map[uuid.UUID]uuid.UUID
	settings          map[id.AccountID]struct{}
	rateLimitCounters map[rateLimitKey]struct{}
	subscriptions     map[id.SubscriptionID]*accountmodels.Subscription
}

func newOwnedState() ownedState {
	return ownedState{
		conversations:     make(map[uuid.UUID]id.AccountID),
		messages:          make(map[uuid.UUID]uuid.UUID),
		readings:          make(map[uuid.UUID]id.AccountID),
		chartProfiles:     make(map[uuid.UUID]id.AccountID),
		chartComputations: make(map[uuid.UUID]uuid.UUID),
		settings:          make(map[id.AccountID]struct{}),
		rateLimitCounters: make(map[rateLimitKey]struct{}),
		subscriptions:     make(map[id.SubscriptionID]*accountmodels.Subscription),
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	cp := make(map[K]V, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func (s ownedState) clone() ownedState {
	cp := ownedState{
		conversations:     copyMap(s.conversations),
		messages:          copyMap(s.messages),
		readings:          copyMap(s.readings),
		chartProfiles:     copyMap(s.chartProfiles),
		chartComputations: copyMap(s.chartComputations),
		settings:          copyMap(s.settings),
		rateLimitCounters: copyMap(s.rateLimitCounters),
		subscriptions:     make(map[id.SubscriptionID]*accountmodels.Subscription, len(s.subscriptions)),
	}
	for k, v := range s.subscriptions {
		cp.subscriptions[k] = cloneSubscription(v)
	}
	return cp
}

// InMemoryOwnedData enforces the same parent/child references as the SQL
// schema, so a misordered purge fails here too.
type InMemoryOwnedData struct {
	coord *tx.Memory
	state ownedState
}

func NewInMemoryOwnedData(coord *tx.Memory) *InMemoryOwnedData {
	s := &InMemoryOwnedData{coord: coord, state: newOwnedState()}
	coord.Register(s)
	return s
}

func (s *InMemoryOwnedData) Snapshot() any { return s.state.clone() }

func (s *InMemoryOwnedData) Restore(snapshot any) { s.state = snapshot.(ownedState) }

func (s *InMemoryOwnedData) DeleteOwned(ctx context.Context, resource accountmodels.Resource, accountID id.AccountID) (int64, error) {
	unlock := s.coord.Guard(ctx)
	defer unlock()

	st := &s.state
	var n int64
	switch resource {
	case accountmodels.ResourceMessages:
		for msgID, convID := range st.messages {
			if st.conversations[convID] == accountID {
				delete(st.messages, msgID)
				n++
			}
		}
	case accountmodels.ResourceConversations:
		for convID, owner := range st.conversations {
			if owner != accountID {
				continue
			}
			for _, parent := range st.messages {
				if parent == convID {
					return 0, fmt.Errorf("delete conversations: messages still reference %s: %w", convID, ErrForeignKey)
				}
			}
			delete(st.conversations, convID)
			n++
		}
	case accountmodels.ResourceReadings:
		n = deleteOwnedBy(st.readings, accountID)
	case accountmodels.ResourceChartComputations:
		for compID, profileID := range st.chartComputations {
			if st.chartProfiles[profileID] == accountID {
				delete(st.chartComputations, compID)
				n++
			}
		}
	case accountmodels.ResourceChartProfiles:
		for profileID, owner := range st.chartProfiles {
			if owner != accountID {
				continue
			}
			for _, parent := range st.chartComputations {
				if parent == profileID {
					return 0, fmt.Errorf("delete chart_profiles: computations still reference %s: %w", profileID, ErrForeignKey)
				}
			}
			delete(st.chartProfiles, profileID)
			n++
		}
	case accountmodels.ResourceSettings:
		if _, ok := st.settings[accountID]; ok {
			delete(st.settings, accountID)
			n = 1
		}
	case accountmodels.ResourceRateLimitCounters:
		for key := range st.rateLimitCounters {
			if key.accountID == accountID {
				delete(st.rateLimitCounters, key)
				n++
			}
		}
	default:
		return 0, fmt.Errorf("unknown resource %q", resource)
	}
	return n, nil
}

func deleteOwnedBy(rows map[uuid.UUID]id.AccountID, accountID id.AccountID) int64 {
	var n int64
	for rowID, owner := range rows {
		if owner == accountID {
			delete(rows, rowID)
			n++
		}
	}
	return n
}

// CountOwned counts rows of resource that still belong to accountID.
func (s *InMemoryOwnedData) CountOwned(ctx context.Context, resource accountmodels.Resource, accountID id.AccountID) (int64, error) {
	unlock := s.coord.Guard(ctx)
	defer unlock()

	st := &s.state
	var n int64
	switch resource {
	case accountmodels.ResourceMessages:
		for _, convID := range st.messages {
			if st.conversations[convID] == accountID {
				n++
			}
		}
	case accountmodels.ResourceConversations:
		n = countOwnedBy(st.conversations, accountID)
	case accountmodels.ResourceReadings:
		n = countOwnedBy(st.readings, accountID)
	case accountmodels.ResourceChartComputations:
		for _, profileID := range st.chartComputations {
			if st.chartProfiles[profileID] == accountID {
				n++
			}
		}
	case accountmodels.ResourceChartProfiles:
		n = countOwnedBy(st.chartProfiles, accountID)
	case accountmodels.ResourceSettings:
		if _, ok := st.settings[accountID]; ok {
			n = 1
		}
	case accountmodels.ResourceRateLimitCounters:
		for key := range st.rateLimitCounters {
			if key.accountID == accountID {
				n++
			}
		}
	default:
		return 0, fmt.Errorf("unknown resource %q", resource)
	}
	return n, nil
}

func countOwnedBy(rows map[uuid.UUID]id.AccountID, accountID id.AccountID) int64 {
	var n int64
	for _, owner := range rows {
		if owner == accountID {
			n++
		}
	}
	return n
}

// AnonymizeSubscriptions replaces the owner reference with key.
func (s *InMemoryOwnedData) AnonymizeSubscriptions(ctx context.Context, accountID id.AccountID, key string) (int64, error) {
	unlock := s.coord.Guard(ctx)
	defer unlock()

	var n int64
	for _, sub := range s.state.subscriptions {
		if sub.AccountID != nil && *sub.AccountID == accountID {
			k := key
			sub.AccountID = nil
			sub.AnonymizedAccountKey = &k
			n++
		}
	}
	return n, nil
}

func (s *InMemoryOwnedData) FindSubscription(ctx context.Context, subID id.SubscriptionID) (*accountmodels.Subscription, error) {
	unlock := s.coord.Guard(ctx)
	defer unlock()

	sub, ok := s.state.subscriptions[subID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneSubscription(sub), nil
}

// -----------------------------------------------------------------------------
// Fixtures
// -----------------------------------------------------------------------------

func (s *InMemoryOwnedData) AddConversation(ctx context.Context, accountID id.AccountID) (uuid.UUID, error) {
	unlock := s.coord.Guard(ctx)
	defer unlock()
	convID := uuid.New()
	s.state.conversations[convID] = accountID
	return convID, nil
}

func (s *InMemoryOwnedData) AddMessage(ctx context.Context, conversationID uuid.UUID) (uuid.UUID, error) {
	unlock := s.coord.Guard(ctx)
	defer unlock()
	if _, ok := s.state.conversations[conversationID]; !ok {
		return uuid.Nil, fmt.Errorf("conversation %s: %w", conversationID, ErrForeignKey)
	}
	msgID := uuid.New()
	s.state.messages[msgID] = conversationID
	return msgID, nil
}

func (s *InMemoryOwnedData) AddReading(ctx context.Context, accountID id.AccountID) (uuid.UUID, error) {
	unlock := s.coord.Guard(ctx)
	defer unlock()
	readingID := uuid.New()
	s.state.readings[readingID] = accountID
	return readingID, nil
}

func (s *InMemoryOwnedData) AddChartProfile(ctx context.Context, accountID id.AccountID) (uuid.UUID, error) {
	unlock := s.coord.Guard(ctx)
	defer unlock()
	profileID := uuid.New()
	s.state.chartProfiles[profileID] = accountID
	return profileID, nil
}

func (s *InMemoryOwnedData) AddChartComputation(ctx context.Context, profileID uuid.UUID) (uuid.UUID, error) {
	unlock := s.coord.Guard(ctx)
	defer unlock()
	if _, ok := s.state.chartProfiles[profileID]; !ok {
		return uuid.Nil, fmt.Errorf("chart profile %s: %w", profileID, ErrForeignKey)
	}
	compID := uuid.New()
	s.state.chartComputations[compID] = profileID
	return compID, nil
}

func (s *InMemoryOwnedData) PutSettings(ctx context.Context, accountID id.AccountID) error {
	unlock := s.coord.Guard(ctx)
	defer unlock()
	s.state.settings[accountID] = struct{}{}
	return nil
}

func (s *InMemoryOwnedData) AddRateLimitCounter(ctx context.Context, accountID id.AccountID, bucket string) error {
	unlock := s.coord.Guard(ctx)
	defer unlock()
	s.state.rateLimitCounters[rateLimitKey{accountID: accountID, bucket: bucket}] = struct{}{}
	return nil
}

func (s *InMemoryOwnedData) AddSubscription(ctx context.Context, sub *accountmodels.Subscription) error {
	unlock := s.coord.Guard(ctx)
	defer unlock()
	if sub.AccountID == nil && sub.AnonymizedAccountKey == nil {
		return fmt.Errorf("subscription needs an owner or an anonymized key: %w", sentinel.ErrInvalidState)
	}
	if _, exists := s.state.subscriptions[sub.ID]; exists {
		return fmt.Errorf("subscription %s: %w", sub.ID, sentinel.ErrConflict)
	}
	s.state.subscriptions[sub.ID] = cloneSubscription(sub)
	return nil
}

func cloneSubscription(sub *accountmodels.Subscription) *accountmodels.Subscription {
	cp := *sub
	if sub.AccountID != nil {
		v := *sub.AccountID
		cp.AccountID = &v
	}
	if sub.AnonymizedAccountKey != nil {
		v := *sub.AnonymizedAccountKey
		cp.AnonymizedAccountKey = &v
	}
	return &cp
}

// -----------------------------------------------------------------------------
// Job runs
// -----------------------------------------------------------------------------

// InMemoryJobRuns keeps job run summaries. Runs are written outside any
// transaction, so it does not register with the coordinator.
type InMemoryJobRuns struct {
	coord *tx.Memory
	runs  []*models.JobRun
}

func NewInMemoryJobRuns(coord *tx.Memory) *InMemoryJobRuns {
	return &InMemoryJobRuns{coord: coord}
}

func (s *InMemoryJobRuns) Save(ctx context.Context, run *models.JobRun) error {
	unlock := s.coord.Guard(ctx)
	defer unlock()
	s.runs = append(s.runs, run.Clone())
	return nil
}

// ListRecent returns up to limit runs, newest first.
func (s *InMemoryJobRuns) ListRecent(ctx context.Context, limit int) ([]*models.JobRun, error) {
	unlock := s.coord.Guard(ctx)
	defer unlock()

	out := make([]*models.JobRun, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
