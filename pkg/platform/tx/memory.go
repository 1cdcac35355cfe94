package tx

import (
	"context"
	"sync"
	"time"

	dErrors "erasure/pkg/domain-errors"
)

// Participant is an in-memory store that can take part in a Memory transaction.
// Snapshot must return a deep copy; Restore replaces state with a previous snapshot.
type Participant interface {
	Snapshot() any
	Restore(snapshot any)
}

type memoryTxKey struct{}

// Memory is a single-lock transaction coordinator for in-memory stores.
// Transactions are fully serialized; a failed function restores every
// registered participant to its pre-transaction snapshot.
type Memory struct {
	mu           sync.Mutex
	participants []Participant
	timeout      time.Duration
}

func NewMemory() *Memory {
	return &Memory{timeout: defaultTxTimeout}
}

// Register adds a store to the set snapshotted by every transaction.
func (m *Memory) Register(p Participant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants = append(m.participants, p)
}

// Guard serializes a single store operation against running transactions.
// Inside a transaction of this coordinator it is a no-op.
func (m *Memory) Guard(ctx context.Context) func() {
	if m.inTx(ctx) {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(memoryTxKey{}).(*Memory)
	return ok && owner == m
}

func (m *Memory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if m.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshots := make([]any, len(m.participants))
	for i, p := range m.participants {
		snapshots[i] = p.Snapshot()
	}
	defer func() {
		if r := recover(); r != nil {
			m.restore(snapshots)
			panic(r)
		}
		if err != nil {
			m.restore(snapshots)
		}
	}()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(context.WithValue(ctx, memoryTxKey{}, m))
}

func (m *Memory) restore(snapshots []any) {
	for i, p := range m.participants {
		p.Restore(snapshots[i])
	}
}
