package tx

import (
	"context"
	"sync"
	"time"

	dErrors "landledger/pkg/domain-errors"
)

// numShards spreads aggregate keys across independent locks so unrelated
// parcels do not contend.
const numShards = 128

type journalKeyType struct{}

var journalKey = journalKeyType{}

type journal struct {
	undo   []func()
	commit []func()
}

// AfterCommit defers fn until the current unit of work commits and drops it
// on rollback. Outside a unit of work fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	if j, ok := ctx.Value(journalKey).(*journal); ok {
		j.commit = append(j.commit, fn)
		return
	}
	fn()
}

// OnRollback registers an undo action for the current in-memory unit of work.
// It is a no-op outside a ShardedRunner transaction.
func OnRollback(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

// ShardedRunner serialises units of work per key using sharded mutexes and
// rolls back registered writes when fn fails.
type ShardedRunner struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewShardedRunner(timeout time.Duration) *ShardedRunner {
	return &ShardedRunner{timeout: timeout}
}

func (r *ShardedRunner) RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) (err error) {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	ctx, cancel := withDefaultTimeout(ctx, r.timeout)
	defer cancel()

	shard := &r.shards[hashKey(key)%numShards]
	shard.Lock()
	defer shard.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	j := &journal{}
	txCtx := context.WithValue(ctx, journalKey, j)

	defer func() {
		if p := recover(); p != nil {
			j.rollback()
			panic(p)
		}
		if err != nil {
			j.rollback()
		}
	}()

	if err = fn(txCtx); err != nil {
		return err
	}
	j.committed()
	return nil
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
	j.commit = nil
}

func (j *journal) committed() {
	hooks := j.commit
	j.undo = nil
	j.commit = nil
	for _, fn := range hooks {
		fn()
	}
}

// hashKey is FNV-1a.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
