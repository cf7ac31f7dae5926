// Package optimistic computes speculative cache mutations and their
// inverses. Every apply records the entry versions it produced so that a
// later rollback can detect whether an unrelated mutation has landed in
// between and must not be clobbered.
package optimistic

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"admincore/domain/cache"
	"admincore/pkg/errors"
)

// Kind identifies the shape of a mutation
type Kind string

const (
	KindCreate     Kind = "create"
	KindUpdate     Kind = "update"
	KindDelete     Kind = "delete"
	KindBulkDelete Kind = "bulkDelete"
)

// TempIDPrefix marks locally generated identifiers assigned to optimistic
// creates before the server has issued a real one
const TempIDPrefix = "tmp-"

// NewTempID generates a temporary local identifier for an optimistic create
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// snapshot captures one entry's state immediately before the optimistic
// apply touched it
type snapshot struct {
	key             cache.Key
	data            []cache.Record
	expectedVersion int64
}

// Pending is a mutation that has been optimistically applied but not yet
// committed or rolled back. It lives only in memory: it is created when the
// mutation is issued and destroyed on commit or rollback, never persisted.
type Pending struct {
	ID         string
	Kind       Kind
	TargetKeys []cache.Key
	snapshots  []snapshot
}

// AppliedKeys returns the keys the optimistic apply actually touched
func (p *Pending) AppliedKeys() []cache.Key {
	keys := make([]cache.Key, 0, len(p.snapshots))
	for _, snap := range p.snapshots {
		keys = append(keys, snap.key)
	}
	return keys
}

// Engine applies speculative changes to the cache store and rolls them back
// with version-based conflict detection
type Engine struct {
	store  *cache.Store
	logger *zap.Logger
}

// NewEngine creates an optimistic update engine over the given store
func NewEngine(store *cache.Store, logger *zap.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// ApplyCreate appends the proposed record (carrying a temporary local ID) to
// every targeted list entry. Rollback removes it by that temporary ID.
func (e *Engine) ApplyCreate(keys []cache.Key, record cache.Record) *Pending {
	return e.apply(KindCreate, keys, func(data []cache.Record) ([]cache.Record, bool) {
		return append(data, record.Clone()), true
	})
}

// ApplyUpdate locates records by stable identifier across all targeted
// entries and merges the given fields into them. The pre-image is kept in
// the snapshot for rollback. Entries holding no record with that identifier
// are left untouched so their versions and subscribers see no phantom change.
func (e *Engine) ApplyUpdate(keys []cache.Key, targetID string, fields map[string]interface{}) *Pending {
	return e.apply(KindUpdate, keys, func(data []cache.Record) ([]cache.Record, bool) {
		matched := false
		for i := range data {
			if data[i].ID != targetID {
				continue
			}
			matched = true
			if data[i].Fields == nil {
				data[i].Fields = make(map[string]interface{}, len(fields))
			}
			for k, v := range fields {
				data[i].Fields[k] = v
			}
		}
		return data, matched
	})
}

// ApplyDelete removes the record with the given identifier from all targeted
// entries. Rollback re-inserts the snapshot copy at its original position.
func (e *Engine) ApplyDelete(keys []cache.Key, targetID string) *Pending {
	return e.applyRemoval(KindDelete, keys, []string{targetID})
}

// ApplyBulkDelete removes every record whose identifier is in ids,
// preserving the relative order of the survivors. Rollback re-inserts all
// removed records in their original order.
func (e *Engine) ApplyBulkDelete(keys []cache.Key, ids []string) *Pending {
	return e.applyRemoval(KindBulkDelete, keys, ids)
}

func (e *Engine) applyRemoval(kind Kind, keys []cache.Key, ids []string) *Pending {
	doomed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		doomed[id] = struct{}{}
	}

	return e.apply(kind, keys, func(data []cache.Record) ([]cache.Record, bool) {
		kept := data[:0]
		for _, record := range data {
			if _, gone := doomed[record.ID]; !gone {
				kept = append(kept, record)
			}
		}
		return kept, len(kept) != len(data)
	})
}

// apply runs the transform against each targeted entry, snapshotting its
// pre-image and version. Entries that are not cached, and entries the
// transform left unchanged, are skipped: there is nothing to speculate on
// and nothing to roll back.
func (e *Engine) apply(kind Kind, keys []cache.Key, transform func([]cache.Record) ([]cache.Record, bool)) *Pending {
	pending := &Pending{
		ID:         uuid.NewString(),
		Kind:       kind,
		TargetKeys: keys,
	}

	for _, key := range keys {
		before, after, ok := e.store.Mutate(key, transform)
		if !ok {
			continue
		}
		pending.snapshots = append(pending.snapshots, snapshot{
			key:             key,
			data:            before.Data,
			expectedVersion: before.Version,
		})
		e.logger.Debug("Optimistic apply",
			zap.String("mutation_id", pending.ID),
			zap.String("kind", string(kind)),
			zap.String("key", key.String()),
			zap.Int64("version", after.Version),
		)
	}

	return pending
}

// Rollback restores each snapshot, but only where the entry version still
// equals the version the optimistic apply produced (expected+1). If another
// mutation advanced the entry in the meantime the restore is skipped and the
// conflict diagnostic is collected instead of corrupting newer state.
// Restores bump the version again, so versions never decrease.
func (e *Engine) Rollback(pending *Pending) []*errors.AppError {
	var discarded []*errors.AppError

	for _, snap := range pending.snapshots {
		_, err := e.store.SetIfVersion(snap.key, snap.data, snap.expectedVersion+1)
		if err == nil {
			e.logger.Debug("Rollback restored entry",
				zap.String("mutation_id", pending.ID),
				zap.String("key", snap.key.String()),
			)
			continue
		}

		if appErr := errors.GetAppError(err); appErr != nil && appErr.Type == errors.ErrorTypeConflictDiscarded {
			e.logger.Warn("Rollback discarded: entry advanced past snapshot",
				zap.String("mutation_id", pending.ID),
				zap.String("key", snap.key.String()),
				zap.Int64("expected_version", snap.expectedVersion+1),
			)
			discarded = append(discarded, appErr)
			continue
		}

		// Entry vanished (e.g. cache cleared on logout); nothing to restore
		e.logger.Debug("Rollback skipped missing entry",
			zap.String("mutation_id", pending.ID),
			zap.String("key", snap.key.String()),
		)
	}

	return discarded
}
