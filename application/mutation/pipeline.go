// Package mutation orchestrates a single create/update/delete operation:
// snapshot, optimistic apply, remote call, then commit or conflict-aware
// rollback, followed by invalidation of the touched keys.
package mutation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"admincore/domain/cache"
	"admincore/domain/optimistic"
	"admincore/infrastructure/gateway"
	"admincore/pkg/common"
	"admincore/pkg/errors"
	"admincore/pkg/observability"
)

// State represents where a mutation is in its lifecycle
type State string

const (
	StateIssued     State = "ISSUED"
	StateApplied    State = "OPTIMISTICALLY_APPLIED"
	StateInFlight   State = "IN_FLIGHT"
	StateCommitted  State = "COMMITTED"
	StateRolledBack State = "ROLLED_BACK"
)

// Remote is the slice of the gateway the pipeline needs
type Remote interface {
	Execute(ctx context.Context, op gateway.Operation) (json.RawMessage, error)
}

// Result reports the outcome of a committed or rolled-back mutation
type Result struct {
	MutationID string
	Kind       optimistic.Kind
	State      State
	// AppliedKeys are the cache keys the optimistic apply touched
	AppliedKeys []cache.Key
	// DiscardedRollbacks counts rollbacks skipped because a newer mutation
	// had already advanced the entry
	DiscardedRollbacks int
	// Response is the raw server response on commit
	Response json.RawMessage
}

// Pipeline handles exactly one logical mutation. Callers may run multiple
// pipelines concurrently against overlapping keys; the store's version
// check, not any lock held here, keeps the cache consistent under that
// concurrency.
type Pipeline struct {
	id      string
	cmd     Command
	ran     bool
	tempID  string
	store   *cache.Store
	engine  *optimistic.Engine
	remote  Remote
	logger  *zap.Logger
	metrics *observability.Collector
	tracer  trace.Tracer
}

// NewPipeline creates a pipeline for one mutation
func NewPipeline(
	cmd Command,
	store *cache.Store,
	engine *optimistic.Engine,
	remote Remote,
	logger *zap.Logger,
	metrics *observability.Collector,
) *Pipeline {
	return &Pipeline{
		id:      uuid.NewString(),
		cmd:     cmd,
		store:   store,
		engine:  engine,
		remote:  remote,
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer("admincore.application.mutation"),
	}
}

// ID returns the mutation identifier
func (p *Pipeline) ID() string {
	return p.id
}

// Run executes the mutation end to end. Whatever happens after the
// optimistic apply, the speculative state is resolved to committed or
// rolled back before Run returns; a caller cancelling ctx abandons the
// remote call but never leaves the cache half-applied.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	if p.ran {
		return Result{}, errors.NewValidationError("pipeline already ran; create a new one per mutation")
	}
	p.ran = true

	kind := p.cmd.Kind()
	result := Result{MutationID: p.id, Kind: kind, State: StateIssued}

	ctx, span := p.tracer.Start(ctx, "Pipeline.Run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("mutation.id", p.id),
			attribute.String("mutation.kind", string(kind)),
		),
	)
	defer span.End()

	// Boundary check: the tagged payload must be well-formed before any
	// cache state is touched
	if err := p.cmd.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return result, err
	}

	keys, err := targetKeys(p.targets())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid targets")
		return result, err
	}

	if p.metrics != nil {
		p.metrics.MutationsIssued.WithLabelValues(string(kind)).Inc()
	}
	issued := []zap.Field{
		zap.String("mutation_id", p.id),
		zap.String("kind", string(kind)),
		zap.Int("targets", len(keys)),
	}
	if userID, ok := common.GetUserID(ctx); ok {
		issued = append(issued, zap.String("user_id", userID))
	}
	p.logger.Info("Mutation issued", issued...)

	started := time.Now()
	pending := p.applyOptimistic(keys)
	result.State = StateApplied
	result.AppliedKeys = pending.AppliedKeys()

	ctx = common.WithMutationID(ctx, p.id)
	result.State = StateInFlight
	raw, err := p.remote.Execute(ctx, p.cmd.operation())
	if err != nil {
		discarded := p.engine.Rollback(pending)
		result.State = StateRolledBack
		result.DiscardedRollbacks = len(discarded)

		span.RecordError(err)
		span.SetStatus(codes.Error, "mutation rolled back")

		p.observe(kind, "rolled_back", started)
		p.logger.Warn("Mutation rolled back",
			zap.String("mutation_id", p.id),
			zap.String("kind", string(kind)),
			zap.Int("discarded_rollbacks", len(discarded)),
			zap.Error(err),
		)
		// The gateway already normalized the error; anything else is wrapped
		// so no raw error ever escapes the pipeline
		if !errors.IsAppError(err) {
			err = errors.NewInternalError("mutation failed").WithCause(err)
		}
		return result, err
	}

	p.commit(pending, raw)
	result.State = StateCommitted
	result.Response = raw
	span.SetStatus(codes.Ok, "")

	p.observe(kind, "committed", started)
	p.logger.Info("Mutation committed",
		zap.String("mutation_id", p.id),
		zap.String("kind", string(kind)),
	)
	return result, nil
}

// targets extracts the command's target descriptors
func (p *Pipeline) targets() []Target {
	switch cmd := p.cmd.(type) {
	case CreateCommand:
		return cmd.Targets
	case UpdateCommand:
		return cmd.Targets
	case DeleteCommand:
		return cmd.Targets
	case BulkDeleteCommand:
		return cmd.Targets
	default:
		return nil
	}
}

// applyOptimistic dispatches the speculative apply for the command's tag
func (p *Pipeline) applyOptimistic(keys []cache.Key) *optimistic.Pending {
	switch cmd := p.cmd.(type) {
	case CreateCommand:
		p.tempID = optimistic.NewTempID()
		record := cache.Record{ID: p.tempID, Fields: cmd.Fields}
		return p.engine.ApplyCreate(keys, record)
	case UpdateCommand:
		return p.engine.ApplyUpdate(keys, cmd.ID, cmd.Fields)
	case DeleteCommand:
		return p.engine.ApplyDelete(keys, cmd.ID)
	case BulkDeleteCommand:
		return p.engine.ApplyBulkDelete(keys, cmd.IDs)
	default:
		// Unreachable: Validate rejects unknown commands first
		return &optimistic.Pending{}
	}
}

// commit reconciles the speculative entries with the authoritative server
// response, bumps their versions again, and marks the touched keys for
// background refresh
func (p *Pipeline) commit(pending *optimistic.Pending, raw json.RawMessage) {
	if record, ok := decodeRecord(raw); ok {
		p.reconcile(pending, record)
	}
	p.store.Invalidate(pending.AppliedKeys()...)
}

// reconcile replaces the speculative record with the server's authoritative
// one. For creates this swaps the temporary local ID for the real one.
func (p *Pipeline) reconcile(pending *optimistic.Pending, authoritative cache.Record) {
	for _, key := range pending.AppliedKeys() {
		p.store.Mutate(key, func(data []cache.Record) ([]cache.Record, bool) {
			swapped := false
			for i := range data {
				switch pending.Kind {
				case optimistic.KindCreate:
					// Only this pipeline's temp record is swapped, so a
					// concurrent create's speculative record is untouched
					if data[i].ID != p.tempID {
						continue
					}
				case optimistic.KindUpdate:
					if data[i].ID != authoritative.ID {
						continue
					}
				default:
					continue
				}
				data[i] = authoritative.Clone()
				swapped = true
			}
			return data, swapped
		})
	}
}

// decodeRecord extracts an authoritative record from the response body, if
// the server provided one
func decodeRecord(raw json.RawMessage) (cache.Record, bool) {
	if len(raw) == 0 {
		return cache.Record{}, false
	}
	var record cache.Record
	if err := json.Unmarshal(raw, &record); err != nil || record.ID == "" {
		return cache.Record{}, false
	}
	return record, true
}

// observe records mutation metrics
func (p *Pipeline) observe(kind optimistic.Kind, outcome string, started time.Time) {
	if p.metrics == nil {
		return
	}
	switch outcome {
	case "committed":
		p.metrics.MutationsCommitted.WithLabelValues(string(kind)).Inc()
	case "rolled_back":
		p.metrics.MutationsRolledBack.WithLabelValues(string(kind)).Inc()
	}
	p.metrics.MutationDuration.WithLabelValues(string(kind), outcome).Observe(time.Since(started).Seconds())
}
