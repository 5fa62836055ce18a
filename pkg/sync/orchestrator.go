// Package sync orchestrates one batch of identify events: fetch the
// destination field schema once, fetch every user's traits concurrently,
// reconcile each snapshot against the schema, and submit the assembled
// batch as a single upsert.
//
// A batch is all-or-nothing: the first failure aborts it and nothing is
// submitted. Hosts re-run the whole batch on retryable failures; the
// destination upsert is idempotent per identifier, so replays are safe.
package sync

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/audienceops/traitsync/pkg/appctx"
	"github.com/audienceops/traitsync/pkg/contact"
	"github.com/audienceops/traitsync/pkg/events"
	"github.com/audienceops/traitsync/pkg/metrics"
	"github.com/audienceops/traitsync/pkg/profile"
	"github.com/audienceops/traitsync/pkg/reconcile"
	"github.com/audienceops/traitsync/pkg/syncerrors"
	"github.com/audienceops/traitsync/pkg/tracing"
)

// DefaultFetchConcurrency caps concurrent profile trait fetches per batch.
const DefaultFetchConcurrency = 10

// TraitFetcher retrieves one user's trait snapshot from the Profile Store.
type TraitFetcher interface {
	FetchTraits(ctx context.Context, ev *events.Event) (profile.TraitSnapshot, error)
}

// ContactStore exposes the destination schema and the batched upsert.
type ContactStore interface {
	FetchFieldSchema(ctx context.Context) (contact.FieldSchema, error)
	Upsert(ctx context.Context, records []contact.Record) (string, error)
}

// Result describes a successfully submitted batch.
type Result struct {
	BatchID  string `json:"batch_id"`
	JobID    string `json:"job_id,omitempty"`
	Contacts int    `json:"contacts"`
}

// Orchestrator runs the trait-to-field sync pipeline for event batches.
type Orchestrator struct {
	profiles    TraitFetcher
	contacts    ContactStore
	reserved    contact.ReservedFieldSet
	policy      reconcile.SyncedTraitPolicy
	concurrency int
	logger      ectologger.Logger
}

// NewOrchestrator creates an orchestrator. syncedTraits is the raw
// operator setting; it is normalized once here, not per batch entry.
func NewOrchestrator(profiles TraitFetcher, contacts ContactStore, syncedTraits []string, concurrency int, logger ectologger.Logger) *Orchestrator {
	if concurrency <= 0 {
		concurrency = DefaultFetchConcurrency
	}
	return &Orchestrator{
		profiles:    profiles,
		contacts:    contacts,
		reserved:    contact.ReservedFields(),
		policy:      reconcile.NormalizePolicy(syncedTraits),
		concurrency: concurrency,
		logger:      logger,
	}
}

// ProcessIdentify routes a single identify event through the batch path.
func (o *Orchestrator) ProcessIdentify(ctx context.Context, ev *events.Event) (*Result, error) {
	return o.ProcessBatch(ctx, []*events.Event{ev})
}

// ProcessBatch runs the full pipeline for a batch of events. Record order
// follows event order. Any failure aborts the whole batch; the error kind
// tells the host whether re-running is worthwhile.
func (o *Orchestrator) ProcessBatch(ctx context.Context, batch []*events.Event) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "sync.ProcessBatch")
	defer span.End()

	batchID := uuid.New().String()
	ctx = appctx.SetBatchID(ctx, batchID)
	start := time.Now()

	result, err := o.processBatch(ctx, batch)
	metrics.BatchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BatchesTotal.WithLabelValues(string(syncerrors.KindOf(err))).Inc()
		return nil, err
	}

	result.BatchID = batchID
	metrics.BatchesTotal.WithLabelValues("synced").Inc()
	return result, nil
}

func (o *Orchestrator) processBatch(ctx context.Context, batch []*events.Event) (*Result, error) {
	for _, ev := range batch {
		if err := events.EnsureSupported(ev.Type); err != nil {
			return nil, err
		}
	}

	if len(batch) == 0 {
		return &Result{}, nil
	}

	// Fetch the schema once per batch for a consistent view of the
	// server-mutable custom fields. Aborts before any trait fetch.
	schema, err := o.contacts.FetchFieldSchema(ctx)
	if err != nil {
		return nil, err
	}

	snapshots, err := o.fetchTraits(ctx, batch)
	if err != nil {
		return nil, err
	}

	records := make([]contact.Record, 0, len(batch))
	for i, snapshot := range snapshots {
		record, err := reconcile.Reconcile(snapshot, schema, o.reserved, o.policy)
		if err != nil {
			o.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"event_index": i,
				"user_id":     batch[i].UserID,
			}).Error("Trait reconciliation failed")
			return nil, err
		}
		records = append(records, *record)
	}

	jobID, err := o.contacts.Upsert(ctx, records)
	if err != nil {
		return nil, err
	}

	o.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id": appctx.GetBatchID(ctx),
		"contacts": len(records),
		"job_id":   jobID,
	}).Info("Batch synced to contact store")

	return &Result{JobID: jobID, Contacts: len(records)}, nil
}

// fetchTraits fans out one trait fetch per event through a bounded worker
// pool and joins the results in event order, failing fast on the first
// error.
func (o *Orchestrator) fetchTraits(ctx context.Context, batch []*events.Event) ([]profile.TraitSnapshot, error) {
	concurrency := o.concurrency
	if concurrency > len(batch) {
		concurrency = len(batch)
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	snapshots := make([]profile.TraitSnapshot, len(batch))
	errCh := make(chan error, len(batch))
	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	for i, ev := range batch {
		wg.Add(1)
		go func(i int, ev *events.Event) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-fetchCtx.Done():
				return
			}

			snapshot, err := o.profiles.FetchTraits(fetchCtx, ev)
			if err != nil {
				errCh <- err
				cancel()
				return
			}
			snapshots[i] = snapshot
		}(i, ev)
	}
	wg.Wait()

	select {
	case err := <-errCh:
		return nil, err
	default:
	}

	if err := ctx.Err(); err != nil {
		return nil, syncerrors.NewRetryablef(0, "trait fetch cancelled: %v", err)
	}

	return snapshots, nil
}
