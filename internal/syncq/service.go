// Package syncq drains the durable operation queue against the remote API.
// Every publish/unpublish intent survives process death as a sync_queue row;
// a drain pass delivers eligible rows in FIFO creation order and applies the
// retry policy.
package syncq

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/halyard-app/halyard-core/internal/api"
	"github.com/halyard-app/halyard-core/internal/db"
	"github.com/halyard-app/halyard-core/internal/errors"
	"github.com/halyard-app/halyard-core/internal/logging"
	"github.com/halyard-app/halyard-core/internal/models"
)

// Operation identifies the remote effect of a queue entry.
type Operation string

const (
	OperationPublish       Operation = "publish"
	OperationPublishUpdate Operation = "publish_update"
	OperationUnpublish     Operation = "unpublish"
)

const (
	// DefaultMaxRetries is the cap after which an entry is failed-permanent.
	DefaultMaxRetries = 3
	// DefaultCallTimeout bounds each remote call inside a drain pass. A
	// timed-out call counts as an ordinary failure.
	DefaultCallTimeout = 30 * time.Second
)

// SyncSummary reports one drain pass.
type SyncSummary struct {
	Succeeded int
	Failed    int
}

// Service drains the durable queue. At most one drain runs at a time; a
// trigger arriving mid-drain is reported as ErrDrainInProgress and treated
// as a no-op by the scheduler.
type Service struct {
	queue   *db.QueueRepo
	library *db.LibraryRepo
	client  api.Client

	maxRetries  int
	callTimeout time.Duration

	drainMu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithMaxRetries overrides the retry cap.
func WithMaxRetries(n int) Option {
	return func(s *Service) { s.maxRetries = n }
}

// WithCallTimeout overrides the per-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Service) { s.callTimeout = d }
}

// NewService creates a Service.
func NewService(queue *db.QueueRepo, library *db.LibraryRepo, client api.Client, opts ...Option) *Service {
	s := &Service{
		queue:       queue,
		library:     library,
		client:      client,
		maxRetries:  DefaultMaxRetries,
		callTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxRetries returns the configured retry cap.
func (s *Service) MaxRetries() int {
	return s.maxRetries
}

// Enqueue inserts a queue entry and marks the owning content queued, inside
// the caller's transaction: if the insert fails, the triggering local
// mutation rolls back with it and never silently appears synced.
func (s *Service) Enqueue(tx *sql.Tx, contentID models.UUID, op Operation, visibility string, payload interface{}) (*models.QueueEntry, error) {
	entry := &models.QueueEntry{
		ContentID:       contentID,
		Operation:       string(op),
		VisibilityState: visibility,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(errors.ErrInvalid, "failed to encode queue payload", err)
		}
		entry.Payload = data
	}
	if err := s.queue.InsertTx(tx, entry); err != nil {
		return nil, err
	}
	if err := s.library.MarkStatusTx(tx, string(contentID), models.SyncQueued); err != nil {
		return nil, err
	}
	logging.Debug("Enqueued sync operation", map[string]interface{}{
		"entry_id":   entry.ID,
		"content_id": contentID,
		"operation":  op,
	})
	return entry, nil
}

// Drain attempts every eligible entry in FIFO creation order. Failures do
// not stop the pass; each failed entry gets its retry count bumped and the
// owning content demoted to pending, or failed once the cap is reached.
// Multiple entries for the same content ID are applied strictly in order
// and never coalesced, so an unpublish enqueued after a publish-update is
// never applied before it.
func (s *Service) Drain(ctx context.Context) (SyncSummary, error) {
	if !s.drainMu.TryLock() {
		return SyncSummary{}, errors.New(errors.ErrDrainInProgress, "a drain pass is already running")
	}
	defer s.drainMu.Unlock()

	entries, err := s.queue.FetchPending(s.maxRetries)
	if err != nil {
		return SyncSummary{}, err
	}

	var summary SyncSummary
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		if err := s.attempt(ctx, entry); err != nil {
			summary.Failed++
			s.recordFailure(entry, err)
			continue
		}
		summary.Succeeded++
	}

	if len(entries) > 0 {
		logging.Info("Drain pass completed", map[string]interface{}{
			"succeeded": summary.Succeeded,
			"failed":    summary.Failed,
		})
	}
	return summary, nil
}

// attempt delivers one entry and, on success, marks both the entry and the
// owning content synced.
func (s *Service) attempt(ctx context.Context, entry *models.QueueEntry) error {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	switch Operation(entry.Operation) {
	case OperationPublish:
		payload, err := s.decodePublishPayload(entry)
		if err != nil {
			return err
		}
		ref, err := s.client.Publish(callCtx, payload)
		if err != nil {
			return err
		}
		if err := s.queue.MarkSynced(entry.ID); err != nil {
			return err
		}
		return s.library.MarkSynced(string(entry.ContentID), ref.PublicID, ref.Slug)

	case OperationPublishUpdate:
		payload, err := s.decodePublishPayload(entry)
		if err != nil {
			return err
		}
		publicID, err := s.publicIDFor(entry)
		if err != nil {
			return err
		}
		if err := s.client.PublishUpdate(callCtx, publicID, payload); err != nil {
			return err
		}
		if err := s.queue.MarkSynced(entry.ID); err != nil {
			return err
		}
		return s.library.MarkSynced(string(entry.ContentID), "", "")

	case OperationUnpublish:
		publicID, err := s.publicIDFor(entry)
		if err != nil {
			return err
		}
		if err := s.client.Unpublish(callCtx, publicID); err != nil {
			return err
		}
		if err := s.queue.MarkSynced(entry.ID); err != nil {
			return err
		}
		// The owning row may already be gone (delete flow); clearing
		// publication metadata on a missing row is a no-op.
		return s.library.ClearPublication(string(entry.ContentID))

	default:
		return errors.New(errors.ErrInvalid, "unknown queue operation: "+entry.Operation)
	}
}

func (s *Service) decodePublishPayload(entry *models.QueueEntry) (*api.PublishPayload, error) {
	var payload api.PublishPayload
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		return nil, errors.Wrap(errors.ErrInvalid, "queue entry payload is corrupt", err)
	}
	return &payload, nil
}

// publicIDFor resolves the remote handle for an entry: the owning item's
// public ID when the row still exists, otherwise the slug captured in the
// payload at enqueue time (the row is gone after a local delete).
func (s *Service) publicIDFor(entry *models.QueueEntry) (string, error) {
	item, err := s.library.FetchOne(string(entry.ContentID))
	if err == nil && item.PublicID != "" {
		return item.PublicID, nil
	}
	if err != nil && !errors.IsNotFound(err) {
		return "", err
	}
	var payload api.UnpublishPayload
	if len(entry.Payload) > 0 {
		if err := json.Unmarshal(entry.Payload, &payload); err == nil && payload.Slug != "" {
			return payload.Slug, nil
		}
	}
	return "", errors.New(errors.ErrInvalid, "no public ID available for entry")
}

// recordFailure bumps the retry counter, stores the error text, and settles
// the owning content's status: pending below the cap (eligible for the next
// drain), failed at the cap (manual retry only).
func (s *Service) recordFailure(entry *models.QueueEntry, cause error) {
	count, err := s.queue.RecordFailure(entry.ID, cause.Error())
	if err != nil {
		logging.Error("Failed to record queue failure", err,
			map[string]interface{}{"entry_id": entry.ID})
		return
	}

	status := models.SyncPending
	if count >= s.maxRetries {
		status = models.SyncFailed
	}
	if err := s.library.MarkStatus(string(entry.ContentID), status); err != nil && !errors.IsNotFound(err) {
		logging.Error("Failed to update content sync status", err,
			map[string]interface{}{"content_id": entry.ContentID})
	}

	logging.Warn("Sync operation failed", map[string]interface{}{
		"entry_id":    entry.ID,
		"content_id":  entry.ContentID,
		"operation":   entry.Operation,
		"retry_count": count,
		"max_retries": s.maxRetries,
		"error":       cause.Error(),
	})
}

// HasPendingPublish reports whether the newest undelivered entry for the
// content would leave it published once drained. Orchestrators treat such
// content as already on its way to the remote: a fresh edit enqueues an
// update rather than a second create, since entries for one item drain
// strictly in order. A trailing undelivered unpublish wins the other way.
func (s *Service) HasPendingPublish(contentID string) (bool, error) {
	entries, err := s.queue.FetchForContent(contentID)
	if err != nil {
		return false, err
	}
	pending := false
	for _, entry := range entries {
		if entry.IsSynced() {
			continue
		}
		switch Operation(entry.Operation) {
		case OperationPublish, OperationPublishUpdate:
			pending = true
		case OperationUnpublish:
			pending = false
		}
	}
	return pending, nil
}

// Counts reports queue health: undelivered entries under the cap and
// failed-permanent entries at or over it.
func (s *Service) Counts() (pending, failed int, err error) {
	return s.queue.Counts(s.maxRetries)
}

// RetryFailed re-enters failed-permanent entries for a content ID and
// demotes the content back to pending. This is the explicit user-triggered
// path out of the failed state.
func (s *Service) RetryFailed(contentID string) (int, error) {
	reset, err := s.queue.ResetFailed(contentID, s.maxRetries)
	if err != nil {
		return 0, err
	}
	if reset > 0 {
		if err := s.library.MarkStatus(contentID, models.SyncPending); err != nil && !errors.IsNotFound(err) {
			return reset, err
		}
	}
	return reset, nil
}

// PruneSynced removes delivered entries older than the retention window.
func (s *Service) PruneSynced(retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention).Unix()
	return s.queue.PruneSynced(cutoff)
}
