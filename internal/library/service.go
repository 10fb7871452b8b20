// Package library coordinates local library content with the remote service:
// it decides when local mutations enqueue sync operations and reconciles
// fork lineage the remote is authoritative for.
package library

import (
	"context"

	"github.com/halyard-app/halyard-core/internal/api"
	"github.com/halyard-app/halyard-core/internal/cache"
	"github.com/halyard-app/halyard-core/internal/db"
	"github.com/halyard-app/halyard-core/internal/errors"
	"github.com/halyard-app/halyard-core/internal/logging"
	"github.com/halyard-app/halyard-core/internal/models"
	"github.com/halyard-app/halyard-core/internal/syncq"
	"github.com/halyard-app/halyard-core/internal/uuid"
)

// Service is the library content orchestrator.
type Service struct {
	db     *db.DB
	repo   *db.LibraryRepo
	queue  *syncq.Service
	client api.Client

	// One body cache per content type: no cross-type key collisions,
	// independent tuning.
	caches map[models.ContentType]*cache.Cache[models.ContentBody]
}

// NewService creates a Service with a body cache of the given capacity per
// content type.
func NewService(database *db.DB, repo *db.LibraryRepo, queue *syncq.Service, client api.Client, cacheCapacity int) *Service {
	caches := make(map[models.ContentType]*cache.Cache[models.ContentBody])
	for _, ct := range []models.ContentType{
		models.ContentTypeChecklist,
		models.ContentTypePracticeGuide,
		models.ContentTypeFlashcardDeck,
	} {
		caches[ct] = cache.New[models.ContentBody](cacheCapacity)
	}
	return &Service{
		db:     database,
		repo:   repo,
		queue:  queue,
		client: client,
		caches: caches,
	}
}

// Items lists all library metadata.
func (s *Service) Items() ([]*models.LibraryItem, error) {
	return s.repo.FetchAll()
}

// Item returns one metadata record.
func (s *Service) Item(id string) (*models.LibraryItem, error) {
	return s.repo.FetchOne(id)
}

// Content returns an item's full body through the read-through cache.
func (s *Service) Content(id string) (models.ContentBody, error) {
	item, err := s.repo.FetchOne(id)
	if err != nil {
		return nil, err
	}
	bodies := s.caches[item.ContentType]
	if body, ok := bodies.Get(id); ok {
		return body, nil
	}
	body, err := s.repo.FetchContent(id)
	if err != nil {
		return nil, err
	}
	bodies.Set(id, body)
	return body, nil
}

// Create persists new content. Content starts private and local; creating
// never enqueues a sync operation.
func (s *Service) Create(item *models.LibraryItem, body models.ContentBody) error {
	if item.ID == "" {
		item.ID = models.UUID(uuid.New())
	}
	if item.Visibility == "" {
		item.Visibility = models.VisibilityPrivate
	}
	item.SyncStatus = models.SyncPending
	s.deriveDescription(item, body)

	if err := s.repo.Save(item, body); err != nil {
		return err
	}
	if body != nil {
		s.caches[item.ContentType].Set(string(item.ID), body)
	}
	return nil
}

// Save persists an edit. Editing already-published content enqueues a
// publish-update carrying the current full body, not a diff, in the same
// transaction as the save. The cache entry is refreshed only after the
// commit so concurrent readers never see uncommitted state.
func (s *Service) Save(item *models.LibraryItem, body models.ContentBody) error {
	s.deriveDescription(item, body)

	// The store runs on a single connection, so everything the enqueue needs
	// is read before the transaction takes it.
	prior, err := s.repo.FetchOne(string(item.ID))
	if err != nil && !errors.IsNotFound(err) {
		return err
	}
	published := item.IsPublished() || (prior != nil && prior.IsPublished())
	if !published {
		// A first publish still waiting to drain counts too: the stale
		// enqueue-time payload alone must not end up marked synced.
		published, err = s.queue.HasPendingPublish(string(item.ID))
		if err != nil {
			return err
		}
	}

	payloadBody := body
	if published && payloadBody == nil {
		payloadBody, err = s.repo.FetchContent(string(item.ID))
		if err != nil {
			return err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to begin save", err)
	}
	defer tx.Rollback()

	if err := s.repo.SaveTx(tx, item, body); err != nil {
		return err
	}

	if published {
		payload, err := api.NewPublishPayload(item, payloadBody)
		if err != nil {
			return errors.Wrap(errors.ErrValidation, "failed to build publish-update payload", err)
		}
		if _, err := s.queue.Enqueue(tx, item.ID, syncq.OperationPublishUpdate,
			string(item.Visibility), payload); err != nil {
			return err
		}
		item.SyncStatus = models.SyncQueued
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to commit save", err)
	}

	if body != nil {
		s.caches[item.ContentType].Set(string(item.ID), body)
	} else {
		s.caches[item.ContentType].Remove(string(item.ID))
	}
	return nil
}

// SetVisibility changes who can see an item. Moving away from private on an
// unpublished item is the publish action; moving a published item back to
// private enqueues an unpublish.
func (s *Service) SetVisibility(id string, visibility models.Visibility) error {
	item, err := s.repo.FetchOne(id)
	if err != nil {
		return err
	}
	if item.Visibility == visibility {
		return nil
	}
	item.Visibility = visibility

	// An undrained publish already commits the item to the remote; a second
	// create would orphan the first public ID once both drain.
	pendingPublish, err := s.queue.HasPendingPublish(id)
	if err != nil {
		return err
	}
	remote := item.IsPublished() || pendingPublish

	// Payload bodies are read before the transaction takes the store's
	// single connection.
	var payloadBody models.ContentBody
	needsBody := visibility != models.VisibilityPrivate
	if needsBody {
		payloadBody, err = s.repo.FetchContent(id)
		if err != nil {
			return err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to begin visibility change", err)
	}
	defer tx.Rollback()

	if err := s.repo.SaveTx(tx, item, nil); err != nil {
		return err
	}

	switch {
	case visibility != models.VisibilityPrivate && !remote:
		payload, err := api.NewPublishPayload(item, payloadBody)
		if err != nil {
			return errors.Wrap(errors.ErrValidation, "failed to build publish payload", err)
		}
		if _, err := s.queue.Enqueue(tx, item.ID, syncq.OperationPublish,
			string(visibility), payload); err != nil {
			return err
		}

	case visibility == models.VisibilityPrivate && remote:
		// The row keeps its public ID until the unpublish drains; then
		// ClearPublication restores the publication invariant. When the
		// publish itself is still queued, the unpublish drains right after
		// it and resolves the freshly assigned public ID from the row.
		payload := api.UnpublishPayload{Slug: slugFor(item)}
		if _, err := s.queue.Enqueue(tx, item.ID, syncq.OperationUnpublish,
			string(visibility), payload); err != nil {
			return err
		}

	case remote:
		// On the remote (or on its way there) and staying public-facing:
		// propagate as an update.
		payload, err := api.NewPublishPayload(item, payloadBody)
		if err != nil {
			return errors.Wrap(errors.ErrValidation, "failed to build publish-update payload", err)
		}
		if _, err := s.queue.Enqueue(tx, item.ID, syncq.OperationPublishUpdate,
			string(visibility), payload); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to commit visibility change", err)
	}
	return nil
}

// Delete removes content locally. For published content with shouldUnpublish
// set, an unpublish is enqueued and a drain runs synchronously first, so the
// remote never keeps a reference to content that no longer exists locally.
// A failed network call stays recorded in the queue for later reconciliation
// and the local delete proceeds anyway: local responsiveness wins over
// strict remote consistency.
func (s *Service) Delete(ctx context.Context, id string, shouldUnpublish bool) error {
	item, err := s.repo.FetchOne(id)
	if err != nil {
		return err
	}

	if shouldUnpublish && item.IsPublished() {
		tx, err := s.db.Begin()
		if err != nil {
			return errors.Wrap(errors.ErrDatabase, "failed to begin delete", err)
		}
		payload := api.UnpublishPayload{Slug: slugFor(item)}
		if _, err := s.queue.Enqueue(tx, item.ID, syncq.OperationUnpublish,
			string(models.VisibilityPrivate), payload); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrap(errors.ErrDatabase, "failed to commit unpublish enqueue", err)
		}

		if _, err := s.queue.Drain(ctx); err != nil && !errors.Is(err, errors.ErrDrainInProgress) {
			logging.Warn("Unpublish drain before delete failed; queue retains the entry",
				map[string]interface{}{"content_id": id, "error": err.Error()})
		}
	}

	if err := s.repo.Delete(id); err != nil {
		return err
	}
	s.caches[item.ContentType].Remove(id)
	return nil
}

// Fork creates a new local copy of remote shared content with attribution
// to its origin. The copy gets a fresh ID, the share's presentation
// metadata, and starts private/pending like any created content. The
// attribution stamp and the remote fork-count increment are best-effort:
// their failures are logged, never propagated, and never undo the fork.
func (s *Service) Fork(ctx context.Context, detail *api.SharedContentDetail) (*models.LibraryItem, error) {
	body, err := models.DecodeBody(detail.ContentType, detail.ContentData)
	if err != nil {
		return nil, errors.Wrap(errors.ErrValidation, "shared content data is invalid", err)
	}

	item := &models.LibraryItem{
		ID:          models.UUID(uuid.New()),
		Title:       detail.Title,
		Description: detail.Description,
		ContentType: detail.ContentType,
		Visibility:  models.VisibilityPrivate,
		Tags:        detail.Tags,
		Language:    detail.Language,
		SyncStatus:  models.SyncPending,
		CanFork:     true,
	}
	if err := s.Create(item, body); err != nil {
		return nil, err
	}

	if err := s.repo.SetForkAttribution(string(item.ID), detail.PublicID,
		detail.Author, detail.PublicID); err != nil {
		logging.Error("Fork attribution write-back failed", err,
			map[string]interface{}{"content_id": item.ID, "source": detail.PublicID})
	} else {
		item.ForkedFromID = detail.PublicID
		item.OriginalAuthor = detail.Author
		item.OriginalPublicID = detail.PublicID
	}

	if err := s.client.IncrementForkCount(ctx, detail.PublicID); err != nil {
		logging.Error("Fork count increment failed", err,
			map[string]interface{}{"source": detail.PublicID})
	}

	return item, nil
}

// RetryFailed re-enters failed sync operations for an item.
func (s *Service) RetryFailed(id string) (int, error) {
	return s.queue.RetryFailed(id)
}

// InvalidateCaches drops every cached body, used when the store is swapped
// underneath the service (restore, account switch).
func (s *Service) InvalidateCaches() {
	for _, c := range s.caches {
		c.Clear()
	}
}

// deriveDescription fills an empty description for practice guides from the
// markdown body.
func (s *Service) deriveDescription(item *models.LibraryItem, body models.ContentBody) {
	if item.Description != "" || item.ContentType != models.ContentTypePracticeGuide {
		return
	}
	if guide, ok := body.(*models.GuideBody); ok && guide.Markdown != "" {
		item.Description = excerpt(guide.Markdown)
	}
}

// slugFor picks the public handle captured in an unpublish payload.
func slugFor(item *models.LibraryItem) string {
	if item.Slug != "" {
		return item.Slug
	}
	return item.PublicID
}
