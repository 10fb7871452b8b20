// Package api provides the authenticated client for the Halyard content
// service. The wire format uses snake_case field names distinct from the
// domain models; mapping lives in this package only.
package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/halyard-app/halyard-core/internal/models"
)

// PublicContentRef is the server's handle for published content.
type PublicContentRef struct {
	PublicID string `json:"public_id"`
	Slug     string `json:"slug"`
}

// SharedContentDetail is the full remote view of a shared item, fetched
// when browsing or forking.
type SharedContentDetail struct {
	PublicID    string             `json:"public_id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	ContentType models.ContentType `json:"content_type"`
	ContentData json.RawMessage    `json:"content_data"`
	Tags        []string           `json:"tags"`
	Language    string             `json:"language"`
	Author      string             `json:"author"`
	ForkCount   int                `json:"fork_count"`
	ViewCount   int                `json:"view_count"`
}

// CharterPage is the paginated envelope for charter listings.
type CharterPage struct {
	Items  []*models.Charter
	Total  int
	Limit  int
	Offset int
}

// Client is the remote API boundary. Every call is a request/response cycle
// that can fail with a coded error; callers treat each as a long-latency
// operation bounded by ctx.
type Client interface {
	Publish(ctx context.Context, payload *PublishPayload) (*PublicContentRef, error)
	PublishUpdate(ctx context.Context, publicID string, payload *PublishPayload) error
	Unpublish(ctx context.Context, publicID string) error

	FetchShared(ctx context.Context, publicID string) (*SharedContentDetail, error)
	IncrementForkCount(ctx context.Context, publicID string) error

	CreateCharter(ctx context.Context, charter *models.Charter) (serverID string, err error)
	UpdateCharter(ctx context.Context, charter *models.Charter) error
	FetchCharter(ctx context.Context, serverID string) (*models.Charter, error)
	ListCharters(ctx context.Context, limit, offset int) (*CharterPage, error)
}

// PublishPayload is the body for publish and publish-update operations.
// It doubles as the durable queue payload: the full content body is captured
// at enqueue time as a nested object, not a string-encoded blob, so queued
// work stays queryable.
type PublishPayload struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	ContentType models.ContentType `json:"content_type"`
	ContentData json.RawMessage    `json:"content_data"`
	Tags        []string           `json:"tags"`
	Language    string             `json:"language"`
	Slug        string             `json:"slug,omitempty"`
}

// NewPublishPayload builds a payload from an item and its current body,
// validating at construction rather than at serialization time.
func NewPublishPayload(item *models.LibraryItem, body models.ContentBody) (*PublishPayload, error) {
	if item.Title == "" {
		return nil, fmt.Errorf("publish payload requires a title")
	}
	if body == nil {
		return nil, fmt.Errorf("publish payload requires a content body")
	}
	if body.BodyType() != item.ContentType {
		return nil, fmt.Errorf("body type %s does not match item content type %s",
			body.BodyType(), item.ContentType)
	}
	data, err := models.EncodeBody(body)
	if err != nil {
		return nil, err
	}
	return &PublishPayload{
		Title:       item.Title,
		Description: item.Description,
		ContentType: item.ContentType,
		ContentData: data,
		Tags:        item.Tags,
		Language:    item.Language,
		Slug:        item.Slug,
	}, nil
}

// UnpublishPayload is the queue payload for unpublish operations: just the
// public slug being withdrawn.
type UnpublishPayload struct {
	Slug string `json:"slug"`
}
