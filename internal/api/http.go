package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/halyard-app/halyard-core/internal/errors"
	"github.com/halyard-app/halyard-core/internal/models"
)

// HTTPClient implements Client against the Halyard content service.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a client for the given base URL and bearer token.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:       10,
				IdleConnTimeout:    30 * time.Second,
				DisableCompression: false,
			},
		},
	}
}

// Publish creates remote content and returns the assigned public reference.
func (c *HTTPClient) Publish(ctx context.Context, payload *PublishPayload) (*PublicContentRef, error) {
	var ref PublicContentRef
	if err := c.do(ctx, http.MethodPost, "/v1/content", payload, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// PublishUpdate replaces the remote content body for an already-published item.
func (c *HTTPClient) PublishUpdate(ctx context.Context, publicID string, payload *PublishPayload) error {
	return c.do(ctx, http.MethodPut, "/v1/content/"+url.PathEscape(publicID), payload, nil)
}

// Unpublish withdraws content from the remote service.
func (c *HTTPClient) Unpublish(ctx context.Context, publicID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/content/"+url.PathEscape(publicID), nil, nil)
}

// FetchShared returns the full remote view of a shared item.
func (c *HTTPClient) FetchShared(ctx context.Context, publicID string) (*SharedContentDetail, error) {
	var detail SharedContentDetail
	if err := c.do(ctx, http.MethodGet, "/v1/content/"+url.PathEscape(publicID), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// IncrementForkCount bumps the remote fork counter. Best-effort at call
// sites; the client itself reports failures normally.
func (c *HTTPClient) IncrementForkCount(ctx context.Context, publicID string) error {
	return c.do(ctx, http.MethodPost, "/v1/content/"+url.PathEscape(publicID)+"/fork-count", nil, nil)
}

// CreateCharter creates a charter remotely and returns the server-assigned ID.
func (c *HTTPClient) CreateCharter(ctx context.Context, charter *models.Charter) (string, error) {
	var ref charterRefDTO
	if err := c.do(ctx, http.MethodPost, "/v1/charters", toCharterDTO(charter), &ref); err != nil {
		return "", err
	}
	return ref.ID, nil
}

// UpdateCharter replaces the remote charter record.
func (c *HTTPClient) UpdateCharter(ctx context.Context, charter *models.Charter) error {
	if charter.ServerID == "" {
		return errors.New(errors.ErrInvalid, "cannot update a charter without a server ID")
	}
	return c.do(ctx, http.MethodPut, "/v1/charters/"+url.PathEscape(charter.ServerID),
		toCharterDTO(charter), nil)
}

// FetchCharter returns the remote charter record.
func (c *HTTPClient) FetchCharter(ctx context.Context, serverID string) (*models.Charter, error) {
	var dto charterDTO
	if err := c.do(ctx, http.MethodGet, "/v1/charters/"+url.PathEscape(serverID), nil, &dto); err != nil {
		return nil, err
	}
	return fromCharterDTO(dto), nil
}

// ListCharters returns one page of discoverable charters.
func (c *HTTPClient) ListCharters(ctx context.Context, limit, offset int) (*CharterPage, error) {
	path := "/v1/charters?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
	var dto charterPageDTO
	if err := c.do(ctx, http.MethodGet, path, nil, &dto); err != nil {
		return nil, err
	}
	page := &CharterPage{Total: dto.Total, Limit: dto.Limit, Offset: dto.Offset}
	for _, item := range dto.Items {
		page.Items = append(page.Items, fromCharterDTO(item))
	}
	return page, nil
}

// do performs one authenticated request/response cycle and maps the outcome
// onto the error taxonomy.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(errors.ErrInvalid, "failed to encode request body", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(errors.ErrInvalid, "failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return errors.Wrap(errors.ErrSyncTimeout, fmt.Sprintf("%s %s timed out", method, path), err)
		}
		return errors.Wrap(errors.ErrNetwork, fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	if err := mapStatus(resp); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(errors.ErrNetwork, "failed to decode response body", err)
		}
	}
	return nil
}

// mapStatus translates HTTP status classes onto the error taxonomy.
func mapStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.New(errors.ErrSyncAuthFailed, "authentication rejected: "+readError(resp))
	case resp.StatusCode == http.StatusNotFound:
		return errors.New(errors.ErrNotFound, "remote resource not found")
	case resp.StatusCode < 500:
		return errors.New(errors.ErrValidation,
			fmt.Sprintf("server rejected request (%d): %s", resp.StatusCode, readError(resp)))
	default:
		return errors.New(errors.ErrNetwork,
			fmt.Sprintf("server error (%d): %s", resp.StatusCode, readError(resp)))
	}
}

func readError(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil || len(data) == 0 {
		return resp.Status
	}
	return string(data)
}
