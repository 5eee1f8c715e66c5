package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/xraph/docsync/syncjob"
)

// CreateType registers a new sync job type.
func (c *Client) CreateType(ctx context.Context, t *syncjob.Type) (*syncjob.Type, error) {
	var out syncjob.Type
	if err := c.do(ctx, http.MethodPost, "/v1/types", nil, t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateType replaces an existing sync job type.
func (c *Client) UpdateType(ctx context.Context, t *syncjob.Type) (*syncjob.Type, error) {
	var out syncjob.Type
	if err := c.do(ctx, http.MethodPut, "/v1/types/"+url.PathEscape(t.Name), nil, t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetType retrieves a sync job type by name.
func (c *Client) GetType(ctx context.Context, name string) (*syncjob.Type, error) {
	var out syncjob.Type
	if err := c.do(ctx, http.MethodGet, "/v1/types/"+url.PathEscape(name), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTypes returns all sync job types.
func (c *Client) ListTypes(ctx context.Context) ([]*syncjob.Type, error) {
	var out []*syncjob.Type
	if err := c.do(ctx, http.MethodGet, "/v1/types", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
