package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/xraph/docsync/enqueue"
	"github.com/xraph/docsync/id"
	"github.com/xraph/docsync/queue"
	"github.com/xraph/docsync/syncjob"
)

// ErrSubmitFailed is returned with a job that was persisted but could not
// be submitted to its queue. The server's sweeper submits it later.
var ErrSubmitFailed = errors.New("docsync client: job persisted but not submitted")

type enqueueResponse struct {
	Job   *syncjob.Job `json:"job"`
	Error string       `json:"error,omitempty"`
}

// Enqueue creates a sync job. On a partial failure both the job and an
// error wrapping ErrSubmitFailed are returned.
func (c *Client) Enqueue(ctx context.Context, req enqueue.Request) (*syncjob.Job, error) {
	var resp enqueueResponse
	if err := c.do(ctx, http.MethodPost, "/v1/jobs", nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return resp.Job, errors.Join(ErrSubmitFailed, errors.New(resp.Error))
	}
	return resp.Job, nil
}

// GetJob retrieves a job by ID.
func (c *Client) GetJob(ctx context.Context, jobID id.SyncJobID) (*syncjob.Job, error) {
	var j syncjob.Job
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+jobID.String(), nil, nil, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// ListJobs returns jobs matching opts. UpdatedBefore is not supported by
// the API and is ignored.
func (c *Client) ListJobs(ctx context.Context, opts syncjob.ListOpts) ([]*syncjob.Job, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", string(opts.Status))
	}
	if opts.Type != "" {
		q.Set("type", opts.Type)
	}
	if !opts.Parent.IsNil() {
		q.Set("parent", opts.Parent.String())
	}
	if opts.Queue != "" {
		q.Set("queue", opts.Queue)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}

	var jobs []*syncjob.Job
	if err := c.do(ctx, http.MethodGet, "/v1/jobs", q, nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// CancelJob cancels a pending, queued or failed job.
func (c *Client) CancelJob(ctx context.Context, jobID id.SyncJobID) (*syncjob.Job, error) {
	var j syncjob.Job
	if err := c.do(ctx, http.MethodPost, "/v1/jobs/"+jobID.String()+"/cancel", nil, nil, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// CountJobs returns the number of jobs per status.
func (c *Client) CountJobs(ctx context.Context) (map[syncjob.Status]int64, error) {
	counts := make(map[syncjob.Status]int64)
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/counts", nil, nil, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// QueueStats returns the server's per-queue limits and current load.
func (c *Client) QueueStats(ctx context.Context) ([]queue.Stats, error) {
	var stats []queue.Stats
	if err := c.do(ctx, http.MethodGet, "/v1/queues", nil, nil, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}
