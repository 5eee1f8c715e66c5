package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/api"
	"github.com/xraph/docsync/controller/fieldmap"
	docmem "github.com/xraph/docsync/document/memory"
	"github.com/xraph/docsync/engine"
	"github.com/xraph/docsync/queue"
	"github.com/xraph/docsync/store/memory"
	"github.com/xraph/docsync/syncjob"
)

func newServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()
	s, err := docsync.New(docsync.WithStore(memory.New()))
	require.NoError(t, err)
	eng, err := engine.Build(s, engine.WithAccessor(docmem.New()))
	require.NoError(t, err)

	srv := httptest.NewServer(api.New(eng, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, eng
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

var orderType = map[string]any{
	"name":                 "order-to-invoice",
	"source_document_type": "Order",
	"target_document_type": "Invoice",
	"controller":           fieldmap.Ref,
	"max_retries":          2,
}

func TestHealthz(t *testing.T) {
	srv, _ := newServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTypes(t *testing.T) {
	srv, _ := newServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/types", orderType)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[syncjob.Type](t, resp)
	assert.Equal(t, syncjob.DefaultQueue, created.Queue)
	assert.True(t, created.InsertEnabled, "omitted flags keep their defaults")

	resp = do(t, http.MethodPost, srv.URL+"/v1/types", orderType)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/v1/types/order-to-invoice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, decode[syncjob.Type](t, resp).MaxRetries)

	update := map[string]any{}
	for k, v := range orderType {
		update[k] = v
	}
	update["max_retries"] = 5
	resp = do(t, http.MethodPut, srv.URL+"/v1/types/order-to-invoice", update)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/v1/types", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	types := decode[[]syncjob.Type](t, resp)
	require.Len(t, types, 1)
	assert.Equal(t, 5, types[0].MaxRetries)

	resp = do(t, http.MethodGet, srv.URL+"/v1/types/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	bad := map[string]any{"name": "broken", "source_document_type": "Order", "controller": "nope"}
	resp = do(t, http.MethodPost, srv.URL+"/v1/types", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJobs(t *testing.T) {
	srv, _ := newServer(t)
	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/v1/types", orderType).StatusCode)

	resp := do(t, http.MethodPost, srv.URL+"/v1/jobs", map[string]any{
		"sync_job_type":        "order-to-invoice",
		"source_document_name": "O-1",
		"context":              map[string]any{"target_document_type": "Invoice"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	enq := decode[api.EnqueueResponse](t, resp)
	require.NotNil(t, enq.Job)
	assert.Equal(t, syncjob.StatusQueued, enq.Job.Status)
	jobURL := srv.URL + "/v1/jobs/" + enq.Job.ID.String()

	resp = do(t, http.MethodGet, jobURL, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "O-1", decode[syncjob.Job](t, resp).SourceDocumentName)

	resp = do(t, http.MethodGet, srv.URL+"/v1/jobs?status=queued&type=order-to-invoice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]syncjob.Job](t, resp), 1)

	resp = do(t, http.MethodGet, srv.URL+"/v1/jobs?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, jobURL+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, syncjob.StatusCanceled, decode[syncjob.Job](t, resp).Status)

	resp = do(t, http.MethodPost, jobURL+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/v1/jobs/counts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	counts := decode[map[string]int64](t, resp)
	assert.Equal(t, int64(1), counts["canceled"])
	assert.Equal(t, int64(0), counts["queued"])
}

func TestJobs_Errors(t *testing.T) {
	srv, _ := newServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/jobs", map[string]any{
		"sync_job_type":        "unknown",
		"source_document_name": "O-1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/v1/jobs/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/v1/jobs/sjob_01h455vb4pex5vsknk084sn02q", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQueues(t *testing.T) {
	srv, _ := newServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/v1/queues", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]queue.Stats](t, resp))

	s, err := docsync.New(docsync.WithStore(memory.New()))
	require.NoError(t, err)
	eng, err := engine.Build(s,
		engine.WithAccessor(docmem.New()),
		engine.WithQueueConfig(queue.Config{Name: "erp", MaxConcurrency: 2}),
	)
	require.NoError(t, err)
	require.True(t, eng.QueueManager().Acquire("erp"))
	limited := httptest.NewServer(api.New(eng, nil).Handler())
	t.Cleanup(limited.Close)

	resp = do(t, http.MethodGet, limited.URL+"/v1/queues", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[[]queue.Stats](t, resp)
	require.Len(t, stats, 1)
	assert.Equal(t, "erp", stats[0].Name)
	assert.Equal(t, 2, stats[0].MaxConcurrency)
	assert.Equal(t, 1, stats[0].Active)
}
