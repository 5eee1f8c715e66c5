package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/docsync/enqueue"
	"github.com/xraph/docsync/id"
	"github.com/xraph/docsync/syncjob"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// EnqueueResponse is returned by POST /v1/jobs. Error is set when the job
// was persisted but its queue submission failed; the sweeper will submit
// it later.
type EnqueueResponse struct {
	Job   *syncjob.Job `json:"job"`
	Error string       `json:"error,omitempty"`
}

func (a *API) enqueueJob(w http.ResponseWriter, r *http.Request) {
	var req enqueue.Request
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid enqueue request: %w", err))
		return
	}

	j, err := a.eng.Enqueue(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, EnqueueResponse{Job: j})
	case j != nil:
		writeJSON(w, http.StatusAccepted, EnqueueResponse{Job: j, Error: err.Error()})
	default:
		a.writeEngineErr(w, err)
	}
}

// listOptsFromQuery reads status, type, parent, queue, limit and offset.
func listOptsFromQuery(r *http.Request) (syncjob.ListOpts, error) {
	q := r.URL.Query()
	opts := syncjob.ListOpts{
		Type:  q.Get("type"),
		Queue: q.Get("queue"),
		Limit: defaultListLimit,
	}

	if s := q.Get("status"); s != "" {
		opts.Status = syncjob.Status(s)
		if !opts.Status.Valid() {
			return opts, fmt.Errorf("unknown status %q", s)
		}
	}
	if p := q.Get("parent"); p != "" {
		parent, err := id.ParseSyncJobID(p)
		if err != nil {
			return opts, fmt.Errorf("invalid parent: %w", err)
		}
		opts.Parent = parent
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("invalid limit %q", l)
		}
		opts.Limit = min(n, maxListLimit)
	}
	if o := q.Get("offset"); o != "" {
		n, err := strconv.Atoi(o)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid offset %q", o)
		}
		opts.Offset = n
	}
	return opts, nil
}

func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptsFromQuery(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	jobs, err := a.eng.ListJobs(r.Context(), opts)
	if err != nil {
		a.writeEngineErr(w, err)
		return
	}
	if jobs == nil {
		jobs = []*syncjob.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (a *API) jobID(w http.ResponseWriter, r *http.Request) (id.SyncJobID, bool) {
	jobID, err := id.ParseSyncJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid job ID: %w", err))
		return jobID, false
	}
	return jobID, true
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := a.jobID(w, r)
	if !ok {
		return
	}
	j, err := a.eng.GetJob(r.Context(), jobID)
	if err != nil {
		a.writeEngineErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (a *API) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := a.jobID(w, r)
	if !ok {
		return
	}
	j, err := a.eng.Cancel(r.Context(), jobID)
	if err != nil {
		a.writeEngineErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}
