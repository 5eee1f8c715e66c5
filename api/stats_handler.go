package api

import (
	"net/http"

	"github.com/xraph/docsync/queue"
	"github.com/xraph/docsync/syncjob"
)

// JobCountsResponse maps every status to its job count.
type JobCountsResponse map[syncjob.Status]int64

func (a *API) jobCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := a.eng.CountJobs(r.Context(), syncjob.CountOpts{Type: r.URL.Query().Get("type")})
	if err != nil {
		a.writeEngineErr(w, err)
		return
	}
	resp := make(JobCountsResponse, len(syncjob.Statuses))
	for _, s := range syncjob.Statuses {
		resp[s] = counts[s]
	}
	writeJSON(w, http.StatusOK, resp)
}

// queueStats lists the limited queues. Without queue configs the list is
// empty.
func (a *API) queueStats(w http.ResponseWriter, _ *http.Request) {
	stats := []queue.Stats{}
	if m := a.eng.QueueManager(); m != nil {
		stats = m.Stats()
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	if err := a.eng.Ping(r.Context()); err != nil {
		writeErr(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
