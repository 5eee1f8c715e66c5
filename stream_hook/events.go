package streamhook

// Lifecycle event types. Each constant maps to one ext lifecycle hook.
const (
	EventJobEnqueued = "docsync.sync_job.enqueued"
	EventJobStarted  = "docsync.sync_job.started"
	EventJobFinished = "docsync.sync_job.finished"
	EventJobFailed   = "docsync.sync_job.failed"
	EventJobRetrying = "docsync.sync_job.retrying"
	EventJobRelayed  = "docsync.sync_job.relayed"
	EventJobSkipped  = "docsync.sync_job.skipped"
	EventJobNoTarget = "docsync.sync_job.no_target"
	EventJobCanceled = "docsync.sync_job.canceled"
)

// AllEvents returns every event type this extension can publish.
func AllEvents() []string {
	return []string{
		EventJobEnqueued,
		EventJobStarted,
		EventJobFinished,
		EventJobFailed,
		EventJobRetrying,
		EventJobRelayed,
		EventJobSkipped,
		EventJobNoTarget,
		EventJobCanceled,
	}
}
