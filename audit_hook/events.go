package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionJobEnqueued = "sync_job.enqueued"
	ActionJobStarted  = "sync_job.started"
	ActionJobFinished = "sync_job.finished"
	ActionJobFailed   = "sync_job.failed"
	ActionJobRetrying = "sync_job.retrying"
	ActionJobRelayed  = "sync_job.relayed"
	ActionJobSkipped  = "sync_job.skipped"
	ActionJobNoTarget = "sync_job.no_target"
	ActionJobCanceled = "sync_job.canceled"
)

// CategorySync groups every docsync action.
const CategorySync = "docsync.sync_job"

// ResourceSyncJob is the Resource field of every event.
const ResourceSyncJob = "sync_job"

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionJobEnqueued,
		ActionJobStarted,
		ActionJobFinished,
		ActionJobFailed,
		ActionJobRetrying,
		ActionJobRelayed,
		ActionJobSkipped,
		ActionJobNoTarget,
		ActionJobCanceled,
	}
}
