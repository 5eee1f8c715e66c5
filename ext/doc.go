// Package ext is the docsync extension system.
//
// Extensions are notified of sync job lifecycle events and can react to
// them, for example by recording metrics or writing an audit trail. Each
// hook is its own interface so an extension implements only what it needs.
//
// # Implementing an Extension
//
//	type AuditExtension struct{}
//
//	func (e *AuditExtension) Name() string { return "audit" }
//
//	func (e *AuditExtension) OnJobFinished(ctx context.Context, j *syncjob.Job, elapsed time.Duration) error {
//	    log.Printf("sync job %s finished in %s", j.ID, elapsed)
//	    return nil
//	}
//
// # Hooks
//
//   - [JobEnqueued]: job persisted and submitted to its queue
//   - [JobStarted]: worker claimed the job
//   - [JobFinished]: target persisted, or the dry-run diff computed
//   - [JobFailed]: attempt failed and no retry is scheduled
//   - [JobRetrying]: failed job was requeued
//   - [JobRelayed]: job fanned out into child jobs
//   - [JobSkipped]: nothing to do, or the operation is disabled
//   - [JobNoTarget]: no target could be resolved
//   - [JobCanceled]: operator canceled the job
//   - [Shutdown]: the syncer is stopping
//
// The [Registry] fans out each event to the extensions implementing it.
package ext
