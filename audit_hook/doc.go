// Package audithook is a docsync extension that turns sync job lifecycle
// events into audit events.
//
// Every lifecycle hook emits a structured [AuditEvent] through the
// [Recorder] interface with a severity (info for normal progress, warning
// for retries and skips, critical for terminal failures) and metadata
// naming the type, the source and the target documents.
//
// # JSON lines
//
//	f, _ := os.OpenFile("audit.jsonl", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
//	eng, _ := engine.Build(s, engine.WithExtension(
//	    audithook.New(audithook.NewWriterRecorder(f)),
//	))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionJobFailed,
//	        audithook.ActionJobCanceled,
//	    ),
//	)
package audithook
