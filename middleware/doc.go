// Package middleware wraps each sync controller attempt.
//
// The engine's default chain is
//
//	Chain(Logging(l), Tracing(), Metrics(), Timeout(l), Recover(l), custom...)
//
// Timeout reads the per-type budget the worker stores with WithTimeout
// and returns docsync.ErrTimeout once it passes, abandoning a controller
// that ignores its context. Metrics, Tracing and Logging label every
// attempt with Outcome, which keeps skipped and not-permitted attempts
// out of the failure series.
//
// Custom middleware is added with engine.WithMiddleware and runs inside
// the defaults, closest to the controller.
package middleware
