// Package observability provides a docsync extension that records sync job
// lifecycle counts as OpenTelemetry metrics.
package observability
