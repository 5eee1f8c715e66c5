package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/docsync/syncjob"
)

// Logging logs each controller attempt once it returns. Skips log at
// Info with their reason; the executor logs the terminal failure so
// attempt failures here stay at Warn.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *syncjob.Job, next Handler) error {
		log := logger.With(
			slog.String("job_id", j.ID.String()),
			slog.String("sync_job_type", j.Type),
			slog.String("source", j.SourceDocumentType+"/"+j.SourceDocumentName),
			slog.Int("attempt", j.Attempts),
		)
		log.Debug("sync job attempt starting", slog.String("queue", j.Queue))

		began := time.Now()
		err := next(ctx)
		outcome := Outcome(err)
		attrs := []any{slog.String("outcome", outcome), slog.Duration("elapsed", time.Since(began)), slog.Int("retry_count", j.RetryCount)}

		switch {
		case err == nil:
			log.Info("sync job attempt done", attrs...)
		case benign(outcome):
			log.Info("sync job attempt done", append(attrs, slog.String("reason", err.Error()))...)
		default:
			log.Warn("sync job attempt failed", append(attrs, slog.String("error", err.Error()))...)
		}
		return err
	}
}
